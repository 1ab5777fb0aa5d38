package codec

import "testing"

func TestDescramble_KnownPairs(t *testing.T) {
	tests := []struct {
		name    string
		raw     byte
		logical byte
	}{
		{"move absolute opcode", 0x3B, 0x88},
		{"cut absolute opcode", 0x1B, 0xA8},
		{"move relative opcode", 0xBB, 0x89},
		{"layer opcode", 0x79, 0xCA},
		{"power opcode", 0x75, 0xC6},
		{"limits opcode", 0xD5, 0xE7},
		{"payload zero", 0x34, 0x00},
		{"payload one", 0xB4, 0x01},
		{"payload max", 0xCE, 0x7F},
		// (0x00-1)^0x33 = 0xCC, bits 0 and 7 swapped = 0x4D: a payload
		// byte, not an opcode.
		{"raw zero", 0x00, 0x4D},
		{"raw one", 0x01, 0xB2},
		{"raw ff", 0xFF, 0xCD},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Descramble(tt.raw); got != tt.logical {
				t.Errorf("Descramble(%#02x) = %#02x, want %#02x", tt.raw, got, tt.logical)
			}
			if got := Scramble(tt.logical); got != tt.raw {
				t.Errorf("Scramble(%#02x) = %#02x, want %#02x", tt.logical, got, tt.raw)
			}
		})
	}
}

func TestDescramble_Invertible(t *testing.T) {
	seen := make(map[byte]bool, 256)
	for i := 0; i < 256; i++ {
		b := byte(i)
		d := Descramble(b)
		if Scramble(d) != b {
			t.Fatalf("Scramble(Descramble(%#02x)) = %#02x", b, Scramble(d))
		}
		if seen[d] {
			t.Fatalf("Descramble is not a bijection: %#02x produced twice", d)
		}
		seen[d] = true
	}
}

func TestScrambleAll_RoundTrip(t *testing.T) {
	logical := []byte{0xA8, 0x00, 0x00, 0x00, 0x10, 0x00, 0x7F, 0x7F, 0x7F, 0x7F, 0x7F}
	raw := ScrambleAll(logical)
	if &raw[0] == &logical[0] {
		t.Fatal("ScrambleAll must return a copy")
	}

	got := DescrambleAll(raw)
	for i := range logical {
		if got[i] != logical[i] {
			t.Fatalf("byte %d: got %#02x, want %#02x", i, got[i], logical[i])
		}
	}
}
