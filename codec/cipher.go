// Package codec implements the byte-level transforms of the RD control stream:
// the descrambling cipher and the base-128 numeric field encoding.
package codec

// cipherKey is XORed into every byte after the offset step.
const cipherKey = 0x33

// swapEnds exchanges bit 0 and bit 7, keeping bits 1..6.
func swapEnds(b byte) byte {
	return (b & 0x7E) | (b >> 7 & 0x01) | (b << 7 & 0x80)
}

// Descramble maps a raw file byte to its logical value.
func Descramble(raw byte) byte {
	return swapEnds((raw - 1) ^ cipherKey)
}

// Scramble is the inverse of Descramble.
func Scramble(logical byte) byte {
	return (swapEnds(logical) ^ cipherKey) + 1
}

// DescrambleAll descrambles src in place and returns it.
func DescrambleAll(src []byte) []byte {
	for i, b := range src {
		src[i] = Descramble(b)
	}
	return src
}

// ScrambleAll returns a scrambled copy of src.
func ScrambleAll(src []byte) []byte {
	out := make([]byte, len(src))
	for i, b := range src {
		out[i] = Scramble(b)
	}
	return out
}
