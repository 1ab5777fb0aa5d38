package codec

// Fields are fixed-width big-endian base-128 spans: every byte carries seven
// value bits. Widths come from the command layout and are never encoded.

// signThreshold is the first-byte value from which a signed span is negative.
const signThreshold = 0x40

// ParseUnsigned evaluates b as a base-128 number.
func ParseUnsigned(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v*128 + uint64(c)
	}
	return v
}

// ParseSigned evaluates b as a signed base-128 number.
// A first byte below 0x40 is a plain unsigned value; otherwise the span is
// the 7-bit complement of a negative value.
func ParseSigned(b []byte) int64 {
	if len(b) == 0 || b[0] < signThreshold {
		return int64(ParseUnsigned(b))
	}
	var u uint64
	for _, c := range b {
		u = u*128 + uint64(c^0x7F)
	}
	return -int64(u) - 1
}

// EncodeUnsigned renders v as a width-byte base-128 span.
// It returns false when v does not fit.
func EncodeUnsigned(v uint64, width int) ([]byte, bool) {
	if width <= 0 {
		return nil, false
	}
	out := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		out[i] = byte(v & 0x7F)
		v >>= 7
	}
	return out, v == 0
}

// EncodeSigned renders v as a width-byte signed span.
// Non-negative values must leave the first byte below 0x40; negative values
// must leave it at or above 0x40.
func EncodeSigned(v int64, width int) ([]byte, bool) {
	if v >= 0 {
		out, ok := EncodeUnsigned(uint64(v), width)
		if !ok || out[0] >= signThreshold {
			return nil, false
		}
		return out, true
	}
	out, ok := EncodeUnsigned(uint64(-(v + 1)), width)
	if !ok {
		return nil, false
	}
	for i := range out {
		out[i] ^= 0x7F
	}
	if out[0] < signThreshold {
		return nil, false
	}
	return out, true
}
