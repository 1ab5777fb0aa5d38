// Package types defines core domain types shared by the rdint packages.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// OpcodeThreshold is the smallest descrambled value that starts an instruction.
// Payload bytes are always below it.
const OpcodeThreshold = 0x80

// Instruction is one framed unit of the descrambled stream.
// Data holds the opcode byte followed by the payload; it is empty only for
// the degenerate Empty instruction. Instructions are immutable once framed.
type Instruction struct {
	// Offset is the position of the opcode byte in the raw file.
	Offset int64 `msgpack:"offset" json:"offset" cbor:"offset"`
	// Data is the descrambled opcode plus payload.
	Data []byte `msgpack:"data" json:"data" cbor:"data"`
}

// Empty reports whether the instruction carries no bytes at all.
func (in Instruction) Empty() bool {
	return len(in.Data) == 0
}

// Opcode returns the first byte and whether one exists.
func (in Instruction) Opcode() (byte, bool) {
	if len(in.Data) == 0 {
		return 0, false
	}
	return in.Data[0], true
}

// Payload returns the bytes after the opcode.
func (in Instruction) Payload() []byte {
	if len(in.Data) < 2 {
		return nil
	}
	return in.Data[1:]
}

// Hex returns the lowercase hex encoding of Data without separators.
func (in Instruction) Hex() string {
	return hex.EncodeToString(in.Data)
}

// String renders the instruction as "0x00000002: a8 00 01 ...".
func (in Instruction) String() string {
	parts := make([]string, len(in.Data))
	for i, b := range in.Data {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return fmt.Sprintf("0x%08x: %s", in.Offset, strings.Join(parts, " "))
}
