// Package trace persists replay records as a framed binary file.
//
// A trace file starts with the 4-byte magic "RDTR" and a codec id byte,
// followed by length-prefixed frames: one Header frame, then one frame per
// TraceRecord. Each frame is a 4-byte big-endian payload length and the
// payload encoded with the file's codec. The whole stream may be zstd
// compressed; readers detect compression from the zstd magic.
package trace

import (
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes frame payloads.
type Codec interface {
	Name() string
	ID() byte
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Codec ids as stored after the file magic.
const (
	codecIDMsgpack byte = 1
	codecIDCBOR    byte = 2
)

type msgpackCodec struct{}

func (msgpackCodec) Name() string { return "msgpack" }
func (msgpackCodec) ID() byte { return codecIDMsgpack }
func (msgpackCodec) Marshal(v any) ([]byte, error) { return msgpack.Marshal(v) }
func (msgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

type cborCodec struct {
	enc cbor.EncMode
}

func (cborCodec) Name() string { return "cbor" }
func (cborCodec) ID() byte { return codecIDCBOR }
func (c cborCodec) Marshal(v any) ([]byte, error) { return c.enc.Marshal(v) }
func (cborCodec) Unmarshal(data []byte, v any) error { return cbor.Unmarshal(data, v) }

var (
	// CodecMsgpack is the default codec.
	CodecMsgpack Codec = msgpackCodec{}
	// CodecCBOR encodes with canonical CBOR.
	CodecCBOR Codec = newCBORCodec()
)

func newCBORCodec() Codec {
	enc, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("trace: cbor encoder options: %v", err))
	}
	return cborCodec{enc: enc}
}

// ParseCodec returns the codec with the given name; empty selects msgpack.
func ParseCodec(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "msgpack":
		return CodecMsgpack, nil
	case "cbor":
		return CodecCBOR, nil
	default:
		return nil, fmt.Errorf("unknown trace codec %q (want msgpack or cbor)", name)
	}
}

func codecByID(id byte) (Codec, bool) {
	switch id {
	case codecIDMsgpack:
		return CodecMsgpack, true
	case codecIDCBOR:
		return CodecCBOR, true
	default:
		return nil, false
	}
}
