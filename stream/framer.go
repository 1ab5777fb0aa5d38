// Package stream frames the descrambled RD byte stream into instructions.
//
// A stream starts with a two byte magic header. Every following byte is
// descrambled; a value of 0x80 or above opens a new instruction and smaller
// values extend the current one. The framer never interprets opcodes.
package stream

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/pithecene-io/rdint/codec"
	"github.com/pithecene-io/rdint/types"
)

// Magic is the raw file signature.
var Magic = [2]byte{0xD8, 0x12}

// BacklogSize is the number of recent instructions kept for diagnostics.
const BacklogSize = 10

// FrameErrorKind classifies framing failures.
type FrameErrorKind int

const (
	// FrameErrorMagic indicates a missing or wrong file signature.
	FrameErrorMagic FrameErrorKind = iota
	// FrameErrorEmpty indicates the source ended before the first instruction.
	FrameErrorEmpty
	// FrameErrorRead indicates the underlying reader failed.
	FrameErrorRead
	// FrameErrorInvalidated indicates a caller invalidated the stream.
	FrameErrorInvalidated
)

func (k FrameErrorKind) String() string {
	switch k {
	case FrameErrorMagic:
		return "magic"
	case FrameErrorEmpty:
		return "empty"
	case FrameErrorRead:
		return "read"
	case FrameErrorInvalidated:
		return "invalidated"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// FrameError represents a stream invalidation.
type FrameError struct {
	Kind   FrameErrorKind
	Msg    string
	Offset int64
	Err    error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s at 0x%x: %v", e.Msg, e.Offset, e.Err)
	}
	return fmt.Sprintf("%s at 0x%x", e.Msg, e.Offset)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFrameError reports whether err is a FrameError of the given kind.
func IsFrameError(err error, kind FrameErrorKind) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.Kind == kind
	}
	return false
}

// Diagnostic describes why a stream was invalidated.
type Diagnostic struct {
	Reason  string
	Offset  int64
	Backlog []types.Instruction
}

// Framer slices a raw RD stream into instructions.
// Not safe for concurrent use; the execution goroutine owns it.
type Framer struct {
	r       *bufio.Reader
	offset  int64
	framed  int64
	eof     bool
	err     *FrameError
	diag    *Diagnostic
	backlog *Backlog
}

// Open checks the magic header and returns a framer positioned after it.
func Open(r io.Reader) (*Framer, error) {
	br := bufio.NewReader(r)

	var hdr [2]byte
	n, err := io.ReadFull(br, hdr[:])
	if err != nil {
		return nil, &FrameError{
			Kind:   FrameErrorMagic,
			Msg:    "failed to read magic header",
			Offset: int64(n),
			Err:    err,
		}
	}
	if hdr != Magic {
		return nil, &FrameError{
			Kind: FrameErrorMagic,
			Msg:  fmt.Sprintf("magic mismatch: got %02x %02x, want %02x %02x", hdr[0], hdr[1], Magic[0], Magic[1]),
		}
	}

	return &Framer{
		r:       br,
		offset:  int64(len(hdr)),
		backlog: NewBacklog(BacklogSize),
	}, nil
}

// Next returns the next instruction.
//
// Errors:
//   - io.EOF: the stream ended after at least one instruction
//   - *FrameError with Kind=FrameErrorEmpty: no instruction before end of source
//   - *FrameError with Kind=FrameErrorRead: the reader failed
//   - the recorded *FrameError once the framer is invalid
//
// A source ending mid-instruction yields that truncated instruction; the
// next call returns io.EOF.
func (f *Framer) Next() (types.Instruction, error) {
	if f.err != nil {
		return types.Instruction{}, f.err
	}
	if f.eof {
		return types.Instruction{}, io.EOF
	}

	start := f.offset
	b, err := f.r.ReadByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			f.eof = true
			if f.framed == 0 {
				return types.Instruction{}, f.fail(FrameErrorEmpty, "end of file before first instruction", nil)
			}
			return types.Instruction{}, io.EOF
		}
		return types.Instruction{}, f.fail(FrameErrorRead, "read failed", err)
	}
	f.offset++
	data := []byte{codec.Descramble(b)}

	for {
		b, err := f.r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				f.eof = true
				break
			}
			f.record(types.Instruction{Offset: start, Data: data})
			return types.Instruction{}, f.fail(FrameErrorRead, "read failed", err)
		}
		v := codec.Descramble(b)
		if v >= types.OpcodeThreshold {
			_ = f.r.UnreadByte()
			break
		}
		f.offset++
		data = append(data, v)
	}

	in := types.Instruction{Offset: start, Data: data}
	f.record(in)
	return in, nil
}

func (f *Framer) record(in types.Instruction) {
	f.framed++
	f.backlog.Push(in)
}

func (f *Framer) fail(kind FrameErrorKind, msg string, err error) error {
	f.err = &FrameError{Kind: kind, Msg: msg, Offset: f.offset, Err: err}
	f.diag = &Diagnostic{Reason: f.err.Error(), Offset: f.offset, Backlog: f.backlog.Items()}
	return f.err
}

// Invalidate stops the framer; later Next calls return the recorded error.
// The first invalidation wins.
func (f *Framer) Invalidate(reason string) *Diagnostic {
	if f.err == nil {
		f.err = &FrameError{Kind: FrameErrorInvalidated, Msg: reason, Offset: f.offset}
		f.diag = &Diagnostic{Reason: reason, Offset: f.offset, Backlog: f.backlog.Items()}
	}
	return f.diag
}

// Valid reports whether the framer can still produce instructions.
func (f *Framer) Valid() bool {
	return f.err == nil
}

// Diagnostic returns the invalidation record, or nil while valid.
func (f *Framer) Diagnostic() *Diagnostic {
	return f.diag
}

// Offset returns the raw file offset of the next unread byte.
func (f *Framer) Offset() int64 {
	return f.offset
}

// Count returns the number of instructions framed so far.
func (f *Framer) Count() int64 {
	return f.framed
}

// Backlog returns the most recent instructions, oldest first.
func (f *Framer) Backlog() []types.Instruction {
	return f.backlog.Items()
}

// Encode builds a raw RD stream from logical instructions: the magic header
// followed by every scrambled byte.
func Encode(instructions ...[]byte) []byte {
	out := append([]byte(nil), Magic[:]...)
	for _, in := range instructions {
		out = append(out, codec.ScrambleAll(in)...)
	}
	return out
}
