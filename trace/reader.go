package trace

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/pithecene-io/rdint/iox"
	"github.com/pithecene-io/rdint/types"
)

// Reader iterates the records of a trace stream.
type Reader struct {
	codec  Codec
	header Header
	frames *FrameDecoder
	zr     *zstd.Decoder
	file   io.Closer
}

// NewReader validates the stream prologue and decodes the header.
// zstd compressed streams are detected and decompressed transparently.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	tr := &Reader{}

	peek, err := br.Peek(len(zstdMagic))
	if err == nil && bytes.Equal(peek, zstdMagic[:]) {
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		tr.zr = zr
		br = bufio.NewReader(zr)
	}

	var prologue [len(Magic) + 1]byte
	if _, err := io.ReadFull(br, prologue[:]); err != nil {
		tr.closeDecoder()
		return nil, &FrameError{Kind: FrameErrorHeader, Msg: "failed to read trace prologue", Err: err}
	}
	if !bytes.Equal(prologue[:len(Magic)], Magic[:]) {
		tr.closeDecoder()
		return nil, &FrameError{Kind: FrameErrorHeader, Msg: fmt.Sprintf("bad trace magic % x", prologue[:len(Magic)])}
	}
	codec, ok := codecByID(prologue[len(Magic)])
	if !ok {
		tr.closeDecoder()
		return nil, &FrameError{Kind: FrameErrorHeader, Msg: fmt.Sprintf("unknown codec id %d", prologue[len(Magic)])}
	}
	tr.codec = codec
	tr.frames = NewFrameDecoder(br)

	payload, err := tr.frames.ReadFrame()
	if err != nil {
		tr.closeDecoder()
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, &FrameError{Kind: FrameErrorHeader, Msg: "missing header frame", Err: err}
	}
	if err := codec.Unmarshal(payload, &tr.header); err != nil {
		tr.closeDecoder()
		return nil, &FrameError{Kind: FrameErrorHeader, Msg: "failed to decode header", Err: err}
	}
	return tr, nil
}

// Open opens a trace file for reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening trace %s: %w", path, err)
	}
	r, err := NewReader(f)
	if err != nil {
		iox.DiscardClose(f)
		return nil, fmt.Errorf("reading trace %s: %w", path, err)
	}
	r.file = f
	return r, nil
}

// Header returns the decoded header.
func (r *Reader) Header() Header { return r.header }

// Codec returns the stream codec.
func (r *Reader) Codec() Codec { return r.codec }

// Next returns the next record, or io.EOF after the last one.
// Decode errors are non-fatal; the caller may continue with the next frame.
func (r *Reader) Next() (*types.TraceRecord, error) {
	payload, err := r.frames.ReadFrame()
	if err != nil {
		return nil, err
	}
	var rec types.TraceRecord
	if err := r.codec.Unmarshal(payload, &rec); err != nil {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode record", Err: err}
	}
	return &rec, nil
}

// All reads every remaining record. It stops at the first fatal error.
func (r *Reader) All() ([]*types.TraceRecord, error) {
	var out []*types.TraceRecord
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			if IsFatalFrameError(err) {
				return out, err
			}
			continue
		}
		out = append(out, rec)
	}
}

func (r *Reader) closeDecoder() {
	if r.zr != nil {
		r.zr.Close()
		r.zr = nil
	}
}

// Close releases the decoder and the file when the reader owns one.
func (r *Reader) Close() error {
	r.closeDecoder()
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}
