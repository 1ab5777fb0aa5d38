package trace

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/pithecene-io/rdint/iox"
	"github.com/pithecene-io/rdint/types"
)

// Header is the first frame of a trace.
type Header struct {
	Format    string    `msgpack:"format" json:"format" cbor:"format"`
	RunID     string    `msgpack:"run_id" json:"run_id" cbor:"run_id"`
	Input     string    `msgpack:"input" json:"input" cbor:"input"`
	Source    string    `msgpack:"source,omitempty" json:"source,omitempty" cbor:"source,omitempty"`
	Version   string    `msgpack:"version" json:"version" cbor:"version"`
	CreatedAt time.Time `msgpack:"created_at" json:"created_at" cbor:"created_at"`
}

// NewHeader builds a header for meta stamped with the current format version.
func NewHeader(meta types.RunMeta, now time.Time) Header {
	return Header{
		Format:    types.TraceFormatVersion,
		RunID:     meta.RunID,
		Input:     meta.Input,
		Source:    meta.Source,
		Version:   types.Version,
		CreatedAt: now.UTC(),
	}
}

// Writer appends records to a trace stream. It is safe for concurrent use
// and implements policy.Sink.
type Writer struct {
	mu     sync.Mutex
	codec  Codec
	buf    *bufio.Writer
	zw     *zstd.Encoder
	file   io.Closer
	count  int64
	closed bool
}

// NewWriter writes the magic, codec id and header to w.
// When compress is set the stream is zstd compressed.
func NewWriter(w io.Writer, codec Codec, header Header, compress bool) (*Writer, error) {
	tw := &Writer{codec: codec}
	if compress {
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}
		tw.zw = zw
		w = zw
	}
	tw.buf = bufio.NewWriter(w)

	if _, err := tw.buf.Write(Magic[:]); err != nil {
		return nil, err
	}
	if err := tw.buf.WriteByte(codec.ID()); err != nil {
		return nil, err
	}
	if err := tw.writeValue(header); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	return tw, nil
}

// Create opens path for writing. Paths ending in .zst are compressed.
func Create(path string, codec Codec, header Header) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating trace %s: %w", path, err)
	}
	w, err := NewWriter(f, codec, header, strings.HasSuffix(path, ".zst"))
	if err != nil {
		iox.DiscardClose(f)
		return nil, err
	}
	w.file = f
	return w, nil
}

func (w *Writer) writeValue(v any) error {
	payload, err := w.codec.Marshal(v)
	if err != nil {
		return err
	}
	return WriteFrame(w.buf, payload)
}

// Write appends one record.
func (w *Writer) Write(record *types.TraceRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("trace writer closed")
	}
	if err := w.writeValue(record); err != nil {
		return fmt.Errorf("writing record %d: %w", record.Seq, err)
	}
	w.count++
	return nil
}

// WriteRecords appends a batch and flushes it through to the underlying writer.
func (w *Writer) WriteRecords(_ context.Context, records []*types.TraceRecord) error {
	for _, r := range records {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Flush()
}

// Count returns the number of records written.
func (w *Writer) Count() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close flushes buffered data, ends the zstd stream and closes the file
// when the writer owns one.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	steps := []func() error{w.buf.Flush}
	if w.zw != nil {
		steps = append(steps, w.zw.Close)
	}
	if w.file != nil {
		steps = append(steps, w.file.Close)
	}
	return iox.Sequence(steps...)
}
