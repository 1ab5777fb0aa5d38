package stream

import (
	"fmt"
	"io"

	"github.com/pithecene-io/rdint/types"
)

// Backlog is a fixed-size ring of recent instructions.
type Backlog struct {
	buf  []types.Instruction
	next int
	full bool
}

// NewBacklog creates a backlog holding at most n instructions.
func NewBacklog(n int) *Backlog {
	if n <= 0 {
		n = 1
	}
	return &Backlog{buf: make([]types.Instruction, n)}
}

// Push records in, evicting the oldest entry when full.
func (b *Backlog) Push(in types.Instruction) {
	b.buf[b.next] = in
	b.next = (b.next + 1) % len(b.buf)
	if b.next == 0 {
		b.full = true
	}
}

// Len returns the number of stored instructions.
func (b *Backlog) Len() int {
	if b.full {
		return len(b.buf)
	}
	return b.next
}

// Items returns a copy of the stored instructions, oldest first.
func (b *Backlog) Items() []types.Instruction {
	if !b.full {
		return append([]types.Instruction(nil), b.buf[:b.next]...)
	}
	out := make([]types.Instruction, 0, len(b.buf))
	out = append(out, b.buf[b.next:]...)
	return append(out, b.buf[:b.next]...)
}

// WriteBacklog prints one instruction per line, oldest first.
func WriteBacklog(w io.Writer, items []types.Instruction) error {
	for _, in := range items {
		if _, err := fmt.Fprintf(w, "  %s\n", in); err != nil {
			return err
		}
	}
	return nil
}
