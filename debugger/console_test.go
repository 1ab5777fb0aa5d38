package debugger

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakePreview struct {
	mu        sync.Mutex
	auto      bool
	refreshes int
	dumped    []string
	dumpErr   error
}

func (p *fakePreview) SetAutoUpdate(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.auto = on
}

func (p *fakePreview) RefreshPreview() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshes++
	return nil
}

func (p *fakePreview) Dump(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dumped = append(p.dumped, path)
	return p.dumpErr
}

// syncBuffer is written by the console goroutine and read by the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestConsole_Commands(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"help", "An empty line repeats the last command."},
		{"frobnicate", "Unknown command. Type 'help' for instructions."},
		{"break 1a0", "Breakpoint set at 0x000001a0"},
		{"break 0", "Warning: invalid breakpoint"},
		{"break zz", "Warning: invalid breakpoint"},
		{"break", "Usage: break"},
		{"breaks", "No breakpoints."},
		{"step x", "Warning: invalid step count"},
		{"step", "Not paused."},
		{"find xyz", "Warning: invalid signature"},
		{"update maybe", "Usage: update"},
		{"dump out.png", "nothing drawn yet"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			var out bytes.Buffer
			c := NewConsole(NewSession(Options{}), strings.NewReader(""), &out, nil)
			if c.Execute(tt.line) {
				t.Fatal("only quit ends the console")
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("output = %q, want substring %q", out.String(), tt.want)
			}
		})
	}
}

func TestConsole_RepeatLastCommand(t *testing.T) {
	var out bytes.Buffer
	s := NewSession(Options{})
	c := NewConsole(s, strings.NewReader(""), &out, nil)

	c.Execute("break 10")
	c.Execute("")
	if strings.Count(out.String(), "Breakpoint set at 0x00000010") != 2 {
		t.Errorf("output = %q", out.String())
	}
	c.Execute("break 20")
	c.Execute("breaks")
	if !strings.Contains(out.String(), "0x00000010") || !strings.Contains(out.String(), "0x00000020") {
		t.Errorf("breaks output = %q", out.String())
	}
}

func TestConsole_FindArmsSearchAndRuns(t *testing.T) {
	var out bytes.Buffer
	s := NewSession(Options{Interactive: true})
	c := NewConsole(s, strings.NewReader(""), &out, nil)

	c.Execute("find 0xCA06")
	if s.Search() != "ca06" {
		t.Errorf("search = %q", s.Search())
	}
	if s.Interactive() {
		t.Error("find should leave step mode")
	}
}

func TestConsole_UpdateAndDump(t *testing.T) {
	var out bytes.Buffer
	s := NewSession(Options{})
	c := NewConsole(s, strings.NewReader(""), &out, nil)
	p := &fakePreview{}
	c.SetPreview(p)

	c.Execute("update on")
	if !s.AutoUpdate() || !p.auto {
		t.Error("update on should enable auto update")
	}
	c.Execute("update")
	if p.refreshes != 1 {
		t.Errorf("refreshes = %d", p.refreshes)
	}
	c.Execute("update off")
	if s.AutoUpdate() || p.auto {
		t.Error("update off should disable auto update")
	}

	c.Execute("dump vector.svg")
	p.dumpErr = errors.New("canvas is empty")
	c.Execute("dump other.svg")
	if len(p.dumped) != 2 || !strings.Contains(out.String(), "Saved vector.svg") ||
		!strings.Contains(out.String(), "dump failed: canvas is empty") {
		t.Errorf("dumped = %v output = %q", p.dumped, out.String())
	}
}

func TestConsole_Quit(t *testing.T) {
	s := NewSession(Options{})
	c := NewConsole(s, strings.NewReader(""), &bytes.Buffer{}, nil)
	if !c.Execute("quit") {
		t.Fatal("quit should end the console")
	}
	if !s.Quitting() {
		t.Error("quit should break the session")
	}
}

func TestConsole_RunDrivesExecution(t *testing.T) {
	s := NewSession(Options{Interactive: true})
	e := execute(t.Context(), s, program(2, 4, 6, 8))
	waitPaused(t, s)
	s.WaitParked()

	out := &syncBuffer{}
	c := NewConsole(s, strings.NewReader("step\n\nbacklog\nrun\n"), out, nil)

	errc := make(chan error, 1)
	go func() { errc <- c.Run(t.Context()) }()

	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Run = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("console did not return")
	}
	e.wait(t)

	text := out.String()
	for _, want := range []string{"[step] 0x00000002", "[step] 0x00000004", "[step] 0x00000006", "0x00000006: a8"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if len(e.Applied()) != 4 {
		t.Errorf("applied = %v", e.Applied())
	}
}

func TestConsole_EndOfInputRuns(t *testing.T) {
	s := NewSession(Options{Interactive: true})
	e := execute(t.Context(), s, program(2, 4))
	waitPaused(t, s)
	s.WaitParked()

	c := NewConsole(s, strings.NewReader(""), &syncBuffer{}, nil)
	if err := c.Run(t.Context()); err != nil {
		t.Fatalf("Run = %v", err)
	}
	e.wait(t)
	if e.err != nil || len(e.Applied()) != 2 {
		t.Errorf("err = %v applied = %v", e.err, e.Applied())
	}
}

func TestConsole_CancelWithBlockedInput(t *testing.T) {
	s := NewSession(Options{Interactive: true})
	e := execute(t.Context(), s, program(2))
	waitPaused(t, s)
	s.WaitParked()

	pr, pw := io.Pipe()
	defer func() { _ = pw.Close() }()

	ctx, cancel := context.WithCancel(t.Context())
	c := NewConsole(s, pr, &syncBuffer{}, nil)
	errc := make(chan error, 1)
	go func() { errc <- c.Run(ctx) }()

	cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("console blocked on input after cancel")
	}

	// A late line is drained without a receiver.
	done := make(chan struct{})
	go func() {
		_, _ = pw.Write([]byte("run\n"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Error("late input was never read")
	}

	s.Quit()
	e.wait(t)
}
