package debugger

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/pithecene-io/rdint/command"
	"github.com/pithecene-io/rdint/stream"
)

const helpText = `Commands:
  help              show this help
  run               leave step mode and run to the next stop
  quit              abort the replay
  break <hex>       stop when the file offset reaches <hex>
  breaks            list pending breakpoints
  step [n]          execute n instructions (default 1)
  find <sig>        run until an instruction starts with hex <sig>
  update [on|off]   toggle the live preview, or refresh it once
  dump <file>       export the current drawing
  backlog           show the last announced instructions
An empty line repeats the last command.
`

const unknownCommand = "Unknown command. Type 'help' for instructions."

// Preview is the drawing surface the console can refresh and export.
type Preview interface {
	SetAutoUpdate(on bool)
	RefreshPreview() error
	Dump(path string) error
}

// Formatter renders a paused command for the operator.
type Formatter func(cmd *command.Command) string

// PlainFormat renders "0xOFFSET: bytes  Name(params)".
func PlainFormat(cmd *command.Command) string {
	return cmd.Instr.String() + "  " + cmd.String()
}

// Console is the operator side of a Session.
type Console struct {
	session *Session
	in      io.Reader
	out     io.Writer
	format  Formatter

	mu      sync.Mutex
	preview Preview
	last    string
}

// NewConsole binds a console reading commands from in and writing to out.
// A nil format uses PlainFormat.
func NewConsole(session *Session, in io.Reader, out io.Writer, format Formatter) *Console {
	if format == nil {
		format = PlainFormat
	}
	return &Console{session: session, in: in, out: out, format: format}
}

// SetPreview attaches the drawing surface once it exists.
func (c *Console) SetPreview(p Preview) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.preview = p
	if p != nil {
		p.SetAutoUpdate(c.session.AutoUpdate())
	}
}

func (c *Console) currentPreview() Preview {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.preview
}

// Run reads operator commands until quit, the end of the replay, or ctx
// cancellation. End of input lets the replay run to completion.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	// The reader cannot be interrupted mid-line. The goroutine ends at the
	// next line or end of input once the console has returned.
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-c.session.Done():
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	c.printPause()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.session.Done():
			return nil
		case <-c.session.Hits():
			c.printPause()
		case line, ok := <-lines:
			if !ok {
				c.session.Run()
				return nil
			}
			if c.Execute(line) {
				return nil
			}
		}
	}
}

// Execute runs one command line. It reports true when the operator quit.
func (c *Console) Execute(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		line = c.last
	}
	if line == "" {
		return false
	}
	c.last = line

	fields := strings.Fields(line)
	args := fields[1:]
	switch strings.ToLower(fields[0]) {
	case "help", "h", "?":
		c.printf("%s", helpText)
	case "run", "r":
		c.session.Run()
	case "quit", "q", "exit":
		c.session.Quit()
		return true
	case "break", "b":
		c.doBreak(args)
	case "breaks":
		c.doBreaks()
	case "step", "s":
		c.doStep(args)
	case "find", "f":
		c.doFind(args)
	case "update", "u":
		c.doUpdate(args)
	case "dump", "d":
		c.doDump(args)
	case "backlog":
		if err := stream.WriteBacklog(c.out, c.session.History()); err != nil {
			c.printf("Warning: %v\n", err)
		}
	default:
		c.printf("%s\n", unknownCommand)
	}
	return false
}

func (c *Console) doBreak(args []string) {
	if len(args) != 1 {
		c.printf("Usage: break <hex offset>\n")
		return
	}
	offset, err := parseHex(args[0])
	if err == nil {
		err = c.session.AddBreakpoint(offset)
	}
	if err != nil {
		c.printf("Warning: invalid breakpoint %q: %v\n", args[0], err)
		return
	}
	c.printf("Breakpoint set at 0x%08x\n", offset)
}

func (c *Console) doBreaks() {
	bps := c.session.Breakpoints()
	if len(bps) == 0 {
		c.printf("No breakpoints.\n")
		return
	}
	for _, bp := range bps {
		c.printf("  0x%08x\n", bp)
	}
}

func (c *Console) doStep(args []string) {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v <= 0 {
			c.printf("Warning: invalid step count %q\n", args[0])
			return
		}
		n = v
	}
	if _, parked := c.session.Current(); !parked {
		c.printf("Not paused.\n")
		return
	}
	c.session.Step(n)
	c.printPause()
}

func (c *Console) doFind(args []string) {
	if len(args) != 1 {
		c.printf("Usage: find <hex signature>\n")
		return
	}
	sig := command.NormalizeSignature(args[0])
	if sig == "" || strings.Trim(sig, "0123456789abcdef") != "" {
		c.printf("Warning: invalid signature %q\n", args[0])
		return
	}
	c.session.SetSearch(sig)
	c.printf("Searching for %s\n", sig)
	c.session.Run()
}

func (c *Console) doUpdate(args []string) {
	preview := c.currentPreview()
	if len(args) == 0 {
		if preview == nil {
			c.printf("Warning: nothing drawn yet\n")
			return
		}
		if err := preview.RefreshPreview(); err != nil {
			c.printf("Warning: preview failed: %v\n", err)
		}
		return
	}

	var on bool
	switch strings.ToLower(args[0]) {
	case "on":
		on = true
	case "off":
	default:
		c.printf("Usage: update [on|off]\n")
		return
	}
	c.session.SetAutoUpdate(on)
	if preview != nil {
		preview.SetAutoUpdate(on)
	}
	c.printf("Auto update %s\n", args[0])
}

func (c *Console) doDump(args []string) {
	if len(args) != 1 {
		c.printf("Usage: dump <file>\n")
		return
	}
	preview := c.currentPreview()
	if preview == nil {
		c.printf("Warning: nothing drawn yet\n")
		return
	}
	if err := preview.Dump(args[0]); err != nil {
		c.printf("Warning: dump failed: %v\n", err)
		return
	}
	c.printf("Saved %s\n", args[0])
}

func (c *Console) printPause() {
	pause, parked := c.session.Current()
	if !parked {
		return
	}
	c.printf("[%s] %s\n", pause.Reason, c.format(&pause.Command))
}

func (c *Console) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}

func parseHex(s string) (int64, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	if s == "" {
		return 0, errors.New("empty")
	}
	return strconv.ParseInt(s, 16, 64)
}
