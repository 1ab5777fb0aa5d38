// Package debugger pauses a replay between instructions and lets an
// operator step, break on file offsets and search for opcodes.
//
// The execution goroutine calls Announce before applying each instruction.
// When the session is interactive, a breakpoint is reached or a search
// matches, Announce parks until the operator goroutine releases it. The
// park is a two-party cyclic barrier: every release pairs with exactly one
// park, and a quit breaks the barrier for good.
package debugger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/pithecene-io/rdint/command"
	"github.com/pithecene-io/rdint/log"
	"github.com/pithecene-io/rdint/metrics"
	"github.com/pithecene-io/rdint/stream"
	"github.com/pithecene-io/rdint/types"
)

// ErrQuit is returned by Announce once the operator quit or the run
// context was canceled.
var ErrQuit = errors.New("debugger: quit")

// PauseReason says why execution parked.
type PauseReason string

const (
	PauseStep       PauseReason = "step"
	PauseBreakpoint PauseReason = "breakpoint"
	PauseSearch     PauseReason = "search"
)

// Options configures a Session.
type Options struct {
	// Interactive parks before the very first instruction.
	Interactive bool
	// Breakpoints are raw file offsets; non-positive values are ignored.
	Breakpoints []int64
	// Search is an opcode signature to stop on (see command.Matches).
	Search string
	// AutoUpdate starts with the live preview enabled.
	AutoUpdate bool
	// Collector counts pauses. Optional.
	Collector *metrics.Collector
	// Logger receives pause events. Optional.
	Logger *log.Logger
}

// Pause describes the instruction execution is parked on.
type Pause struct {
	Reason  PauseReason
	Command command.Command
}

// Session is shared by the execution and operator goroutines.
// Every field below mu is guarded by it.
type Session struct {
	collector *metrics.Collector
	logger    *log.Logger

	mu          sync.Mutex
	cond        *sync.Cond
	interactive bool
	breakpoints []int64
	search      string
	autoUpdate  bool
	history     *stream.Backlog

	parked     bool
	generation uint64
	broken     bool
	finished   bool
	current    Pause

	paused     chan struct{}
	pausedOnce sync.Once
	done       chan struct{}
	doneOnce   sync.Once
	hits       chan struct{}
}

// NewSession creates a session from opts.
func NewSession(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}
	s := &Session{
		collector:   opts.Collector,
		logger:      logger,
		interactive: opts.Interactive,
		search:      command.NormalizeSignature(opts.Search),
		autoUpdate:  opts.AutoUpdate,
		history:     stream.NewBacklog(stream.BacklogSize),
		paused:      make(chan struct{}),
		done:        make(chan struct{}),
		hits:        make(chan struct{}, 1),
	}
	s.cond = sync.NewCond(&s.mu)
	for _, bp := range opts.Breakpoints {
		_ = s.addBreakpointLocked(bp)
	}
	return s
}

// Announce is called by the execution goroutine before it applies cmd.
// It returns nil to proceed, or ErrQuit when the run must stop.
func (s *Session) Announce(ctx context.Context, cmd *command.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.broken {
		return ErrQuit
	}
	s.history.Push(cmd.Instr)

	// Every check runs so that a breakpoint or search reached while
	// stepping is consumed and does not stop again after run.
	stepping := s.interactive
	atBreakpoint := s.breakpointReachedLocked(cmd.Instr.Offset)
	found := s.search != "" && cmd.Matches(s.search)
	if found {
		s.search = ""
	}

	var reason PauseReason
	switch {
	case stepping:
		reason = PauseStep
	case atBreakpoint:
		reason = PauseBreakpoint
	case found:
		reason = PauseSearch
	default:
		return nil
	}

	s.goInteractiveLocked()
	s.current = Pause{Reason: reason, Command: *cmd}
	if reason != PauseStep {
		select {
		case s.hits <- struct{}{}:
		default:
		}
	}
	return s.parkLocked(ctx)
}

// breakpointReachedLocked pops every breakpoint at or before offset.
func (s *Session) breakpointReachedLocked(offset int64) bool {
	n := 0
	for n < len(s.breakpoints) && s.breakpoints[n] <= offset {
		n++
	}
	if n == 0 {
		return false
	}
	s.breakpoints = slices.Delete(s.breakpoints, 0, n)
	return true
}

func (s *Session) goInteractiveLocked() {
	s.interactive = true
	s.pausedOnce.Do(func() { close(s.paused) })
}

// parkLocked waits for the matching release. Context cancellation
// breaks the barrier.
func (s *Session) parkLocked(ctx context.Context) error {
	stop := context.AfterFunc(ctx, s.Quit)
	defer stop()

	s.collector.IncDebuggerPause()
	s.logger.Debug("execution paused", map[string]any{
		"reason": string(s.current.Reason),
		"offset": s.current.Command.Instr.Offset,
	})

	gen := s.generation
	s.parked = true
	s.cond.Broadcast()
	for gen == s.generation && !s.broken {
		s.cond.Wait()
	}
	if s.broken {
		s.parked = false
		return ErrQuit
	}
	return nil
}

// release lets a parked execution continue. It reports false when nothing
// was parked.
func (s *Session) releaseLocked() bool {
	if !s.parked || s.broken {
		return false
	}
	s.parked = false
	s.generation++
	s.cond.Broadcast()
	return true
}

// WaitParked blocks the operator until execution parks. It returns false
// once the run finished or was quit.
func (s *Session) WaitParked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.parked && !s.broken && !s.finished {
		s.cond.Wait()
	}
	return s.parked && !s.broken
}

// Step releases one parked instruction and waits for the next park.
// It stops early when the session leaves interactive mode and returns the
// number of instructions actually stepped.
func (s *Session) Step(n int) int {
	stepped := 0
	for stepped < n {
		s.mu.Lock()
		ok := s.interactive && s.releaseLocked()
		s.mu.Unlock()
		if !ok {
			break
		}
		stepped++
		if !s.WaitParked() {
			break
		}
	}
	return stepped
}

// Run leaves interactive mode and releases a parked execution.
func (s *Session) Run() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interactive = false
	s.releaseLocked()
}

// Quit breaks the rendezvous. Every current and future Announce
// returns ErrQuit.
func (s *Session) Quit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broken = true
	s.cond.Broadcast()
	s.doneOnce.Do(func() { close(s.done) })
}

// Finish marks the execution side as done and wakes the operator.
func (s *Session) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = true
	s.cond.Broadcast()
	s.doneOnce.Do(func() { close(s.done) })
}

// Paused is closed the first time the session becomes interactive.
func (s *Session) Paused() <-chan struct{} { return s.paused }

// Hits signals breakpoint and search stops. Stops while stepping are not
// signaled.
func (s *Session) Hits() <-chan struct{} { return s.hits }

// Done is closed after Finish or Quit.
func (s *Session) Done() <-chan struct{} { return s.done }

// Quitting reports whether Quit was called.
func (s *Session) Quitting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.broken
}

// Interactive reports whether execution parks on every instruction.
func (s *Session) Interactive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interactive
}

// Current returns the instruction execution is parked on.
func (s *Session) Current() (Pause, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.parked
}

// AddBreakpoint registers a one-shot breakpoint at a raw file offset.
func (s *Session) AddBreakpoint(offset int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addBreakpointLocked(offset)
}

func (s *Session) addBreakpointLocked(offset int64) error {
	if offset <= 0 {
		return fmt.Errorf("breakpoint offset must be positive, got %d", offset)
	}
	i, found := slices.BinarySearch(s.breakpoints, offset)
	if !found {
		s.breakpoints = slices.Insert(s.breakpoints, i, offset)
	}
	return nil
}

// Breakpoints returns the pending breakpoints in ascending order.
func (s *Session) Breakpoints() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.breakpoints)
}

// SetSearch arms a one-shot signature search. Empty clears it.
func (s *Session) SetSearch(sig string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.search = command.NormalizeSignature(sig)
}

// Search returns the armed signature, if any.
func (s *Session) Search() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.search
}

// SetAutoUpdate toggles the live preview flag.
func (s *Session) SetAutoUpdate(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoUpdate = on
}

// AutoUpdate reports the live preview flag.
func (s *Session) AutoUpdate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoUpdate
}

// History returns the last announced instructions, oldest first.
func (s *Session) History() []types.Instruction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Items()
}
