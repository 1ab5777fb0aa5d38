package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pithecene-io/rdint/command"
	"github.com/pithecene-io/rdint/debugger"
	"github.com/pithecene-io/rdint/log"
	"github.com/pithecene-io/rdint/metrics"
	"github.com/pithecene-io/rdint/plotter"
	"github.com/pithecene-io/rdint/policy"
	"github.com/pithecene-io/rdint/stream"
	"github.com/pithecene-io/rdint/types"
)

// msgNoAbsoluteMove is the invalidation reason for a stream without a header end.
const msgNoAbsoluteMove = "end of file reached without any absolute moves"

// Pass identifies which replay pass executed an instruction.
type Pass int

const (
	// PassHeader scans for limits up to the first absolute move.
	PassHeader Pass = iota + 1
	// PassReplay executes the whole stream against the full state.
	PassReplay
)

func (p Pass) String() string {
	switch p {
	case PassHeader:
		return "header"
	case PassReplay:
		return "replay"
	default:
		return fmt.Sprintf("pass(%d)", int(p))
	}
}

// Listener observes every executed command after it was applied.
// Called on the execution goroutine.
type Listener func(pass Pass, cmd *command.Command)

// ReplayError classifies replay errors for outcome determination.
type ReplayError struct {
	// Kind indicates which part of the replay failed.
	Kind ReplayErrorKind
	// Err is the underlying error.
	Err error
	// Diagnostic is set for stream errors.
	Diagnostic *stream.Diagnostic
}

// ReplayErrorKind classifies replay errors.
type ReplayErrorKind int

const (
	// ReplayErrorStream indicates the stream was invalidated (invalid outcome).
	ReplayErrorStream ReplayErrorKind = iota
	// ReplayErrorPolicy indicates a policy failure (policy failure outcome).
	ReplayErrorPolicy
	// ReplayErrorQuit indicates an operator quit or context cancellation (quit outcome).
	ReplayErrorQuit
)

func (e *ReplayError) Error() string {
	return e.Err.Error()
}

func (e *ReplayError) Unwrap() error {
	return e.Err
}

// IsPolicyError returns true if the error is a policy failure.
func IsPolicyError(err error) bool {
	var re *ReplayError
	if errors.As(err, &re) {
		return re.Kind == ReplayErrorPolicy
	}
	return false
}

// IsQuitError returns true if the run was quit or canceled.
func IsQuitError(err error) bool {
	var re *ReplayError
	if errors.As(err, &re) {
		return re.Kind == ReplayErrorQuit
	}
	return false
}

// IsStreamError returns true if the stream was invalidated.
func IsStreamError(err error) bool {
	var re *ReplayError
	if errors.As(err, &re) {
		return re.Kind == ReplayErrorStream
	}
	return false
}

// replayEngine drives both passes over one framer.
// Owned by the execution goroutine.
type replayEngine struct {
	framer    *stream.Framer
	session   *debugger.Session
	policy    policy.Policy
	listener  Listener
	collector *metrics.Collector
	logger    *log.Logger
	runID     string

	header []types.Instruction
	limits plotter.Limits
	state  *plotter.FullState
	seq    int64
}

// scanHeader executes instructions against a limits-only state up to and
// including the first absolute move. The instructions are kept for replay.
func (e *replayEngine) scanHeader(ctx context.Context) error {
	state := plotter.NewLimitsState()
	for {
		if err := ctx.Err(); err != nil {
			return &ReplayError{Kind: ReplayErrorQuit, Err: err}
		}

		in, err := e.framer.Next()
		if errors.Is(err, io.EOF) {
			diag := e.framer.Invalidate(msgNoAbsoluteMove)
			return &ReplayError{Kind: ReplayErrorStream, Err: errors.New(msgNoAbsoluteMove), Diagnostic: diag}
		}
		if err != nil {
			return e.streamError(err)
		}

		e.header = append(e.header, in)
		cmd := command.Decode(in)
		if err := e.step(ctx, PassHeader, &cmd, state); err != nil {
			return err
		}
		if cmd.Kind == command.KindMoveOrCutAbsolute {
			e.limits = state.Limits()
			e.logger.Debug("header scanned", map[string]any{
				"instructions": len(e.header),
				"limits":       e.limits.Box().String(),
			})
			return nil
		}
	}
}

// replay re-executes the header, then the remainder of the stream, against
// a full state drawing into drawer.
func (e *replayEngine) replay(ctx context.Context, drawer plotter.Drawer) error {
	e.state = plotter.NewFullState(drawer)

	for _, in := range e.header {
		if err := e.apply(ctx, in); err != nil {
			return err
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return &ReplayError{Kind: ReplayErrorQuit, Err: err}
		}
		in, err := e.framer.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return e.streamError(err)
		}
		if err := e.apply(ctx, in); err != nil {
			return err
		}
	}
}

func (e *replayEngine) apply(ctx context.Context, in types.Instruction) error {
	cmd := command.Decode(in)
	if err := e.step(ctx, PassReplay, &cmd, e.state); err != nil {
		return err
	}
	e.collector.IncDecoded(cmd.Category().String())
	return e.record(ctx, &cmd)
}

// step announces cmd, then applies it. Announce-then-apply is strictly sequential.
func (e *replayEngine) step(ctx context.Context, pass Pass, cmd *command.Command, state plotter.State) error {
	if err := e.session.Announce(ctx, cmd); err != nil {
		return &ReplayError{Kind: ReplayErrorQuit, Err: err}
	}
	cmd.Process(state)
	if e.listener != nil {
		e.listener(pass, cmd)
	}
	return nil
}

func (e *replayEngine) record(ctx context.Context, cmd *command.Command) error {
	e.seq++
	rec := &types.TraceRecord{
		RunID:    e.runID,
		Seq:      e.seq,
		Offset:   cmd.Instr.Offset,
		Data:     cmd.Instr.Data,
		Kind:     cmd.Kind.String(),
		Category: cmd.Category().String(),
		Text:     cmd.String(),
		Position: e.state.Position(),
		Layer:    e.state.LayerIndex(),
	}
	if err := e.policy.IngestRecord(ctx, rec); err != nil {
		return &ReplayError{Kind: ReplayErrorPolicy, Err: fmt.Errorf("record %d: %w", rec.Seq, err)}
	}
	return nil
}

func (e *replayEngine) streamError(err error) error {
	diag := e.framer.Diagnostic()
	if diag == nil {
		diag = e.framer.Invalidate(err.Error())
	}
	return &ReplayError{Kind: ReplayErrorStream, Err: err, Diagnostic: diag}
}
