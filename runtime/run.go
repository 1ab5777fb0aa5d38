package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pithecene-io/rdint/debugger"
	"github.com/pithecene-io/rdint/log"
	"github.com/pithecene-io/rdint/metrics"
	"github.com/pithecene-io/rdint/plotter"
	"github.com/pithecene-io/rdint/policy"
	"github.com/pithecene-io/rdint/stream"
	"github.com/pithecene-io/rdint/types"
)

// DrawerFactory creates the drawing collaborator once the header limits
// are known. Returning a nil drawer discards cuts.
type DrawerFactory func(limits types.BoundingBox) (plotter.Drawer, error)

// RunConfig configures a single run.
type RunConfig struct {
	// RunMeta is the run identity.
	RunMeta *types.RunMeta
	// Input is the raw RD stream, magic header included.
	Input io.Reader
	// Session is the debug session. If nil, a non-interactive session is used.
	Session *debugger.Session
	// Policy is the trace ingestion policy.
	Policy policy.Policy
	// DrawerFactory builds the drawer for the replay pass. Optional.
	DrawerFactory DrawerFactory
	// Listener observes every executed command. Optional.
	Listener Listener
	// Collector is the metrics collector for this run.
	// If nil, no metrics are recorded (all Collector methods are nil-safe).
	Collector *metrics.Collector
	// Logger overrides the run logger. If nil, one is derived from RunMeta.
	Logger *log.Logger
}

// RunResult represents the result of a run.
type RunResult struct {
	// RunMeta is the run identity.
	RunMeta *types.RunMeta
	// Outcome is the run outcome.
	Outcome *types.RunOutcome
	// Duration is the total run duration.
	Duration time.Duration
	// PolicyStats is the policy statistics.
	PolicyStats policy.Stats
	// FlushTriggers counts flushes by trigger (streaming policy only).
	FlushTriggers map[string]int64
	// Instructions is the number of instructions framed from the stream.
	Instructions int64
	// Records is the number of trace records produced by the replay pass.
	Records int64
	// Limits are the limits discovered by the header pass.
	Limits plotter.Limits
	// State is the final replay state. Nil if the replay pass never ran.
	State *plotter.Snapshot
}

// RunOrchestrator orchestrates a single run.
type RunOrchestrator struct {
	config    *RunConfig
	logger    *log.Logger
	session   *debugger.Session
	startTime time.Time
}

// NewRunOrchestrator creates a new run orchestrator.
// Returns error if run metadata is invalid.
func NewRunOrchestrator(config *RunConfig) (*RunOrchestrator, error) {
	if config.RunMeta == nil {
		return nil, errors.New("invalid run metadata: missing")
	}
	if err := config.RunMeta.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run metadata: %w", err)
	}
	if config.Input == nil {
		return nil, errors.New("input reader is required")
	}
	if config.Policy == nil {
		return nil, errors.New("policy is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = log.NewLogger(config.RunMeta)
	}

	session := config.Session
	if session == nil {
		session = debugger.NewSession(debugger.Options{Collector: config.Collector, Logger: logger})
	}

	return &RunOrchestrator{
		config:  config,
		logger:  logger,
		session: session,
	}, nil
}

// Session returns the debug session driving this run.
func (r *RunOrchestrator) Session() *debugger.Session {
	return r.session
}

// Execute executes the run end-to-end.
//
// Execution flow:
//  1. Open the stream (magic header)
//  2. Header pass up to the first absolute move
//  3. Build the drawer from the discovered limits
//  4. Replay pass over the whole stream, recording each instruction
//  5. Flush policy (best effort on every path)
//  6. Determine outcome
//
// The session is finished on return so the operator loop can exit.
// Execute only returns an error for configuration failures; run failures
// are reported through the outcome.
func (r *RunOrchestrator) Execute(ctx context.Context) (*RunResult, error) {
	r.startTime = time.Now()
	r.config.Collector.IncRunStarted()
	defer r.session.Finish()

	r.logger.Info("starting run", map[string]any{
		"input":  r.config.RunMeta.Input,
		"source": r.config.RunMeta.Source,
	})

	framer, err := stream.Open(r.config.Input)
	if err != nil {
		r.flush(ctx)
		r.config.Collector.IncStreamInvalidated()
		return r.buildResult(&types.RunOutcome{
			Status:  types.OutcomeInvalid,
			Message: err.Error(),
		}, nil), nil
	}

	engine := &replayEngine{
		framer:    framer,
		session:   r.session,
		policy:    r.config.Policy,
		listener:  r.config.Listener,
		collector: r.config.Collector,
		logger:    r.logger,
		runID:     r.config.RunMeta.RunID,
	}

	runErr := engine.scanHeader(ctx)
	if runErr == nil {
		var drawer plotter.Drawer
		if r.config.DrawerFactory != nil {
			drawer, err = r.config.DrawerFactory(engine.limits.Box())
			if err != nil {
				r.flush(ctx)
				return nil, fmt.Errorf("failed to create drawer: %w", err)
			}
		}
		runErr = engine.replay(ctx, drawer)
	}

	// Always attempt policy flush (best effort) on all termination paths.
	flushErr := r.flush(ctx)

	var outcome *types.RunOutcome
	switch {
	case runErr != nil:
		outcome = r.classify(runErr)
	case flushErr != nil:
		outcome = &types.RunOutcome{
			Status:  types.OutcomePolicyFailure,
			Message: fmt.Sprintf("policy flush failed: %v", flushErr),
		}
	default:
		outcome = &types.RunOutcome{
			Status:  types.OutcomeSuccess,
			Message: "run completed successfully",
		}
	}

	r.logger.Info("run completed", map[string]any{
		"outcome":      outcome.Status,
		"instructions": framer.Count(),
		"records":      engine.seq,
		"duration":     time.Since(r.startTime).String(),
	})

	return r.buildResult(outcome, engine), nil
}

// flush flushes the policy ignoring parent cancellation.
func (r *RunOrchestrator) flush(ctx context.Context) error {
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	err := r.config.Policy.Flush(flushCtx)
	if err != nil {
		r.logger.Warn("policy flush failed (best effort)", map[string]any{
			"error": err.Error(),
		})
	}
	return err
}

// classify maps a replay error onto an outcome.
func (r *RunOrchestrator) classify(err error) *types.RunOutcome {
	var re *ReplayError
	if !errors.As(err, &re) {
		return &types.RunOutcome{Status: types.OutcomeInvalid, Message: err.Error()}
	}

	switch re.Kind {
	case ReplayErrorPolicy:
		r.logger.Error("policy failure", map[string]any{"error": err.Error()})
		return &types.RunOutcome{
			Status:  types.OutcomePolicyFailure,
			Message: fmt.Sprintf("policy failure: %v", err),
		}
	case ReplayErrorQuit:
		msg := "quit by operator"
		if !errors.Is(err, debugger.ErrQuit) {
			msg = fmt.Sprintf("run interrupted: %v", err)
		}
		return &types.RunOutcome{Status: types.OutcomeQuit, Message: msg}
	default:
		r.config.Collector.IncStreamInvalidated()
		outcome := &types.RunOutcome{Status: types.OutcomeInvalid, Message: err.Error()}
		if re.Diagnostic != nil {
			outcome.Message = re.Diagnostic.Reason
			outcome.Backlog = re.Diagnostic.Backlog
		}
		r.logger.Warn("stream invalidated", map[string]any{
			"reason":  outcome.Message,
			"backlog": len(outcome.Backlog),
		})
		return outcome
	}
}

// buildResult constructs the final run result.
func (r *RunOrchestrator) buildResult(outcome *types.RunOutcome, engine *replayEngine) *RunResult {
	result := &RunResult{
		RunMeta:       r.config.RunMeta,
		Outcome:       outcome,
		Duration:      time.Since(r.startTime),
		PolicyStats:   r.config.Policy.Stats(),
		FlushTriggers: policy.FlushTriggerCounts(r.config.Policy),
	}

	if engine != nil {
		result.Instructions = engine.framer.Count()
		result.Records = engine.seq
		result.Limits = engine.limits
		if engine.state != nil {
			snap := engine.state.Snapshot()
			result.State = &snap
		}
	}

	switch outcome.Status {
	case types.OutcomeSuccess:
		r.config.Collector.IncRunCompleted()
	case types.OutcomeInvalid:
		r.config.Collector.IncRunInvalid()
	case types.OutcomeQuit:
		r.config.Collector.IncRunQuit()
	case types.OutcomePolicyFailure:
		r.config.Collector.IncRunFailed()
	}

	ps := result.PolicyStats
	r.config.Collector.AbsorbPolicyStats(ps.TotalRecords, ps.RecordsPersisted, ps.RecordsDropped, ps.DroppedByCategory, result.FlushTriggers)

	return result
}
