package runtime

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/pithecene-io/rdint/iox"
	"github.com/pithecene-io/rdint/types"
)

// BatchConfig configures the batch operator.
type BatchConfig struct {
	// MaxRuns is the maximum total runs to execute.
	MaxRuns int
	// Parallel is the maximum concurrent runs.
	Parallel int
}

// BatchItem is one input file queued for a run.
type BatchItem struct {
	// Path is the RD file to decode.
	Path string
	// RunID is the assigned run_id.
	RunID string
	// DedupKey is the content digest of the file.
	DedupKey string
}

// BatchRunner executes a single item. Each call must build its own
// RunOrchestrator; runs share nothing but the context.
type BatchRunner func(ctx context.Context, item BatchItem) (*RunResult, error)

// BatchResult aggregates batch execution statistics.
type BatchResult struct {
	// RunsTotal is the number of runs executed.
	RunsTotal int64
	// RunsSucceeded is the number of runs with a success outcome.
	RunsSucceeded int64
	// RunsFailed is the number of runs that errored or did not succeed.
	RunsFailed int64
	// Deduped is the number of inputs skipped as identical to an earlier one.
	Deduped int64
	// Skipped is the number of inputs skipped due to the max-runs limit.
	Skipped int64
	// Results holds each run result keyed by input path.
	Results map[string]*RunResult
	// Errors holds runner errors keyed by input path.
	Errors map[string]error
	// Duplicates maps each deduped input to the input it matched.
	Duplicates map[string]string
}

// Batch decodes several RD files concurrently with bounded parallelism.
// Inputs with identical content are decoded once.
type Batch struct {
	config BatchConfig
	runner BatchRunner

	queue chan BatchItem
	seen  map[string]string
	mu    sync.Mutex

	started   atomic.Int64
	finished  atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	deduped   atomic.Int64
	skipped   atomic.Int64

	resultsMu sync.Mutex
	results   map[string]*RunResult
	errs      map[string]error
	dups      map[string]string
}

// NewBatch creates a batch operator. Parallel and MaxRuns default to 1.
func NewBatch(config BatchConfig, runner BatchRunner) *Batch {
	if config.Parallel < 1 {
		config.Parallel = 1
	}
	if config.MaxRuns < 1 {
		config.MaxRuns = 1
	}
	return &Batch{
		config:  config,
		runner:  runner,
		queue:   make(chan BatchItem, config.MaxRuns),
		seen:    make(map[string]string),
		results: make(map[string]*RunResult),
		errs:    make(map[string]error),
		dups:    make(map[string]string),
	}
}

// Add hashes the file at path and queues it unless an identical file was
// already queued or the max-runs limit is reached. It reports whether the
// file was queued.
func (b *Batch) Add(path string) (bool, error) {
	key, err := contentKey(path)
	if err != nil {
		return false, err
	}

	b.mu.Lock()
	if first, exists := b.seen[key]; exists {
		b.mu.Unlock()
		b.deduped.Add(1)
		b.resultsMu.Lock()
		b.dups[path] = first
		b.resultsMu.Unlock()
		return false, nil
	}
	if b.started.Load() >= int64(b.config.MaxRuns) {
		b.mu.Unlock()
		b.skipped.Add(1)
		return false, nil
	}
	b.seen[key] = path
	b.started.Add(1)
	b.mu.Unlock()

	// Queue is sized to MaxRuns; the slot was reserved above.
	b.queue <- BatchItem{Path: path, RunID: uuid.New().String(), DedupKey: key}
	return true, nil
}

// Run executes every queued item and returns when all runs finished or
// ctx is canceled. Add must not be called concurrently with Run.
func (b *Batch) Run(ctx context.Context) {
	close(b.queue)

	sem := make(chan struct{}, b.config.Parallel)
	var wg sync.WaitGroup

	for item := range b.queue {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return
		}

		wg.Add(1)
		go func(it BatchItem) {
			defer wg.Done()
			defer func() { <-sem }()

			result, err := b.runner(ctx, it)
			b.finished.Add(1)

			b.resultsMu.Lock()
			defer b.resultsMu.Unlock()
			if result != nil {
				b.results[it.Path] = result
			}
			switch {
			case err != nil:
				b.failed.Add(1)
				b.errs[it.Path] = err
			case result == nil || result.Outcome.Status != types.OutcomeSuccess:
				b.failed.Add(1)
			default:
				b.succeeded.Add(1)
			}
		}(item)
	}
	wg.Wait()
}

// Results returns the aggregate batch statistics.
func (b *Batch) Results() BatchResult {
	b.resultsMu.Lock()
	defer b.resultsMu.Unlock()

	results := make(map[string]*RunResult, len(b.results))
	for k, v := range b.results {
		results[k] = v
	}
	errs := make(map[string]error, len(b.errs))
	for k, v := range b.errs {
		errs[k] = v
	}
	dups := make(map[string]string, len(b.dups))
	for k, v := range b.dups {
		dups[k] = v
	}

	return BatchResult{
		RunsTotal:     b.finished.Load(),
		RunsSucceeded: b.succeeded.Load(),
		RunsFailed:    b.failed.Load(),
		Deduped:       b.deduped.Load(),
		Skipped:       b.skipped.Load(),
		Results:       results,
		Errors:        errs,
		Duplicates:    dups,
	}
}

// Paths returns the input paths with a result, sorted.
func (r BatchResult) Paths() []string {
	paths := make([]string, 0, len(r.Results))
	for p := range r.Results {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// contentKey returns the sha256 digest of the file at path.
func contentKey(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer iox.DiscardClose(f)

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
