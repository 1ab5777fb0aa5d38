package runtime

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pithecene-io/rdint/log"
	"github.com/pithecene-io/rdint/policy"
	"github.com/pithecene-io/rdint/stream"
	"github.com/pithecene-io/rdint/types"
)

func writeInput(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// replayRunner decodes each item with a real orchestrator.
func replayRunner(calls *atomic.Int64) BatchRunner {
	return func(ctx context.Context, item BatchItem) (*RunResult, error) {
		calls.Add(1)
		data, err := os.ReadFile(item.Path)
		if err != nil {
			return nil, err
		}
		orchestrator, err := NewRunOrchestrator(&RunConfig{
			RunMeta: &types.RunMeta{RunID: item.RunID, Input: item.Path},
			Input:   bytes.NewReader(data),
			Policy:  policy.NewNoopPolicy(),
			Logger:  log.Nop(),
		})
		if err != nil {
			return nil, err
		}
		return orchestrator.Execute(ctx)
	}
}

func TestBatch_RunsAndDedups(t *testing.T) {
	dir := t.TempDir()
	a := writeInput(t, dir, "a.rd", validProgram())
	b := writeInput(t, dir, "b.rd", validProgram())
	c := writeInput(t, dir, "c.rd", stream.Encode(limitsMin, layer0))

	var calls atomic.Int64
	batch := NewBatch(BatchConfig{MaxRuns: 10, Parallel: 2}, replayRunner(&calls))

	for _, p := range []string{a, b, c} {
		if _, err := batch.Add(p); err != nil {
			t.Fatalf("Add(%s) failed: %v", p, err)
		}
	}
	batch.Run(t.Context())

	res := batch.Results()
	if calls.Load() != 2 {
		t.Errorf("runner calls = %d, want 2", calls.Load())
	}
	if res.RunsTotal != 2 || res.RunsSucceeded != 1 || res.RunsFailed != 1 {
		t.Errorf("total/succeeded/failed = %d/%d/%d, want 2/1/1", res.RunsTotal, res.RunsSucceeded, res.RunsFailed)
	}
	if res.Deduped != 1 {
		t.Errorf("Deduped = %d, want 1", res.Deduped)
	}
	if res.Duplicates[b] != a {
		t.Errorf("Duplicates[b] = %q, want %q", res.Duplicates[b], a)
	}
	if got := res.Results[c].Outcome.Status; got != types.OutcomeInvalid {
		t.Errorf("c outcome = %s, want invalid", got)
	}
	if paths := res.Paths(); len(paths) != 2 || paths[0] != a || paths[1] != c {
		t.Errorf("Paths = %v, want [%s %s]", paths, a, c)
	}
}

func TestBatch_MaxRuns(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i, name := range []string{"a.rd", "b.rd", "c.rd"} {
		data := append(validProgram(), byte(i))
		paths = append(paths, writeInput(t, dir, name, data))
	}

	var calls atomic.Int64
	batch := NewBatch(BatchConfig{MaxRuns: 2, Parallel: 4}, replayRunner(&calls))

	var queued int
	for _, p := range paths {
		ok, err := batch.Add(p)
		if err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		if ok {
			queued++
		}
	}
	batch.Run(t.Context())

	if queued != 2 {
		t.Errorf("queued = %d, want 2", queued)
	}
	res := batch.Results()
	if res.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", res.Skipped)
	}
	if calls.Load() != 2 {
		t.Errorf("runner calls = %d, want 2", calls.Load())
	}
}

func TestBatch_ParallelLimit(t *testing.T) {
	dir := t.TempDir()
	var running, peak atomic.Int64

	runner := func(ctx context.Context, item BatchItem) (*RunResult, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		return &RunResult{
			RunMeta: &types.RunMeta{RunID: item.RunID, Input: item.Path},
			Outcome: &types.RunOutcome{Status: types.OutcomeSuccess},
		}, nil
	}

	batch := NewBatch(BatchConfig{MaxRuns: 6, Parallel: 2}, runner)
	for i := range 6 {
		p := writeInput(t, dir, string(rune('a'+i))+".rd", []byte{byte(i)})
		if _, err := batch.Add(p); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	batch.Run(t.Context())

	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}
	if got := batch.Results().RunsSucceeded; got != 6 {
		t.Errorf("RunsSucceeded = %d, want 6", got)
	}
}

func TestBatch_AddMissingFile(t *testing.T) {
	batch := NewBatch(BatchConfig{}, nil)
	if _, err := batch.Add(filepath.Join(t.TempDir(), "missing.rd")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
