package reader

import (
	"errors"
	"testing"

	"github.com/pithecene-io/rdint/metrics"
	"github.com/pithecene-io/rdint/runtime"
	"github.com/pithecene-io/rdint/types"
)

func TestNewStatsView(t *testing.T) {
	stat := metrics.NewStatistic()
	stat.SetTarget(metrics.SlotVector)
	stat.Travel(types.Point{}, types.Point{X: 1000})
	stat.Work(types.Point{X: 1000}, types.Point{X: 3000})

	result := &runtime.RunResult{
		RunMeta:      &types.RunMeta{RunID: "r1", Input: "job.rd"},
		Outcome:      &types.RunOutcome{Status: types.OutcomeSuccess},
		Instructions: 9,
	}
	snap := metrics.Snapshot{DecodedGood: 8, DecodedUnknown: 1}

	view := NewStatsView(result, snap, stat, metrics.UnitMM)
	if view.Input != "job.rd" || view.Outcome != "success" {
		t.Errorf("view = %+v", view)
	}
	if view.Decoded["good"] != 8 || view.Decoded["unknown"] != 1 {
		t.Errorf("Decoded = %v", view.Decoded)
	}
	if len(view.Slots) == 0 {
		t.Fatal("expected slot reports")
	}
	var vector *metrics.SlotReport
	for i := range view.Slots {
		if view.Slots[i].Name == metrics.SlotVector.String() {
			vector = &view.Slots[i]
		}
	}
	if vector == nil {
		t.Fatalf("no vector slot in %+v", view.Slots)
	}
	if vector.WorkLength != 2 || vector.MoveLength != 1 {
		t.Errorf("vector work/move = %v/%v, want 2/1", vector.WorkLength, vector.MoveLength)
	}
}

func TestNewBatchView(t *testing.T) {
	res := runtime.BatchResult{
		RunsTotal:     2,
		RunsSucceeded: 1,
		RunsFailed:    1,
		Deduped:       1,
		Results: map[string]*runtime.RunResult{
			"b.rd": {RunMeta: &types.RunMeta{Input: "b.rd"}, Outcome: &types.RunOutcome{Status: types.OutcomeInvalid}},
			"a.rd": {RunMeta: &types.RunMeta{Input: "a.rd"}, Outcome: &types.RunOutcome{Status: types.OutcomeSuccess}},
		},
		Errors: map[string]error{"c.rd": errors.New("boom")},
	}
	views := map[string]StatsView{"a.rd": {Input: "a.rd", Outcome: "success", Instructions: 3}}

	out := NewBatchView(res, views)
	if out.Total != 2 || out.Succeeded != 1 || out.Failed != 1 || out.Deduped != 1 {
		t.Errorf("counts = %+v", out)
	}
	if len(out.Runs) != 2 {
		t.Fatalf("len(Runs) = %d, want 2", len(out.Runs))
	}
	if out.Runs[0].Instructions != 3 {
		t.Errorf("Runs[0] should come from views, got %+v", out.Runs[0])
	}
	if out.Runs[1].Outcome != "invalid" {
		t.Errorf("Runs[1].Outcome = %q, want invalid", out.Runs[1].Outcome)
	}
	if len(out.Errors) != 1 || out.Errors[0] != "c.rd: boom" {
		t.Errorf("Errors = %v", out.Errors)
	}
}
