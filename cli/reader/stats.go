package reader

import (
	"sort"

	"github.com/pithecene-io/rdint/metrics"
	"github.com/pithecene-io/rdint/runtime"
)

// NewStatsView builds the statistics payload for one decoded file.
// stat may be nil when the run never reached the replay pass.
func NewStatsView(result *runtime.RunResult, snap metrics.Snapshot, stat *metrics.Statistic, unit metrics.Unit) StatsView {
	view := StatsView{
		Unit: unit,
		Decoded: map[string]int64{
			"good":       snap.DecodedGood,
			"empty":      snap.DecodedEmpty,
			"incomplete": snap.DecodedIncomplete,
			"unknown":    snap.DecodedUnknown,
		},
	}
	if result != nil {
		view.Input = result.RunMeta.Input
		view.RunID = result.RunMeta.RunID
		view.Instructions = result.Instructions
		view.Limits = result.Limits.Box()
		if result.Outcome != nil {
			view.Outcome = string(result.Outcome.Status)
			view.Message = result.Outcome.Message
		}
	}
	if stat != nil {
		view.Slots = stat.Slots(unit)
	}
	return view
}

// NewBatchView aggregates a batch result. views holds the per-file payloads
// keyed by input path; paths without a view are listed from the result alone.
func NewBatchView(res runtime.BatchResult, views map[string]StatsView) BatchView {
	out := BatchView{
		Total:     int(res.RunsTotal),
		Succeeded: int(res.RunsSucceeded),
		Failed:    int(res.RunsFailed),
		Deduped:   int(res.Deduped),
		Skipped:   int(res.Skipped),
	}
	for _, path := range res.Paths() {
		if v, ok := views[path]; ok {
			out.Runs = append(out.Runs, v)
			continue
		}
		if r := res.Results[path]; r != nil {
			out.Runs = append(out.Runs, NewStatsView(r, metrics.Snapshot{}, nil, ""))
		}
	}
	errPaths := make([]string, 0, len(res.Errors))
	for path := range res.Errors {
		errPaths = append(errPaths, path)
	}
	sort.Strings(errPaths)
	for _, path := range errPaths {
		out.Errors = append(out.Errors, path+": "+res.Errors[path].Error())
	}
	return out
}
