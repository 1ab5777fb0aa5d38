package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/rdint/canvas"
	"github.com/pithecene-io/rdint/cli/reader"
	"github.com/pithecene-io/rdint/cli/render"
	"github.com/pithecene-io/rdint/log"
	"github.com/pithecene-io/rdint/metrics"
	"github.com/pithecene-io/rdint/plotter"
	"github.com/pithecene-io/rdint/policy"
	"github.com/pithecene-io/rdint/runtime"
	"github.com/pithecene-io/rdint/types"
)

// StatsCommand returns the stats command. It replays each file without
// drawing or persistence and reports toolpath statistics.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:      "stats",
		Usage:     "Show toolpath statistics for one or more RD files",
		ArgsUsage: "<file.rd>...",
		Flags: append(TUIReadOnlyFlags(),
			&cli.StringFlag{
				Name:  "unit",
				Value: string(metrics.UnitMM),
				Usage: "Length unit: mm, in, raw",
			},
			&cli.IntFlag{
				Name:  "parallel",
				Value: 4,
				Usage: "Maximum concurrent runs",
			},
			&cli.IntFlag{
				Name:  "max-runs",
				Usage: "Maximum files to decode (0 = all)",
			},
		),
		Action: statsAction,
	}
}

func statsAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("at least one RD file required", 1)
	}
	unit, err := metrics.ParseUnit(c.String("unit"))
	if err != nil {
		return err
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	paths := c.Args().Slice()
	if len(paths) == 1 {
		view, err := statsForFile(c.Context, types.RunMeta{RunID: "stats", Input: paths[0]}, unit)
		if err != nil {
			return err
		}
		if c.Bool("tui") {
			return r.RenderTUI("stats_run", &view)
		}
		return r.Render(view)
	}

	view, err := statsForBatch(c.Context, paths, unit, c.Int("parallel"), c.Int("max-runs"))
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return r.RenderTUI("stats_batch", &view)
	}
	return r.Render(view)
}

// statsForBatch decodes paths concurrently; identical files are decoded once.
func statsForBatch(ctx context.Context, paths []string, unit metrics.Unit, parallel, maxRuns int) (reader.BatchView, error) {
	if maxRuns <= 0 {
		maxRuns = len(paths)
	}

	var mu sync.Mutex
	views := make(map[string]reader.StatsView, len(paths))
	batch := runtime.NewBatch(runtime.BatchConfig{MaxRuns: maxRuns, Parallel: parallel}, func(ctx context.Context, item runtime.BatchItem) (*runtime.RunResult, error) {
		view, result, err := replayStats(ctx, types.RunMeta{RunID: item.RunID, Input: item.Path}, unit)
		if err != nil {
			return nil, err
		}
		mu.Lock()
		views[item.Path] = view
		mu.Unlock()
		return result, nil
	})

	var addErrs error
	for _, p := range paths {
		if _, err := batch.Add(p); err != nil {
			addErrs = errors.Join(addErrs, err)
		}
	}
	if addErrs != nil {
		return reader.BatchView{}, addErrs
	}
	batch.Run(ctx)
	return reader.NewBatchView(batch.Results(), views), nil
}

func statsForFile(ctx context.Context, meta types.RunMeta, unit metrics.Unit) (reader.StatsView, error) {
	view, _, err := replayStats(ctx, meta, unit)
	return view, err
}

// replayStats runs one file with statistics as the only drawer.
func replayStats(ctx context.Context, meta types.RunMeta, unit metrics.Unit) (reader.StatsView, *runtime.RunResult, error) {
	f, err := os.Open(meta.Input)
	if err != nil {
		return reader.StatsView{}, nil, fmt.Errorf("cannot open input: %w", err)
	}
	defer func() { _ = f.Close() }()

	collector := metrics.NewCollector(policy.NameNoop, "", meta.RunID, meta.Input)
	stat := metrics.NewStatistic()
	stat.SetTarget(metrics.SlotVector)

	orchestrator, err := runtime.NewRunOrchestrator(&runtime.RunConfig{
		RunMeta: &meta,
		Input:   f,
		Policy:  policy.NewNoopPolicy(),
		DrawerFactory: func(types.BoundingBox) (plotter.Drawer, error) {
			return canvas.NewPen(stat), nil
		},
		Collector: collector,
		Logger:    log.Nop(),
	})
	if err != nil {
		return reader.StatsView{}, nil, err
	}
	result, err := orchestrator.Execute(ctx)
	if err != nil {
		return reader.StatsView{}, nil, err
	}
	return reader.NewStatsView(result, collector.Snapshot(), stat, unit), result, nil
}
