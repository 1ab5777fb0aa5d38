package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/rdint/adapter"
	"github.com/pithecene-io/rdint/canvas"
	rdconfig "github.com/pithecene-io/rdint/cli/config"
	"github.com/pithecene-io/rdint/command"
	"github.com/pithecene-io/rdint/debugger"
	"github.com/pithecene-io/rdint/lode"
	"github.com/pithecene-io/rdint/log"
	"github.com/pithecene-io/rdint/metrics"
	"github.com/pithecene-io/rdint/plotter"
	"github.com/pithecene-io/rdint/policy"
	"github.com/pithecene-io/rdint/runtime"
	"github.com/pithecene-io/rdint/stream"
	"github.com/pithecene-io/rdint/trace"
	"github.com/pithecene-io/rdint/tracedb"
	"github.com/pithecene-io/rdint/types"
)

// adapterPublishTimeout bounds the whole notice, retries included.
const adapterPublishTimeout = 30 * time.Second

// RunCommand returns the run command.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Decode, replay and render an RD file",
		ArgsUsage: "<file.rd>",
		Flags:     runFlags(),
		Action:    runAction,
	}
}

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to an rdint.yaml or rdint.toml config file (default: discovered in the working directory)",
		},
		&cli.StringFlag{
			Name:  "run-id",
			Usage: "Run identifier (default: random UUID)",
		},
		&cli.StringFlag{
			Name:  "source",
			Usage: "Archive partition for the machine or job (default: input base name)",
		},
		&cli.BoolFlag{
			Name:    "interactive",
			Aliases: []string{"i"},
			Usage:   "Pause before the first instruction",
		},
		&cli.BoolFlag{
			Name:    "autocrop",
			Aliases: []string{"a"},
			Usage:   "Export only the drawn area",
		},
		&cli.StringFlag{
			Name:    "clip",
			Aliases: []string{"c"},
			Usage:   "Discard work outside X1xY1xX2xY2 (raw units)",
		},
		&cli.StringFlag{
			Name:    "screen",
			Aliases: []string{"s"},
			Usage:   "Export size WxH in points",
		},
		&cli.StringFlag{
			Name:    "vector-out",
			Aliases: []string{"v"},
			Usage:   "Export the vector drawing (.svg, .pdf, .eps, .png)",
		},
		&cli.StringFlag{
			Name:    "raster-out",
			Aliases: []string{"r"},
			Usage:   "Export the raster drawing (.png, .jpg, .tif)",
		},
		&cli.StringFlag{
			Name:    "verbosity",
			Aliases: []string{"d"},
			Value:   log.VerbosityInfo,
			Usage:   "Log level: quiet, warn, info, debug",
		},
		&cli.StringFlag{
			Name:  "unit",
			Value: string(metrics.UnitMM),
			Usage: "Statistics unit: mm, in, raw",
		},
		&cli.StringSliceFlag{
			Name:    "break",
			Aliases: []string{"b"},
			Usage:   "Breakpoint at a hex file offset (repeatable)",
		},
		&cli.StringFlag{
			Name:  "find",
			Usage: "Pause at the first instruction matching a hex opcode signature",
		},
		&cli.BoolFlag{
			Name:  "list",
			Usage: "Print every replayed instruction",
		},
		&cli.BoolFlag{
			Name:  "no-color",
			Usage: "Disable colored listing and console output",
		},
		&cli.StringFlag{
			Name:  "trace",
			Usage: "Write trace records to a file (.zst compresses)",
		},
		&cli.StringFlag{
			Name:  "trace-codec",
			Value: trace.CodecMsgpack.Name(),
			Usage: "Trace codec: msgpack, cbor",
		},
		&cli.StringFlag{
			Name:  "tracedb",
			Usage: "Write trace records to a SQLite database",
		},
		&cli.StringFlag{
			Name:  "storage-backend",
			Usage: "Archive backend: fs, s3 (default: fs when --storage-path is set)",
		},
		&cli.StringFlag{
			Name:  "storage-path",
			Usage: "Archive root directory (fs) or bucket/prefix (s3)",
		},
		&cli.StringFlag{
			Name:  "storage-dataset",
			Value: lode.DefaultDataset,
			Usage: "Archive dataset name",
		},
		&cli.StringFlag{
			Name:  "storage-region",
			Usage: "AWS region for the s3 backend",
		},
		&cli.StringFlag{
			Name:  "storage-endpoint",
			Usage: "Custom S3 endpoint (MinIO, R2)",
		},
		&cli.BoolFlag{
			Name:  "storage-s3-path-style",
			Usage: "Force path-style S3 addressing",
		},
		&cli.StringFlag{
			Name:  "policy",
			Value: policy.NameStrict,
			Usage: "Trace ingestion policy: strict, buffered, streaming, noop",
		},
		&cli.IntFlag{
			Name:  "buffer-records",
			Usage: "Buffered policy record limit",
		},
		&cli.Int64Flag{
			Name:  "buffer-bytes",
			Usage: "Buffered policy byte limit",
		},
		&cli.IntFlag{
			Name:  "flush-count",
			Usage: "Streaming policy flush after N records",
		},
		&cli.DurationFlag{
			Name:  "flush-interval",
			Usage: "Streaming policy flush interval",
		},
		&cli.StringFlag{
			Name:  "adapter",
			Usage: "Run completion notice: webhook, redis",
		},
		&cli.StringFlag{
			Name:  "adapter-url",
			Usage: "Webhook endpoint or Redis URL",
		},
		&cli.StringFlag{
			Name:  "adapter-channel",
			Usage: "Redis channel; {outcome} and {source} expand per run",
		},
		&cli.StringSliceFlag{
			Name:  "adapter-header",
			Usage: "Webhook header key=value (repeatable)",
		},
		&cli.DurationFlag{
			Name:  "adapter-timeout",
			Usage: "Per-attempt notice timeout",
		},
		&cli.IntFlag{
			Name:  "adapter-retries",
			Value: 3,
			Usage: "Notice retry attempts",
		},
		&cli.StringFlag{
			Name:  "preview",
			Usage: "Live preview image refreshed while auto-update is on",
		},
		&cli.IntFlag{
			Name:  "preview-every",
			Value: 1,
			Usage: "Refresh the preview every N pen lifts",
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Write a JSON run report to a path (- for stderr)",
		},
	}
}

// runOptions is the fully resolved run configuration.
type runOptions struct {
	input  string
	runID  string
	source string

	interactive bool
	autocrop    bool
	clip        types.BoundingBox
	screen      types.BoundingBox
	vectorOut   string
	rasterOut   string

	level zapcore.Level
	list  bool
	color bool
	unit  metrics.Unit

	breakpoints []int64
	find        string

	tracePath  string
	traceCodec trace.Codec
	traceDB    string

	storage storageChoice
	policy  policyChoice
	adapter *adapterChoice

	previewPath  string
	previewEvery int
	reportPath   string
}

func (o *runOptions) hasSinks() bool {
	return o.tracePath != "" || o.traceDB != "" || o.storage.enabled()
}

// resolveRunOptions merges flags over the config file and validates the result.
func resolveRunOptions(c *cli.Context, cfg *rdconfig.Config) (*runOptions, error) {
	if c.NArg() != 1 {
		return nil, errors.New("exactly one RD file is required\n  Usage: rdint run [options] <file.rd>")
	}
	opts := &runOptions{input: c.Args().First()}
	if info, err := os.Stat(opts.input); err != nil {
		return nil, fmt.Errorf("cannot open input: %w", err)
	} else if info.IsDir() {
		return nil, fmt.Errorf("input %q is a directory", opts.input)
	}

	opts.runID = c.String("run-id")
	if opts.runID == "" {
		opts.runID = uuid.NewString()
	}
	opts.source = resolveString(c, "source", configVal(cfg, func(c *rdconfig.Config) string { return c.Source }))
	if opts.source == "" {
		opts.source = strings.TrimSuffix(filepath.Base(opts.input), filepath.Ext(opts.input))
	}

	opts.interactive = resolveBool(c, "interactive", configVal(cfg, func(c *rdconfig.Config) bool { return c.Interactive }))
	opts.autocrop = resolveBool(c, "autocrop", configVal(cfg, func(c *rdconfig.Config) bool { return c.Autocrop }))
	opts.vectorOut = resolveString(c, "vector-out", configVal(cfg, func(c *rdconfig.Config) string { return c.VectorOut }))
	opts.rasterOut = resolveString(c, "raster-out", configVal(cfg, func(c *rdconfig.Config) string { return c.RasterOut }))

	var err error
	resolved := rdconfig.Config{
		Clip:        resolveString(c, "clip", configVal(cfg, func(c *rdconfig.Config) string { return c.Clip })),
		Screen:      resolveString(c, "screen", configVal(cfg, func(c *rdconfig.Config) string { return c.Screen })),
		Breakpoints: resolveStrings(c, "break", configVal(cfg, func(c *rdconfig.Config) []string { return c.Breakpoints })),
	}
	if opts.clip, err = resolved.ClipBox(); err != nil {
		return nil, err
	}
	if opts.screen, err = resolved.ScreenBox(); err != nil {
		return nil, err
	}

	verbosity := resolveString(c, "verbosity", configVal(cfg, func(c *rdconfig.Config) string { return c.Verbosity }))
	if opts.level, err = log.ParseLevel(verbosity); err != nil {
		return nil, err
	}
	opts.list = c.Bool("list") || opts.level == zapcore.DebugLevel
	opts.color = !c.Bool("no-color") && isStdoutTTY()

	unit := resolveString(c, "unit", configVal(cfg, func(c *rdconfig.Config) string { return c.Unit }))
	if opts.unit, err = metrics.ParseUnit(unit); err != nil {
		return nil, err
	}

	if opts.breakpoints, err = resolved.BreakpointOffsets(); err != nil {
		return nil, err
	}
	opts.find = resolveString(c, "find", configVal(cfg, func(c *rdconfig.Config) string { return c.Find }))
	if opts.find != "" && !validSignature(opts.find) {
		return nil, fmt.Errorf("invalid --find signature %q: expected hex opcode bytes", opts.find)
	}

	opts.tracePath = resolveString(c, "trace", configVal(cfg, func(c *rdconfig.Config) string { return c.Trace.Path }))
	codec := resolveString(c, "trace-codec", configVal(cfg, func(c *rdconfig.Config) string { return c.Trace.Codec }))
	if opts.traceCodec, err = trace.ParseCodec(codec); err != nil {
		return nil, err
	}
	opts.traceDB = resolveString(c, "tracedb", configVal(cfg, func(c *rdconfig.Config) string { return c.TraceDB }))

	opts.storage = storageChoice{
		backend:   resolveString(c, "storage-backend", configVal(cfg, func(c *rdconfig.Config) string { return c.Storage.Backend })),
		path:      resolveString(c, "storage-path", configVal(cfg, func(c *rdconfig.Config) string { return c.Storage.Path })),
		dataset:   resolveString(c, "storage-dataset", configVal(cfg, func(c *rdconfig.Config) string { return c.Storage.Dataset })),
		region:    resolveString(c, "storage-region", configVal(cfg, func(c *rdconfig.Config) string { return c.Storage.Region })),
		endpoint:  resolveString(c, "storage-endpoint", configVal(cfg, func(c *rdconfig.Config) string { return c.Storage.Endpoint })),
		pathStyle: resolveBool(c, "storage-s3-path-style", configVal(cfg, func(c *rdconfig.Config) bool { return c.Storage.S3PathStyle })),
	}
	if opts.storage.backend == "" && opts.storage.path != "" {
		opts.storage.backend = "fs"
	}
	if opts.storage.enabled() {
		if err := validateStorageConfig(opts.storage); err != nil {
			return nil, err
		}
	}

	opts.policy = policyChoice{
		name:          resolveString(c, "policy", configVal(cfg, func(c *rdconfig.Config) string { return c.Policy.Name })),
		maxRecords:    resolveInt(c, "buffer-records", configVal(cfg, func(c *rdconfig.Config) int { return c.Policy.BufferRecords })),
		maxBytes:      resolveInt64(c, "buffer-bytes", configVal(cfg, func(c *rdconfig.Config) int64 { return c.Policy.BufferBytes })),
		flushCount:    resolveInt(c, "flush-count", configVal(cfg, func(c *rdconfig.Config) int { return c.Policy.FlushCount })),
		flushInterval: resolveDuration(c, "flush-interval", configVal(cfg, func(c *rdconfig.Config) time.Duration { return c.Policy.FlushInterval.Duration })),
	}
	if err := validatePolicyConfig(opts.policy); err != nil {
		return nil, err
	}
	if !opts.hasSinks() && !c.IsSet("policy") && configVal(cfg, func(c *rdconfig.Config) string { return c.Policy.Name }) == "" {
		opts.policy.name = policy.NameNoop
	}

	if adapterType := resolveString(c, "adapter", configVal(cfg, func(c *rdconfig.Config) string { return c.Adapter.Type })); adapterType != "" {
		if opts.adapter, err = parseAdapterConfigWithPrecedence(c, cfg, adapterType); err != nil {
			return nil, err
		}
	}

	opts.previewPath = resolveString(c, "preview", configVal(cfg, func(c *rdconfig.Config) string { return c.Preview.Path }))
	opts.previewEvery = resolveInt(c, "preview-every", configVal(cfg, func(c *rdconfig.Config) int { return c.Preview.Every }))
	opts.reportPath = c.String("report")
	return opts, nil
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	opts, err := resolveRunOptions(c, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := executeRun(ctx, opts, runIO{in: os.Stdin, out: os.Stdout, errOut: os.Stderr})
	if err != nil {
		return err
	}
	if code := runtime.ExitCodeFor(result.Outcome.Status); code != runtime.ExitCodeSuccess {
		return cli.Exit("", code)
	}
	return nil
}

// runIO carries the console and listing streams.
type runIO struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

// executeRun performs one run and its post-run side effects: exports,
// statistics, archive, notice and report.
func executeRun(ctx context.Context, opts *runOptions, rio runIO) (*runtime.RunResult, error) {
	meta := &types.RunMeta{RunID: opts.runID, Input: opts.input, Source: opts.source}
	logger := log.NewLoggerWithLevel(meta, rio.errOut, opts.level)
	defer func() { _ = logger.Sync() }()

	startTime := time.Now()
	day := lode.DeriveDay(startTime)
	collector := metrics.NewCollector(opts.policy.name, opts.storage.backend, meta.RunID, meta.Input)

	f, err := os.Open(opts.input)
	if err != nil {
		return nil, fmt.Errorf("cannot open input: %w", err)
	}
	defer func() { _ = f.Close() }()

	var client *lode.LodeClient
	if opts.storage.enabled() {
		client, err = buildLodeClient(ctx, opts.storage, lode.Config{
			Dataset: opts.storage.dataset,
			Source:  meta.Source,
			Day:     day,
			RunID:   meta.RunID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open archive: %w", err)
		}
	}

	sink, err := buildSinks(ctx, opts, meta, client, collector, startTime)
	if err != nil {
		return nil, err
	}
	pol, err := policy.Build(policy.Config{
		Name:          opts.policy.name,
		MaxRecords:    opts.policy.maxRecords,
		MaxBytes:      opts.policy.maxBytes,
		FlushCount:    opts.policy.flushCount,
		FlushInterval: opts.policy.flushInterval,
		Logger:        logger,
	}, sink)
	if err != nil {
		_ = sink.Close()
		return nil, err
	}
	policyOpen := true
	closePolicy := func() {
		if !policyOpen {
			return
		}
		policyOpen = false
		if err := pol.Close(); err != nil {
			logger.Warn("closing trace sinks failed", map[string]any{"error": err.Error()})
		}
	}
	defer closePolicy()

	session := debugger.NewSession(debugger.Options{
		Interactive: opts.interactive,
		Breakpoints: opts.breakpoints,
		Search:      opts.find,
		AutoUpdate:  opts.previewPath != "",
		Collector:   collector,
		Logger:      logger,
	})
	format := commandFormatter(opts.color)
	console := debugger.NewConsole(session, rio.in, rio.out, format)
	consoleDone := make(chan struct{})
	go func() {
		defer close(consoleDone)
		select {
		case <-session.Paused():
			if err := console.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("console stopped", map[string]any{"error": err.Error()})
			}
		case <-session.Done():
		}
	}()

	stat := metrics.NewStatistic()
	stat.SetTarget(metrics.SlotVector)
	var cv *canvas.Canvas
	factory := func(limits types.BoundingBox) (plotter.Drawer, error) {
		cv = canvas.New(canvas.Options{
			Bed:          limits,
			Clip:         opts.clip,
			AutoCrop:     opts.autocrop,
			Screen:       opts.screen,
			PreviewPath:  opts.previewPath,
			PreviewEvery: opts.previewEvery,
			Logger:       logger,
		})
		console.SetPreview(cv)
		return canvas.NewPen(cv, stat), nil
	}

	var listener runtime.Listener
	if opts.list {
		listener = func(pass runtime.Pass, cmd *command.Command) {
			if pass == runtime.PassReplay {
				fmt.Fprintln(rio.out, format(cmd))
			}
		}
	}

	orchestrator, err := runtime.NewRunOrchestrator(&runtime.RunConfig{
		RunMeta:       meta,
		Input:         bufio.NewReader(f),
		Session:       session,
		Policy:        pol,
		DrawerFactory: factory,
		Listener:      listener,
		Collector:     collector,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	result, err := orchestrator.Execute(ctx)
	<-consoleDone
	if err != nil {
		return nil, fmt.Errorf("run failed: %w", err)
	}

	exported := exportDrawings(cv, opts, result, logger)
	if opts.level <= zapcore.InfoLevel && result.State != nil {
		if err := metrics.WriteSlot(rio.out, stat.Slot(metrics.SlotVector, opts.unit)); err != nil {
			logger.Warn("writing statistics failed", map[string]any{"error": err.Error()})
		}
	}
	if result.Outcome.Status == types.OutcomeInvalid {
		printInvalidation(rio.errOut, result.Outcome)
	}

	closePolicy()
	snap := collector.Snapshot()
	completedAt := time.Now()

	storagePath := ""
	if client != nil {
		if err := client.WriteReport(ctx, *result.Outcome, snap, completedAt); err != nil {
			logger.Error("archiving run report failed", map[string]any{"error": err.Error()})
		}
		files := append(exported, opts.tracePath, opts.traceDB)
		if err := lode.ArchiveFiles(ctx, client, files...); err != nil {
			logger.Error("archiving files failed", map[string]any{"error": err.Error()})
		}
		storagePath = buildStoragePath(opts.storage, opts.storage.dataset, meta.Source, day, meta.RunID)
	}

	if opts.adapter != nil {
		publishCompleted(ctx, opts.adapter, runtime.BuildCompletedEvent(result, day, storagePath, completedAt), logger)
	}

	if opts.reportPath != "" {
		report := runtime.BuildRunReport(result, snap, opts.policy.name, runtime.ExitCodeFor(result.Outcome.Status))
		if err := runtime.WriteRunReport(report, opts.reportPath); err != nil {
			logger.Error("writing run report failed", map[string]any{"error": err.Error()})
		}
	}

	if opts.level <= zapcore.InfoLevel {
		printRunResult(rio.errOut, result, opts.policy.name)
	}
	return result, nil
}

// buildSinks opens every configured trace destination. A run without any
// destination gets an empty sink.
func buildSinks(ctx context.Context, opts *runOptions, meta *types.RunMeta, client *lode.LodeClient, collector *metrics.Collector, startTime time.Time) (policy.Sink, error) {
	var sinks []policy.Sink
	closeAll := func() {
		_ = policy.NewMultiSink(sinks...).Close()
	}

	if opts.tracePath != "" {
		w, err := trace.Create(opts.tracePath, opts.traceCodec, trace.NewHeader(*meta, startTime))
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, w)
	}
	if opts.traceDB != "" {
		db, err := tracedb.Open(ctx, opts.traceDB)
		if err != nil {
			closeAll()
			return nil, err
		}
		sinks = append(sinks, db)
	}
	if client != nil {
		sinks = append(sinks, lode.NewInstrumentedSink(lode.NewSink(client), collector))
	}
	return policy.NewMultiSink(sinks...), nil
}

// exportDrawings dumps the vector and raster outputs. An invalidated
// stream or an empty drawing exports nothing. Returns the written paths.
func exportDrawings(cv *canvas.Canvas, opts *runOptions, result *runtime.RunResult, logger *log.Logger) []string {
	if opts.vectorOut == "" && opts.rasterOut == "" {
		return nil
	}
	if cv == nil || result.Outcome.Status == types.OutcomeInvalid {
		logger.Warn("nothing exported: stream did not replay", nil)
		return nil
	}
	if !cv.Valid() {
		logger.Warn("nothing exported: drawing is empty", nil)
		return nil
	}

	written, err := cv.DumpAll(opts.vectorOut, opts.rasterOut)
	for _, path := range written {
		logger.Info("exported", map[string]any{"path": path})
	}
	if err != nil {
		logger.Error("export failed", map[string]any{"error": err.Error()})
	}
	return written
}

func publishCompleted(ctx context.Context, ac *adapterChoice, event *adapter.RunCompletedEvent, logger *log.Logger) {
	ad, err := buildAdapter(ac)
	if err != nil {
		logger.Error("adapter setup failed", map[string]any{"adapter": ac.adapterType, "error": err.Error()})
		return
	}
	defer func() { _ = ad.Close() }()

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), adapterPublishTimeout)
	defer cancel()
	if err := ad.Publish(pubCtx, event); err != nil {
		logger.Error("run notice failed", map[string]any{"adapter": ac.adapterType, "error": err.Error()})
		return
	}
	logger.Debug("run notice published", map[string]any{"adapter": ac.adapterType})
}

// validSignature reports whether sig is a non-empty run of hex digits.
func validSignature(sig string) bool {
	sig = command.NormalizeSignature(sig)
	return sig != "" && strings.Trim(sig, "0123456789abcdef") == ""
}

func printInvalidation(w io.Writer, outcome *types.RunOutcome) {
	fmt.Fprintf(w, "invalid stream: %s\n", outcome.Message)
	if len(outcome.Backlog) > 0 {
		fmt.Fprintln(w, "last instructions:")
		_ = stream.WriteBacklog(w, outcome.Backlog)
	}
}

func printRunResult(w io.Writer, result *runtime.RunResult, policyName string) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintf(w, "run_id:       %s\n", result.RunMeta.RunID)
	fmt.Fprintf(w, "input:        %s\n", result.RunMeta.Input)
	fmt.Fprintf(w, "outcome:      %s\n", result.Outcome.Status)
	fmt.Fprintf(w, "message:      %s\n", result.Outcome.Message)
	fmt.Fprintf(w, "instructions: %d\n", result.Instructions)
	fmt.Fprintf(w, "records:      %d\n", result.Records)
	if result.Limits.Complete() {
		fmt.Fprintf(w, "limits:       %s\n", result.Limits.Box())
	}
	fmt.Fprintf(w, "policy:       %s (persisted %d, dropped %d)\n", policyName,
		result.PolicyStats.RecordsPersisted, result.PolicyStats.RecordsDropped)
	fmt.Fprintf(w, "duration:     %s\n", result.Duration.Round(time.Millisecond))
	fmt.Fprintln(w, "==================================================")
}
