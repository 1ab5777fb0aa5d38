package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/rdint/cli/reader"
	"github.com/pithecene-io/rdint/cli/render"
	"github.com/pithecene-io/rdint/lode"
)

// defaultInspectLimit caps listed rows unless --limit is given.
const defaultInspectLimit = 50

// InspectCommand returns the inspect command. Without a subcommand it
// inspects a trace file.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Inspect a trace file, a trace database or an archived run report",
		ArgsUsage: "<trace-file>",
		Flags:     append(TUIReadOnlyFlags(), limitFlag()),
		Action:    inspectTraceAction,
		Subcommands: []*cli.Command{
			inspectDBCommand(),
			inspectReportCommand(),
		},
	}
}

func limitFlag() cli.Flag {
	return &cli.IntFlag{
		Name:  "limit",
		Value: defaultInspectLimit,
		Usage: "Maximum rows to list",
	}
}

func inspectTraceAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("trace file required", 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	view, err := reader.GetReader().InspectTrace(c.Args().First(), c.Int("limit"))
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return r.RenderTUI("inspect_trace", view)
	}
	return r.Render(view)
}

func inspectDBCommand() *cli.Command {
	return &cli.Command{
		Name:      "db",
		Usage:     "Inspect one run of a trace database",
		ArgsUsage: "<database>",
		Flags: append(TUIReadOnlyFlags(), limitFlag(),
			&cli.StringFlag{
				Name:     "run-id",
				Usage:    "Run to inspect",
				Required: true,
			},
		),
		Action: inspectDBAction,
	}
}

func inspectDBAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("database path required", 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	view, err := reader.GetReader().InspectTraceDB(c.Context, c.Args().First(), c.String("run-id"), c.Int("limit"))
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return r.RenderTUI("inspect_tracedb", view)
	}
	return r.Render(view)
}

func inspectReportCommand() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Show the latest archived report of a run",
		Flags: append(TUIReadOnlyFlags(),
			&cli.StringFlag{
				Name:     "run-id",
				Usage:    "Run to look up",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "source",
				Usage: "Restrict the lookup to one source partition",
			},
			&cli.StringFlag{
				Name:  "storage-backend",
				Value: "fs",
				Usage: "Archive backend: fs, s3",
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
		),
		Action: inspectReportAction,
	}
}

func inspectReportAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	view, err := reportReader(c).InspectReport(c.Context, c.String("run-id"), c.String("source"))
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return r.RenderTUI("inspect_report", view)
	}
	return r.Render(view)
}

// reportReader uses the archive named by the storage flags, or the
// package reader when no path is given.
func reportReader(c *cli.Context) reader.Reader {
	if c.String("storage-path") == "" {
		return reader.GetReader()
	}
	return reader.NewLocalReader(reader.StorageOptions{
		Dataset:   c.String("storage-dataset"),
		Backend:   c.String("storage-backend"),
		Path:      c.String("storage-path"),
		Region:    c.String("storage-region"),
		Endpoint:  c.String("storage-endpoint"),
		PathStyle: c.Bool("storage-s3-path-style"),
	})
}
