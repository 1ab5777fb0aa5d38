package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/rdint/cli/render"
	"github.com/pithecene-io/rdint/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version     string `json:"version"`
	Commit      string `json:"commit"`
	TraceFormat string `json:"trace_format"`
}

// VersionCommand returns the version command.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Flags:  ReadOnlyFlags(),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		r, err := render.NewRenderer(c)
		if err != nil {
			return err
		}

		if c.Bool("tui") {
			return cli.Exit("--tui is not supported for version command", 1)
		}

		return r.Render(VersionResponse{
			Version:     types.Version,
			Commit:      commit,
			TraceFormat: types.TraceFormatVersion,
		})
	}
}
