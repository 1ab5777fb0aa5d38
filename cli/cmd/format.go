package cmd

import (
	"os"

	"github.com/pithecene-io/rdint/cli/tui"
	"github.com/pithecene-io/rdint/command"
	"github.com/pithecene-io/rdint/debugger"
)

// commandFormatter renders listed and paused commands. With color the
// instruction bytes take the decode category color.
func commandFormatter(color bool) debugger.Formatter {
	if !color {
		return debugger.PlainFormat
	}
	return func(cmd *command.Command) string {
		style := tui.CategoryStyle(cmd.Category().String())
		return style.Render(cmd.Instr.String()) + "  " + cmd.String()
	}
}

func isStdoutTTY() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
