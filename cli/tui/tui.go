package tui

import (
	"fmt"
	"slices"
	"strings"
)

// Run starts the appropriate TUI based on the view type.
// Returns an error if the view type doesn't support TUI.
func Run(viewType string, data any) error {
	if !IsTUISupported(viewType) {
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}

	if strings.HasPrefix(viewType, "inspect_") {
		return RunInspectTUI(viewType, data)
	}
	return RunStatsTUI(viewType, data)
}

// RenderStatic renders one frame of the view for output that is not a
// terminal.
func RenderStatic(viewType string, data any) (string, error) {
	if !IsTUISupported(viewType) {
		return "", fmt.Errorf("TUI mode is not supported for %s", viewType)
	}

	if strings.HasPrefix(viewType, "inspect_") {
		return RenderInspectStatic(viewType, data), nil
	}
	return RenderStatsStatic(viewType, data), nil
}

// IsTUISupported returns true if the view type supports TUI mode.
// Only the inspect and stats views do.
func IsTUISupported(viewType string) bool {
	return slices.Contains(SupportedTUIViews(), viewType)
}

// SupportedTUIViews returns a list of view types that support TUI.
func SupportedTUIViews() []string {
	return []string{
		"inspect_trace",
		"inspect_tracedb",
		"inspect_report",
		"stats_run",
		"stats_batch",
	}
}
