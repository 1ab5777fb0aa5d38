package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/rdint/cli/reader"
	"github.com/pithecene-io/rdint/metrics"
	"github.com/pithecene-io/rdint/types"
)

func TestIsTUISupported(t *testing.T) {
	tests := []struct {
		viewType string
		want     bool
	}{
		{"inspect_trace", true},
		{"inspect_tracedb", true},
		{"inspect_report", true},
		{"stats_run", true},
		{"stats_batch", true},

		// Not supported: unknown inspect/stats views
		{"inspect_run", false},
		{"stats_jobs", false},

		// Not supported: mutating or streaming commands
		{"run", false},
		{"decode", false},
		{"version", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.viewType, func(t *testing.T) {
			got := IsTUISupported(tt.viewType)
			if got != tt.want {
				t.Errorf("IsTUISupported(%q) = %v, want %v", tt.viewType, got, tt.want)
			}
		})
	}
}

func TestSupportedTUIViews(t *testing.T) {
	views := SupportedTUIViews()
	if len(views) != 5 {
		t.Errorf("SupportedTUIViews() returned %d views, expected 5", len(views))
	}
	for _, v := range views {
		if !IsTUISupported(v) {
			t.Errorf("SupportedTUIViews() returned %q but IsTUISupported returns false", v)
		}
	}
}

func TestRun_UnsupportedViewType(t *testing.T) {
	if err := Run("decode", nil); err == nil {
		t.Error("Expected error for unsupported view type")
	}
}

func TestRenderInspectStatic_Trace(t *testing.T) {
	view := &reader.TraceView{
		Path:       "run.trace",
		RunID:      "run-1",
		Codec:      "msgpack",
		CreatedAt:  time.Date(2026, 2, 3, 15, 0, 0, 0, time.UTC),
		Records:    2,
		Categories: map[string]int64{"good": 1, "unknown": 1},
		Rows: []reader.TraceRow{
			{Seq: 1, Offset: "0x00000002", Category: "good", Text: "MoveAbsolute(x=1.000, y=2.000)"},
			{Seq: 2, Offset: "0x0000000e", Category: "unknown", Text: "Unknown(d0 01)"},
		},
	}
	out := RenderInspectStatic("inspect_trace", view)
	for _, want := range []string{"run-1", "msgpack", "good=1", "unknown=1", "MoveAbsolute", "0x0000000e"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderInspectStatic_Report(t *testing.T) {
	view := &reader.ReportView{
		RunID:   "run-2",
		Status:  "invalid",
		Message: "magic not found",
		Backlog: []string{"0x00000002: e7 03"},
	}
	out := RenderInspectStatic("inspect_report", view)
	for _, want := range []string{"run-2", "invalid", "magic not found", "Backlog", "e7 03"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderInspectStatic_WrongData(t *testing.T) {
	out := RenderInspectStatic("inspect_trace", &reader.DBView{})
	if !strings.Contains(out, "Invalid data type") {
		t.Errorf("expected invalid data message, got:\n%s", out)
	}
}

func TestInspectModel_Scroll(t *testing.T) {
	view := &reader.DBView{Rows: []reader.TraceRow{{Seq: 1}, {Seq: 2}}}
	var m tea.Model = NewInspectModel("inspect_tracedb", view)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if got := m.(InspectModel).scroll; got != 1 {
		t.Errorf("scroll = %d, want 1 (clamped)", got)
	}
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	if got := m.(InspectModel).scroll; got != 0 {
		t.Errorf("scroll = %d, want 0", got)
	}
}

func TestStatsModel_SelectCycles(t *testing.T) {
	view := &reader.StatsView{
		Input: "job.rd",
		Slots: []metrics.SlotReport{
			{Name: "RASTER", Unit: metrics.UnitMM},
			{Name: "VECTOR", Unit: metrics.UnitMM, WorkLength: 12.5},
			{Name: "GLOBAL", Unit: metrics.UnitMM},
		},
	}
	var m tea.Model = NewStatsModel("stats_run", view)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if got := m.(StatsModel).selected; got != 1 {
		t.Fatalf("selected = %d, want 1", got)
	}
	if !strings.Contains(m.View(), "12.500 mm") {
		t.Errorf("vector slot not rendered:\n%s", m.View())
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	if got := m.(StatsModel).selected; got != 2 {
		t.Errorf("selected = %d, want 2 after wrapping", got)
	}
}

func TestStatsModel_Quit(t *testing.T) {
	m := NewStatsModel("stats_run", &reader.StatsView{})
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Error("expected quit command")
	}
	if next.View() != "" {
		t.Error("expected empty view after quit")
	}
}

func TestRenderStatsStatic_Batch(t *testing.T) {
	view := &reader.BatchView{
		Total:     2,
		Succeeded: 1,
		Failed:    1,
		Runs: []reader.StatsView{
			{Input: "a.rd", Outcome: "success", Slots: []metrics.SlotReport{{
				Name:        "GLOBAL",
				Unit:        metrics.UnitMM,
				BoundingBox: types.BoundingBox{Present: true, Max: types.Point{X: 2000, Y: 1000}},
			}}},
			{Input: "b.rd", Outcome: "invalid"},
		},
		Errors: []string{"c.rd: boom"},
	}
	out := RenderStatsStatic("stats_batch", view)
	for _, want := range []string{"a.rd", "b.rd", "invalid", "c.rd: boom", "2.000 x 1.000 mm"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCategoryStyle(t *testing.T) {
	for _, cat := range []string{"good", "empty", "incomplete", "unknown"} {
		if CategoryStyle(cat).GetForeground() == ValueStyle.GetForeground() {
			t.Errorf("CategoryStyle(%q) uses the neutral value color", cat)
		}
	}
}

func TestRenderStatic_Dispatch(t *testing.T) {
	out, err := RenderStatic("stats_run", &reader.StatsView{Input: "job.rd"})
	if err != nil {
		t.Fatalf("RenderStatic failed: %v", err)
	}
	if !strings.Contains(out, "job.rd") {
		t.Errorf("stats frame missing input:\n%s", out)
	}

	out, err = RenderStatic("inspect_tracedb", &reader.DBView{RunID: "run-3"})
	if err != nil {
		t.Fatalf("RenderStatic failed: %v", err)
	}
	if !strings.Contains(out, "run-3") {
		t.Errorf("tracedb frame missing run id:\n%s", out)
	}

	if _, err := RenderStatic("decode", nil); err == nil {
		t.Error("expected error for unsupported view type")
	}
}
