package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/rdint/cli/reader"
	"github.com/pithecene-io/rdint/metrics"
)

// StatsModel is a Bubble Tea model for stats views.
// The selection cycles through slots (stats_run) or runs (stats_batch).
type StatsModel struct {
	viewType string
	data     any
	width    int
	height   int
	selected int
	quitting bool
}

// NewStatsModel creates a new stats model.
func NewStatsModel(viewType string, data any) StatsModel {
	return StatsModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		n := m.choices()
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Next):
			if n > 0 {
				m.selected = (m.selected + 1) % n
			}
		case key.Matches(msg, keys.Prev):
			if n > 0 {
				m.selected = (m.selected + n - 1) % n
			}
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "stats_run":
		content = m.renderStatsRun()
	case "stats_batch":
		content = m.renderStatsBatch()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("tab/shift+tab select • q quit")
	return content + "\n" + help
}

func (m StatsModel) choices() int {
	switch d := m.data.(type) {
	case *reader.StatsView:
		return len(d.Slots)
	case *reader.BatchView:
		return len(d.Runs)
	default:
		return 0
	}
}

func (m StatsModel) renderStatsRun() string {
	data, ok := m.data.(*reader.StatsView)
	if !ok {
		return "Invalid data type for stats_run"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Statistics: " + data.Input))
	b.WriteString("\n\n")
	b.WriteString(renderDecodeBoxes(data))
	b.WriteString("\n\n")

	if len(data.Slots) == 0 {
		b.WriteString(WarningStyle.Render("no toolpath recorded"))
		return b.String()
	}

	tabs := make([]string, len(data.Slots))
	for i, s := range data.Slots {
		style := LabelStyle.Width(0).Padding(0, 1)
		if i == m.selected%len(data.Slots) {
			style = style.Bold(true).Foreground(highlightColor).Underline(true)
		}
		tabs[i] = style.Render(s.Name)
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
	b.WriteString("\n")
	b.WriteString(renderSlot(data.Slots[m.selected%len(data.Slots)]))

	return b.String()
}

func (m StatsModel) renderStatsBatch() string {
	data, ok := m.data.(*reader.BatchView)
	if !ok {
		return "Invalid data type for stats_batch"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Batch Statistics"))
	b.WriteString("\n\n")

	boxes := []string{
		renderStatBox("Total", int64(data.Total), highlightColor),
		renderStatBox("Succeeded", int64(data.Succeeded), successColor),
		renderStatBox("Failed", int64(data.Failed), errorColor),
		renderStatBox("Deduped", int64(data.Deduped), mutedColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n\n")

	for i, run := range data.Runs {
		marker := "  "
		if i == m.selected {
			marker = "▶ "
		}
		b.WriteString(fmt.Sprintf("%s%s %s\n", marker,
			ValueStyle.Render(run.Input),
			StateStyle(run.Outcome).Render(run.Outcome)))
	}
	for _, e := range data.Errors {
		b.WriteString(ErrorStyle.Render("  "+e) + "\n")
	}

	if len(data.Runs) > 0 {
		run := data.Runs[m.selected%len(data.Runs)]
		b.WriteString("\n")
		b.WriteString(renderDecodeBoxes(&run))
		for _, s := range run.Slots {
			if s.Name == metrics.SlotGlobal.String() {
				b.WriteString("\n")
				b.WriteString(renderSlot(s))
			}
		}
	}

	return b.String()
}

func renderDecodeBoxes(data *reader.StatsView) string {
	boxes := []string{
		renderStatBox("Instructions", data.Instructions, highlightColor),
		renderStatBox("Good", data.Decoded["good"], successColor),
		renderStatBox("Empty", data.Decoded["empty"], errorColor),
		renderStatBox("Incomplete", data.Decoded["incomplete"], pinkColor),
		renderStatBox("Unknown", data.Decoded["unknown"], warningColor),
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}

func renderSlot(s metrics.SlotReport) string {
	var b strings.Builder
	unit := string(s.Unit)
	writeField(&b, "Work", fmt.Sprintf("%.3f %s", s.WorkLength, unit))
	writeField(&b, "Move", fmt.Sprintf("%.3f %s", s.MoveLength, unit))
	writeField(&b, "Total", fmt.Sprintf("%.3f %s", s.TotalLength, unit))
	writeField(&b, "Pen", fmt.Sprintf("%d down, %d up", s.PenDown, s.PenUp))
	writeField(&b, "Segments", fmt.Sprintf("%d", s.Segments))
	if s.BoundingBox.Set() {
		bb := s.BoundingBox
		writeField(&b, "Bounding Box", fmt.Sprintf("%.3f x %.3f %s",
			s.Unit.Convert(float64(bb.Width())), s.Unit.Convert(float64(bb.Height())), unit))
	}
	return BoxStyle.Render(b.String())
}

func renderStatBox(label string, value int64, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)

	return boxStyle.Render(content)
}

// RunStatsTUI runs the stats TUI.
func RunStatsTUI(viewType string, data any) error {
	model := NewStatsModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatsStatic renders stats data without full TUI (for fallback).
func RenderStatsStatic(viewType string, data any) string {
	model := NewStatsModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
