package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/rdint/cli/reader"
)

// InspectModel is a Bubble Tea model for inspect views.
type InspectModel struct {
	viewType string
	data     any
	width    int
	height   int
	scroll   int
	quitting bool
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(viewType string, data any) InspectModel {
	return InspectModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Down):
			if m.scroll < m.rowCount()-1 {
				m.scroll++
			}
		case key.Matches(msg, keys.Up):
			if m.scroll > 0 {
				m.scroll--
			}
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "inspect_trace":
		content = m.renderInspectTrace()
	case "inspect_tracedb":
		content = m.renderInspectTraceDB()
	case "inspect_report":
		content = m.renderInspectReport()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("↑/↓ scroll • q quit")
	return content + "\n" + help
}

func (m InspectModel) rowCount() int {
	switch d := m.data.(type) {
	case *reader.TraceView:
		return len(d.Rows)
	case *reader.DBView:
		return len(d.Rows)
	default:
		return 0
	}
}

// visibleRows bounds the row window to the terminal height.
func (m InspectModel) visibleRows() int {
	if m.height <= 0 {
		return 10
	}
	return max(m.height-20, 3)
}

func (m InspectModel) renderInspectTrace() string {
	data, ok := m.data.(*reader.TraceView)
	if !ok {
		return "Invalid data type for inspect_trace"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Trace"))
	b.WriteString("\n\n")

	writeField(&b, "Path", data.Path)
	writeField(&b, "Run ID", data.RunID)
	writeField(&b, "Input", data.Input)
	if data.Source != "" {
		writeField(&b, "Source", data.Source)
	}
	writeField(&b, "Codec", data.Codec)
	writeField(&b, "Format", data.Format)
	writeField(&b, "Version", data.Version)
	writeField(&b, "Created At", data.CreatedAt.Format("2006-01-02 15:04:05"))
	writeField(&b, "Records", fmt.Sprintf("%d", data.Records))
	b.WriteString(renderCategories(data.Categories))
	b.WriteString(m.renderRows(data.Rows))

	return BoxStyle.Render(b.String())
}

func (m InspectModel) renderInspectTraceDB() string {
	data, ok := m.data.(*reader.DBView)
	if !ok {
		return "Invalid data type for inspect_tracedb"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Trace Database"))
	b.WriteString("\n\n")

	writeField(&b, "Path", data.Path)
	writeField(&b, "Run ID", data.RunID)
	writeField(&b, "Records", fmt.Sprintf("%d", data.Records))
	b.WriteString(renderCategories(data.Categories))
	b.WriteString(m.renderRows(data.Rows))

	return BoxStyle.Render(b.String())
}

func (m InspectModel) renderInspectReport() string {
	data, ok := m.data.(*reader.ReportView)
	if !ok {
		return "Invalid data type for inspect_report"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Run Report"))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Status:"),
		StateStyle(data.Status).Render(data.Status)))
	if data.Message != "" {
		writeField(&b, "Message", data.Message)
	}
	writeField(&b, "Run ID", data.RunID)
	writeField(&b, "Input", data.Input)
	if data.Source != "" {
		writeField(&b, "Source", data.Source)
	}
	writeField(&b, "Completed At", data.CompletedAt)
	writeField(&b, "Policy", data.Policy)
	writeField(&b, "Storage", data.StorageBackend)

	c := data.Counters
	b.WriteString("\n")
	b.WriteString(renderCategories(map[string]int64{
		"good":       c.DecodedGood,
		"empty":      c.DecodedEmpty,
		"incomplete": c.DecodedIncomplete,
		"unknown":    c.DecodedUnknown,
	}))
	writeField(&b, "Instructions", fmt.Sprintf("%d", c.Instructions))
	writeField(&b, "Records", fmt.Sprintf("%d received, %d persisted, %d dropped",
		c.RecordsReceived, c.RecordsPersisted, c.RecordsDropped))
	writeField(&b, "Writes", fmt.Sprintf("%d ok, %d failed", c.StorageWriteSuccess, c.StorageWriteFailure))

	if len(data.Backlog) > 0 {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Backlog"))
		b.WriteString("\n")
		for _, line := range data.Backlog {
			b.WriteString(fmt.Sprintf("  %s\n", ValueStyle.Render(line)))
		}
	}

	return BoxStyle.Render(b.String())
}

func (m InspectModel) renderRows(rows []reader.TraceRow) string {
	if len(rows) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(TitleStyle.Render("Instructions"))
	b.WriteString("\n")

	start := min(m.scroll, len(rows)-1)
	end := min(start+m.visibleRows(), len(rows))
	for _, r := range rows[start:end] {
		b.WriteString(fmt.Sprintf("%5d %s %s\n",
			r.Seq,
			LabelStyle.Width(12).Render(r.Offset),
			CategoryStyle(r.Category).Render(r.Text)))
	}
	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render(label+":"),
		ValueStyle.Render(value)))
}

func renderCategories(counts map[string]int64) string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, CategoryStyle(name).Render(fmt.Sprintf("%s=%d", name, counts[name])))
	}
	return fmt.Sprintf("%s %s\n", LabelStyle.Render("Categories:"), strings.Join(parts, " "))
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
	Up   key.Binding
	Down key.Binding
	Next key.Binding
	Prev key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "scroll up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "scroll down"),
	),
	Next: key.NewBinding(
		key.WithKeys("tab", "right", "l"),
		key.WithHelp("tab", "next"),
	),
	Prev: key.NewBinding(
		key.WithKeys("shift+tab", "left", "h"),
		key.WithHelp("shift+tab", "previous"),
	),
}

// RunInspectTUI runs the inspect TUI.
func RunInspectTUI(viewType string, data any) error {
	model := NewInspectModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderInspectStatic renders inspect data without full TUI (for fallback).
func RenderInspectStatic(viewType string, data any) string {
	model := NewInspectModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
