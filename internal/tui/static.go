package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/thegridelectric/gridworks-debug-cli/internal/events"
)

// StaticTable renders static tabular data for non-interactive commands
// like gwd events dir.
type StaticTable struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// AddRow appends one row.
func (t *StaticTable) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Render lays the table out with per-column widths.
func (t *StaticTable) Render() string {
	styles := DefaultStyles()
	if len(t.Rows) == 0 {
		return styles.Muted.Render("no events") + "\n"
	}

	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(colorHeading).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	var b strings.Builder
	if t.Title != "" {
		b.WriteString(styles.Title.Render(t.Title))
		b.WriteString("\n")
	}
	total := 0
	for i, h := range t.Headers {
		b.WriteString(headerStyle.Width(widths[i] + 2).Render(h))
		total += widths[i] + 2
	}
	b.WriteString("\n")
	b.WriteString(styles.Muted.Render(strings.Repeat("-", total)))
	b.WriteString("\n")
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) {
				b.WriteString(cellStyle.Width(widths[i] + 2).Render(cell))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// EventTable renders a list of events oldest first.
func EventTable(list []*events.AnyEvent, maxSummaryWidth int) string {
	t := StaticTable{Headers: []string{"Time", "Type", "Src", "Summary"}}
	for _, event := range list {
		t.AddRow(
			event.Time().Format("2006-01-02 15:04:05"),
			displayType(event),
			event.Src,
			truncate(event.Summary(), maxSummaryWidth),
		)
	}
	return t.Render()
}
