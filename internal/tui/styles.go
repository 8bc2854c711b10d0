package tui

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

var (
	colorAccent  = lipgloss.Color("36")
	colorMuted   = lipgloss.Color("240")
	colorOK      = lipgloss.Color("42")
	colorWarn    = lipgloss.Color("214")
	colorFail    = lipgloss.Color("196")
	colorHeading = lipgloss.Color("39")
)

// Styles groups the lipgloss styles used by the live display.
type Styles struct {
	Title     lipgloss.Style
	Status    lipgloss.Style
	Panel     lipgloss.Style
	PanelHead lipgloss.Style
	SyncRun   lipgloss.Style
	SyncDone  lipgloss.Style
	SyncFail  lipgloss.Style
	Muted     lipgloss.Style
	Help      lipgloss.Style
}

// DefaultStyles returns the gwd color scheme.
func DefaultStyles() Styles {
	return Styles{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(colorHeading),
		Status:    lipgloss.NewStyle().Foreground(colorAccent),
		Panel:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorMuted).Padding(0, 1),
		PanelHead: lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
		SyncRun:   lipgloss.NewStyle().Foreground(colorWarn),
		SyncDone:  lipgloss.NewStyle().Foreground(colorOK),
		SyncFail:  lipgloss.NewStyle().Foreground(colorFail),
		Muted:     lipgloss.NewStyle().Foreground(colorMuted),
		Help:      lipgloss.NewStyle().Foreground(colorMuted),
	}
}

func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorMuted).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	return s
}
