// Package tui renders the live event display: a scrolling event table
// fed by MQTT and the archive sync, sync progress per day directory,
// and pinned snapshot panels for selected sources.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/thegridelectric/gridworks-debug-cli/internal/config"
	"github.com/thegridelectric/gridworks-debug-cli/internal/events"
	"github.com/thegridelectric/gridworks-debug-cli/internal/store"
)

// EventMsg carries one operational event into the display.
type EventMsg struct{ Event *events.AnyEvent }

// LifecycleMsg carries one debug-cli lifecycle event (sync progress,
// MQTT connection changes).
type LifecycleMsg struct{ Event *events.AnyEvent }

// SnapshotMsg carries a spaceheat snapshot.
type SnapshotMsg struct{ Snapshot *events.Snapshot }

type tickMsg time.Time

type flushMsg time.Time

// Noisy periodic types hidden unless verbosity is raised.
var noisyTypePrefixes = []string{
	"gridworks.event.gt.sh.status",
	"gridworks.event.report",
	"gridworks.event.snapshot.spaceheat",
}

type syncState struct {
	key      string
	started  time.Time
	finished time.Time
	done     bool
	failed   bool
	fetched  int
	skipped  int
}

// Options adjusts display behavior.
type Options struct {
	// ReadOnly disables store writes and snapshot persistence.
	ReadOnly bool
	// PersistSnapshot is called for snapshots that replace the cached
	// one. Ignored when ReadOnly.
	PersistSnapshot func(*events.Snapshot) error
}

// Model is the bubbletea model for gwd events show.
type Model struct {
	cfg       config.TUIConfig
	verbosity int
	snaps     []string
	opts      Options

	store  *store.Store
	styles Styles
	table  table.Model

	recent    []*events.AnyEvent
	pending   []*events.AnyEvent
	syncs     []*syncState
	syncIndex map[string]*syncState
	snapshots map[string]*events.Snapshot

	seen       int
	hidden     int
	flushed    int
	flushErr   error
	mqttStatus string
	width      int
}

// NewModel builds the display. Store writes are batched and flushed
// every flush_seconds unless opts.ReadOnly is set.
func NewModel(cfg *config.EventsConfig, st *store.Store, opts Options) Model {
	t := table.New(
		table.WithColumns(eventColumns(cfg.TUI.MaxSummaryWidth)),
		table.WithFocused(true),
		table.WithHeight(cfg.TUI.DisplayedEvents),
		table.WithStyles(tableStyles()),
	)
	return Model{
		cfg:        cfg.TUI,
		verbosity:  cfg.Verbosity,
		snaps:      cfg.Snaps,
		opts:       opts,
		store:      st,
		styles:     DefaultStyles(),
		table:      t,
		syncIndex:  map[string]*syncState{},
		snapshots:  map[string]*events.Snapshot{},
		mqttStatus: "connecting",
	}
}

func eventColumns(summaryWidth int) []table.Column {
	return []table.Column{
		{Title: "Time", Width: 19},
		{Title: "Type", Width: 26},
		{Title: "Src", Width: 26},
		{Title: "Summary", Width: summaryWidth},
	}
}

// Seed preloads events already cached locally, oldest first.
func (m *Model) Seed(seed []*events.AnyEvent) {
	for _, event := range seed {
		if m.visible(event.TypeName) {
			m.recent = append(m.recent, event)
		}
	}
	m.trimRecent()
	m.refreshRows()
}

// Init schedules the render and flush tickers.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.tickCmd()}
	if !m.opts.ReadOnly {
		cmds = append(cmds, m.flushCmd())
	}
	return tea.Batch(cmds...)
}

func (m Model) tickCmd() tea.Cmd {
	interval := time.Second / time.Duration(m.cfg.UpdatesPerSecond)
	return tea.Tick(interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) flushCmd() tea.Cmd {
	interval := time.Duration(m.cfg.FlushSeconds) * time.Second
	return tea.Tick(interval, func(t time.Time) tea.Msg { return flushMsg(t) })
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.flush()
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case EventMsg:
		m.handleEvent(msg.Event)
		return m, nil
	case LifecycleMsg:
		m.handleLifecycle(msg.Event)
		return m, nil
	case SnapshotMsg:
		m.handleSnapshot(msg.Snapshot)
		return m, nil
	case tickMsg:
		m.refreshRows()
		return m, m.tickCmd()
	case flushMsg:
		m.flush()
		return m, m.flushCmd()
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) handleEvent(event *events.AnyEvent) {
	m.seen++
	if !m.opts.ReadOnly {
		m.pending = append(m.pending, event)
	}
	if !m.visible(event.TypeName) {
		m.hidden++
		return
	}
	m.recent = append(m.recent, event)
	m.trimRecent()
}

func (m *Model) handleLifecycle(event *events.AnyEvent) {
	switch event.TypeName {
	case events.TypeSyncStart:
		state := &syncState{key: event.SyncedKey(), started: event.Time()}
		m.syncs = append(m.syncs, state)
		m.syncIndex[state.key] = state
	case events.TypeSyncComplete, events.TypeSyncFailed:
		state := m.syncIndex[event.SyncedKey()]
		if state == nil {
			return
		}
		state.done = true
		state.finished = time.Now()
		state.failed = event.TypeName == events.TypeSyncFailed
		state.fetched, _ = intField(event, "Fetched")
		state.skipped, _ = intField(event, "Skipped")
	case events.TypeMQTTSubscribed:
		m.mqttStatus = "subscribed"
	case events.TypeMQTTConnLost:
		m.mqttStatus = "reconnecting"
	}
	if m.visible(event.TypeName) {
		m.recent = append(m.recent, event)
		m.trimRecent()
	}
}

func (m *Model) handleSnapshot(snap *events.Snapshot) {
	prev := m.snapshots[snap.FromGNodeAlias]
	if !snap.NewerThan(prev) {
		return
	}
	m.snapshots[snap.FromGNodeAlias] = snap
	if !m.opts.ReadOnly && m.opts.PersistSnapshot != nil {
		if err := m.opts.PersistSnapshot(snap); err != nil {
			m.flushErr = err
		}
	}
}

func (m *Model) flush() {
	if m.opts.ReadOnly || len(m.pending) == 0 {
		return
	}
	stats, err := m.store.PutAll(m.pending)
	if err != nil {
		m.flushErr = err
		return
	}
	m.flushErr = nil
	m.flushed += stats.Inserted
	m.pending = m.pending[:0]
}

func (m *Model) visible(typeName string) bool {
	if m.verbosity >= 1 {
		return true
	}
	for _, prefix := range noisyTypePrefixes {
		if strings.HasPrefix(typeName, prefix) {
			return false
		}
	}
	return true
}

func (m *Model) trimRecent() {
	if extra := len(m.recent) - m.cfg.DisplayedEvents; extra > 0 {
		m.recent = m.recent[extra:]
	}
}

func (m *Model) refreshRows() {
	rows := make([]table.Row, 0, len(m.recent))
	// Newest at the top.
	for i := len(m.recent) - 1; i >= 0; i-- {
		event := m.recent[i]
		rows = append(rows, table.Row{
			event.Time().Format("2006-01-02 15:04:05"),
			displayType(event),
			event.Src,
			truncate(event.Summary(), m.cfg.MaxSummaryWidth),
		})
	}
	m.table.SetRows(rows)
}

func displayType(event *events.AnyEvent) string {
	if event.IsLifecycle() {
		return event.DisplayLifecycleType()
	}
	return event.DisplayType()
}

func truncate(s string, width int) string {
	if width <= 0 || len(s) <= width {
		return s
	}
	if width <= 3 {
		return s[:width]
	}
	return s[:width-3] + "..."
}

func intField(event *events.AnyEvent, name string) (int, bool) {
	switch v := event.Other[name].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	}
	return 0, false
}

// View renders the full display.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")
	if panel := m.syncView(); panel != "" {
		b.WriteString(panel)
		b.WriteString("\n")
	}
	if panels := m.snapshotView(); panels != "" {
		b.WriteString(panels)
		b.WriteString("\n")
	}
	b.WriteString(m.styles.Help.Render("q quit · arrows scroll"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) headerView() string {
	status := fmt.Sprintf("%d received · %d hidden · %d stored · mqtt %s",
		m.seen, m.hidden, m.flushed, m.mqttStatus)
	if m.opts.ReadOnly {
		status += " · read-only"
	}
	if m.flushErr != nil {
		status += " · " + m.styles.SyncFail.Render(m.flushErr.Error())
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		m.styles.Title.Render("Gridworks Events"),
		m.styles.Muted.Render("  "),
		m.styles.Status.Render(status),
	)
}

func (m Model) syncView() string {
	if len(m.syncs) == 0 {
		return ""
	}
	lines := make([]string, 0, len(m.syncs)+1)
	lines = append(lines, m.styles.PanelHead.Render("Archive sync"))
	for _, state := range m.syncs {
		lines = append(lines, m.syncLine(state))
	}
	return m.styles.Panel.Render(strings.Join(lines, "\n"))
}

func (m Model) syncLine(state *syncState) string {
	switch {
	case state.failed:
		return m.styles.SyncFail.Render(fmt.Sprintf("✗ %s", state.key))
	case state.done:
		return m.styles.SyncDone.Render(fmt.Sprintf("✔ %s  %d fetched, %d cached  (%.1fs)",
			state.key, state.fetched, state.skipped,
			state.finished.Sub(state.started).Seconds()))
	default:
		return m.styles.SyncRun.Render(fmt.Sprintf("… %s  %.0fs",
			state.key, time.Since(state.started).Seconds()))
	}
}

func (m Model) snapshotView() string {
	if len(m.snaps) == 0 {
		return ""
	}
	panels := make([]string, 0, len(m.snaps))
	for _, substr := range m.snaps {
		panels = append(panels, m.styles.Panel.Render(m.snapshotPanel(substr, m.snapshotFor(substr))))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, panels...)
}

// snapshotFor picks the cached snapshot pinned by one configured entry.
// Entries are substrings of source aliases; when several sources match,
// the most recently reported one wins.
func (m Model) snapshotFor(substr string) *events.Snapshot {
	var best *events.Snapshot
	for alias, snap := range m.snapshots {
		if strings.Contains(alias, substr) && snap.NewerThan(best) {
			best = snap
		}
	}
	return best
}

func (m Model) snapshotPanel(substr string, snap *events.Snapshot) string {
	head := substr
	if snap != nil {
		head = snap.FromGNodeAlias
	}
	lines := []string{m.styles.PanelHead.Render(head)}
	if snap == nil {
		lines = append(lines, m.styles.Muted.Render("no snapshot yet"))
		return strings.Join(lines, "\n")
	}
	lines = append(lines, m.styles.Muted.Render(
		time.UnixMilli(snap.SnapshotTimeUnixMs).UTC().Format("2006-01-02 15:04:05")))
	readings := append([]events.Reading(nil), snap.LatestReadingList...)
	sort.Slice(readings, func(i, j int) bool {
		return readings[i].ChannelName < readings[j].ChannelName
	})
	for _, r := range readings {
		lines = append(lines, fmt.Sprintf("%-24s %d", r.ChannelName, r.Value))
	}
	return strings.Join(lines, "\n")
}
