package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	gojson "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/thegridelectric/gridworks-debug-cli/internal/bus"
	"github.com/thegridelectric/gridworks-debug-cli/internal/config"
	"github.com/thegridelectric/gridworks-debug-cli/internal/events"
	"github.com/thegridelectric/gridworks-debug-cli/internal/logging"
	"github.com/thegridelectric/gridworks-debug-cli/internal/mqttsource"
	"github.com/thegridelectric/gridworks-debug-cli/internal/s3source"
	"github.com/thegridelectric/gridworks-debug-cli/internal/store"
	"github.com/thegridelectric/gridworks-debug-cli/internal/supervisor"
	"github.com/thegridelectric/gridworks-debug-cli/internal/tui"
)

func newEventsShowCmd() *cobra.Command {
	var readOnly bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Live display of events from MQTT and the S3 archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadEvents(eventsConfigPath(cmd))
			if err != nil {
				return err
			}
			if err := cfg.Paths.MkDirs(); err != nil {
				return err
			}
			return runShow(cmd, cfg, readOnly)
		},
	}
	cmd.Flags().BoolVar(&readOnly, "read-only", false, "Display events without writing the local store or snapshots")
	return cmd
}

func runShow(cmd *cobra.Command, cfg *config.EventsConfig, readOnly bool) error {
	// The TUI owns the terminal; logs go to events.log as JSON.
	logFile, err := os.OpenFile(cfg.Paths.LogPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer logFile.Close()
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: "json", Output: logFile})

	st, err := store.Open(store.Config{Path: cfg.Paths.StorePath()})
	if err != nil {
		return err
	}
	defer st.Close()

	b := bus.New()
	defer b.Close()

	seed, err := st.Scan(store.ScanOptions{Limit: cfg.TUI.DisplayedEvents, Tail: true})
	if err != nil {
		return err
	}

	model := tui.NewModel(cfg, st, tui.Options{
		ReadOnly:        readOnly,
		PersistSnapshot: snapshotWriter(cfg.Paths),
	})
	model.Seed(seed)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithOutput(cmd.OutOrStdout()))

	runCtx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Subscribe before the sources start so nothing published during
	// startup is dropped.
	pump, err := tui.NewPump(runCtx, b, program)
	if err != nil {
		return err
	}

	tree := supervisor.NewTree(supervisor.DefaultTreeConfig())
	tree.Add(pump)
	tree.AddSource(mqttsource.New(cfg.MQTT, b))
	if cfg.Sync.S3.Bucket != "" {
		archive, err := s3source.NewArchive(runCtx, cfg.Sync.S3)
		if err != nil {
			return fmt.Errorf("s3 archive: %w", err)
		}
		tree.AddSource(s3source.NewSyncer(archive, st, b, cfg.Sync))
	} else {
		logging.Warn().Msg("no s3 bucket configured, skipping archive sync")
	}
	treeErr := tree.ServeBackground(runCtx)

	_, runErr := program.Run()
	cancel()
	select {
	case <-treeErr:
	case <-time.After(5 * time.Second):
		logging.Warn().Msg("supervisor tree did not stop in time")
	}
	return runErr
}

// snapshotWriter persists replaced snapshots under the snap dir.
func snapshotWriter(paths config.Paths) func(*events.Snapshot) error {
	return func(snap *events.Snapshot) error {
		data, err := gojson.MarshalIndent(snap, "", "  ")
		if err != nil {
			return err
		}
		return os.WriteFile(paths.SnapPath(snap.FromGNodeAlias), append(data, '\n'), 0o644)
	}
}
