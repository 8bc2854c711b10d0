package cli

import (
	"fmt"
	"os"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/thegridelectric/gridworks-debug-cli/internal/config"
	"github.com/thegridelectric/gridworks-debug-cli/internal/events"
	"github.com/thegridelectric/gridworks-debug-cli/internal/store"
	"github.com/thegridelectric/gridworks-debug-cli/internal/tui"
)

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "View operational events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().String("config-path", "", "Path to the events config file")

	cmd.AddCommand(newEventsMkconfigCmd())
	cmd.AddCommand(newEventsInfoCmd())
	cmd.AddCommand(newEventsDirCmd())
	cmd.AddCommand(newEventsExportCmd())
	cmd.AddCommand(newEventsShowCmd())
	return cmd
}

func eventsConfigPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config-path")
	return path
}

func newEventsMkconfigCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "mkconfig",
		Short: "Write the default events config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultEventsConfig()
			if path := eventsConfigPath(cmd); path != "" {
				cfg.Paths.ConfigPath = path
			}
			return writeConfig(cmd, cfg.Paths, cfg, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

// writeConfig creates the sub-app directories and writes cfg as indented
// JSON, refusing to clobber an existing file unless forced.
func writeConfig(cmd *cobra.Command, paths config.Paths, cfg any, force bool) error {
	if err := paths.MkDirs(); err != nil {
		return err
	}
	if _, err := os.Stat(paths.ConfigPath); err == nil && !force {
		return fmt.Errorf("%s exists; use --force to overwrite", paths.ConfigPath)
	}
	if err := config.Write(paths.ConfigPath, cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", paths.ConfigPath)
	return nil
}

func newEventsInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print the resolved events configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadEvents(eventsConfigPath(cmd))
			if err != nil {
				return err
			}
			return printConfigInfo(cmd, cfg.Paths, cfg)
		},
	}
}

func printConfigInfo(cmd *cobra.Command, paths config.Paths, cfg any) error {
	data, err := gojson.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "config: %s\n", paths.ConfigPath)
	fmt.Fprintf(out, "data:   %s\n\n", paths.DataDir)
	fmt.Fprintf(out, "%s\n", data)
	return nil
}

func newEventsDirCmd() *cobra.Command {
	var (
		src     string
		limit   int
		csvPath string
	)
	cmd := &cobra.Command{
		Use:   "dir [DIR]",
		Short: "Show events from JSON files below a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadEvents(eventsConfigPath(cmd))
			if err != nil {
				return err
			}
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			loaded, err := events.LoadDir([]string{dir}, events.LoadDirOptions{})
			if err != nil {
				return err
			}
			loaded = filterEvents(loaded, src, limit)
			if csvPath != "" {
				f, err := os.Create(csvPath)
				if err != nil {
					return err
				}
				defer f.Close()
				if err := store.WriteCSV(f, loaded); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d events to %s\n", len(loaded), csvPath)
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.EventTable(loaded, cfg.TUI.MaxSummaryWidth))
			return nil
		},
	}
	cmd.Flags().StringVar(&src, "src", "", "Keep only events from exactly this Src")
	cmd.Flags().IntVarP(&limit, "number", "n", 0, "Keep only the first N events")
	cmd.Flags().StringVar(&csvPath, "csv", "", "Write CSV to this path instead of a table")
	return cmd
}

// filterEvents keeps events whose Src equals src exactly, then the first
// limit entries of the time-sorted result.
func filterEvents(list []*events.AnyEvent, src string, limit int) []*events.AnyEvent {
	if src != "" {
		kept := list[:0]
		for _, event := range list {
			if event.Src == src {
				kept = append(kept, event)
			}
		}
		list = kept
	}
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list
}

func newEventsExportCmd() *cobra.Command {
	var (
		src    string
		since  string
		outArg string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the local event store to CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadEvents(eventsConfigPath(cmd))
			if err != nil {
				return err
			}
			opts := store.ScanOptions{Src: src}
			if since != "" {
				opts.Since, err = parseSince(since, time.Now())
				if err != nil {
					return err
				}
			}
			st, err := store.Open(store.Config{Path: cfg.Paths.StorePath()})
			if err != nil {
				return err
			}
			defer st.Close()

			out := outArg
			if out == "" {
				out = cfg.Paths.CSVPath()
			}
			n, err := st.ExportCSVFile(out, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d events to %s\n", n, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&src, "src", "", "Keep only events whose Src contains this substring")
	cmd.Flags().StringVar(&since, "since", "", "Keep only events newer than this (2023-03-10, 36h, 2d)")
	cmd.Flags().StringVarP(&outArg, "out", "o", "", "Output path (default <data dir>/events.csv)")
	return cmd
}

// parseSince accepts an absolute date (2023-03-10), an RFC 3339 time, or
// a duration back from now (36h, 90m, 2d).
func parseSince(s string, now time.Time) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if d, err := parseDays(s); err == nil {
		return now.Add(-d), nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d), nil
	}
	return time.Time{}, fmt.Errorf("could not parse %q as a date or duration", s)
}
