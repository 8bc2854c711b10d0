package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/thegridelectric/gridworks-debug-cli/internal/config"
	"github.com/thegridelectric/gridworks-debug-cli/internal/egauge"
	"github.com/thegridelectric/gridworks-debug-cli/internal/logging"
)

func newCSVCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "csv",
		Short: "Download meter data to CSV files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().String("config-path", "", "Path to the csv config file")

	cmd.AddCommand(newCSVMkconfigCmd())
	cmd.AddCommand(newCSVInfoCmd())
	cmd.AddCommand(newEgdCmd())
	return cmd
}

func csvConfigPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config-path")
	return path
}

func newCSVMkconfigCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "mkconfig",
		Short: "Write the default csv config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultCSVConfig()
			if path := csvConfigPath(cmd); path != "" {
				cfg.Paths.ConfigPath = path
			}
			return writeConfig(cmd, cfg.Paths, cfg, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

func newCSVInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print the resolved csv configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadCSV(csvConfigPath(cmd))
			if err != nil {
				return err
			}
			return printConfigInfo(cmd, cfg.Paths, cfg)
		},
	}
}

func newEgdCmd() *cobra.Command {
	var (
		scada      string
		startArg   string
		duration   string
		yesterday  bool
		period     int
		dryRun     bool
		thirstyRun bool
	)
	cmd := &cobra.Command{
		Use:   "egd",
		Short: "Download data from an eGauge meter to a CSV file",
		Long: "Download register data straight from the meter's CGI endpoint.\n" +
			"By default downloads from last midnight to now for the default scada.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadCSV(csvConfigPath(cmd))
			if err != nil {
				return err
			}
			logging.Init(logging.Config{Level: cfg.Logging.Level, Format: "console"})

			if scada == "" {
				scada = cfg.DefaultScada
			}
			scadaCfg, ok := cfg.Scadas[scada]
			if !ok {
				return fmt.Errorf("scada %q not in configured scadas %v", scada, scadaNames(cfg))
			}

			window, err := resolveWindow(startArg, duration, yesterday, time.Now())
			if err != nil {
				return err
			}
			req := egauge.Request{
				EgaugeID:      scadaCfg.EgaugeID,
				Start:         window.start,
				End:           window.end,
				PeriodSeconds: period,
			}
			csvPath := egauge.CSVPath(cfg.Paths.DataDir, scada, window.start, window.end, "egauge")

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "eGauge download\n")
			fmt.Fprintf(out, "  scada:    %s (eGauge %s)\n", scada, scadaCfg.EgaugeID)
			fmt.Fprintf(out, "  window:   %s to %s\n",
				window.start.Format(time.RFC3339), window.end.Format(time.RFC3339))
			fmt.Fprintf(out, "  period:   %ds per row, %d rows\n", period, req.Rows())
			for _, url := range req.URLs(cfg.Egauge) {
				fmt.Fprintf(out, "  url:      %s\n", url)
			}
			fmt.Fprintf(out, "  csv:      %s\n", csvPath)

			if dryRun {
				fmt.Fprintln(out, "Dry run. Doing nothing.")
				return nil
			}
			data, err := egauge.NewDownloader(cfg.Egauge, nil).Download(cmd.Context(), req)
			if err != nil {
				return err
			}
			if thirstyRun {
				fmt.Fprintf(out, "Thirsty run. Downloaded %d bytes, not saving.\n", len(data))
				return nil
			}
			if err := os.MkdirAll(filepath.Dir(csvPath), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(csvPath, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(out, "Wrote %s\n", csvPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&scada, "gnode", "g", "", "Short name of the scada to download (default from config)")
	cmd.Flags().StringVarP(&startArg, "start", "s", "", "Start date/time in local timezone, e.g. 2023-03-01")
	cmd.Flags().StringVarP(&duration, "duration", "d", "1", "Download window, e.g. 1 (1 day) or 8h")
	cmd.Flags().BoolVarP(&yesterday, "yesterday", "y", false, "Download midnight yesterday to midnight today")
	cmd.Flags().IntVarP(&period, "period", "p", 60, "Seconds per row")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the plan and do nothing")
	cmd.Flags().BoolVar(&thirstyRun, "thirsty-run", false, "Download but do not save")
	return cmd
}

func scadaNames(cfg *config.CSVConfig) []string {
	names := make([]string, 0, len(cfg.Scadas))
	for name := range cfg.Scadas {
		names = append(names, name)
	}
	return names
}

type window struct {
	start time.Time
	end   time.Time
}

// resolveWindow turns the start/duration/yesterday flags into a concrete
// time window, clamped to now.
//
// A bare integer duration means whole days anchored at midnight: with no
// explicit start the window ends at the upcoming midnight, so "-d 2"
// covers yesterday and today. Any other duration is anchored at now.
func resolveWindow(startArg, duration string, yesterday bool, now time.Time) (window, error) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if yesterday {
		if startArg != "" || duration != "1" {
			return window{}, fmt.Errorf("--yesterday excludes --start and --duration")
		}
		return window{start: midnight.AddDate(0, 0, -1), end: midnight}, nil
	}

	d, wholeDays, err := parseDownloadDuration(duration)
	if err != nil {
		return window{}, err
	}

	var start time.Time
	if startArg != "" {
		start, err = time.ParseInLocation("2006-01-02T15:04:05", startArg, now.Location())
		if err != nil {
			start, err = time.ParseInLocation("2006-01-02", startArg, now.Location())
		}
		if err != nil {
			return window{}, fmt.Errorf("could not parse start %q", startArg)
		}
	} else if wholeDays {
		start = midnight.AddDate(0, 0, 1).Add(-d)
	} else {
		start = now.Add(-d)
	}

	end := start.Add(d)
	if end.After(now) {
		end = now
	}
	if !end.After(start) {
		return window{}, fmt.Errorf("window start %s is not before now", start.Format(time.RFC3339))
	}
	return window{start: start, end: end}, nil
}

// parseDownloadDuration accepts day counts (1, 2.5), day suffixes (2d),
// and Go durations (8h). wholeDays reports a bare integer day count.
func parseDownloadDuration(s string) (d time.Duration, wholeDays bool, err error) {
	if days, err := strconv.Atoi(s); err == nil {
		return time.Duration(days) * 24 * time.Hour, true, nil
	}
	if days, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(days * 24 * float64(time.Hour)), false, nil
	}
	if d, err := parseDays(s); err == nil {
		return d, false, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, false, nil
	}
	return 0, false, fmt.Errorf("could not parse duration %q", s)
}

// parseDays handles the "2d" form time.ParseDuration rejects.
func parseDays(s string) (time.Duration, error) {
	trimmed, found := strings.CutSuffix(s, "d")
	if !found {
		return 0, fmt.Errorf("%q has no day suffix", s)
	}
	days, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("%q has no day suffix", s)
	}
	return time.Duration(days * 24 * float64(time.Hour)), nil
}
