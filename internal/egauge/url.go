// Package egauge downloads register data straight from an eGauge meter's
// CGI endpoint into CSV files.
package egauge

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/thegridelectric/gridworks-debug-cli/internal/config"
)

// BuildURL assembles one egauge-show request. The flag parameters (c,
// S, E, C, Z) are bare keys the CGI endpoint expects without values, so
// the query string is built by hand rather than with url.Values.
//
//	c   CSV output
//	S   seconds resolution
//	E   timestamps relative to the unix epoch
//	C   delta-compressed rows
//	Z=  meter-local timezone
//
// s is the row period minus one, n the row count plus one (the first
// row anchors the deltas), f the timestamp of the newest row.
func BuildURL(cfg config.EgaugeConfig, egaugeID string, end time.Time, periodSeconds, rows int) string {
	base := strings.ReplaceAll(cfg.URLFormat, "{egauge_id}", egaugeID)
	query := "c&S"
	if cfg.RelativeToEpoch {
		query += "&E"
	}
	if cfg.DeltaCompressed {
		query += "&C"
	}
	if cfg.Localtime {
		query += "&Z="
	}
	query += fmt.Sprintf("&s=%d&n=%d&f=%d", periodSeconds-1, rows+1, end.Unix())
	return base + "?" + query
}

// timeForFilename renders a timestamp the way download filenames want
// it: no colons, no spaces.
func timeForFilename(t time.Time) string {
	return t.Format("2006-01-02_15.04.05")
}

// CSVFileName names one download: <scada>__<start>__to__<end>__<type>.csv.
func CSVFileName(scada string, start, end time.Time, dataType string) string {
	return fmt.Sprintf("%s__%s__to__%s__%s.csv",
		scada, timeForFilename(start), timeForFilename(end), dataType)
}

// CSVPath places the download under <dataDir>/<scada>/.
func CSVPath(dataDir, scada string, start, end time.Time, dataType string) string {
	return filepath.Join(dataDir, scada, CSVFileName(scada, start, end, dataType))
}
