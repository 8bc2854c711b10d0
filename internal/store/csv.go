package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/thegridelectric/gridworks-debug-cli/internal/events"
)

// CSVHeader is the stable column order of every CSV export.
var CSVHeader = []string{"TimeCreatedMs", "MessageId", "Src", "TypeName", "Summary"}

// ExportCSV writes matching events as CSV, rows time-ascending.
func (s *Store) ExportCSV(w io.Writer, opts ScanOptions) (int, error) {
	matched, err := s.Scan(opts)
	if err != nil {
		return 0, err
	}
	if err := WriteCSV(w, matched); err != nil {
		return 0, err
	}
	return len(matched), nil
}

// ExportCSVFile writes matching events to a file, creating parent
// directories.
func (s *Store) ExportCSVFile(path string, opts ScanOptions) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	n, err := s.ExportCSV(f, opts)
	if err != nil {
		return 0, err
	}
	if err := f.Sync(); err != nil {
		return 0, err
	}
	return n, nil
}

// WriteCSV renders a batch of events with the standard schema.
func WriteCSV(w io.Writer, batch []*events.AnyEvent) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, event := range batch {
		row := []string{
			event.Time().Format(time.RFC3339Nano),
			event.MessageID,
			event.Src,
			event.TypeName,
			event.Summary(),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
