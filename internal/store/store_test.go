package store

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/thegridelectric/gridworks-debug-cli/internal/events"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testEvent(id string, timeMs int64, src string) *events.AnyEvent {
	return &events.AnyEvent{
		TypeName:      "gridworks.event.startup",
		MessageID:     id,
		TimeCreatedMs: timeMs,
		Src:           src,
		Other:         map[string]any{"CleanShutdown": true},
	}
}

func TestPutDedupes(t *testing.T) {
	s := openTestStore(t)

	inserted, err := s.Put(testEvent("id-1", 1000, "apple.scada"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !inserted {
		t.Error("first Put reported duplicate")
	}

	inserted, err = s.Put(testEvent("id-1", 1000, "apple.scada"))
	if err != nil {
		t.Fatalf("second Put: %v", err)
	}
	if inserted {
		t.Error("duplicate Put reported insertion")
	}

	count, err := s.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Count = %d, want 1", count)
	}

	has, err := s.Has("id-1")
	if err != nil {
		t.Fatal(err)
	}
	if !has {
		t.Error("Has(id-1) = false")
	}
	has, err = s.Has("absent")
	if err != nil {
		t.Fatal(err)
	}
	if has {
		t.Error("Has(absent) = true")
	}
}

func TestPutRejectsInvalid(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Put(&events.AnyEvent{TypeName: "gridworks.event.startup"}); err == nil {
		t.Error("expected validation error for event without MessageId")
	}
}

func TestScanOrderAndFilters(t *testing.T) {
	s := openTestStore(t)
	// Insert out of time order.
	for _, e := range []*events.AnyEvent{
		testEvent("id-3", 3000, "apple.scada"),
		testEvent("id-1", 1000, "apple.scada"),
		testEvent("id-2", 2000, "pear.scada"),
	} {
		if _, err := s.Put(e); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.Scan(ScanOptions{})
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, e := range all {
		ids = append(ids, e.MessageID)
	}
	if strings.Join(ids, ",") != "id-1,id-2,id-3" {
		t.Errorf("scan order = %v", ids)
	}

	since, err := s.Scan(ScanOptions{Since: time.UnixMilli(2000)})
	if err != nil {
		t.Fatal(err)
	}
	if len(since) != 2 || since[0].MessageID != "id-2" {
		t.Errorf("since filter returned %d events", len(since))
	}

	bySrc, err := s.Scan(ScanOptions{Src: "pear"})
	if err != nil {
		t.Fatal(err)
	}
	if len(bySrc) != 1 || bySrc[0].MessageID != "id-2" {
		t.Errorf("src filter returned %+v", bySrc)
	}

	head, err := s.Scan(ScanOptions{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(head) != 2 || head[1].MessageID != "id-2" {
		t.Errorf("limit head = %+v", head)
	}

	tail, err := s.Scan(ScanOptions{Limit: 2, Tail: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(tail) != 2 || tail[1].MessageID != "id-3" {
		t.Errorf("limit tail = %+v", tail)
	}
}

func TestScanPreservesOtherFields(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Put(testEvent("id-1", 1000, "apple.scada")); err != nil {
		t.Fatal(err)
	}
	got, err := s.Scan(ScanOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].Other["CleanShutdown"] != true {
		t.Errorf("Other = %v", got[0].Other)
	}
}

func TestExportCSV(t *testing.T) {
	s := openTestStore(t)
	for i := 1; i <= 3; i++ {
		e := testEvent(fmt.Sprintf("id-%d", i), int64(i*1000), "apple.scada")
		if _, err := s.Put(e); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	n, err := s.ExportCSV(&buf, ScanOptions{})
	if err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	if n != 3 {
		t.Errorf("exported %d rows, want 3", n)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse exported csv: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("csv rows = %d, want header + 3", len(records))
	}
	if strings.Join(records[0], ",") != strings.Join(CSVHeader, ",") {
		t.Errorf("header = %v", records[0])
	}
	if records[1][1] != "id-1" || records[3][1] != "id-3" {
		t.Errorf("rows out of order: %v", records)
	}
	if _, err := time.Parse(time.RFC3339Nano, records[1][0]); err != nil {
		t.Errorf("time column not RFC3339Nano: %v", err)
	}
}

func TestImportDir(t *testing.T) {
	s := openTestStore(t)
	dir := t.TempDir()
	day := filepath.Join(dir, "20230310")
	if err := os.MkdirAll(day, 0o755); err != nil {
		t.Fatal(err)
	}
	for i, id := range []string{"id-a", "id-b", "id-a"} {
		body := fmt.Sprintf(`{"TypeName": "gridworks.event.startup", "MessageId": %q, "TimeCreatedMs": %d, "Src": "s"}`,
			id, 1000+i)
		if err := os.WriteFile(filepath.Join(day, fmt.Sprintf("%d.json", i)), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := s.ImportDir(dir, false)
	if err != nil {
		t.Fatalf("ImportDir: %v", err)
	}
	if stats.Inserted != 2 {
		t.Errorf("Inserted = %d, want 2", stats.Inserted)
	}

	// Re-import: everything is a duplicate now.
	stats, err = s.ImportDir(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Inserted != 0 || stats.Duplicates != 2 {
		t.Errorf("re-import stats = %+v", stats)
	}
}

func TestClosedStore(t *testing.T) {
	s, err := Open(Config{Path: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Put(testEvent("id-1", 1, "s")); err != ErrClosed {
		t.Errorf("Put after close: %v, want ErrClosed", err)
	}
	if _, err := s.Scan(ScanOptions{}); err != ErrClosed {
		t.Errorf("Scan after close: %v, want ErrClosed", err)
	}
	// Close is idempotent.
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestInMemoryStore(t *testing.T) {
	s, err := Open(Config{InMemory: true})
	if err != nil {
		t.Fatalf("Open in-memory: %v", err)
	}
	defer s.Close()
	if _, err := s.Put(testEvent("id-1", 1000, "s")); err != nil {
		t.Fatal(err)
	}
	count, err := s.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Count = %d", count)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Error("expected error for empty path")
	}
}
