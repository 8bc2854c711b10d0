package events

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func writeEventFile(t *testing.T, dir, name, messageID string, timeMs int64) {
	t.Helper()
	body := fmt.Sprintf(`{
  "TypeName": "gridworks.event.startup",
  "MessageId": %q,
  "TimeCreatedMs": %d,
  "Src": "hw1.isone.me.freedom.apple.scada"
}`, messageID, timeMs)
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "20230310")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	writeEventFile(t, dir, "b.json", "id-b", 2000)
	writeEventFile(t, nested, "a.json", "id-a", 1000)
	writeEventFile(t, nested, "dup.json", "id-a", 1000)
	if err := os.WriteFile(filepath.Join(dir, "garbage.json"), []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadDir([]string{dir}, LoadDirOptions{})
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("len = %d, want 2 (deduped, garbage skipped)", len(loaded))
	}
	if loaded[0].MessageID != "id-a" || loaded[1].MessageID != "id-b" {
		t.Errorf("order = %s, %s; want time-ascending", loaded[0].MessageID, loaded[1].MessageID)
	}
}

func TestLoadDir_StrictParsing(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "garbage.json"), []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDir([]string{dir}, LoadDirOptions{StrictParsing: true}); err == nil {
		t.Fatal("expected parse error in strict mode")
	}
}

func TestLoadDir_KeepDuplicates(t *testing.T) {
	dir := t.TempDir()
	writeEventFile(t, dir, "one.json", "same-id", 1000)
	writeEventFile(t, dir, "two.json", "same-id", 1000)

	loaded, err := LoadDir([]string{dir}, LoadDirOptions{KeepDuplicates: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 2 {
		t.Fatalf("len = %d, want 2", len(loaded))
	}
}
