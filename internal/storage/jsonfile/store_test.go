package jsonfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/julianstephens/rocky/internal/backup"
	"github.com/julianstephens/rocky/internal/models"
)

const emptyDoc = `{"version":1,"days":[],"goals":[]}`

func compact(t *testing.T, raw []byte) string {
	t.Helper()
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("not JSON: %v (%s)", err, raw)
	}
	out, _ := json.Marshal(v)
	return string(out)
}

func TestLoadMissingFileCreatesEmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rocky.json")
	store := New(path)

	raw, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := compact(t, raw); got != `{"days":[],"goals":[],"version":1}` {
		t.Errorf("unexpected document %s", got)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("data file was not created: %v", err)
	}
}

func TestSaveWritesPrettyJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rocky.json")
	store := New(path)

	doc := models.NewDocument()
	doc.Goals = append(doc.Goals, models.Goal{ID: "g1", Title: "Walk", StartDate: "2025-01-01"})
	if err := store.Save(context.Background(), doc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "\n  \"goals\": [") {
		t.Errorf("expected indented output, got %s", data)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestSaveTakesPeriodicBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rocky.json")
	now := time.Unix(1_700_000_000, 0)
	store := New(path, backup.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	if err := store.Save(ctx, json.RawMessage(emptyDoc)); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, json.RawMessage(emptyDoc)); err != nil {
		t.Fatal(err)
	}
	now = now.Add(time.Hour)
	if err := store.Save(ctx, json.RawMessage(emptyDoc)); err != nil {
		t.Fatal(err)
	}

	backups, err := store.Backups().ListBackups()
	if err != nil {
		t.Fatal(err)
	}
	// The first save has no file to back up; the second creates one; the
	// third is inside the interval.
	if len(backups) != 1 {
		t.Errorf("expected 1 backup, got %d", len(backups))
	}
}

func TestLoadCorruptFileFallsBackToBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rocky.json")
	store := New(path)
	ctx := context.Background()

	good := `{"version":1,"days":[{"date":"2025-01-02","text":"kept","color":"green"}],"goals":[]}`
	if err := os.WriteFile(path, []byte(good), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Backups().CreateBackup(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	raw, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !strings.Contains(string(raw), "kept") {
		t.Errorf("expected backup contents, got %s", raw)
	}
}

func TestLoadCorruptFileWithoutBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rocky.json")
	if err := os.WriteFile(path, []byte("garbage"), 0600); err != nil {
		t.Fatal(err)
	}

	raw, err := New(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := compact(t, raw); got != `{"days":[],"goals":[],"version":1}` {
		t.Errorf("expected empty document, got %s", got)
	}
}

func TestInitKeepsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rocky.json")
	if err := os.WriteFile(path, []byte(`{"version":1,"days":[],"goals":[{"id":"x"}]}`), 0600); err != nil {
		t.Fatal(err)
	}
	if err := New(path).Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"x"`) {
		t.Error("Init overwrote existing data")
	}
}
