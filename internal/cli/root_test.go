package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/julianstephens/rocky/internal/config"
	"github.com/julianstephens/rocky/internal/constants"
	"github.com/julianstephens/rocky/internal/models"
	"github.com/julianstephens/rocky/internal/session"
)

func setupTestContext(t *testing.T) (*Context, string) {
	t.Helper()
	t.Setenv(constants.EnvStorage, "")
	t.Setenv(constants.EnvDBConnection, "")
	t.Setenv(constants.EnvTimezone, "")

	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, constants.ConfigFileName))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	ctx := NewContext(context.Background(), cfg, filepath.Join(dir, constants.ConfigFileName))
	ctx.Now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.Local) }
	t.Cleanup(func() { _ = ctx.Close() })
	return ctx, dir
}

func TestParseDate(t *testing.T) {
	ctx, _ := setupTestContext(t)

	tests := []struct {
		arg     string
		want    string
		wantErr bool
	}{
		{"", "2025-03-10", false},
		{"today", "2025-03-10", false},
		{"Yesterday", "2025-03-09", false},
		{"2025-02-28", "2025-02-28", false},
		{"2025-02-30", "", true},
		{"03/10/2025", "", true},
	}
	for _, tt := range tests {
		got, err := ctx.ParseDate(tt.arg)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDate(%q) error = %v, wantErr %v", tt.arg, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDate(%q) = %q, want %q", tt.arg, got, tt.want)
		}
	}
}

func TestResolveGoal(t *testing.T) {
	doc := models.NewDocument()
	doc.Goals = []models.Goal{
		{ID: "g_1", Title: "Read", StartDate: "2025-01-01"},
		{ID: "g_2", Title: "Walk", StartDate: "2025-01-01"},
		{ID: "g_3", Title: "walk", StartDate: "2025-02-01"},
	}

	if g, err := ResolveGoal(doc, "g_2"); err != nil || g.Title != "Walk" {
		t.Errorf("by id: got %v, %v", g, err)
	}
	if g, err := ResolveGoal(doc, "READ"); err != nil || g.ID != "g_1" {
		t.Errorf("by title: got %v, %v", g, err)
	}
	if _, err := ResolveGoal(doc, "walk"); err == nil || !strings.Contains(err.Error(), "matches 2 goals") {
		t.Errorf("ambiguous title: got %v", err)
	}
	if _, err := ResolveGoal(doc, "swim"); !errors.Is(err, session.ErrUnknownGoal) {
		t.Errorf("unknown goal: got %v", err)
	}
}

func TestSessionRejectsInvalidDocument(t *testing.T) {
	ctx, dir := setupTestContext(t)
	bad := `{"version":1,"days":[{"date":"not-a-date","text":"x","color":"green"}],"goals":[]}`
	if err := os.WriteFile(filepath.Join(dir, constants.DefaultDataFile), []byte(bad), 0600); err != nil {
		t.Fatal(err)
	}

	if _, _, err := ctx.Session(); err == nil || !strings.Contains(err.Error(), "stored document is invalid") {
		t.Fatalf("Session() error = %v, want invalid document error", err)
	}

	sess, report, err := ctx.LenientSession()
	if err != nil {
		t.Fatalf("LenientSession() error = %v", err)
	}
	if !report.Fallback {
		t.Error("expected fallback report")
	}
	if !sess.Document().IsEmpty() {
		t.Error("expected empty document after fallback")
	}
}

func TestCommitPersists(t *testing.T) {
	ctx, dir := setupTestContext(t)
	sess, _, err := ctx.Session()
	if err != nil {
		t.Fatal(err)
	}
	text := "hello"
	if err := sess.UpsertDay("2025-03-10", session.DayPatch{Text: &text}); err != nil {
		t.Fatal(err)
	}
	if err := ctx.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, constants.DefaultDataFile))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"hello"`) {
		t.Errorf("data file does not contain the entry: %s", data)
	}
}
