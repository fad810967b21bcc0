package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/julianstephens/rocky/internal/cli"
	"github.com/julianstephens/rocky/internal/config"
	"github.com/julianstephens/rocky/internal/constants"
)

const fixture = `{
  "version": 1,
  "goals": [
    {"id": "g_read", "title": "Read", "startDate": "2025-03-06"},
    {"id": "g_old", "title": "Old", "startDate": "2025-01-01", "completedAt": "2025-01-31"}
  ],
  "days": [
    {"date": "2025-03-07", "text": "Nice walk", "color": "green", "completedGoals": ["g_read"]},
    {"date": "2025-03-08", "text": "Meh", "color": "yellow", "diaryEntry": "Rained all day."},
    {"date": "2025-03-09", "text": "Rough\nsecond line", "color": "red", "completedGoals": ["g_read"]},
    {"date": "2025-03-10", "text": "", "color": "neutral", "completedGoals": ["g_read"]}
  ]
}`

func setupTestContext(t *testing.T) (*cli.Context, *bytes.Buffer, string) {
	t.Helper()
	t.Setenv(constants.EnvStorage, "")
	t.Setenv(constants.EnvDBConnection, "")

	dir := t.TempDir()
	path := filepath.Join(dir, constants.ConfigFileName)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, constants.DefaultDataFile), []byte(fixture), 0600); err != nil {
		t.Fatal(err)
	}
	ctx := cli.NewContext(context.Background(), cfg, path)
	out := &bytes.Buffer{}
	ctx.Out = out
	ctx.Now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.Local) }
	t.Cleanup(func() { _ = ctx.Close() })
	return ctx, out, dir
}

func TestStatsCmd(t *testing.T) {
	ctx, out, _ := setupTestContext(t)

	if err := (&StatsCmd{}).Run(ctx); err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	got := out.String()
	for _, want := range []string{
		"Year 2025",
		"Entries:  4",
		"Missing:  65",
		"green 1, yellow 1, red 1, neutral 1",
		"Read",
		"3/5",
		"streak 2",
		"[archived]",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("stats output missing %q:\n%s", want, got)
		}
	}
}

func TestStatsCmdJSON(t *testing.T) {
	ctx, out, _ := setupTestContext(t)

	if err := (&StatsCmd{Year: 2025, JSON: true}).Run(ctx); err != nil {
		t.Fatal(err)
	}
	var report yearReport
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if report.Entries != 4 || report.Colors.Green != 1 || len(report.Goals) != 2 {
		t.Errorf("unexpected report: %+v", report)
	}
	if report.Goals[0].ID != "g_read" || report.Goals[0].Done != 3 || report.Goals[0].Eligible != 5 {
		t.Errorf("unexpected goal report: %+v", report.Goals[0])
	}
	if !report.Goals[1].Archived || report.Goals[1].Done != 0 || report.Goals[1].Eligible != 31 {
		t.Errorf("unexpected archived goal report: %+v", report.Goals[1])
	}
}

func TestStatsCmdRejectsYear(t *testing.T) {
	ctx, _, _ := setupTestContext(t)
	if err := (&StatsCmd{Year: 2024}).Run(ctx); err == nil {
		t.Error("expected error for a year before tracking began")
	}
}

func TestExportICSToStdout(t *testing.T) {
	ctx, out, _ := setupTestContext(t)

	if err := (&ExportICSCmd{Output: "-"}).Run(ctx); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	got := out.String()
	if n := strings.Count(got, "BEGIN:VEVENT"); n != 4 {
		t.Errorf("expected 4 events, got %d", n)
	}
	for _, want := range []string{"BEGIN:VCALENDAR", "DTSTART;VALUE=DATE:20250307", "SUMMARY:Good day: Nice walk", "SUMMARY:Hard day: Rough"} {
		if !strings.Contains(got, want) {
			t.Errorf("feed missing %q", want)
		}
	}
}

func TestExportICSToFile(t *testing.T) {
	ctx, out, dir := setupTestContext(t)
	target := filepath.Join(dir, "rocky.ics")

	if err := (&ExportICSCmd{Output: target, Year: 2025}).Run(ctx); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !strings.Contains(out.String(), "Exported 4 day(s)") {
		t.Errorf("unexpected output: %q", out.String())
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "BEGIN:VCALENDAR") {
		t.Errorf("file is not an iCalendar feed:\n%s", data)
	}
}
