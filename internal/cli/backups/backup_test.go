package backups

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/julianstephens/rocky/internal/cli"
	"github.com/julianstephens/rocky/internal/config"
	"github.com/julianstephens/rocky/internal/constants"
)

const doc = `{"version":1,"days":[{"date":"2025-03-01","text":"first","color":"green"}],"goals":[]}`

func setupTestContext(t *testing.T, storage string) (*cli.Context, *bytes.Buffer, string) {
	t.Helper()
	t.Setenv(constants.EnvStorage, "")
	t.Setenv(constants.EnvDBConnection, "")

	dir := t.TempDir()
	path := filepath.Join(dir, constants.ConfigFileName)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	cfg.Storage = storage
	ctx := cli.NewContext(context.Background(), cfg, path)
	out := &bytes.Buffer{}
	ctx.Out = out
	ctx.Now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.Local) }
	t.Cleanup(func() { _ = ctx.Close() })
	return ctx, out, dir
}

func TestBackupCreateListRestore_File(t *testing.T) {
	ctx, out, dir := setupTestContext(t, "")
	dataPath := filepath.Join(dir, constants.DefaultDataFile)
	if err := os.WriteFile(dataPath, []byte(doc), 0600); err != nil {
		t.Fatal(err)
	}

	if err := (&BackupCreateCmd{}).Run(ctx); err != nil {
		t.Fatalf("backup create failed: %v", err)
	}
	if !strings.Contains(out.String(), "Backup created: "+constants.BackupFilePrefix) {
		t.Errorf("unexpected output: %q", out.String())
	}

	out.Reset()
	if err := (&BackupListCmd{}).Run(ctx); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Available backups (1 total") {
		t.Errorf("unexpected list output:\n%s", out.String())
	}

	entries, err := os.ReadDir(filepath.Join(dir, constants.BackupDirName))
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one backup file, got %v (%v)", entries, err)
	}
	backupName := entries[0].Name()

	if err := os.WriteFile(dataPath, []byte(`{"version":1,"days":[],"goals":[]}`), 0600); err != nil {
		t.Fatal(err)
	}

	ctx.In = strings.NewReader("n\n")
	out.Reset()
	if err := (&BackupRestoreCmd{BackupFile: backupName}).Run(ctx); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Restore cancelled.") {
		t.Errorf("expected cancellation:\n%s", out.String())
	}

	ctx.In = strings.NewReader("y\n")
	if err := (&BackupRestoreCmd{BackupFile: backupName}).Run(ctx); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	data, err := os.ReadFile(dataPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "first") {
		t.Errorf("data file not restored: %s", data)
	}
}

func TestBackupRestore_NotFound(t *testing.T) {
	ctx, _, _ := setupTestContext(t, "")
	err := (&BackupRestoreCmd{BackupFile: "rocky-0.json", Yes: true}).Run(ctx)
	if err == nil || !strings.Contains(err.Error(), "backup file not found") {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestBackupListEmpty(t *testing.T) {
	ctx, out, _ := setupTestContext(t, "")
	if err := (&BackupListCmd{}).Run(ctx); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "No backups found.") {
		t.Errorf("unexpected output: %q", out.String())
	}
}

func TestBackupSnapshotAndRestore_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, out, dir := setupTestContext(t, "redis://"+mr.Addr())

	if err := (&BackupCreateCmd{}).Run(ctx); err == nil {
		t.Error("expected error when redis holds nothing")
	}

	mr.Set(constants.DefaultRedisKey, doc)
	if err := (&BackupCreateCmd{}).Run(ctx); err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	snapshots := filepath.Join(dir, snapshotDir, constants.BackupDirName)
	entries, err := os.ReadDir(snapshots)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one snapshot, got %v (%v)", entries, err)
	}

	mr.Set(constants.DefaultRedisKey, `{"version":1,"days":[],"goals":[]}`)
	out.Reset()
	if err := (&BackupRestoreCmd{BackupFile: filepath.Join(snapshots, entries[0].Name()), Yes: true}).Run(ctx); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	got, err := mr.Get(constants.DefaultRedisKey)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "first") {
		t.Errorf("redis document not restored: %s", got)
	}
	if !strings.Contains(out.String(), "Backed up current document") {
		t.Errorf("expected pre-restore snapshot:\n%s", out.String())
	}
}
