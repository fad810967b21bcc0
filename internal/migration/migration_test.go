package migration

import (
	"database/sql"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/rocky/migrations"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestApplyMigrations(t *testing.T) {
	db := setupTestDB(t)
	migrationFS := fstest.MapFS{
		"001_first.sql":  {Data: []byte("CREATE TABLE first (id INTEGER);")},
		"002_second.sql": {Data: []byte("CREATE TABLE second (id INTEGER);")},
		"README.md":      {Data: []byte("ignored")},
	}

	runner := NewRunner(db, migrationFS, SQLite)

	version, err := runner.GetCurrentVersion()
	if err != nil {
		t.Fatalf("GetCurrentVersion failed: %v", err)
	}
	if version != 0 {
		t.Errorf("expected fresh database at version 0, got %d", version)
	}

	var logs []string
	applied, err := runner.ApplyMigrations(func(s string) { logs = append(logs, s) })
	if err != nil {
		t.Fatalf("ApplyMigrations failed: %v", err)
	}
	if applied != 2 {
		t.Errorf("expected 2 migrations applied, got %d", applied)
	}
	if len(logs) == 0 {
		t.Error("expected progress to be logged")
	}

	version, _ = runner.GetCurrentVersion()
	if version != 2 {
		t.Errorf("expected version 2, got %d", version)
	}

	applied, err = runner.ApplyMigrations(nil)
	if err != nil {
		t.Fatalf("second ApplyMigrations failed: %v", err)
	}
	if applied != 0 {
		t.Errorf("expected no migrations on second run, got %d", applied)
	}

	pending, err := runner.Pending()
	if err != nil || pending != 0 {
		t.Errorf("Pending = %d, %v", pending, err)
	}
}

func TestApplyMigrationsRollsBackFailure(t *testing.T) {
	db := setupTestDB(t)
	migrationFS := fstest.MapFS{
		"001_ok.sql":     {Data: []byte("CREATE TABLE ok (id INTEGER);")},
		"002_broken.sql": {Data: []byte("CREATE TABLE nope (")},
	}

	runner := NewRunner(db, migrationFS, SQLite)
	applied, err := runner.ApplyMigrations(nil)
	if err == nil {
		t.Fatal("expected broken migration to fail")
	}
	if applied != 1 {
		t.Errorf("expected 1 migration applied before failure, got %d", applied)
	}
	if version, _ := runner.GetCurrentVersion(); version != 1 {
		t.Errorf("expected version to stay at 1, got %d", version)
	}
}

func TestReadMigrationFilesErrors(t *testing.T) {
	tests := []struct {
		name    string
		files   fstest.MapFS
		wantErr string
	}{
		{"bad name", fstest.MapFS{"init.sql": {Data: []byte("")}}, "invalid migration filename"},
		{"bad number", fstest.MapFS{"abc_init.sql": {Data: []byte("")}}, "invalid version number"},
		{"zero", fstest.MapFS{"000_init.sql": {Data: []byte("")}}, "at least 1"},
		{"duplicate", fstest.MapFS{"001_a.sql": {Data: []byte("")}, "01_b.sql": {Data: []byte("")}}, "duplicate migration version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := NewRunner(nil, tt.files, SQLite)
			_, err := runner.ReadMigrationFiles()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateVersionRejectsNewerSchema(t *testing.T) {
	db := setupTestDB(t)
	runner := NewRunner(db, fstest.MapFS{"001_a.sql": {Data: []byte("CREATE TABLE a (id INTEGER);")}}, SQLite)

	if err := runner.EnsureSchemaVersionTable(); err != nil {
		t.Fatalf("EnsureSchemaVersionTable failed: %v", err)
	}
	if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (5)"); err != nil {
		t.Fatalf("failed to seed version: %v", err)
	}

	err := runner.ValidateVersion()
	if err == nil || !strings.Contains(err.Error(), "newer than supported") {
		t.Errorf("ValidateVersion error = %v", err)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	for _, dialect := range []Dialect{SQLite, Postgres} {
		sub, err := fs.Sub(migrations.FS, dialect.String())
		if err != nil {
			t.Fatalf("fs.Sub(%s) failed: %v", dialect, err)
		}
		latest, err := NewRunner(nil, sub, dialect).GetLatestVersion()
		if err != nil {
			t.Fatalf("%s: GetLatestVersion failed: %v", dialect, err)
		}
		if latest < 1 {
			t.Errorf("%s: expected at least one migration, got %d", dialect, latest)
		}
	}

	sub, _ := fs.Sub(migrations.FS, "sqlite")
	db := setupTestDB(t)
	if _, err := NewRunner(db, sub, SQLite).ApplyMigrations(nil); err != nil {
		t.Fatalf("embedded sqlite migrations failed: %v", err)
	}
}

func TestPlaceholder(t *testing.T) {
	if SQLite.Placeholder(3) != "?" {
		t.Error("sqlite placeholder should be ?")
	}
	if Postgres.Placeholder(3) != "$3" {
		t.Error("postgres placeholder should be $3")
	}
}
