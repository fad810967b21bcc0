package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/rocky/internal/constants"
	"github.com/julianstephens/rocky/internal/logger"
	"github.com/julianstephens/rocky/internal/migration"
	"github.com/julianstephens/rocky/internal/storage"
	"github.com/julianstephens/rocky/internal/storage/sqlkv"
	"github.com/julianstephens/rocky/migrations"
)

type Store struct {
	path  string
	db    *sql.DB
	table *sqlkv.Table
}

func NewStore(path string) *Store {
	return &Store{
		path: path,
	}
}

func (s *Store) Init(ctx context.Context) error {
	// Create config directory if it doesn't exist
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := s.open(); err != nil {
		return err
	}

	if err := s.runMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *Store) open() error {
	if s.db != nil {
		return nil
	}
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers.
	db.SetMaxOpenConns(1)
	s.db = db
	s.table = sqlkv.New(db, migration.SQLite, constants.StorageKey)
	return nil
}

// connect opens an existing database and checks its schema version.
func (s *Store) connect() error {
	if s.db != nil {
		return nil
	}
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return storage.ErrNotFound
	}
	if err := s.open(); err != nil {
		return err
	}
	runner, err := s.runner()
	if err != nil {
		return err
	}
	if pending, err := runner.Pending(); err != nil {
		return err
	} else if pending > 0 {
		return s.runMigrations()
	}
	return runner.ValidateVersion()
}

func (s *Store) Load(ctx context.Context) (json.RawMessage, error) {
	if err := s.connect(); err != nil {
		return nil, err
	}
	return s.table.Get(ctx)
}

func (s *Store) Save(ctx context.Context, doc any) error {
	if s.db == nil {
		if err := s.Init(ctx); err != nil {
			return err
		}
	}
	data, err := storage.Encode(doc)
	if err != nil {
		return err
	}
	return s.table.Put(ctx, data)
}

// History returns the most recent saves, newest first.
func (s *Store) History(ctx context.Context, limit int) ([]storage.SaveRecord, error) {
	if err := s.connect(); err != nil {
		return nil, err
	}
	return s.table.History(ctx, limit)
}

func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

func (s *Store) Location() string {
	return "sqlite://" + s.path
}

func (s *Store) runner() (*migration.Runner, error) {
	// Get the embedded SQLite migrations sub-filesystem
	subFS, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("failed to access sqlite migrations: %w", err)
	}
	return migration.NewRunner(s.db, subFS, migration.SQLite), nil
}

func (s *Store) runMigrations() error {
	runner, err := s.runner()
	if err != nil {
		return err
	}
	_, err = runner.ApplyMigrations(func(msg string) {
		logger.Info(msg)
	})
	return err
}
