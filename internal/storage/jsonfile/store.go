package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/julianstephens/rocky/internal/backup"
	"github.com/julianstephens/rocky/internal/logger"
	"github.com/julianstephens/rocky/internal/storage"
)

// Store keeps the document in a pretty-printed JSON file. Writes go through
// a temp file and a periodic backup is taken before the file is replaced.
type Store struct {
	path    string
	backups *backup.Manager
}

func New(path string, opts ...backup.Option) *Store {
	return &Store{
		path:    path,
		backups: backup.NewManager(path, opts...),
	}
}

// Backups exposes the backup manager for the data file.
func (s *Store) Backups() *backup.Manager {
	return s.backups
}

func (s *Store) Path() string {
	return s.path
}

// Init creates the data file with the empty document if it does not exist.
func (s *Store) Init(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if _, err := os.Stat(s.path); err == nil {
		return nil
	}
	data, err := storage.Encode(storage.EmptyDocument())
	if err != nil {
		return err
	}
	return backup.WriteFileAtomic(s.path, data, 0600)
}

// Load reads the data file. A missing file is created with the empty
// document. An unparsable file falls back to the newest valid backup and
// then to the empty document.
func (s *Store) Load(ctx context.Context) (json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read data file: %w", err)
		}
		if err := s.Init(ctx); err != nil {
			return nil, err
		}
		return storage.EmptyDocument(), nil
	}

	if json.Valid(data) {
		return data, nil
	}

	logger.Warn("Data file is not valid JSON, trying backups", "path", s.path)
	restored, info, err := s.backups.LatestValid()
	if err == nil {
		logger.Info("Loaded document from backup", "backup", info.Path)
		return restored, nil
	}
	if !errors.Is(err, backup.ErrNoBackups) {
		logger.Warn("Failed to read backups", "error", err)
	}
	return storage.EmptyDocument(), nil
}

// Save writes doc atomically after taking a periodic backup of the
// current file.
func (s *Store) Save(ctx context.Context, doc any) error {
	data, err := storage.Encode(doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if path, made, err := s.backups.EnsurePeriodic(); err != nil {
		logger.Warn("Periodic backup failed", "error", err)
	} else if made {
		logger.Debug("Created periodic backup", "path", path)
	}
	if err := backup.WriteFileAtomic(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) Location() string {
	return s.path
}
