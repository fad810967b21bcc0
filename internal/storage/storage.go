package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/julianstephens/rocky/internal/models"
)

// ErrNotFound is returned by Load when the backend holds no document yet
var ErrNotFound = errors.New("no document stored")

// Provider persists the whole document as one JSON value. Backends are
// interchangeable; callers validate whatever Load returns.
type Provider interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error

	// Document
	Load(ctx context.Context) (json.RawMessage, error)
	Save(ctx context.Context, doc any) error

	// Utils
	Location() string
}

// SaveRecord describes one past save kept by backends that track history.
type SaveRecord struct {
	SavedAt time.Time
	Size    int
}

// Historian is implemented by backends that keep a save log.
type Historian interface {
	History(ctx context.Context, limit int) ([]SaveRecord, error)
}

// Kind identifies a storage backend.
type Kind string

const (
	KindFile     Kind = "file"
	KindSQLite   Kind = "sqlite"
	KindPostgres Kind = "postgres"
	KindRedis    Kind = "redis"
	KindHTTP     Kind = "http"
)

// ServerDSN selects the HTTP backend with the base URL read from the
// running server's lockfile.
const ServerDSN = "server"

// DetectKind picks the backend for a storage DSN.
func DetectKind(dsn string) Kind {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return KindPostgres
	case strings.HasPrefix(lower, "redis://"), strings.HasPrefix(lower, "rediss://"):
		return KindRedis
	case lower == ServerDSN, strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return KindHTTP
	case strings.HasPrefix(lower, "sqlite://"), strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"):
		return KindSQLite
	default:
		return KindFile
	}
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// Encode renders doc as indented JSON. Raw JSON input is re-indented and
// must be well formed.
func Encode(doc any) ([]byte, error) {
	var raw []byte
	switch v := doc.(type) {
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	}
	if raw != nil {
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			return nil, fmt.Errorf("document is not valid JSON: %w", err)
		}
		return buf.Bytes(), nil
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return data, nil
}

// EmptyDocument returns the encoded empty document.
func EmptyDocument() json.RawMessage {
	data, _ := json.Marshal(models.NewDocument())
	return data
}
