// Package sqlkv stores the document as a single row of a key/value table.
// It backs both the SQLite and the PostgreSQL stores.
package sqlkv

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/rocky/internal/migration"
	"github.com/julianstephens/rocky/internal/storage"
)

type Table struct {
	db      *sql.DB
	dialect migration.Dialect
	key     string
	now     func() time.Time
}

func New(db *sql.DB, dialect migration.Dialect, key string) *Table {
	return &Table{
		db:      db,
		dialect: dialect,
		key:     key,
		now:     time.Now,
	}
}

func (t *Table) p(n int) string {
	return t.dialect.Placeholder(n)
}

// Get returns the stored value or storage.ErrNotFound.
func (t *Table) Get(ctx context.Context) (json.RawMessage, error) {
	var value []byte
	err := t.db.QueryRowContext(ctx,
		"SELECT value FROM kv_store WHERE key = "+t.p(1), t.key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return json.RawMessage(value), nil
}

// Put upserts the value and appends a save_history row in one transaction.
func (t *Table) Put(ctx context.Context, data []byte) error {
	if !json.Valid(data) {
		return errors.New("refusing to store invalid JSON")
	}
	savedAt := t.now().UTC().Format(time.RFC3339Nano)

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	upsert := fmt.Sprintf(`
		INSERT INTO kv_store (key, value, updated_at) VALUES (%s, %s, %s)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		t.p(1), t.p(2), t.p(3))
	if _, err := tx.ExecContext(ctx, upsert, t.key, string(data), savedAt); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}

	history := fmt.Sprintf("INSERT INTO save_history (key, saved_at, size_bytes) VALUES (%s, %s, %s)",
		t.p(1), t.p(2), t.p(3))
	if _, err := tx.ExecContext(ctx, history, t.key, savedAt, len(data)); err != nil {
		return fmt.Errorf("failed to record save history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit document: %w", err)
	}
	return nil
}

// History returns the most recent saves, newest first.
func (t *Table) History(ctx context.Context, limit int) ([]storage.SaveRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := t.db.QueryContext(ctx,
		"SELECT saved_at, size_bytes FROM save_history WHERE key = "+t.p(1)+" ORDER BY id DESC LIMIT "+t.p(2),
		t.key, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read save history: %w", err)
	}
	defer rows.Close()

	var records []storage.SaveRecord
	for rows.Next() {
		var savedAt string
		var size int
		if err := rows.Scan(&savedAt, &size); err != nil {
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339Nano, savedAt)
		if err != nil {
			return nil, fmt.Errorf("invalid saved_at %q: %w", savedAt, err)
		}
		records = append(records, storage.SaveRecord{SavedAt: ts, Size: size})
	}
	return records, rows.Err()
}
