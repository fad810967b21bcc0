package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/rocky/internal/storage"
	"github.com/julianstephens/rocky/internal/storage/jsonfile"
)

type memStore struct {
	mu      sync.Mutex
	data    json.RawMessage
	loadErr error
	saveErr error
	saves   int
}

func (m *memStore) Init(ctx context.Context) error { return nil }
func (m *memStore) Close() error                   { return nil }
func (m *memStore) Location() string               { return "memory" }

func (m *memStore) Load(ctx context.Context) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.data == nil {
		return nil, storage.ErrNotFound
	}
	return m.data, nil
}

func (m *memStore) Save(ctx context.Context, doc any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	data, err := storage.Encode(doc)
	if err != nil {
		return err
	}
	m.data = data
	m.saves++
	return nil
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Origin", "http://localhost:5173")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestLoadInitializesEmptyDocument(t *testing.T) {
	store := &memStore{}
	s := New(store, Options{})

	rec := do(t, s, http.MethodGet, "/api/load", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"version":1,"days":[],"goals":[]}`, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, 1, store.saves, "empty document is persisted on first load")
}

func TestSaveThenLoad(t *testing.T) {
	store := &memStore{}
	s := New(store, Options{})

	doc := `{"version":1,"days":[{"date":"2025-02-01","text":"hi","color":"green"}],"goals":[]}`
	rec := do(t, s, http.MethodPost, "/api/save", doc)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/load", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, doc, rec.Body.String())
}

func TestSaveEmptyBodyStoresEmptyObject(t *testing.T) {
	store := &memStore{}
	s := New(store, Options{})

	rec := do(t, s, http.MethodPost, "/api/save", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, string(store.data))
}

func TestSaveRejectsInvalidJSON(t *testing.T) {
	store := &memStore{}
	s := New(store, Options{})

	rec := do(t, s, http.MethodPost, "/api/save", "{not json")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, errorBody(t, rec), "not valid JSON")
	assert.Nil(t, store.data)
}

func TestStoreFailuresAreReported(t *testing.T) {
	store := &memStore{loadErr: errors.New("disk on fire"), saveErr: errors.New("read-only")}
	s := New(store, Options{})

	rec := do(t, s, http.MethodGet, "/api/load", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "disk on fire", errorBody(t, rec))

	rec = do(t, s, http.MethodPost, "/api/save", "{}")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "read-only", errorBody(t, rec))
}

func TestNotFound(t *testing.T) {
	s := New(&memStore{}, Options{})

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/nope"},
		{http.MethodGet, "/api/save"},
		{http.MethodPost, "/api/load"},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := do(t, s, tc.method, tc.path, "")
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.Equal(t, "Not Found", errorBody(t, rec))
		})
	}
}

func TestOptionsPreflight(t *testing.T) {
	s := New(&memStore{}, Options{})

	for _, path := range []string{"/api/save", "/api/load", "/anything"} {
		rec := do(t, s, http.MethodOptions, path, "")
		assert.Equal(t, http.StatusNoContent, rec.Code, path)
	}
}

func TestSaveRateLimit(t *testing.T) {
	s := New(&memStore{}, Options{RateLimit: 1})

	first := do(t, s, http.MethodPost, "/api/save", "{}")
	second := do(t, s, http.MethodPost, "/api/save", "{}")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	// loads are not limited
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/load", "").Code)
}

func TestMetrics(t *testing.T) {
	s := New(&memStore{}, Options{})
	do(t, s, http.MethodPost, "/api/save", "{}")
	do(t, s, http.MethodPost, "/api/save", "{bad")
	do(t, s, http.MethodGet, "/missing", "")

	rec := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `rocky_saves_total{result="ok"} 1`)
	assert.Contains(t, body, `rocky_saves_total{result="invalid"} 1`)
	assert.Contains(t, body, `http_requests_total{method="POST",path="/api/save",status="500"} 1`)
	assert.Contains(t, body, `status="404"`)
}

func TestHealth(t *testing.T) {
	s := New(&memStore{}, Options{})
	rec := do(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "memory", body["storage"])
}

func TestRunWritesAndRemovesLockfile(t *testing.T) {
	dir := t.TempDir()
	store := jsonfile.New(filepath.Join(dir, "rocky.json"))
	require.NoError(t, store.Init(context.Background()))

	lockPath := filepath.Join(dir, "rocky-server.lock")
	s := New(store, Options{Listen: "127.0.0.1:0", LockPath: lockPath, BackupCron: "@every 1h"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	var port int
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(lockPath)
		if err != nil {
			return false
		}
		parts := strings.SplitN(strings.TrimSpace(string(data)), "|", 2)
		if len(parts) != 2 {
			return false
		}
		port, err = strconv.Atoi(parts[0])
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
	_, err = os.Stat(lockPath)
	assert.True(t, os.IsNotExist(err), "lockfile should be removed on shutdown")
}

func TestRunRejectsBadSchedule(t *testing.T) {
	dir := t.TempDir()
	store := jsonfile.New(filepath.Join(dir, "rocky.json"))
	s := New(store, Options{Listen: "127.0.0.1:0", BackupCron: "not a schedule"})

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid backup schedule")
}
