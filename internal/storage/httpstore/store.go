// Package httpstore talks to a running rocky save server.
package httpstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/julianstephens/rocky/internal/lockfile"
	"github.com/julianstephens/rocky/internal/storage"
)

type Store struct {
	baseURL  string
	lockPath string
	client   *http.Client
}

// New creates a client for baseURL.
func New(baseURL string) *Store {
	return &Store{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Discover creates a client whose base URL is read from the server
// lockfile when first needed.
func Discover(lockPath string) *Store {
	s := New("")
	s.lockPath = lockPath
	return s
}

func (s *Store) base() (string, error) {
	if s.baseURL != "" {
		return s.baseURL, nil
	}
	port, err := lockfile.Discover(s.lockPath)
	if err != nil {
		return "", err
	}
	s.baseURL = fmt.Sprintf("http://127.0.0.1:%d", port)
	return s.baseURL, nil
}

// Init checks that the server answers its health endpoint.
func (s *Store) Init(ctx context.Context) error {
	base, err := s.base()
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/health", nil)
	if err != nil {
		return err
	}
	res, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("server at %s is not reachable: %w", base, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("server health check failed with status %d", res.StatusCode)
	}
	return nil
}

func (s *Store) Load(ctx context.Context) (json.RawMessage, error) {
	base, err := s.base()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/load", nil)
	if err != nil {
		return nil, err
	}
	body, err := s.do(req)
	if err != nil {
		return nil, fmt.Errorf("load failed: %w", err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("load failed: server returned invalid JSON")
	}
	return body, nil
}

func (s *Store) Save(ctx context.Context, doc any) error {
	base, err := s.base()
	if err != nil {
		return err
	}
	data, err := storage.Encode(doc)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/save", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if _, err := s.do(req); err != nil {
		return fmt.Errorf("save failed: %w", err)
	}
	return nil
}

func (s *Store) do(req *http.Request) ([]byte, error) {
	res, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
			return nil, fmt.Errorf("status %d: %s", res.StatusCode, payload.Error)
		}
		return nil, fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func (s *Store) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *Store) Location() string {
	if s.baseURL == "" {
		return "server (lockfile " + s.lockPath + ")"
	}
	return s.baseURL
}
