// Package redisstore keeps the document in a single Redis string key, with
// a capped list of previous versions next to it.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/julianstephens/rocky/internal/constants"
	"github.com/julianstephens/rocky/internal/storage"
)

type Store struct {
	client *redis.Client
	key    string
	addr   string
}

// New wraps an existing client. An empty key uses the default.
func New(client *redis.Client, key string) *Store {
	if key == "" {
		key = constants.DefaultRedisKey
	}
	return &Store{
		client: client,
		key:    key,
		addr:   client.Options().Addr,
	}
}

// Open connects to the server named by a redis:// or rediss:// URL.
func Open(url, key string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	return New(redis.NewClient(opts), key), nil
}

func (s *Store) historyKey() string {
	return s.key + ":history"
}

func (s *Store) Init(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis at %s: %w", s.addr, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context) (json.RawMessage, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return data, nil
}

// Save replaces the document and pushes the previous value onto the
// history list, trimmed to the backup retention count.
func (s *Store) Save(ctx context.Context, doc any) error {
	data, err := storage.Encode(doc)
	if err != nil {
		return err
	}

	previous, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to read document: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key, data, 0)
		if previous != nil {
			pipe.LPush(ctx, s.historyKey(), previous)
			pipe.LTrim(ctx, s.historyKey(), 0, constants.MaxBackups-1)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

// Previous returns earlier versions of the document, newest first.
func (s *Store) Previous(ctx context.Context) ([]json.RawMessage, error) {
	values, err := s.client.LRange(ctx, s.historyKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	out := make([]json.RawMessage, len(values))
	for i, v := range values {
		out[i] = json.RawMessage(v)
	}
	return out, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Location() string {
	return fmt.Sprintf("redis://%s/%d key=%s", s.addr, s.client.Options().DB, s.key)
}
