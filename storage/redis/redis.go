// Package redis provides a Redis-backed storage repository, for sharing
// persisted client state between machines.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/tenx/certdash/storage"
)

const defaultPrefix = "certdash:"

// Store implements storage.Repository on top of a Redis client. Keys are
// laid out as <prefix><namespace>:<key>.
type Store struct {
	client *goredis.Client
	prefix string
	now    func() time.Time
}

var _ storage.Repository = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPrefix overrides the key prefix. Default: "certdash:".
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// NewRepository wraps an existing client.
func NewRepository(client *goredis.Client, opts ...Option) *Store {
	s := &Store{client: client, prefix: defaultPrefix, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewRepositoryFromURL parses a redis:// URL and connects.
func NewRepositoryFromURL(ctx context.Context, url string, opts ...Option) (*Store, error) {
	options, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := goredis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return NewRepository(client, opts...), nil
}

// Client exposes the underlying client so other components (the event
// journal) can share the connection.
func (s *Store) Client() *goredis.Client {
	return s.client
}

func (s *Store) key(namespace, key string) string {
	return s.prefix + namespace + ":" + key
}

func (s *Store) Put(ctx context.Context, namespace, key string, envelope *storage.Envelope) error {
	data, err := json.Marshal(storage.Stamp(envelope, s.now()))
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(namespace, key), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, namespace, key string) (*storage.Envelope, error) {
	data, err := s.client.Get(ctx, s.key(namespace, key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("%s/%s: %w", namespace, key, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s/%s: %w", namespace, key, err)
	}
	var envelope storage.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}
	return &envelope, nil
}

func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	n, err := s.client.Del(ctx, s.key(namespace, key)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", namespace, key, err)
	}
	if n == 0 {
		return fmt.Errorf("%s/%s: %w", namespace, key, storage.ErrNotFound)
	}
	return nil
}

// scan returns the full redis keys stored under namespace.
func (s *Store) scan(ctx context.Context, namespace string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.key(namespace, "*"), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", namespace, err)
	}
	return keys, nil
}

func (s *Store) List(ctx context.Context, namespace string) ([]string, error) {
	keys, err := s.scan(ctx, namespace)
	if err != nil {
		return nil, err
	}
	prefix := s.key(namespace, "")
	for i, k := range keys {
		keys[i] = strings.TrimPrefix(k, prefix)
	}
	return keys, nil
}

func (s *Store) Clear(ctx context.Context, namespace string) error {
	keys, err := s.scan(ctx, namespace)
	if err != nil || len(keys) == 0 {
		return err
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear %s: %w", namespace, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
