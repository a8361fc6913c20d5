// Package redis implements KeyValueBackend on top of a Redis server.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/spetr/mcp-vecstore/pkg/provider"
)

// DefaultURL is used when no URL is configured.
const DefaultURL = "redis://localhost:6379"

// scanCount is the COUNT hint passed to SCAN.
const scanCount = 500

// Config contains Redis backend configuration.
type Config struct {
	URL      string
	PoolSize int
}

// Backend implements provider.KeyValueBackend using hashes in Redis.
type Backend struct {
	client *goredis.Client
	owned  bool
}

// New connects a Redis client from the configuration.
// No network I/O happens until the first command.
func New(cfg Config) (*Backend, error) {
	url := cfg.URL
	if url == "" {
		url = DefaultURL
	}

	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	return &Backend{
		client: goredis.NewClient(opts),
		owned:  true,
	}, nil
}

// NewFromClient wraps an existing client. Close does not close it.
func NewFromClient(client *goredis.Client) *Backend {
	return &Backend{client: client}
}

// Client returns the underlying Redis client so that the notifier and
// realtime metrics can share the connection pool.
func (b *Backend) Client() *goredis.Client {
	return b.client
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "redis"
}

// HSet sets a single hash field.
func (b *Backend) HSet(ctx context.Context, key, field, value string) error {
	return b.client.HSet(ctx, key, field, value).Err()
}

// HGet reads a single hash field.
func (b *Backend) HGet(ctx context.Context, key, field string) (string, bool, error) {
	v, err := b.client.HGet(ctx, key, field).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Del removes a key.
func (b *Backend) Del(ctx context.Context, key string) error {
	return b.client.Del(ctx, key).Err()
}

// Keys enumerates keys with the given prefix using SCAN.
// SCAN may return a key more than once, so results are deduplicated.
func (b *Backend) Keys(ctx context.Context, prefix string) ([]string, error) {
	seen := make(map[string]struct{})
	var keys []string

	iter := b.client.Scan(ctx, 0, escapePattern(prefix)+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	sort.Strings(keys)
	return keys, nil
}

// Ping checks the server is reachable.
func (b *Backend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close closes the client if it was created by New.
func (b *Backend) Close() error {
	if !b.owned {
		return nil
	}
	return b.client.Close()
}

// escapePattern escapes glob metacharacters so the prefix matches literally.
func escapePattern(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

var _ provider.KeyValueBackend = (*Backend)(nil)
