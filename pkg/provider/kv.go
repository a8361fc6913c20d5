package provider

import (
	"context"
)

// KeyValueBackend is a namespaced hash-map store addressable by string key.
// Every key holds a hash of string fields.
type KeyValueBackend interface {
	// Name returns the backend name (e.g., "redis", "sqlite").
	Name() string

	// HSet sets a single field of the hash stored at key.
	HSet(ctx context.Context, key, field, value string) error

	// HGet returns the value of a hash field.
	// found is false when either the key or the field does not exist.
	HGet(ctx context.Context, key, field string) (value string, found bool, err error)

	// Del removes the key and all its fields. Missing keys are not an error.
	Del(ctx context.Context, key string) error

	// Keys returns all keys starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close releases any resources.
	Close() error
}

// BackendConfig contains configuration for key-value backends.
type BackendConfig struct {
	Type     string // "redis", "sqlite", "bolt", "none"
	URL      string // Redis URL
	Path     string // Database file for sqlite/bolt
	PoolSize int    // Redis connection pool size (0 = library default)
}
