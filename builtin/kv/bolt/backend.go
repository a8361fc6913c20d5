// Package bolt implements KeyValueBackend on a bbolt file. Every key is a
// nested bucket under a root bucket; hash fields are entries of that bucket.
package bolt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/spetr/mcp-vecstore/pkg/provider"
)

var rootBucket = []byte("hashes")

// Backend implements provider.KeyValueBackend using bbolt.
type Backend struct {
	db *bbolt.DB
}

// Open opens (or creates) the bbolt file at path.
func Open(path string) (*Backend, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Backend{db: db}, nil
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "bolt"
}

// HSet sets a field, creating the key bucket on first write.
func (b *Backend) HSet(ctx context.Context, key, field, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		kb, err := tx.Bucket(rootBucket).CreateBucketIfNotExists([]byte(key))
		if err != nil {
			return err
		}
		return kb.Put([]byte(field), []byte(value))
	})
}

// HGet reads a field.
func (b *Backend) HGet(ctx context.Context, key, field string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	var (
		value string
		found bool
	)
	err := b.db.View(func(tx *bbolt.Tx) error {
		kb := tx.Bucket(rootBucket).Bucket([]byte(key))
		if kb == nil {
			return nil
		}
		if v := kb.Get([]byte(field)); v != nil {
			value = string(v)
			found = true
		}
		return nil
	})
	return value, found, err
}

// Del removes the key bucket.
func (b *Backend) Del(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		err := tx.Bucket(rootBucket).DeleteBucket([]byte(key))
		if errors.Is(err, bbolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
}

// Keys returns keys with the given prefix in byte order.
func (b *Backend) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := []byte(prefix)
	var keys []string
	err := b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(rootBucket).Cursor()
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			// nested buckets have a nil value
			if v != nil {
				continue
			}
			keys = append(keys, string(k))
		}
		return nil
	})
	return keys, err
}

// Ping reports whether the database is open.
func (b *Backend) Ping(ctx context.Context) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(rootBucket) == nil {
			return fmt.Errorf("bolt: root bucket missing")
		}
		return nil
	})
}

// Close closes the database file.
func (b *Backend) Close() error {
	return b.db.Close()
}

var _ provider.KeyValueBackend = (*Backend)(nil)
