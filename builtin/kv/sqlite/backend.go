// Package sqlite implements KeyValueBackend as a single SQLite table of
// (key, field, value) rows.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/spetr/mcp-vecstore/pkg/provider"
)

// Backend implements provider.KeyValueBackend using SQLite.
type Backend struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the database at path.
func Open(path string) (*Backend, error) {
	// Ensure directory exists
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// WAL mode for concurrent reads, busy_timeout to wait for locks instead of failing immediately
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	b := &Backend{db: db, path: path}
	if err := b.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return b, nil
}

func (b *Backend) createSchema() error {
	_, err := b.db.Exec(`
		CREATE TABLE IF NOT EXISTS kv_hash (
			key TEXT NOT NULL,
			field TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (key, field)
		) WITHOUT ROWID
	`)
	return err
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "sqlite"
}

// Path returns the database file path.
func (b *Backend) Path() string {
	return b.path
}

// HSet upserts a single field.
func (b *Backend) HSet(ctx context.Context, key, field, value string) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO kv_hash (key, field, value) VALUES (?, ?, ?)
		ON CONFLICT(key, field) DO UPDATE SET value = excluded.value
	`, key, field, value)
	return err
}

// HGet reads a single field.
func (b *Backend) HGet(ctx context.Context, key, field string) (string, bool, error) {
	var value string
	err := b.db.QueryRowContext(ctx,
		`SELECT value FROM kv_hash WHERE key = ? AND field = ?`, key, field,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Del removes every field of key.
func (b *Backend) Del(ctx context.Context, key string) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM kv_hash WHERE key = ?`, key)
	return err
}

// Keys returns distinct keys with the given prefix in key order.
func (b *Backend) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT DISTINCT key FROM kv_hash
		WHERE substr(key, 1, length(?1)) = ?1
		ORDER BY key
	`, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Ping checks the database is usable.
func (b *Backend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

// Close closes the database.
func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

var _ provider.KeyValueBackend = (*Backend)(nil)
