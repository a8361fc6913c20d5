// Package null implements a KeyValueBackend that is never available.
// It is selected when no backend is configured so that callers get
// types.ErrBackendUnavailable without any I/O.
package null

import (
	"context"

	"github.com/spetr/mcp-vecstore/pkg/provider"
	"github.com/spetr/mcp-vecstore/pkg/types"
)

// Backend is the null-object backend.
type Backend struct{}

// New creates a null backend.
func New() *Backend {
	return &Backend{}
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "none"
}

func (b *Backend) HSet(ctx context.Context, key, field, value string) error {
	return types.ErrBackendUnavailable
}

func (b *Backend) HGet(ctx context.Context, key, field string) (string, bool, error) {
	return "", false, types.ErrBackendUnavailable
}

func (b *Backend) Del(ctx context.Context, key string) error {
	return types.ErrBackendUnavailable
}

func (b *Backend) Keys(ctx context.Context, prefix string) ([]string, error) {
	return nil, types.ErrBackendUnavailable
}

func (b *Backend) Ping(ctx context.Context) error {
	return types.ErrBackendUnavailable
}

// Close is a no-op.
func (b *Backend) Close() error {
	return nil
}

var _ provider.KeyValueBackend = (*Backend)(nil)
