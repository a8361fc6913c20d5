// Package kvtest provides a behavioural test suite shared by every
// KeyValueBackend implementation.
package kvtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spetr/mcp-vecstore/pkg/provider"
)

// Run exercises the backend returned by newBackend.
// newBackend must return an empty backend for every call.
func Run(t *testing.T, newBackend func(t *testing.T) provider.KeyValueBackend) {
	t.Helper()

	t.Run("SetGet", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		require.NoError(t, b.HSet(ctx, "p:vector:a", "vector", "[1,2]"))
		v, found, err := b.HGet(ctx, "p:vector:a", "vector")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "[1,2]", v)

		_, found, err = b.HGet(ctx, "p:vector:a", "metadata")
		require.NoError(t, err)
		assert.False(t, found, "missing field")

		_, found, err = b.HGet(ctx, "p:vector:missing", "vector")
		require.NoError(t, err)
		assert.False(t, found, "missing key")
	})

	t.Run("Overwrite", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		require.NoError(t, b.HSet(ctx, "k", "f", "one"))
		require.NoError(t, b.HSet(ctx, "k", "f", "two"))
		v, _, err := b.HGet(ctx, "k", "f")
		require.NoError(t, err)
		assert.Equal(t, "two", v)
	})

	t.Run("Delete", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		require.NoError(t, b.HSet(ctx, "k", "a", "1"))
		require.NoError(t, b.HSet(ctx, "k", "b", "2"))
		require.NoError(t, b.Del(ctx, "k"))

		_, found, err := b.HGet(ctx, "k", "a")
		require.NoError(t, err)
		assert.False(t, found)
		_, found, err = b.HGet(ctx, "k", "b")
		require.NoError(t, err)
		assert.False(t, found)

		// deleting again is not an error
		require.NoError(t, b.Del(ctx, "k"))
	})

	t.Run("KeysByPrefix", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		for _, k := range []string{"p:vector:b", "p:vector:a", "p:vector:a:b", "p:other", "q:vector:x", "p:vector*x"} {
			require.NoError(t, b.HSet(ctx, k, "f", "v"))
		}

		keys, err := b.Keys(ctx, "p:vector:")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"p:vector:a", "p:vector:a:b", "p:vector:b"}, keys)

		keys, err = b.Keys(ctx, "p:vector*")
		require.NoError(t, err)
		assert.Equal(t, []string{"p:vector*x"}, keys)

		keys, err = b.Keys(ctx, "none:")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("Ping", func(t *testing.T) {
		b := newBackend(t)
		assert.NoError(t, b.Ping(context.Background()))
	})
}
