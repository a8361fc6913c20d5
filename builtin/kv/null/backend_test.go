package null

import (
	"context"
	"errors"
	"testing"

	"github.com/spetr/mcp-vecstore/pkg/types"
)

func TestBackendUnavailable(t *testing.T) {
	b := New()
	ctx := context.Background()

	checks := map[string]error{
		"HSet": b.HSet(ctx, "k", "f", "v"),
		"Del":  b.Del(ctx, "k"),
		"Ping": b.Ping(ctx),
	}
	_, _, err := b.HGet(ctx, "k", "f")
	checks["HGet"] = err
	_, err = b.Keys(ctx, "")
	checks["Keys"] = err

	for name, err := range checks {
		if !errors.Is(err, types.ErrBackendUnavailable) {
			t.Errorf("%s error = %v, want ErrBackendUnavailable", name, err)
		}
	}

	if err := b.Close(); err != nil {
		t.Errorf("Close() = %v, want nil", err)
	}
}
