package bolt

import (
	"path/filepath"
	"testing"

	"github.com/spetr/mcp-vecstore/builtin/kv/kvtest"
	"github.com/spetr/mcp-vecstore/pkg/provider"
)

func TestBackend(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) provider.KeyValueBackend {
		b, err := Open(filepath.Join(t.TempDir(), "kv.bolt"))
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		t.Cleanup(func() { b.Close() })
		return b
	})
}

func TestKeysSkipsNothingAfterDelete(t *testing.T) {
	b, err := Open(filepath.Join(t.TempDir(), "kv.bolt"))
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	ctx := t.Context()

	for _, k := range []string{"p:1", "p:2", "p:3"} {
		if err := b.HSet(ctx, k, "f", "v"); err != nil {
			t.Fatal(err)
		}
	}
	if err := b.Del(ctx, "p:2"); err != nil {
		t.Fatal(err)
	}

	keys, err := b.Keys(ctx, "p:")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "p:1" || keys[1] != "p:3" {
		t.Errorf("Keys = %v, want [p:1 p:3]", keys)
	}
}
