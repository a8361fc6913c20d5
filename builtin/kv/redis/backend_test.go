package redis

import (
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/spetr/mcp-vecstore/builtin/kv/kvtest"
	"github.com/spetr/mcp-vecstore/pkg/provider"
)

func TestBackend(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) provider.KeyValueBackend {
		mr := miniredis.RunT(t)
		b, err := New(Config{URL: "redis://" + mr.Addr()})
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { b.Close() })
		return b
	})
}

func TestNewInvalidURL(t *testing.T) {
	if _, err := New(Config{URL: "://nope"}); err == nil {
		t.Error("expected error for invalid url")
	}
}

func TestEscapePattern(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"btagent:vector:", "btagent:vector:"},
		{"a*b", `a\*b`},
		{"a?[x]", `a\?\[x\]`},
		{`a\b`, `a\\b`},
	}
	for _, tt := range tests {
		if got := escapePattern(tt.in); got != tt.want {
			t.Errorf("escapePattern(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
