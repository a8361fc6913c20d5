package host

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spetr/mcp-vecstore/pkg/plugin/shared"
	"github.com/spetr/mcp-vecstore/pkg/types"
)

func TestDiscoverPlugins(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "hash-embedding"), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("docs"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	m := NewManager(dir)
	got, err := m.DiscoverPlugins()
	if err != nil {
		t.Fatalf("DiscoverPlugins() error = %v", err)
	}
	if len(got) != 1 || got[0] != "hash-embedding" {
		t.Errorf("DiscoverPlugins() = %v, want [hash-embedding]", got)
	}
}

func TestDiscoverMissingDir(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "nope"))
	got, err := m.DiscoverPlugins()
	if err != nil || got != nil {
		t.Errorf("DiscoverPlugins() = %v, %v; want nil, nil", got, err)
	}
}

func TestLoadMissingPlugin(t *testing.T) {
	m := NewManager(t.TempDir())
	if _, err := m.LoadPlugin("ghost", shared.PluginTypeEmbedding); err == nil {
		t.Error("expected error for missing plugin")
	}
	if _, err := m.GetEmbeddingPlugin("ghost"); err == nil {
		t.Error("expected error for unloaded plugin")
	}
	if _, err := m.GetGeneratorPlugin("ghost"); err == nil {
		t.Error("expected error for unloaded plugin")
	}
	if err := m.UnloadPlugin("ghost"); err != nil {
		t.Errorf("UnloadPlugin() of unknown plugin = %v", err)
	}
	if n := len(m.ListLoaded()); n != 0 {
		t.Errorf("ListLoaded() has %d entries", n)
	}
}

type stubEmbedding struct{ err error }

func (s stubEmbedding) Name() string { return "stub" }
func (s stubEmbedding) Embed(texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return [][]float32{{1, 0}}, nil
}
func (s stubEmbedding) Dimensions() int   { return 2 }
func (s stubEmbedding) MaxBatchSize() int { return 4 }
func (s stubEmbedding) Warmup() error     { return nil }
func (s stubEmbedding) Close() error      { return nil }

func TestEmbeddingAdapter(t *testing.T) {
	a := NewEmbeddingAdapter(stubEmbedding{})
	out, err := a.Embed(context.Background(), []string{"x"})
	if err != nil || len(out) != 1 {
		t.Fatalf("Embed() = %v, %v", out, err)
	}

	failing := NewEmbeddingAdapter(stubEmbedding{err: errors.New("boom")})
	if _, err := failing.Embed(context.Background(), []string{"x"}); !errors.Is(err, types.ErrEmbeddingFailed) {
		t.Errorf("Embed() error = %v, want ErrEmbeddingFailed", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.Embed(ctx, []string{"x"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Embed() with cancelled context = %v", err)
	}
	if err := a.Warmup(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Warmup() with cancelled context = %v", err)
	}
}

type stubGenerator struct{}

func (stubGenerator) Name() string                      { return "stub" }
func (stubGenerator) Generate(p string) (string, error) { return "re: " + p, nil }
func (stubGenerator) Close() error                      { return nil }

func TestGeneratorAdapter(t *testing.T) {
	a := NewGeneratorAdapter(stubGenerator{})
	got, err := a.Generate(context.Background(), "q")
	if err != nil || got != "re: q" {
		t.Errorf("Generate() = %q, %v", got, err)
	}
}
