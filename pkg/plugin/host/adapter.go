package host

import (
	"context"
	"fmt"

	"github.com/spetr/mcp-vecstore/pkg/plugin/shared"
	"github.com/spetr/mcp-vecstore/pkg/provider"
	"github.com/spetr/mcp-vecstore/pkg/types"
)

// EmbeddingAdapter adapts a plugin EmbeddingProvider to the provider.EmbeddingProvider interface.
type EmbeddingAdapter struct {
	plugin shared.EmbeddingProvider
}

// NewEmbeddingAdapter creates a new embedding adapter.
func NewEmbeddingAdapter(p shared.EmbeddingProvider) *EmbeddingAdapter {
	return &EmbeddingAdapter{plugin: p}
}

// Name returns the provider name.
func (a *EmbeddingAdapter) Name() string {
	return a.plugin.Name()
}

// Embed generates embeddings for the given texts.
func (a *EmbeddingAdapter) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	// Plugin RPC calls are not cancellable; check before calling.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	out, err := a.plugin.Embed(texts)
	if err != nil {
		return nil, fmt.Errorf("%w: plugin %s: %w", types.ErrEmbeddingFailed, a.plugin.Name(), err)
	}
	return out, nil
}

// Dimensions returns the embedding dimensions.
func (a *EmbeddingAdapter) Dimensions() int {
	return a.plugin.Dimensions()
}

// MaxBatchSize returns the maximum batch size.
func (a *EmbeddingAdapter) MaxBatchSize() int {
	return a.plugin.MaxBatchSize()
}

// Warmup warms up the provider.
func (a *EmbeddingAdapter) Warmup(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return a.plugin.Warmup()
}

// Close closes the provider.
func (a *EmbeddingAdapter) Close() error {
	return a.plugin.Close()
}

var _ provider.EmbeddingProvider = (*EmbeddingAdapter)(nil)

// GeneratorAdapter adapts a plugin GeneratorProvider to provider.Generator.
type GeneratorAdapter struct {
	plugin shared.GeneratorProvider
}

// NewGeneratorAdapter creates a new generator adapter.
func NewGeneratorAdapter(p shared.GeneratorProvider) *GeneratorAdapter {
	return &GeneratorAdapter{plugin: p}
}

func (a *GeneratorAdapter) Name() string {
	return a.plugin.Name()
}

func (a *GeneratorAdapter) Generate(ctx context.Context, prompt string) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return a.plugin.Generate(prompt)
}

func (a *GeneratorAdapter) Close() error {
	return a.plugin.Close()
}

var _ provider.Generator = (*GeneratorAdapter)(nil)
