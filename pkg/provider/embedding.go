// Package provider defines interfaces for pluggable components.
package provider

import (
	"context"
)

// EmbeddingProvider generates vector embeddings from text.
type EmbeddingProvider interface {
	// Name returns the provider name (e.g., "openai", "hash").
	Name() string

	// Embed generates embeddings for the given texts.
	// Returns a slice of embeddings, one for each input text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension size.
	Dimensions() int

	// MaxBatchSize returns the maximum number of texts per batch.
	MaxBatchSize() int

	// Warmup checks the provider is reachable.
	Warmup(ctx context.Context) error

	// Close releases any resources.
	Close() error
}

// EmbeddingConfig contains configuration for embedding providers.
type EmbeddingConfig struct {
	Provider   string  // "openai", "hash", or a plugin name
	Model      string  // Model name
	Endpoint   string  // API base URL (OpenAI-compatible)
	APIKey     string  // API key
	BatchSize  int     // Texts per request
	Dimensions int     // Output dimension (0 = model default)
	RateLimit  float64 // Requests per second (0 = unlimited)
}
