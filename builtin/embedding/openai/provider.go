// Package openai implements EmbeddingProvider on OpenAI-compatible APIs
// (OpenAI, OpenRouter, Azure, local gateways).
package openai

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/spetr/mcp-vecstore/internal/metrics"
	"github.com/spetr/mcp-vecstore/pkg/provider"
	"github.com/spetr/mcp-vecstore/pkg/types"
)

// Default values
const (
	DefaultModel      = string(openai.LargeEmbedding3)
	DefaultBatchSize  = 100
	DefaultDimensions = 3072
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// Model dimensions for known models
var modelDimensions = map[string]int{
	"text-embedding-ada-002":        1536,
	"text-embedding-3-small":        1536,
	"text-embedding-3-large":        3072,
	"openai/text-embedding-3-small": 1536,
	"openai/text-embedding-3-large": 3072,
}

// Config contains OpenAI provider configuration.
type Config struct {
	Model      string
	APIKey     string  // If empty, uses OPENAI_API_KEY, then OPENROUTER_API_KEY
	BaseURL    string  // Optional: custom API endpoint
	BatchSize  int
	Dimensions int     // Requested output size; 0 uses the model default
	RateLimit  float64 // Requests per second; 0 disables limiting
}

// Provider implements the EmbeddingProvider interface for OpenAI-compatible APIs.
type Provider struct {
	config     Config
	client     *openai.Client
	limiter    *rate.Limiter
	dimensions int
	mu         sync.RWMutex
}

// New creates a new embedding provider.
func New(cfg Config) *Provider {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	apiKey, baseURL := ResolveCredentials(cfg.APIKey, cfg.BaseURL)
	cfg.APIKey, cfg.BaseURL = apiKey, baseURL

	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	dimensions := cfg.Dimensions
	if dimensions == 0 {
		if d, ok := modelDimensions[cfg.Model]; ok {
			dimensions = d
		}
	}

	return &Provider{
		config:     cfg,
		client:     openai.NewClientWithConfig(clientConfig),
		limiter:    limiter,
		dimensions: dimensions,
	}
}

// ResolveCredentials picks the API key from config or environment. An
// OpenRouter key without an explicit base URL selects the OpenRouter endpoint.
func ResolveCredentials(apiKey, baseURL string) (string, string) {
	if apiKey != "" {
		return apiKey, baseURL
	}
	if k := os.Getenv("OPENAI_API_KEY"); k != "" {
		return k, baseURL
	}
	if k := os.Getenv("OPENROUTER_API_KEY"); k != "" {
		if baseURL == "" {
			baseURL = OpenRouterBaseURL
		}
		return k, baseURL
	}
	return "", baseURL
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "openai"
}

// Embed generates embeddings for the given texts.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))

	for i := 0; i < len(texts); i += p.config.BatchSize {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		} else if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		end := min(i+p.config.BatchSize, len(texts))
		batch := texts[i:end]

		req := openai.EmbeddingRequest{
			Input:      batch,
			Model:      openai.EmbeddingModel(p.config.Model),
			Dimensions: p.config.Dimensions,
		}

		resp, err := p.client.CreateEmbeddings(ctx, req)
		if err != nil {
			metrics.EmbeddingRequestsTotal.WithLabelValues(p.Name(), metrics.StatusError).Inc()
			return nil, fmt.Errorf("%w: openai: %w", types.ErrEmbeddingFailed, err)
		}
		metrics.EmbeddingRequestsTotal.WithLabelValues(p.Name(), metrics.StatusOK).Inc()

		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("%w: openai returned %d embeddings for %d inputs",
				types.ErrEmbeddingFailed, len(resp.Data), len(batch))
		}
		for j, data := range resp.Data {
			idx := j
			if data.Index >= 0 && data.Index < len(batch) {
				idx = data.Index
			}
			results[i+idx] = data.Embedding
		}

		// Learn dimensions from the first response for unknown models
		if p.Dimensions() == 0 && len(resp.Data[0].Embedding) > 0 {
			p.mu.Lock()
			p.dimensions = len(resp.Data[0].Embedding)
			p.mu.Unlock()
		}
	}

	return results, nil
}

// Dimensions returns the embedding dimensions, or 0 when not yet known.
func (p *Provider) Dimensions() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dimensions
}

// MaxBatchSize returns the maximum batch size.
func (p *Provider) MaxBatchSize() int {
	return p.config.BatchSize
}

// Warmup tests the API connection.
func (p *Provider) Warmup(ctx context.Context) error {
	if p.config.APIKey == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY or OPENROUTER_API_KEY not set", types.ErrProviderNotAvailable)
	}
	_, err := p.Embed(ctx, []string{"test"})
	return err
}

// Close releases resources.
func (p *Provider) Close() error {
	return nil
}

var _ provider.EmbeddingProvider = (*Provider)(nil)
