// Package hash implements a deterministic offline EmbeddingProvider.
// Equal texts always map to the same unit vector; unrelated texts map to
// nearly orthogonal ones. Useful for tests and air-gapped setups.
package hash

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/spetr/mcp-vecstore/pkg/provider"
)

// Default values
const (
	DefaultDimensions = 384
	DefaultBatchSize  = 64
)

// Config contains hash provider configuration.
type Config struct {
	Dimensions int
	BatchSize  int
}

// Provider derives embeddings from SHA-256 digests.
type Provider struct {
	config Config
}

// New creates a hash embedding provider.
func New(cfg Config) *Provider {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Provider{config: cfg}
}

func (p *Provider) Name() string { return "hash" }

func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = Vector(text, p.config.Dimensions)
	}
	return out, nil
}

func (p *Provider) Dimensions() int                  { return p.config.Dimensions }
func (p *Provider) MaxBatchSize() int                { return p.config.BatchSize }
func (p *Provider) Warmup(ctx context.Context) error { return nil }
func (p *Provider) Close() error                     { return nil }

// Vector returns the unit vector of length dims derived from text.
// Each block of eight components comes from SHA-256(block index || text).
func Vector(text string, dims int) []float32 {
	vec := make([]float32, dims)
	buf := make([]byte, 4+len(text))
	copy(buf[4:], text)

	var sum float64
	for block := 0; block*8 < dims; block++ {
		binary.BigEndian.PutUint32(buf, uint32(block))
		digest := sha256.Sum256(buf)
		for j := 0; j < 8 && block*8+j < dims; j++ {
			u := binary.BigEndian.Uint32(digest[j*4:])
			// Map to [-1, 1)
			v := float64(u)/float64(1<<31) - 1
			vec[block*8+j] = float32(v)
			sum += v * v
		}
	}

	norm := math.Sqrt(sum)
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

var _ provider.EmbeddingProvider = (*Provider)(nil)
