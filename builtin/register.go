// Package builtin registers all built-in providers with the default registry.
package builtin

import (
	"path/filepath"

	hashEmbed "github.com/spetr/mcp-vecstore/builtin/embedding/hash"
	openaiEmbed "github.com/spetr/mcp-vecstore/builtin/embedding/openai"
	"github.com/spetr/mcp-vecstore/builtin/generation/canned"
	openaiGen "github.com/spetr/mcp-vecstore/builtin/generation/openai"
	"github.com/spetr/mcp-vecstore/builtin/kv/bolt"
	"github.com/spetr/mcp-vecstore/builtin/kv/null"
	"github.com/spetr/mcp-vecstore/builtin/kv/redis"
	"github.com/spetr/mcp-vecstore/builtin/kv/sqlite"
	"github.com/spetr/mcp-vecstore/pkg/provider"
)

// DataDir is where file backends keep their database when no path is configured.
const DataDir = ".mcp-vecstore"

func init() {
	// Register key-value backends
	provider.RegisterBackend("redis", func(cfg provider.BackendConfig) (provider.KeyValueBackend, error) {
		return redis.New(redis.Config{
			URL:      cfg.URL,
			PoolSize: cfg.PoolSize,
		})
	})

	provider.RegisterBackend("sqlite", func(cfg provider.BackendConfig) (provider.KeyValueBackend, error) {
		path := cfg.Path
		if path == "" {
			path = filepath.Join(DataDir, "vectors.db")
		}
		return sqlite.Open(path)
	})

	provider.RegisterBackend("bolt", func(cfg provider.BackendConfig) (provider.KeyValueBackend, error) {
		path := cfg.Path
		if path == "" {
			path = filepath.Join(DataDir, "vectors.bolt")
		}
		return bolt.Open(path)
	})

	provider.RegisterBackend("none", func(cfg provider.BackendConfig) (provider.KeyValueBackend, error) {
		return null.New(), nil
	})

	// Register embedding providers
	provider.RegisterEmbedding("openai", func(cfg provider.EmbeddingConfig) (provider.EmbeddingProvider, error) {
		return openaiEmbed.New(openaiEmbed.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.Endpoint,
			Model:      cfg.Model,
			BatchSize:  cfg.BatchSize,
			Dimensions: cfg.Dimensions,
			RateLimit:  cfg.RateLimit,
		}), nil
	})

	provider.RegisterEmbedding("hash", func(cfg provider.EmbeddingConfig) (provider.EmbeddingProvider, error) {
		return hashEmbed.New(hashEmbed.Config{
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
		}), nil
	})

	// Register answer generators
	provider.RegisterGenerator("openai", func(cfg provider.GeneratorConfig) (provider.Generator, error) {
		return openaiGen.New(openaiGen.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.Endpoint,
			Model:   cfg.Model,
		}), nil
	})

	provider.RegisterGenerator("canned", func(cfg provider.GeneratorConfig) (provider.Generator, error) {
		return canned.New(canned.Config{}), nil
	})
}
