package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"

	_ "github.com/spetr/mcp-vecstore/builtin"
	"github.com/spetr/mcp-vecstore/builtin/kv/redis"
	"github.com/spetr/mcp-vecstore/internal/config"
	"github.com/spetr/mcp-vecstore/internal/metrics"
	"github.com/spetr/mcp-vecstore/internal/notify"
	"github.com/spetr/mcp-vecstore/internal/vectorstore"
	"github.com/spetr/mcp-vecstore/pkg/plugin/host"
	"github.com/spetr/mcp-vecstore/pkg/plugin/shared"
	"github.com/spetr/mcp-vecstore/pkg/provider"
	"github.com/spetr/mcp-vecstore/pkg/types"
)

// app holds everything a command needs, built from the loaded config.
type app struct {
	cwd       string
	cfg       *config.Config
	backend   provider.KeyValueBackend
	store     *vectorstore.Store
	redis     *goredis.Client // nil unless the backend is Redis
	notifier  notify.Notifier
	realtime  metrics.Realtime
	embedding provider.EmbeddingProvider
	generator provider.Generator
	plugins   *host.Manager
}

// appOptions selects the optional providers a command needs.
type appOptions struct {
	embedding bool
	generator bool
}

// loadConfig loads and reports the configuration for the working directory.
func loadConfig() (string, *config.Config) {
	cwd, _ := os.Getwd()

	cfg, warnings, err := config.Load(cwd)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	for _, w := range warnings {
		slog.Debug(w)
	}
	return cwd, cfg
}

// newApp creates the backend, store and requested providers.
func newApp(opts appOptions) (*app, error) {
	cwd, cfg := loadConfig()

	backend, err := provider.DefaultRegistry.CreateBackend(cfg.Backend.Type, provider.BackendConfig{
		Type:     cfg.Backend.Type,
		URL:      cfg.Backend.URL,
		Path:     cfg.Backend.Path,
		PoolSize: cfg.Backend.PoolSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create backend: %w", err)
	}

	a := &app{
		cwd:     cwd,
		cfg:     cfg,
		backend: backend,
		store: vectorstore.New(vectorstore.Config{
			Backend:    backend,
			Prefix:     cfg.VectorStore.Prefix,
			Dimensions: cfg.VectorStore.Dimensions,
		}),
		plugins: host.NewManager(cfg.PluginsDir(cwd)),
	}

	if rb, ok := backend.(*redis.Backend); ok {
		a.redis = rb.Client()
	}
	if cfg.Notify.Enabled {
		a.notifier = notify.New(a.redis)
	}
	a.realtime = metrics.NewRealtime(a.redis, cfg.VectorStore.Prefix)

	if opts.embedding {
		if a.embedding, err = a.createEmbedding(); err != nil {
			a.Close()
			return nil, err
		}
	}
	if opts.generator {
		if a.generator, err = a.createGenerator(); err != nil {
			a.Close()
			return nil, err
		}
	}

	return a, nil
}

// mustApp is newApp for commands that cannot continue without it.
func mustApp(opts appOptions) *app {
	a, err := newApp(opts)
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	return a
}

// createEmbedding returns a built-in provider or falls back to a plugin of that name.
func (a *app) createEmbedding() (provider.EmbeddingProvider, error) {
	cfg := a.cfg.Embedding
	switch {
	case cfg.Provider == "none":
		return nil, nil
	case provider.DefaultRegistry.HasEmbedding(cfg.Provider):
		return provider.DefaultRegistry.CreateEmbedding(cfg.Provider, provider.EmbeddingConfig{
			Provider:   cfg.Provider,
			Model:      cfg.Model,
			Endpoint:   cfg.Endpoint,
			APIKey:     cfg.APIKey,
			BatchSize:  cfg.BatchSize,
			Dimensions: cfg.Dimensions,
			RateLimit:  cfg.RateLimit,
		})
	}

	loaded, err := a.plugins.LoadPlugin(cfg.Provider, shared.PluginTypeEmbedding)
	if err != nil {
		return nil, fmt.Errorf("unsupported embedding provider %s: %w", cfg.Provider, err)
	}
	return host.NewEmbeddingAdapter(loaded.Embedding), nil
}

// createGenerator returns a built-in generator or falls back to a plugin of that name.
func (a *app) createGenerator() (provider.Generator, error) {
	cfg := a.cfg.Generation
	switch {
	case cfg.Provider == "none":
		return nil, nil
	case provider.DefaultRegistry.HasGenerator(cfg.Provider):
		return provider.DefaultRegistry.CreateGenerator(cfg.Provider, provider.GeneratorConfig{
			Provider: cfg.Provider,
			Model:    cfg.Model,
			Endpoint: cfg.Endpoint,
			APIKey:   cfg.APIKey,
		})
	}

	loaded, err := a.plugins.LoadPlugin(cfg.Provider, shared.PluginTypeGenerator)
	if err != nil {
		return nil, fmt.Errorf("unsupported generator %s: %w", cfg.Provider, err)
	}
	return host.NewGeneratorAdapter(loaded.Generator), nil
}

// publish sends a change event when notifications are enabled.
func (a *app) publish(ctx context.Context, eventType string, ids []string, count int) {
	if a.notifier == nil {
		return
	}
	event := types.Event{
		Type:      eventType,
		IDs:       ids,
		Count:     count,
		Timestamp: time.Now().UTC(),
	}
	if err := a.notifier.Publish(ctx, a.cfg.EventsChannel(), event); err != nil {
		slog.Warn("failed to publish event", "type", eventType, "error", err)
	}
}

// Close releases providers, plugins and the backend.
func (a *app) Close() {
	if a.notifier != nil {
		if err := a.notifier.Close(); err != nil {
			slog.Warn("failed to close notifier", "error", err)
		}
	}
	// Plugin-backed providers are closed by UnloadAll.
	if _, plugin := a.embedding.(*host.EmbeddingAdapter); a.embedding != nil && !plugin {
		if err := a.embedding.Close(); err != nil {
			slog.Warn("failed to close embedding", "error", err)
		}
	}
	if _, plugin := a.generator.(*host.GeneratorAdapter); a.generator != nil && !plugin {
		if err := a.generator.Close(); err != nil {
			slog.Warn("failed to close generator", "error", err)
		}
	}
	a.plugins.UnloadAll()
	if err := a.backend.Close(); err != nil {
		slog.Warn("failed to close backend", "error", err)
	}
}
