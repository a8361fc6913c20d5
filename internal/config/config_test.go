package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestValidateBackendType(t *testing.T) {
	tests := []struct {
		backend string
		wantErr bool
	}{
		{"redis", false},
		{"sqlite", false},
		{"bolt", false},
		{"none", false},
		{"memcached", true},
		{"REDIS", true}, // case sensitive
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Backend.Type = tt.backend
			errs := Validate(cfg)

			if hasErr := len(errs) > 0; hasErr != tt.wantErr {
				t.Errorf("Validate(Backend.Type=%q) errs=%v, wantErr %v", tt.backend, errs, tt.wantErr)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"redis without url", func(c *Config) { c.Backend.URL = "" }, true},
		{"sqlite without url", func(c *Config) { c.Backend.Type = "sqlite"; c.Backend.URL = "" }, false},
		{"empty prefix", func(c *Config) { c.VectorStore.Prefix = "" }, true},
		{"negative dimensions", func(c *Config) { c.VectorStore.Dimensions = -1 }, true},
		{"dimension mismatch", func(c *Config) { c.VectorStore.Dimensions = 3072; c.Embedding.Dimensions = 1024 }, true},
		{"dimension match", func(c *Config) { c.VectorStore.Dimensions = 1024; c.Embedding.Dimensions = 1024 }, false},
		{"plugin embedding", func(c *Config) { c.Embedding.Provider = "hash-embedding" }, false},
		{"empty embedding", func(c *Config) { c.Embedding.Provider = "" }, true},
		{"empty generation", func(c *Config) { c.Generation.Provider = "" }, true},
		{"negative rate limit", func(c *Config) { c.Embedding.RateLimit = -1 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"negative debounce", func(c *Config) { c.Ingest.Debounce = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			errs := Validate(cfg)
			if hasErr := len(errs) > 0; hasErr != tt.wantErr {
				t.Errorf("Validate() errs=%v, wantErr %v", errs, tt.wantErr)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.VectorStore.Prefix != "btagent:" {
		t.Errorf("DefaultConfig().VectorStore.Prefix = %q, want %q", cfg.VectorStore.Prefix, "btagent:")
	}
	if cfg.EventsChannel() != "btagent:events" {
		t.Errorf("EventsChannel() = %q", cfg.EventsChannel())
	}
	if !cfg.MCP.Catalog {
		t.Error("catalog tools should be enabled by default")
	}
	if got := cfg.PluginsDir("/srv/app"); got != filepath.Join("/srv/app", ".mcp-vecstore", "plugins") {
		t.Errorf("PluginsDir() = %q", got)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	dir := t.TempDir()

	cfg, warnings, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(warnings) == 0 {
		t.Error("expected a warning about the missing config file")
	}
	if cfg.Backend.Type != "redis" || cfg.Embedding.BatchSize != 64 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Backend.Type = "bolt"
	cfg.Backend.Path = "/var/lib/vecstore/vectors.bolt"
	cfg.VectorStore.Prefix = "fleet:"
	cfg.VectorStore.Dimensions = 1536
	cfg.Ingest.WatchDir = "/var/spool/vectors"
	cfg.Ingest.Debounce = 2 * time.Second

	if err := Save(dir, cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if _, err := os.Stat(ConfigPath(dir)); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	loaded, warnings, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if loaded.Backend.Type != "bolt" || loaded.Backend.Path != cfg.Backend.Path {
		t.Errorf("backend = %+v", loaded.Backend)
	}
	if loaded.VectorStore.Prefix != "fleet:" || loaded.VectorStore.Dimensions != 1536 {
		t.Errorf("vectorstore = %+v", loaded.VectorStore)
	}
	if loaded.Ingest.WatchDir != cfg.Ingest.WatchDir || loaded.Ingest.Debounce != 2*time.Second {
		t.Errorf("ingest = %+v", loaded.Ingest)
	}
	if loaded.EventsChannel() != "fleet:events" {
		t.Errorf("EventsChannel() = %q", loaded.EventsChannel())
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()

	t.Setenv("REDIS_URL", "redis://cache:6380/2")
	t.Setenv("REDIS_PREFIX", "staging:")
	t.Setenv("VECSTORE_EMBEDDING_PROVIDER", "hash")

	cfg, _, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Backend.URL != "redis://cache:6380/2" {
		t.Errorf("Backend.URL = %q", cfg.Backend.URL)
	}
	if cfg.VectorStore.Prefix != "staging:" {
		t.Errorf("VectorStore.Prefix = %q", cfg.VectorStore.Prefix)
	}
	if cfg.Embedding.Provider != "hash" {
		t.Errorf("Embedding.Provider = %q", cfg.Embedding.Provider)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()

	// godotenv never overrides a variable that is already set.
	t.Setenv("VECSTORE_BACKEND_TYPE", "")
	os.Unsetenv("VECSTORE_BACKEND_TYPE")

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("VECSTORE_BACKEND_TYPE=sqlite\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("VECSTORE_BACKEND_TYPE") })

	cfg, _, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Backend.Type != "sqlite" {
		t.Errorf("Backend.Type = %q, want sqlite from .env", cfg.Backend.Type)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(ConfigDir(dir), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ConfigPath(dir), []byte("backend: [unclosed\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := Load(dir); err == nil {
		t.Error("expected error for malformed YAML")
	}
}
