// Package config handles configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/spetr/mcp-vecstore/pkg/types"
)

// EnvPrefix is prepended to every environment override (VECSTORE_BACKEND_URL, ...).
const EnvPrefix = "VECSTORE"

// Config represents the complete configuration.
type Config struct {
	Backend     BackendConfig     `mapstructure:"backend" yaml:"backend"`
	VectorStore VectorStoreConfig `mapstructure:"vectorstore" yaml:"vectorstore"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding" yaml:"embedding"`
	Generation  GenerationConfig  `mapstructure:"generation" yaml:"generation"`
	Notify      NotifyConfig      `mapstructure:"notify" yaml:"notify"`
	Metrics     MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
	Ingest      IngestConfig      `mapstructure:"ingest" yaml:"ingest"`
	Plugins     PluginsConfig     `mapstructure:"plugins" yaml:"plugins"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
	MCP         MCPConfig         `mapstructure:"mcp" yaml:"mcp"`
}

// BackendConfig selects the key-value backend.
type BackendConfig struct {
	Type     string `mapstructure:"type" yaml:"type"`           // redis, sqlite, bolt, none
	URL      string `mapstructure:"url" yaml:"url"`             // redis://host:port/db
	Path     string `mapstructure:"path" yaml:"path"`           // database file for sqlite/bolt
	PoolSize int    `mapstructure:"pool_size" yaml:"pool_size"` // redis connections, 0 = library default
}

// VectorStoreConfig contains vector store configuration.
type VectorStoreConfig struct {
	Prefix     string `mapstructure:"prefix" yaml:"prefix"`         // key namespace
	Dimensions int    `mapstructure:"dimensions" yaml:"dimensions"` // 0 = unchecked
}

// EmbeddingConfig contains embedding provider configuration.
type EmbeddingConfig struct {
	Provider   string  `mapstructure:"provider" yaml:"provider"`     // openai, hash, none, or a plugin name
	Model      string  `mapstructure:"model" yaml:"model"`           // model name
	Endpoint   string  `mapstructure:"endpoint" yaml:"endpoint"`     // OpenAI-compatible base URL
	APIKey     string  `mapstructure:"api_key" yaml:"api_key"`       // API key
	BatchSize  int     `mapstructure:"batch_size" yaml:"batch_size"` // texts per request
	Dimensions int     `mapstructure:"dimensions" yaml:"dimensions"` // output dimension, 0 = model default
	RateLimit  float64 `mapstructure:"rate_limit" yaml:"rate_limit"` // requests per second, 0 = unlimited
}

// GenerationConfig contains the answer generator used by the ask tool.
type GenerationConfig struct {
	Provider string `mapstructure:"provider" yaml:"provider"` // openai, canned, none, or a plugin name
	Model    string `mapstructure:"model" yaml:"model"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key"`
}

// NotifyConfig contains change event settings.
type NotifyConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Channel string `mapstructure:"channel" yaml:"channel"` // empty = <prefix>events
}

// MetricsConfig contains the Prometheus endpoint settings.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"` // empty disables the endpoint
}

// IngestConfig contains file ingestion settings.
type IngestConfig struct {
	WatchDir       string        `mapstructure:"watch_dir" yaml:"watch_dir"`               // watched by serve when set
	DeleteOnRemove bool          `mapstructure:"delete_on_remove" yaml:"delete_on_remove"` // delete records of removed files
	Debounce       time.Duration `mapstructure:"debounce" yaml:"debounce"`
	Concurrency    int           `mapstructure:"concurrency" yaml:"concurrency"` // parallel embedding batches
}

// PluginsConfig contains plugin discovery settings.
type PluginsConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"` // empty = .mcp-vecstore/plugins
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // text, json
}

// MCPConfig contains MCP server configuration.
type MCPConfig struct {
	// Catalog registers the list_tools and suggest_tool helpers.
	Catalog bool `mapstructure:"catalog" yaml:"catalog"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			Type: "redis",
			URL:  "redis://localhost:6379/0",
		},
		VectorStore: VectorStoreConfig{
			Prefix: types.DefaultPrefix,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-large",
			BatchSize: 64,
		},
		Generation: GenerationConfig{
			Provider: "canned",
		},
		Notify: NotifyConfig{
			Enabled: true,
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9464",
		},
		Ingest: IngestConfig{
			Debounce:    500 * time.Millisecond,
			Concurrency: 2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		MCP: MCPConfig{
			Catalog: true,
		},
	}
}

// ConfigDir returns the path to .mcp-vecstore directory.
func ConfigDir(projectRoot string) string {
	return filepath.Join(projectRoot, ".mcp-vecstore")
}

// ConfigPath returns the path to config.yaml.
func ConfigPath(projectRoot string) string {
	return filepath.Join(ConfigDir(projectRoot), "config.yaml")
}

// PluginsDir returns the configured plugins directory.
func (c *Config) PluginsDir(projectRoot string) string {
	if c.Plugins.Dir != "" {
		return c.Plugins.Dir
	}
	return filepath.Join(ConfigDir(projectRoot), "plugins")
}

// EventsChannel returns the pub/sub channel for change events.
func (c *Config) EventsChannel() string {
	if c.Notify.Channel != "" {
		return c.Notify.Channel
	}
	return c.VectorStore.Prefix + "events"
}

// newViper returns a viper instance with defaults and environment bindings.
func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Variables shared with the dashboard and scraper deployments.
	_ = v.BindEnv("backend.url", EnvPrefix+"_BACKEND_URL", "REDIS_URL")
	_ = v.BindEnv("vectorstore.prefix", EnvPrefix+"_VECTORSTORE_PREFIX", "REDIS_PREFIX")
	return v
}

// setDefaults registers every key so AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("backend.type", cfg.Backend.Type)
	v.SetDefault("backend.url", cfg.Backend.URL)
	v.SetDefault("backend.path", cfg.Backend.Path)
	v.SetDefault("backend.pool_size", cfg.Backend.PoolSize)

	v.SetDefault("vectorstore.prefix", cfg.VectorStore.Prefix)
	v.SetDefault("vectorstore.dimensions", cfg.VectorStore.Dimensions)

	v.SetDefault("embedding.provider", cfg.Embedding.Provider)
	v.SetDefault("embedding.model", cfg.Embedding.Model)
	v.SetDefault("embedding.endpoint", cfg.Embedding.Endpoint)
	v.SetDefault("embedding.api_key", cfg.Embedding.APIKey)
	v.SetDefault("embedding.batch_size", cfg.Embedding.BatchSize)
	v.SetDefault("embedding.dimensions", cfg.Embedding.Dimensions)
	v.SetDefault("embedding.rate_limit", cfg.Embedding.RateLimit)

	v.SetDefault("generation.provider", cfg.Generation.Provider)
	v.SetDefault("generation.model", cfg.Generation.Model)
	v.SetDefault("generation.endpoint", cfg.Generation.Endpoint)
	v.SetDefault("generation.api_key", cfg.Generation.APIKey)

	v.SetDefault("notify.enabled", cfg.Notify.Enabled)
	v.SetDefault("notify.channel", cfg.Notify.Channel)

	v.SetDefault("metrics.addr", cfg.Metrics.Addr)

	v.SetDefault("ingest.watch_dir", cfg.Ingest.WatchDir)
	v.SetDefault("ingest.delete_on_remove", cfg.Ingest.DeleteOnRemove)
	v.SetDefault("ingest.debounce", cfg.Ingest.Debounce)
	v.SetDefault("ingest.concurrency", cfg.Ingest.Concurrency)

	v.SetDefault("plugins.dir", cfg.Plugins.Dir)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("mcp.catalog", cfg.MCP.Catalog)
}

// Load loads configuration from .env, the config file and the environment,
// falling back to defaults.
func Load(projectRoot string) (*Config, []string, error) {
	warnings := []string{}

	envPath := filepath.Join(projectRoot, ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		warnings = append(warnings, fmt.Sprintf("Ignoring unreadable %s: %v", envPath, err))
	}

	v := newViper()

	configPath := ConfigPath(projectRoot)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		warnings = append(warnings, "No config file found, using defaults")
	} else {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply defaults for values explicitly blanked in the file
	if cfg.VectorStore.Prefix == "" {
		cfg.VectorStore.Prefix = types.DefaultPrefix
		warnings = append(warnings, "Using default key prefix: "+types.DefaultPrefix)
	}
	if cfg.Backend.Type == "" {
		cfg.Backend.Type = "redis"
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 64
	}
	if cfg.Ingest.Debounce == 0 {
		cfg.Ingest.Debounce = 500 * time.Millisecond
	}
	if cfg.Backend.Type == "redis" && cfg.Backend.URL == "" {
		cfg.Backend.URL = "redis://localhost:6379/0"
	}

	return cfg, warnings, nil
}

// Save saves configuration to file.
func Save(projectRoot string, cfg *Config) error {
	configDir := ConfigDir(projectRoot)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(ConfigPath(projectRoot))
	v.SetConfigType("yaml")

	// Set all values
	v.Set("backend", cfg.Backend)
	v.Set("vectorstore", cfg.VectorStore)
	v.Set("embedding", cfg.Embedding)
	v.Set("generation", cfg.Generation)
	v.Set("notify", cfg.Notify)
	v.Set("metrics", cfg.Metrics)
	v.Set("ingest", cfg.Ingest)
	v.Set("plugins", cfg.Plugins)
	v.Set("logging", cfg.Logging)
	v.Set("mcp", cfg.MCP)

	return v.WriteConfig()
}

// Watch re-reads the config file whenever it changes and passes the result to
// onChange. It returns an error if the file cannot be read initially.
func Watch(projectRoot string, onChange func(*Config, error)) error {
	v := newViper()
	v.SetConfigFile(ConfigPath(projectRoot))
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg := &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			onChange(nil, fmt.Errorf("failed to parse config: %w", err))
			return
		}
		onChange(cfg, nil)
	})
	v.WatchConfig()
	return nil
}

var (
	validBackends   = map[string]bool{"redis": true, "sqlite": true, "bolt": true, "none": true}
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	validLogFormats = map[string]bool{"text": true, "json": true, "": true}
)

// Validate validates the configuration.
func Validate(cfg *Config) []error {
	var errs []error

	// Validate backend
	if !validBackends[cfg.Backend.Type] {
		errs = append(errs, fmt.Errorf("invalid backend type: %s (valid: redis, sqlite, bolt, none)", cfg.Backend.Type))
	}
	if cfg.Backend.Type == "redis" && cfg.Backend.URL == "" {
		errs = append(errs, errors.New("backend.url is required for redis"))
	}
	if cfg.Backend.PoolSize < 0 {
		errs = append(errs, fmt.Errorf("invalid backend pool size: %d", cfg.Backend.PoolSize))
	}

	// Validate vector store
	if cfg.VectorStore.Prefix == "" {
		errs = append(errs, errors.New("vectorstore.prefix must not be empty"))
	}
	if cfg.VectorStore.Dimensions < 0 {
		errs = append(errs, fmt.Errorf("invalid vector dimensions: %d", cfg.VectorStore.Dimensions))
	}

	// Validate embedding
	if cfg.Embedding.Provider == "" {
		errs = append(errs, errors.New("embedding.provider must not be empty (use none to disable)"))
	}
	if cfg.Embedding.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("invalid embedding batch size: %d", cfg.Embedding.BatchSize))
	}
	if cfg.Embedding.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("invalid embedding rate limit: %g", cfg.Embedding.RateLimit))
	}
	if d := cfg.VectorStore.Dimensions; d > 0 && cfg.Embedding.Dimensions > 0 && cfg.Embedding.Dimensions != d {
		errs = append(errs, fmt.Errorf("embedding dimensions %d do not match vectorstore dimensions %d", cfg.Embedding.Dimensions, d))
	}

	// Validate generation
	if cfg.Generation.Provider == "" {
		errs = append(errs, errors.New("generation.provider must not be empty (use none to disable)"))
	}

	// Validate ingest
	if cfg.Ingest.Debounce < 0 {
		errs = append(errs, fmt.Errorf("invalid ingest debounce: %s", cfg.Ingest.Debounce))
	}
	if cfg.Ingest.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("invalid ingest concurrency: %d", cfg.Ingest.Concurrency))
	}

	// Validate logging
	if !validLogLevels[cfg.Logging.Level] {
		errs = append(errs, fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", cfg.Logging.Level))
	}
	if !validLogFormats[cfg.Logging.Format] {
		errs = append(errs, fmt.Errorf("invalid log format: %s (valid: text, json)", cfg.Logging.Format))
	}

	return errs
}
