// Package shared defines shared interfaces and types for external plugins.
package shared

import (
	"net/rpc"

	"github.com/hashicorp/go-plugin"
)

// Handshake is a common handshake that is shared by plugin and host.
// Prevents plugins compiled with different versions from running.
var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "MCP_VECSTORE_PLUGIN",
	MagicCookieValue: "mcp-vecstore-v1",
}

// PluginType identifies the type of plugin.
type PluginType string

const (
	PluginTypeEmbedding PluginType = "embedding"
	PluginTypeGenerator PluginType = "generator"
)

// PluginMap is the map of plugins we can dispense.
var PluginMap = map[string]plugin.Plugin{
	string(PluginTypeEmbedding): &EmbeddingPlugin{},
	string(PluginTypeGenerator): &GeneratorPlugin{},
}

// EmbeddingProvider is the interface that embedding plugins must implement.
// This mirrors pkg/provider.EmbeddingProvider but is self-contained for plugins.
type EmbeddingProvider interface {
	Name() string
	Embed(texts []string) ([][]float32, error)
	Dimensions() int
	MaxBatchSize() int
	Warmup() error
	Close() error
}

// GeneratorProvider is the interface that answer generator plugins must implement.
type GeneratorProvider interface {
	Name() string
	Generate(prompt string) (string, error)
	Close() error
}

// EmbeddingPlugin is the plugin.Plugin implementation for embedding providers.
type EmbeddingPlugin struct {
	Impl EmbeddingProvider
}

func (p *EmbeddingPlugin) Server(*plugin.MuxBroker) (any, error) {
	return &EmbeddingRPCServer{Impl: p.Impl}, nil
}

func (p *EmbeddingPlugin) Client(b *plugin.MuxBroker, c *rpc.Client) (any, error) {
	return &EmbeddingRPCClient{client: c}, nil
}

// GeneratorPlugin is the plugin.Plugin implementation for generators.
type GeneratorPlugin struct {
	Impl GeneratorProvider
}

func (p *GeneratorPlugin) Server(*plugin.MuxBroker) (any, error) {
	return &GeneratorRPCServer{Impl: p.Impl}, nil
}

func (p *GeneratorPlugin) Client(b *plugin.MuxBroker, c *rpc.Client) (any, error) {
	return &GeneratorRPCClient{client: c}, nil
}
