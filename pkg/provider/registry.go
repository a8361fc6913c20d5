package provider

import (
	"fmt"
	"sort"
	"sync"
)

// EmbeddingFactory creates an EmbeddingProvider from configuration.
type EmbeddingFactory func(config EmbeddingConfig) (EmbeddingProvider, error)

// GeneratorFactory creates a Generator from configuration.
type GeneratorFactory func(config GeneratorConfig) (Generator, error)

// BackendFactory creates a KeyValueBackend from configuration.
type BackendFactory func(config BackendConfig) (KeyValueBackend, error)

// Registry holds factories for all provider types.
type Registry struct {
	mu sync.RWMutex

	embeddingFactories map[string]EmbeddingFactory
	generatorFactories map[string]GeneratorFactory
	backendFactories   map[string]BackendFactory
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		embeddingFactories: make(map[string]EmbeddingFactory),
		generatorFactories: make(map[string]GeneratorFactory),
		backendFactories:   make(map[string]BackendFactory),
	}
}

// RegisterEmbedding registers an embedding provider factory.
func (r *Registry) RegisterEmbedding(name string, factory EmbeddingFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeddingFactories[name] = factory
}

// RegisterGenerator registers a generator factory.
func (r *Registry) RegisterGenerator(name string, factory GeneratorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generatorFactories[name] = factory
}

// RegisterBackend registers a key-value backend factory.
func (r *Registry) RegisterBackend(name string, factory BackendFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backendFactories[name] = factory
}

// CreateEmbedding creates an embedding provider by name.
func (r *Registry) CreateEmbedding(name string, config EmbeddingConfig) (EmbeddingProvider, error) {
	r.mu.RLock()
	factory, ok := r.embeddingFactories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown embedding provider: %s (available: %v)", name, r.ListEmbeddings())
	}
	return factory(config)
}

// CreateGenerator creates a generator by name.
func (r *Registry) CreateGenerator(name string, config GeneratorConfig) (Generator, error) {
	r.mu.RLock()
	factory, ok := r.generatorFactories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown generator: %s (available: %v)", name, r.ListGenerators())
	}
	return factory(config)
}

// CreateBackend creates a key-value backend by name.
func (r *Registry) CreateBackend(name string, config BackendConfig) (KeyValueBackend, error) {
	r.mu.RLock()
	factory, ok := r.backendFactories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown backend: %s (available: %v)", name, r.ListBackends())
	}
	return factory(config)
}

// ListEmbeddings returns all registered embedding provider names.
func (r *Registry) ListEmbeddings() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.embeddingFactories)
}

// ListGenerators returns all registered generator names.
func (r *Registry) ListGenerators() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.generatorFactories)
}

// ListBackends returns all registered backend names.
func (r *Registry) ListBackends() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.backendFactories)
}

// HasEmbedding checks if an embedding provider is registered.
func (r *Registry) HasEmbedding(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.embeddingFactories[name]
	return ok
}

// HasGenerator checks if a generator is registered.
func (r *Registry) HasGenerator(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.generatorFactories[name]
	return ok
}

// HasBackend checks if a backend is registered.
func (r *Registry) HasBackend(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.backendFactories[name]
	return ok
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global default registry.
var DefaultRegistry = NewRegistry()

// Register functions for the default registry.

// RegisterEmbedding registers an embedding provider in the default registry.
func RegisterEmbedding(name string, factory EmbeddingFactory) {
	DefaultRegistry.RegisterEmbedding(name, factory)
}

// RegisterGenerator registers a generator in the default registry.
func RegisterGenerator(name string, factory GeneratorFactory) {
	DefaultRegistry.RegisterGenerator(name, factory)
}

// RegisterBackend registers a backend in the default registry.
func RegisterBackend(name string, factory BackendFactory) {
	DefaultRegistry.RegisterBackend(name, factory)
}
