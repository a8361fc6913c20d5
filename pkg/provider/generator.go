package provider

import "context"

// Generator produces text answers for prompts.
type Generator interface {
	// Name returns the generator name.
	Name() string

	// Generate returns a completion for the prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// Close releases any resources.
	Close() error
}

// GeneratorConfig contains configuration for generators.
type GeneratorConfig struct {
	Provider string // "openai", "canned"
	Model    string
	Endpoint string
	APIKey   string
}
