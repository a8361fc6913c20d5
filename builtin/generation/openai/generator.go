// Package openai implements Generator with OpenAI-compatible chat completions.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	embedopenai "github.com/spetr/mcp-vecstore/builtin/embedding/openai"
	"github.com/spetr/mcp-vecstore/pkg/provider"
)

// DefaultModel is used when no model is configured.
const DefaultModel = openai.GPT4oMini

// DefaultSystemPrompt frames answers around retrieved records.
const DefaultSystemPrompt = "You are a helpful sales assistant for a commercial vehicle dealer. " +
	"Answer using the provided context. If the context does not contain the answer, say so."

// Config contains generator configuration.
type Config struct {
	Model        string
	APIKey       string // If empty, uses OPENAI_API_KEY, then OPENROUTER_API_KEY
	BaseURL      string
	SystemPrompt string
	MaxTokens    int
}

// Generator answers prompts with a chat completion.
type Generator struct {
	config Config
	client *openai.Client
}

// New creates a chat completion generator.
func New(cfg Config) *Generator {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}

	apiKey, baseURL := embedopenai.ResolveCredentials(cfg.APIKey, cfg.BaseURL)
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}

	return &Generator{
		config: cfg,
		client: openai.NewClientWithConfig(clientConfig),
	}
}

func (g *Generator) Name() string { return "openai" }

// Generate sends prompt as the user message and returns the first choice.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: g.config.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: g.config.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (g *Generator) Close() error { return nil }

var _ provider.Generator = (*Generator)(nil)
