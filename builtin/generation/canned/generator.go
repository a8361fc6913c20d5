// Package canned implements an offline Generator that answers from a fixed
// keyword table.
package canned

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spetr/mcp-vecstore/pkg/provider"
)

// Answer maps a keyword to a reply. The keyword matches case-insensitively
// anywhere in the prompt.
type Answer struct {
	Keyword string `mapstructure:"keyword" yaml:"keyword" json:"keyword"`
	Reply   string `mapstructure:"reply" yaml:"reply" json:"reply"`
}

// DefaultAnswers is the built-in dealer assistant table.
var DefaultAnswers = []Answer{
	{
		Keyword: "hello",
		Reply:   "Hello! I am the Business Trucks virtual assistant. How can I help you?",
	},
	{
		Keyword: "which trucks",
		Reply:   "We sell commercial vehicles from KAMAZ, MAZ, GAZ, Hyundai and Isuzu. Which make are you interested in?",
	},
	{
		Keyword: "kamaz",
		Reply: "KAMAZ models include the 5490 tractor unit, the 65115 and 6520 dump trucks, " +
			"the 43118 off-road flatbed and the 65207 flatbed. Which model are you interested in?",
	},
	{
		Keyword: "financing",
		Reply: "We offer leasing from 10% down for up to 60 months, credit from 15% down for up to 60 months, " +
			"trade-in of your current vehicle and rent-to-own. Which option suits you?",
	},
}

// DefaultReply is returned when no keyword matches.
const DefaultReply = "I am the Business Trucks virtual assistant. I can tell you about our commercial vehicles, " +
	"financing options and anything else about the company. How can I help?"

// Config contains canned generator configuration.
type Config struct {
	Answers []Answer
	Default string
}

// Generator returns the first matching canned reply.
type Generator struct {
	answers []Answer
	def     string
}

// New creates a canned generator. Empty config selects the built-in table.
func New(cfg Config) *Generator {
	if len(cfg.Answers) == 0 {
		cfg.Answers = DefaultAnswers
	}
	if cfg.Default == "" {
		cfg.Default = DefaultReply
	}
	return &Generator{answers: cfg.Answers, def: cfg.Default}
}

func (g *Generator) Name() string { return "canned" }

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p := strings.ToLower(prompt)
	for _, a := range g.answers {
		if a.Keyword != "" && strings.Contains(p, strings.ToLower(a.Keyword)) {
			slog.Debug("canned answer matched", "keyword", a.Keyword)
			return a.Reply, nil
		}
	}
	return g.def, nil
}

func (g *Generator) Close() error { return nil }

var _ provider.Generator = (*Generator)(nil)
