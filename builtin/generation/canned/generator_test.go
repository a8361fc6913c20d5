package canned

import (
	"context"
	"testing"
)

func TestGenerate(t *testing.T) {
	g := New(Config{})
	ctx := context.Background()

	tests := []struct {
		name   string
		prompt string
		want   string
	}{
		{"greeting", "Hello there", DefaultAnswers[0].Reply},
		{"case insensitive", "Tell me about KAMAZ trucks", DefaultAnswers[2].Reply},
		{"financing", "What financing do you offer?", DefaultAnswers[3].Reply},
		{"first match wins", "hello, what about financing?", DefaultAnswers[0].Reply},
		{"default", "What is the weather?", DefaultReply},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := g.Generate(ctx, tt.prompt)
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Generate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCustomTable(t *testing.T) {
	g := New(Config{
		Answers: []Answer{{Keyword: "price", Reply: "Ask sales."}},
		Default: "No idea.",
	})

	got, _ := g.Generate(context.Background(), "PRICE of a van")
	if got != "Ask sales." {
		t.Errorf("got %q", got)
	}
	got, _ = g.Generate(context.Background(), "hello")
	if got != "No idea." {
		t.Errorf("custom table must replace the built-in one, got %q", got)
	}
}

func TestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(Config{}).Generate(ctx, "hello"); err == nil {
		t.Error("expected context error")
	}
}
