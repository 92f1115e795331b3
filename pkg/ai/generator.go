// Package ai wraps hosted and self-hosted LLM chat endpoints behind one
// Generator interface.
package ai

import (
	"context"
	"fmt"
	"strings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn.
type Message struct {
	Role    Role
	Content string
}

// Request is a system prompt plus the conversation so far. The last message
// is normally from the user.
type Request struct {
	System   string
	Messages []Message
}

// Generator produces the next assistant turn. Every provider implements it.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Prompt builds a single-turn request.
func Prompt(system, user string) Request {
	return Request{System: system, Messages: []Message{{Role: RoleUser, Content: user}}}
}

// Config selects and configures a provider.
type Config struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"baseUrl"`
	APIKey   string `yaml:"apiKey"`
	Model    string `yaml:"model"`
}

// New builds the Generator named by cfg.Provider: openai (any
// OpenAI-compatible endpoint), gemini or ollama.
func New(cfg Config) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openai", "openai-compat":
		if strings.TrimSpace(cfg.BaseURL) == "" {
			cfg.BaseURL = defaultOpenAIBaseURL
		}
		return NewOpenAICompatGenerator(cfg.BaseURL, cfg.APIKey, cfg.Model), nil
	case "gemini":
		return NewGeminiGenerator(cfg.BaseURL, cfg.APIKey, cfg.Model)
	case "ollama":
		return NewOllamaGenerator(cfg.BaseURL, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func validate(req Request) error {
	if len(req.Messages) == 0 {
		return fmt.Errorf("at least one message required")
	}
	return nil
}
