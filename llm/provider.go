package llm

import (
	"context"
	"fmt"

	"github.com/it-spirit/spiritsearch/config"
)

// Provider generates chat completions.
type Provider interface {
	// Chat sends a system+user prompt pair and returns the assistant text.
	Chat(ctx context.Context, system, user string) (string, error)
}

// NewProvider creates an LLM provider from configuration.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		return newOpenAIProvider(cfg)
	default:
		return nil, fmt.Errorf("llm: unsupported provider: %s", cfg.Provider)
	}
}
