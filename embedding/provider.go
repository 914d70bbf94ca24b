package embedding

import (
	"context"
	"fmt"

	"github.com/it-spirit/spiritsearch/config"
)

// Provider converts text into a dense vector.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// NewProvider creates an embedding provider from configuration.
func NewProvider(cfg config.EmbeddingConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		return newOpenAIProvider(cfg)
	default:
		return nil, fmt.Errorf("embedding: unsupported provider: %s", cfg.Provider)
	}
}
