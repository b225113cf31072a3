// Package llm provides the generative-model backends used for grading.
package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aura-interview/backend/config"
)

// Provider names accepted in configuration.
const (
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
	ProviderStub   = "stub"
)

// Generator returns the raw model output for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// New builds the configured generator. Unknown providers fall back to the stub.
func New(ctx context.Context, cfg config.ScoringConfig, system string, logger *zap.Logger) (Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Provider {
	case ProviderOllama:
		return NewOllama(cfg.OllamaURL, cfg.OllamaModel, system), nil
	case ProviderGemini:
		g, err := NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, system)
		if err != nil {
			return nil, fmt.Errorf("gemini: %w", err)
		}
		return g, nil
	case ProviderStub, "":
		return Stub{}, nil
	default:
		logger.Warn("unknown AI provider, using stub", zap.String("provider", cfg.Provider))
		return Stub{}, nil
	}
}
