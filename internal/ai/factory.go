// Package ai provides the AI client interface and implementations.
package ai

import (
	"fmt"

	"github.com/deploy-doctor/internal/config"
	"github.com/deploy-doctor/internal/domain"
	"go.uber.org/zap"
)

// NewClient builds the client selected by configuration.
func NewClient(cfg *config.AIConfig, logger *zap.Logger) (Client, error) {
	if cfg.MockMode {
		logger.Warn("running in mock mode - AI responses are simulated")
		return NewMockClient(logger), nil
	}

	promptBuilder, err := NewDefaultPromptBuilder(cfg.ResponseLanguage)
	if err != nil {
		return nil, fmt.Errorf("create prompt builder: %w", err)
	}
	validator := NewDefaultValidator()

	if !cfg.HasCredential() {
		logger.Warn("AI_API_KEY is not set - every analysis will fail until it is configured")
	}

	switch cfg.Provider {
	case config.AIProviderGemini:
		return NewGeminiClient(cfg, promptBuilder, validator, logger), nil
	case config.AIProviderOpenAI:
		return NewOpenAIClient(cfg, promptBuilder, validator, logger), nil
	default:
		return nil, fmt.Errorf("%w: unsupported AI provider %q", domain.ErrInvalidConfig, cfg.Provider)
	}
}
