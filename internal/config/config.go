// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/deploy-doctor/internal/domain"
)

// MaxAITimeout caps AI_TIMEOUT so a call can never hang indefinitely.
const MaxAITimeout = 5 * time.Minute

// ResponseMargin is the time left after an AI call times out to write the
// error response or finish shutting down.
const ResponseMargin = 5 * time.Second

const defaultWriteTimeout = 90 * time.Second

// Config holds all application configuration.
type Config struct {
	// Server configuration
	Server ServerConfig

	// AI service configuration
	AI AIConfig

	// Log processing configuration
	Processing ProcessingConfig
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Port is the HTTP port to listen on.
	Port string

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration
}

// AIProvider represents the AI provider to use.
type AIProvider string

const (
	// AIProviderGemini uses Google Gemini API.
	AIProviderGemini AIProvider = "gemini"

	// AIProviderOpenAI uses OpenAI-compatible API.
	AIProviderOpenAI AIProvider = "openai"
)

// AIConfig contains AI service settings.
type AIConfig struct {
	// Provider specifies which AI provider to use (gemini, openai).
	Provider AIProvider

	// APIKey is the single credential for the AI provider. It may be empty;
	// calls then fail with domain.ErrMissingCredential.
	APIKey string

	// BaseURL is the base URL for the AI API.
	BaseURL string

	// Model is the AI model to use.
	Model string

	// Timeout bounds one AI call end to end.
	Timeout time.Duration

	// MaxTokens is the maximum tokens for AI response.
	MaxTokens int

	// ResponseLanguage is the language the model must answer in.
	ResponseLanguage string

	// MockMode enables canned responses without API calls.
	MockMode bool
}

// HasCredential reports whether an API key is configured.
func (c *AIConfig) HasCredential() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// ProcessingConfig contains log processing settings.
type ProcessingConfig struct {
	// MaxLogSize is the maximum log size in bytes sent to the model.
	MaxLogSize int

	// EnableSignatures enables known-failure signature hints in prompts.
	EnableSignatures bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	provider := AIProvider(strings.ToLower(getEnvOrDefault("AI_PROVIDER", string(AIProviderGemini))))

	var defaultBaseURL, defaultModel string
	switch provider {
	case AIProviderOpenAI:
		defaultBaseURL = "https://api.openai.com/v1"
		defaultModel = "gpt-4o-mini"
	case AIProviderGemini:
		defaultBaseURL = "https://generativelanguage.googleapis.com"
		defaultModel = "gemini-2.5-flash"
	default:
		return nil, fmt.Errorf("%w: AI_PROVIDER must be gemini or openai, got %q", domain.ErrInvalidConfig, provider)
	}

	aiTimeout := getDurationOrDefault("AI_TIMEOUT", 45*time.Second)
	writeTimeout := defaultWriteTimeout
	if aiTimeout+ResponseMargin > writeTimeout {
		writeTimeout = aiTimeout + ResponseMargin
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnvOrDefault("PORT", "8080"),
			ReadTimeout:  getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDurationOrDefault("SERVER_WRITE_TIMEOUT", writeTimeout),
		},
		AI: AIConfig{
			Provider:         provider,
			APIKey:           strings.TrimSpace(os.Getenv("AI_API_KEY")),
			BaseURL:          getEnvOrDefault("AI_BASE_URL", defaultBaseURL),
			Model:            getEnvOrDefault("AI_MODEL", defaultModel),
			Timeout:          aiTimeout,
			MaxTokens:        getIntOrDefault("AI_MAX_TOKENS", 2048),
			ResponseLanguage: getEnvOrDefault("AI_RESPONSE_LANGUAGE", "English"),
			MockMode:         getBoolOrDefault("AI_MOCK_MODE", false),
		},
		Processing: ProcessingConfig{
			MaxLogSize:       getIntOrDefault("MAX_LOG_SIZE", 50000), // ~50KB
			EnableSignatures: getBoolOrDefault("ENABLE_SIGNATURES", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
// A missing API key is not a configuration error; it is reported per call.
func (c *Config) Validate() error {
	if c.AI.Timeout < time.Second || c.AI.Timeout > MaxAITimeout {
		return fmt.Errorf("%w: AI_TIMEOUT must be between 1s and %s", domain.ErrInvalidConfig, MaxAITimeout)
	}

	// A timed-out AI call still needs time to write its error response.
	if c.Server.WriteTimeout < c.AI.Timeout+ResponseMargin {
		return fmt.Errorf("%w: SERVER_WRITE_TIMEOUT must be at least AI_TIMEOUT + %s", domain.ErrInvalidConfig, ResponseMargin)
	}

	if c.AI.MaxTokens < 256 {
		return fmt.Errorf("%w: AI_MAX_TOKENS must be at least 256", domain.ErrInvalidConfig)
	}

	if strings.TrimSpace(c.AI.Model) == "" {
		return fmt.Errorf("%w: AI_MODEL must not be empty", domain.ErrInvalidConfig)
	}

	if strings.TrimSpace(c.AI.ResponseLanguage) == "" {
		return fmt.Errorf("%w: AI_RESPONSE_LANGUAGE must not be empty", domain.ErrInvalidConfig)
	}

	if c.Processing.MaxLogSize < 1000 {
		return fmt.Errorf("%w: MAX_LOG_SIZE must be at least 1000 bytes", domain.ErrInvalidConfig)
	}

	return nil
}

// Helper functions for reading environment variables

func getEnvOrDefault(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func getIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		// Plain integers are seconds (e.g., "15")
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
