package config

import (
	"errors"
	"testing"
	"time"

	"github.com/deploy-doctor/internal/domain"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "SERVER_READ_TIMEOUT", "SERVER_WRITE_TIMEOUT",
		"AI_PROVIDER", "AI_API_KEY", "AI_BASE_URL", "AI_MODEL", "AI_TIMEOUT",
		"AI_MAX_TOKENS", "AI_MOCK_MODE", "AI_RESPONSE_LANGUAGE",
		"MAX_LOG_SIZE", "ENABLE_SIGNATURES",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("port = %s", cfg.Server.Port)
	}
	if cfg.AI.Provider != AIProviderGemini {
		t.Errorf("provider = %s", cfg.AI.Provider)
	}
	if cfg.AI.Model != "gemini-2.5-flash" {
		t.Errorf("model = %s", cfg.AI.Model)
	}
	if cfg.AI.BaseURL != "https://generativelanguage.googleapis.com" {
		t.Errorf("base URL = %s", cfg.AI.BaseURL)
	}
	if cfg.AI.Timeout != 45*time.Second {
		t.Errorf("timeout = %s", cfg.AI.Timeout)
	}
	if cfg.Server.WriteTimeout != 90*time.Second {
		t.Errorf("write timeout = %s", cfg.Server.WriteTimeout)
	}
	if cfg.AI.ResponseLanguage != "English" {
		t.Errorf("language = %s", cfg.AI.ResponseLanguage)
	}
	if cfg.Processing.MaxLogSize != 50000 || !cfg.Processing.EnableSignatures {
		t.Errorf("processing = %+v", cfg.Processing)
	}
}

func TestLoad_MissingKeyDoesNotBlockStartup(t *testing.T) {
	clearEnv(t)
	t.Setenv("AI_API_KEY", "   ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.AI.HasCredential() {
		t.Error("blank key must not count as a credential")
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("AI_PROVIDER", "OpenAI")
	t.Setenv("AI_API_KEY", " sk-test ")
	t.Setenv("AI_TIMEOUT", "30")
	t.Setenv("AI_MOCK_MODE", "true")
	t.Setenv("SERVER_WRITE_TIMEOUT", "2m")
	t.Setenv("ENABLE_SIGNATURES", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.AI.Provider != AIProviderOpenAI || cfg.AI.Model != "gpt-4o-mini" {
		t.Errorf("provider defaults not applied: %+v", cfg.AI)
	}
	if cfg.AI.APIKey != "sk-test" {
		t.Errorf("key should be trimmed, got %q", cfg.AI.APIKey)
	}
	if cfg.AI.Timeout != 30*time.Second {
		t.Errorf("plain integer timeout should be seconds, got %s", cfg.AI.Timeout)
	}
	if cfg.Server.WriteTimeout != 2*time.Minute {
		t.Errorf("write timeout = %s", cfg.Server.WriteTimeout)
	}
	if !cfg.AI.MockMode || cfg.Processing.EnableSignatures {
		t.Errorf("bool overrides not applied: %+v %+v", cfg.AI, cfg.Processing)
	}
}

func TestLoad_WriteTimeoutFollowsAITimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("AI_TIMEOUT", "120")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.AI.Timeout != 2*time.Minute {
		t.Fatalf("timeout = %s", cfg.AI.Timeout)
	}
	if cfg.Server.WriteTimeout < cfg.AI.Timeout+ResponseMargin {
		t.Errorf("write timeout %s does not outlive AI timeout %s", cfg.Server.WriteTimeout, cfg.AI.Timeout)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown provider", env: map[string]string{"AI_PROVIDER": "watson"}},
		{name: "timeout too short", env: map[string]string{"AI_TIMEOUT": "500ms"}},
		{name: "timeout too long", env: map[string]string{"AI_TIMEOUT": "10m"}},
		{name: "write timeout shorter than AI timeout", env: map[string]string{"AI_TIMEOUT": "60", "SERVER_WRITE_TIMEOUT": "30s"}},
		{name: "write timeout without margin", env: map[string]string{"AI_TIMEOUT": "60", "SERVER_WRITE_TIMEOUT": "61s"}},
		{name: "too few tokens", env: map[string]string{"AI_MAX_TOKENS": "64"}},
		{name: "tiny log limit", env: map[string]string{"MAX_LOG_SIZE": "10"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			if !errors.Is(err, domain.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
