package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deploy-doctor/internal/config"
	"github.com/deploy-doctor/internal/domain"
	"go.uber.org/zap"
)

func newTestOpenAIClient(t *testing.T, baseURL, apiKey string) *OpenAIClient {
	t.Helper()
	prompter, err := NewDefaultPromptBuilder("English")
	if err != nil {
		t.Fatalf("prompt builder: %v", err)
	}
	cfg := &config.AIConfig{
		Provider:  config.AIProviderOpenAI,
		APIKey:    apiKey,
		BaseURL:   baseURL,
		Model:     "gpt-4o-mini",
		Timeout:   5 * time.Second,
		MaxTokens: 1024,
	}
	return NewOpenAIClient(cfg, prompter, NewDefaultValidator(), zap.NewNop())
}

func chatReply(content, finish string) map[string]any {
	return map[string]any{
		"id": "chatcmpl-1",
		"choices": []map[string]any{
			{
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": finish,
			},
		},
	}
}

func TestOpenAIClient_Analyze(t *testing.T) {
	tests := []struct {
		name       string
		variant    domain.Variant
		response   any
		statusCode int
		wantKind   domain.Kind
	}{
		{
			name:       "log diagnosis",
			variant:    domain.VariantLogDiagnosis,
			response:   chatReply(validDiagnosisJSON, "stop"),
			statusCode: http.StatusOK,
		},
		{
			name:       "file fix",
			variant:    domain.VariantFileFix,
			response:   chatReply(validFileFixJSON, "stop"),
			statusCode: http.StatusOK,
		},
		{
			name:    "invalid api key",
			variant: domain.VariantLogDiagnosis,
			response: map[string]any{"error": map[string]any{
				"message": "Incorrect API key provided",
				"type":    "invalid_request_error",
				"code":    "invalid_api_key",
			}},
			statusCode: http.StatusUnauthorized,
			wantKind:   domain.KindInvalidCredential,
		},
		{
			name:       "upstream down",
			variant:    domain.VariantLogDiagnosis,
			response:   map[string]any{},
			statusCode: http.StatusBadGateway,
			wantKind:   domain.KindTransportFailure,
		},
		{
			name:    "refusal",
			variant: domain.VariantLogDiagnosis,
			response: map[string]any{"choices": []map[string]any{{
				"message":       map[string]any{"refusal": "I can't help with that."},
				"finish_reason": "stop",
			}}},
			statusCode: http.StatusOK,
			wantKind:   domain.KindMalformedResponse,
		},
		{
			name:       "truncated output",
			variant:    domain.VariantLogDiagnosis,
			response:   chatReply(`{"diagnosis":"`, "length"),
			statusCode: http.StatusOK,
			wantKind:   domain.KindMalformedResponse,
		},
		{
			name:       "no choices",
			variant:    domain.VariantLogDiagnosis,
			response:   map[string]any{"choices": []any{}},
			statusCode: http.StatusOK,
			wantKind:   domain.KindMalformedResponse,
		},
		{
			name:       "missing required field",
			variant:    domain.VariantFileFix,
			response:   chatReply(`{"explanation":"e","solution":"s","files":[]}`, "stop"),
			statusCode: http.StatusOK,
			wantKind:   domain.KindMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				if r.URL.Path != "/chat/completions" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if r.Header.Get("Authorization") != "Bearer sk-test" {
					t.Errorf("missing bearer token")
				}
				w.WriteHeader(tt.statusCode)
				json.NewEncoder(w).Encode(tt.response)
			}))
			defer server.Close()

			client := newTestOpenAIClient(t, server.URL, "sk-test")
			result, err := client.Analyze(context.Background(), Input{Variant: tt.variant, LogText: dockerfileLog})

			if got := atomic.LoadInt32(&calls); got != 1 {
				t.Errorf("expected exactly 1 request, got %d", got)
			}

			if tt.wantKind != domain.KindNone {
				if kind := domain.KindOf(err); kind != tt.wantKind {
					t.Fatalf("KindOf() = %s, want %s (err: %v)", kind, tt.wantKind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Variant != tt.variant {
				t.Errorf("variant = %s, want %s", result.Variant, tt.variant)
			}
		})
	}
}

func TestOpenAIClient_AnalyzeDeclaresSchema(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(chatReply(validDiagnosisJSON, "stop"))
	}))
	defer server.Close()

	client := newTestOpenAIClient(t, server.URL+"/", "sk-test")
	if _, err := client.Analyze(context.Background(), Input{Variant: domain.VariantLogDiagnosis, LogText: dockerfileLog}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.ResponseFormat == nil || got.ResponseFormat.Type != "json_schema" {
		t.Fatalf("response_format = %+v", got.ResponseFormat)
	}
	if got.ResponseFormat.JSONSchema.Name != "log_diagnosis" {
		t.Errorf("schema name = %q", got.ResponseFormat.JSONSchema.Name)
	}
	if !got.ResponseFormat.JSONSchema.Strict {
		t.Error("schema should be sent in strict mode")
	}
	if got.ResponseFormat.JSONSchema.Schema["type"] != "object" {
		t.Errorf("schema type = %v", got.ResponseFormat.JSONSchema.Schema["type"])
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestOpenAIClient_MissingCredential(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	client := newTestOpenAIClient(t, server.URL, "  ")
	_, err := client.Analyze(context.Background(), Input{Variant: domain.VariantLogDiagnosis, LogText: dockerfileLog})
	if !errors.Is(err, domain.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("no request should be sent without a key")
	}
}

func TestMockClient_Analyze(t *testing.T) {
	client := NewMockClient(zap.NewNop())
	v := NewDefaultValidator()

	for _, variant := range []domain.Variant{domain.VariantFileFix, domain.VariantLogDiagnosis} {
		result, err := client.Analyze(context.Background(), Input{Variant: variant, LogText: "boom"})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", variant, err)
		}
		if err := v.Validate(result); err != nil {
			t.Errorf("%s: mock result should be schema-valid: %v", variant, err)
		}
	}

	if _, err := client.Analyze(context.Background(), Input{Variant: "other"}); !errors.Is(err, domain.ErrUnknownVariant) {
		t.Errorf("expected ErrUnknownVariant, got %v", err)
	}
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.AIConfig
		wantName string
		wantErr  bool
	}{
		{name: "mock", cfg: config.AIConfig{MockMode: true}, wantName: "mock"},
		{name: "gemini", cfg: config.AIConfig{Provider: config.AIProviderGemini, APIKey: "k"}, wantName: "gemini"},
		{name: "openai without key", cfg: config.AIConfig{Provider: config.AIProviderOpenAI}, wantName: "openai"},
		{name: "unknown provider", cfg: config.AIConfig{Provider: "watson", APIKey: "k"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(&tt.cfg, zap.NewNop())
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidConfig) {
					t.Fatalf("expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if client.Name() != tt.wantName {
				t.Errorf("Name() = %s, want %s", client.Name(), tt.wantName)
			}
		})
	}
}
