// Package ai provides unit tests for the Gemini client.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deploy-doctor/internal/config"
	"github.com/deploy-doctor/internal/domain"
	"go.uber.org/zap"
)

const dockerfileLog = "Error: failed to solve: failed to read dockerfile: open Dockerfile: no such file or directory"

const validDiagnosisJSON = `{"diagnosis":"The build context has no Dockerfile","probableCauses":["Dockerfile is missing","Root directory points to a subfolder"],"suggestedFixes":[{"title":"Add a Dockerfile","description":"Create a Dockerfile at the repository root","code":"FROM n8nio/n8n:latest"},{"title":"Fix root directory","description":"Point the service root at the folder with the Dockerfile"}]}`

const validFileFixJSON = `{"explanation":"No Dockerfile in the build context","solution":"Add the Dockerfile below and redeploy","files":[{"name":"Dockerfile","language":"dockerfile","content":"FROM n8nio/n8n:latest\nEXPOSE 5678"}]}`

func newTestGeminiClient(t *testing.T, baseURL, apiKey string) *GeminiClient {
	t.Helper()
	prompter, err := NewDefaultPromptBuilder("English")
	if err != nil {
		t.Fatalf("prompt builder: %v", err)
	}
	cfg := &config.AIConfig{
		Provider:  config.AIProviderGemini,
		APIKey:    apiKey,
		BaseURL:   baseURL,
		Model:     "gemini-2.0-flash",
		Timeout:   5 * time.Second,
		MaxTokens: 1024,
	}
	return NewGeminiClient(cfg, prompter, NewDefaultValidator(), zap.NewNop())
}

func textResponse(text string) geminiResponse {
	return geminiResponse{
		Candidates: []geminiCandidate{
			{
				Content: geminiContent{
					Role:  "model",
					Parts: []geminiPart{{Text: text}},
				},
				FinishReason: "STOP",
			},
		},
	}
}

func TestGeminiClient_Analyze(t *testing.T) {
	tests := []struct {
		name       string
		variant    domain.Variant
		response   any
		statusCode int
		wantKind   domain.Kind
		wantRetry  bool
	}{
		{
			name:       "log diagnosis",
			variant:    domain.VariantLogDiagnosis,
			response:   textResponse(validDiagnosisJSON),
			statusCode: http.StatusOK,
		},
		{
			name:       "file fix",
			variant:    domain.VariantFileFix,
			response:   textResponse(validFileFixJSON),
			statusCode: http.StatusOK,
		},
		{
			name:    "thought parts are skipped",
			variant: domain.VariantLogDiagnosis,
			response: geminiResponse{
				Candidates: []geminiCandidate{{
					Content: geminiContent{Parts: []geminiPart{
						{Text: "thinking about dockerfiles", Thought: true},
						{Text: validDiagnosisJSON},
					}},
					FinishReason: "STOP",
				}},
			},
			statusCode: http.StatusOK,
		},
		{
			name:       "unauthorized",
			variant:    domain.VariantLogDiagnosis,
			response:   geminiResponse{},
			statusCode: http.StatusUnauthorized,
			wantKind:   domain.KindInvalidCredential,
		},
		{
			name:    "invalid key reported as bad request",
			variant: domain.VariantLogDiagnosis,
			response: map[string]any{"error": map[string]any{
				"code":    400,
				"message": "API key not valid. Please pass a valid API key.",
				"status":  "INVALID_ARGUMENT",
				"details": []map[string]any{{"@type": "type.googleapis.com/google.rpc.ErrorInfo", "reason": "API_KEY_INVALID"}},
			}},
			statusCode: http.StatusBadRequest,
			wantKind:   domain.KindInvalidCredential,
		},
		{
			name:       "rate limited",
			variant:    domain.VariantLogDiagnosis,
			response:   geminiResponse{},
			statusCode: http.StatusTooManyRequests,
			wantKind:   domain.KindTransportFailure,
			wantRetry:  true,
		},
		{
			name:       "server error",
			variant:    domain.VariantLogDiagnosis,
			response:   geminiResponse{},
			statusCode: http.StatusInternalServerError,
			wantKind:   domain.KindTransportFailure,
			wantRetry:  true,
		},
		{
			name:       "model not found",
			variant:    domain.VariantLogDiagnosis,
			response:   geminiResponse{},
			statusCode: http.StatusNotFound,
			wantKind:   domain.KindTransportFailure,
		},
		{
			name:       "missing required fields",
			variant:    domain.VariantLogDiagnosis,
			response:   textResponse(`{"diagnosis": "x"}`),
			statusCode: http.StatusOK,
			wantKind:   domain.KindMalformedResponse,
			wantRetry:  true,
		},
		{
			name:       "text is not JSON",
			variant:    domain.VariantLogDiagnosis,
			response:   textResponse("The Dockerfile is missing."),
			statusCode: http.StatusOK,
			wantKind:   domain.KindMalformedResponse,
			wantRetry:  true,
		},
		{
			name:       "markdown fenced JSON is rejected",
			variant:    domain.VariantLogDiagnosis,
			response:   textResponse("```json\n" + validDiagnosisJSON + "\n```"),
			statusCode: http.StatusOK,
			wantKind:   domain.KindMalformedResponse,
			wantRetry:  true,
		},
		{
			name:       "wrong variant shape",
			variant:    domain.VariantFileFix,
			response:   textResponse(validDiagnosisJSON),
			statusCode: http.StatusOK,
			wantKind:   domain.KindMalformedResponse,
			wantRetry:  true,
		},
		{
			name:       "empty candidates",
			variant:    domain.VariantLogDiagnosis,
			response:   geminiResponse{Candidates: []geminiCandidate{}},
			statusCode: http.StatusOK,
			wantKind:   domain.KindMalformedResponse,
			wantRetry:  true,
		},
		{
			name:    "blocked by safety filter",
			variant: domain.VariantLogDiagnosis,
			response: geminiResponse{
				Candidates: []geminiCandidate{{FinishReason: "SAFETY"}},
			},
			statusCode: http.StatusOK,
			wantKind:   domain.KindMalformedResponse,
		},
		{
			name:    "token limit reached",
			variant: domain.VariantLogDiagnosis,
			response: geminiResponse{
				Candidates: []geminiCandidate{{
					Content:      geminiContent{Parts: []geminiPart{{Text: `{"diagnosis":"cut`}}},
					FinishReason: "MAX_TOKENS",
				}},
			},
			statusCode: http.StatusOK,
			wantKind:   domain.KindMalformedResponse,
			wantRetry:  true,
		},
		{
			name:    "prompt blocked",
			variant: domain.VariantLogDiagnosis,
			response: geminiResponse{
				PromptFeedback: &geminiPromptFeedback{BlockReason: "SAFETY"},
			},
			statusCode: http.StatusOK,
			wantKind:   domain.KindMalformedResponse,
		},
		{
			name:       "envelope is not JSON",
			variant:    domain.VariantLogDiagnosis,
			response:   "<html>gateway</html>",
			statusCode: http.StatusOK,
			wantKind:   domain.KindMalformedResponse,
			wantRetry:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				if r.Header.Get("Content-Type") != "application/json" {
					t.Errorf("expected Content-Type application/json")
				}
				if r.Header.Get("x-goog-api-key") != "test-api-key" {
					t.Errorf("expected API key header")
				}
				if r.URL.Query().Get("key") != "" {
					t.Errorf("API key must not be sent in the URL")
				}

				w.WriteHeader(tt.statusCode)
				if s, ok := tt.response.(string); ok {
					io.WriteString(w, s)
					return
				}
				json.NewEncoder(w).Encode(tt.response)
			}))
			defer server.Close()

			client := newTestGeminiClient(t, server.URL, "test-api-key")
			result, err := client.Analyze(context.Background(), Input{
				Variant: tt.variant,
				LogText: dockerfileLog,
			})

			if got := atomic.LoadInt32(&calls); got != 1 {
				t.Errorf("expected exactly 1 request, got %d", got)
			}

			if tt.wantKind != domain.KindNone {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if result != nil {
					t.Errorf("expected no result on failure, got %+v", result)
				}
				if kind := domain.KindOf(err); kind != tt.wantKind {
					t.Errorf("KindOf() = %s, want %s (err: %v)", kind, tt.wantKind, err)
				}
				if domain.IsRetryable(err) != tt.wantRetry {
					t.Errorf("IsRetryable() = %v, want %v", domain.IsRetryable(err), tt.wantRetry)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Variant != tt.variant {
				t.Errorf("variant = %s, want %s", result.Variant, tt.variant)
			}
			if result.Summary() == "" {
				t.Error("summary should not be empty")
			}
			if result.ItemCount() == 0 {
				t.Error("expected at least one file or fix")
			}
		})
	}
}

func TestGeminiClient_AnalyzeDeclaresSchema(t *testing.T) {
	var got geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(textResponse(validFileFixJSON))
	}))
	defer server.Close()

	client := newTestGeminiClient(t, server.URL, "test-api-key")
	_, err := client.Analyze(context.Background(), Input{
		Variant: domain.VariantFileFix,
		LogText: dockerfileLog,
		Context: "Render, n8n",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gc := got.GenerationConfig
	if gc.ResponseMimeType != "application/json" {
		t.Errorf("responseMimeType = %q", gc.ResponseMimeType)
	}
	if gc.ResponseSchema == nil {
		t.Fatal("responseSchema missing")
	}
	if strings.Join(gc.ResponseSchema.Required, ",") != "explanation,solution,files" {
		t.Errorf("required = %v", gc.ResponseSchema.Required)
	}
	if files := gc.ResponseSchema.Properties["files"]; files == nil || files.MinItems != 1 {
		t.Errorf("files should declare minItems 1, got %+v", files)
	}
	if got.SystemInstruction == nil || len(got.SystemInstruction.Parts) == 0 {
		t.Fatal("system instruction missing")
	}
	if len(got.Contents) != 1 || !strings.Contains(got.Contents[0].Parts[0].Text, "open Dockerfile") {
		t.Error("user prompt should embed the log")
	}
	if !strings.Contains(got.Contents[0].Parts[0].Text, "Render, n8n") {
		t.Error("user prompt should embed the context")
	}
}

func TestGeminiClient_MissingCredential(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	client := newTestGeminiClient(t, server.URL, "")

	_, err := client.Analyze(context.Background(), Input{Variant: domain.VariantLogDiagnosis, LogText: dockerfileLog})
	if !errors.Is(err, domain.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, domain.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential from health check, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Errorf("expected no network calls, got %d", got)
	}
}

func TestGeminiClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := newTestGeminiClient(t, server.URL, "test-api-key")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Analyze(ctx, Input{Variant: domain.VariantLogDiagnosis, LogText: dockerfileLog})
	if !errors.Is(err, domain.ErrAITimeout) {
		t.Fatalf("expected ErrAITimeout, got %v", err)
	}
	if domain.KindOf(err) != domain.KindTransportFailure {
		t.Errorf("timeout should be a transport failure, got %s", domain.KindOf(err))
	}
}

func TestGeminiClient_HealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantKind   domain.Kind
	}{
		{name: "healthy", statusCode: http.StatusOK},
		{name: "unhealthy", statusCode: http.StatusInternalServerError, wantKind: domain.KindTransportFailure},
		{name: "bad key", statusCode: http.StatusForbidden, wantKind: domain.KindInvalidCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1beta/models" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			client := newTestGeminiClient(t, server.URL, "test-api-key")
			err := client.HealthCheck(context.Background())

			if kind := domain.KindOf(err); kind != tt.wantKind {
				t.Errorf("KindOf() = %s, want %s (err: %v)", kind, tt.wantKind, err)
			}
		})
	}
}

func TestGeminiClient_BuildURL(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		model    string
		expected string
	}{
		{
			name:     "default base URL",
			baseURL:  "https://generativelanguage.googleapis.com",
			model:    "gemini-2.5-flash",
			expected: "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-flash:generateContent",
		},
		{
			name:     "base URL with version",
			baseURL:  "https://generativelanguage.googleapis.com/v1",
			model:    "gemini-1.5-pro",
			expected: "https://generativelanguage.googleapis.com/v1/models/gemini-1.5-pro:generateContent",
		},
		{
			name:     "trailing slash removed",
			baseURL:  "https://generativelanguage.googleapis.com/",
			model:    "gemini-2.0-flash",
			expected: "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestGeminiClient(t, tt.baseURL, "secret-key")
			client.config.Model = tt.model

			url := client.buildURL()
			if url != tt.expected {
				t.Errorf("buildURL() = %s, want %s", url, tt.expected)
			}
			if strings.Contains(url, "secret-key") {
				t.Error("URL must not contain the API key")
			}
		})
	}
}

func TestIsThinkingModel(t *testing.T) {
	tests := map[string]bool{
		"gemini-2.0-flash":       false,
		"gemini-2.5-flash":       true,
		"gemini-3-flash-preview": true,
		"gemini-1.5-pro":         false,
	}
	for model, want := range tests {
		if got := isThinkingModel(model); got != want {
			t.Errorf("isThinkingModel(%q) = %v, want %v", model, got, want)
		}
	}
}
