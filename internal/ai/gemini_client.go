// Package ai provides the AI client interface and implementations.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/deploy-doctor/internal/config"
	"github.com/deploy-doctor/internal/domain"
	"go.uber.org/zap"
)

// maxResponseBytes bounds how much of an upstream body is read.
const maxResponseBytes = 4 << 20

// GeminiClient implements the Client interface using Google's Gemini API.
type GeminiClient struct {
	config     *config.AIConfig
	httpClient *http.Client
	prompter   PromptBuilder
	validator  ResponseValidator
	logger     *zap.Logger
}

// Gemini API request/response structures

// geminiRequest represents the request body for Gemini API.
type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
	SafetySettings    []geminiSafetySetting  `json:"safetySettings,omitempty"`
}

// geminiContent represents a content block in Gemini API.
type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

// geminiPart represents a part of content.
// Thinking models mark reasoning parts with thought=true.
type geminiPart struct {
	Text    string `json:"text,omitempty"`
	Thought bool   `json:"thought,omitempty"`
}

// geminiGenerationConfig contains generation parameters and the output contract.
type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMimeType string  `json:"responseMimeType"`
	ResponseSchema   *Schema `json:"responseSchema"`
}

// geminiSafetySetting represents a safety setting for content filtering.
type geminiSafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// geminiResponse represents the response from Gemini API.
type geminiResponse struct {
	Candidates     []geminiCandidate     `json:"candidates"`
	PromptFeedback *geminiPromptFeedback `json:"promptFeedback,omitempty"`
	Error          *geminiError          `json:"error,omitempty"`
	UsageMetadata  *geminiUsageMetadata  `json:"usageMetadata,omitempty"`
}

// geminiUsageMetadata contains token usage info.
type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	ThoughtsTokenCount   int `json:"thoughtsTokenCount,omitempty"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// geminiCandidate represents a response candidate.
type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
	Index        int           `json:"index,omitempty"`
}

// geminiPromptFeedback contains feedback about the prompt.
type geminiPromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

// geminiError represents an error response from Gemini API.
type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
	Details []struct {
		Type   string `json:"@type"`
		Reason string `json:"reason,omitempty"`
	} `json:"details,omitempty"`
}

// NewGeminiClient creates a new Gemini AI client.
func NewGeminiClient(cfg *config.AIConfig, prompter PromptBuilder, validator ResponseValidator, logger *zap.Logger) *GeminiClient {
	return &GeminiClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		prompter:  prompter,
		validator: validator,
		logger:    logger.Named("gemini_client"),
	}
}

// Name identifies the provider.
func (c *GeminiClient) Name() string {
	return string(config.AIProviderGemini)
}

// Analyze sends one generateContent request and returns the validated result.
func (c *GeminiClient) Analyze(ctx context.Context, in Input) (*domain.AnalysisResult, error) {
	if !c.config.HasCredential() {
		return nil, domain.WrapError("resolve_credential", domain.ErrMissingCredential, false)
	}

	schema, ok := ResponseSchema(in.Variant)
	if !ok {
		return nil, domain.WrapError("select_schema",
			fmt.Errorf("%w: %q", domain.ErrUnknownVariant, in.Variant), false)
	}

	userPrompt, err := c.prompter.BuildUserPrompt(in)
	if err != nil {
		return nil, domain.WrapError("build_prompt", err, false)
	}

	startTime := time.Now()
	c.logger.Debug("starting Gemini analysis",
		zap.String("variant", string(in.Variant)),
		zap.Int("log_length", len(in.LogText)),
		zap.Int("hints", len(in.Hints)),
	)

	// Thinking tokens count against the output limit.
	maxTokens := c.config.MaxTokens
	if isThinkingModel(c.config.Model) {
		maxTokens = c.config.MaxTokens * 4
		if maxTokens < 8192 {
			maxTokens = 8192
		}
	}

	reqBody := geminiRequest{
		Contents: []geminiContent{
			{
				Role:  "user",
				Parts: []geminiPart{{Text: userPrompt}},
			},
		},
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: c.prompter.BuildSystemPrompt()}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      0.2,
			MaxOutputTokens:  maxTokens,
			ResponseMimeType: "application/json",
			ResponseSchema:   schema,
		},
		SafetySettings: []geminiSafetySetting{
			// Build logs routinely mention "kill", "exploit", "attack surface" and similar.
			{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_ONLY_HIGH"},
			{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_ONLY_HIGH"},
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, domain.WrapError("marshal_request", err, false)
	}

	result, err := c.executeRequest(ctx, in.Variant, jsonBody)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Gemini analysis completed",
		zap.Duration("duration", time.Since(startTime)),
		zap.String("variant", string(result.Variant)),
		zap.Int("items", result.ItemCount()),
	)

	return result, nil
}

// buildURL constructs the generateContent URL. The key travels in a header, never the URL.
func (c *GeminiClient) buildURL() string {
	return fmt.Sprintf("%s/models/%s:generateContent", c.versionedBase(), c.config.Model)
}

func (c *GeminiClient) versionedBase() string {
	baseURL := strings.TrimSuffix(c.config.BaseURL, "/")
	if strings.Contains(baseURL, "/v1") {
		return baseURL
	}
	return baseURL + "/v1beta"
}

// executeRequest performs the single HTTP request to the Gemini API.
func (c *GeminiClient) executeRequest(ctx context.Context, variant domain.Variant, jsonBody []byte) (*domain.AnalysisResult, error) {
	url := c.buildURL()
	c.logger.Debug("sending Gemini request",
		zap.String("url", url),
		zap.Int("body_size", len(jsonBody)),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, domain.WrapError("create_request", err, false)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(ctx, "gemini", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, domain.WrapError("read_response",
			fmt.Errorf("%w: %v", domain.ErrTransport, err), true)
	}

	if resp.StatusCode != http.StatusOK {
		return c.handleHTTPError(resp.StatusCode, body)
	}

	c.logger.Debug("raw Gemini response",
		zap.String("body", truncate(string(body), 2000)),
	)

	var geminiResp geminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		c.logger.Warn("failed to unmarshal Gemini response",
			zap.Error(err),
			zap.String("body_preview", truncate(string(body), 500)),
		)
		return nil, domain.WrapError("parse_response",
			fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err), true)
	}

	// Check for API-level errors
	if geminiResp.Error != nil {
		return c.handleHTTPError(geminiResp.Error.Code, body)
	}

	if geminiResp.PromptFeedback != nil && geminiResp.PromptFeedback.BlockReason != "" {
		return nil, domain.WrapError("content_blocked",
			fmt.Errorf("%w: prompt blocked: %s", domain.ErrMalformedResponse, geminiResp.PromptFeedback.BlockReason), false)
	}

	if len(geminiResp.Candidates) == 0 {
		c.logger.Warn("no candidates in response",
			zap.String("body", truncate(string(body), 1000)),
		)
		return nil, domain.WrapError("empty_response",
			fmt.Errorf("%w: no candidates", domain.ErrMalformedResponse), true)
	}

	candidate := geminiResp.Candidates[0]
	if usage := geminiResp.UsageMetadata; usage != nil {
		c.logger.Debug("gemini usage",
			zap.String("finish_reason", candidate.FinishReason),
			zap.Int("prompt_tokens", usage.PromptTokenCount),
			zap.Int("output_tokens", usage.CandidatesTokenCount),
			zap.Int("thought_tokens", usage.ThoughtsTokenCount),
		)
	}

	switch candidate.FinishReason {
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT", "SPII":
		return nil, domain.WrapError("response_blocked",
			fmt.Errorf("%w: response blocked (%s)", domain.ErrMalformedResponse, candidate.FinishReason), false)
	case "MAX_TOKENS":
		return nil, domain.WrapError("response_truncated",
			fmt.Errorf("%w: output hit the token limit", domain.ErrMalformedResponse), true)
	}

	var textContent strings.Builder
	for _, part := range candidate.Content.Parts {
		if part.Thought {
			continue
		}
		textContent.WriteString(part.Text)
	}

	return decodeResult(variant, textContent.String(), c.validator)
}

// handleHTTPError classifies non-success statuses.
func (c *GeminiClient) handleHTTPError(statusCode int, body []byte) (*domain.AnalysisResult, error) {
	var errResp geminiResponse
	var apiErr *geminiError
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil {
		apiErr = errResp.Error
		c.logger.Warn("Gemini API error",
			zap.Int("status", statusCode),
			zap.String("error_status", apiErr.Status),
			zap.String("error_message", apiErr.Message),
		)
	}

	if statusCode == http.StatusBadRequest && apiErr != nil && isInvalidKeyError(apiErr) {
		return nil, domain.WrapError("auth_error", domain.ErrInvalidCredential, false)
	}

	return nil, classifyStatus("gemini", statusCode, body)
}

// isInvalidKeyError spots Gemini's 400 INVALID_ARGUMENT answer for a bad key.
func isInvalidKeyError(e *geminiError) bool {
	for _, d := range e.Details {
		if d.Reason == "API_KEY_INVALID" {
			return true
		}
	}
	return strings.Contains(strings.ToLower(e.Message), "api key not valid")
}

// HealthCheck verifies the Gemini API is reachable with the configured key.
func (c *GeminiClient) HealthCheck(ctx context.Context) error {
	if !c.config.HasCredential() {
		return domain.WrapError("health_check", domain.ErrMissingCredential, false)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.versionedBase()+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("x-goog-api-key", c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(ctx, "gemini", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_, err := c.handleHTTPError(resp.StatusCode, body)
		return err
	}

	return nil
}

// classifyStatus maps an HTTP status to the failure taxonomy.
func classifyStatus(provider string, statusCode int, body []byte) error {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return domain.WrapError("auth_error",
			fmt.Errorf("%w (status %d)", domain.ErrInvalidCredential, statusCode), false)
	case statusCode == http.StatusTooManyRequests:
		return domain.WrapError("rate_limit", domain.ErrRateLimited, true)
	case statusCode >= 500:
		return domain.WrapError(provider+"_unavailable", domain.ErrAIUnavailable, true)
	case statusCode == http.StatusNotFound:
		return domain.WrapError("model_not_found",
			fmt.Errorf("%w: model not found, check AI_MODEL", domain.ErrTransport), false)
	case statusCode == http.StatusBadRequest:
		return domain.WrapError("bad_request",
			fmt.Errorf("%w: bad request: %s", domain.ErrTransport, truncate(string(body), 200)), false)
	default:
		return domain.WrapError(provider+"_error",
			fmt.Errorf("%w: status %d: %s", domain.ErrTransport, statusCode, truncate(string(body), 200)), false)
	}
}

// transportError classifies a failed round trip.
func transportError(ctx context.Context, provider string, err error) error {
	var netErr net.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return domain.WrapError(provider+"_timeout", domain.ErrAITimeout, true)
	}
	if ctx.Err() != nil {
		return domain.WrapError("request_cancelled",
			fmt.Errorf("%w: %v", domain.ErrTransport, ctx.Err()), true)
	}
	return domain.WrapError("http_request",
		fmt.Errorf("%w: %v", domain.ErrTransport, err), true)
}

// isThinkingModel returns true if the model spends output tokens on reasoning
// (gemini-2.5 and later).
func isThinkingModel(model string) bool {
	return strings.Contains(model, "2.5") ||
		strings.HasPrefix(model, "gemini-3") ||
		strings.Contains(model, "thinking")
}
