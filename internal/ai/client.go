// Package ai provides the AI client interface and implementations.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/deploy-doctor/internal/config"
	"github.com/deploy-doctor/internal/domain"
	"go.uber.org/zap"
)

// OpenAIClient implements the Client interface using an OpenAI-compatible API.
type OpenAIClient struct {
	config     *config.AIConfig
	httpClient *http.Client
	prompter   PromptBuilder
	validator  ResponseValidator
	logger     *zap.Logger
}

// OpenAI API request/response structures
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *jsonSchemaFormat `json:"json_schema,omitempty"`
}

type jsonSchemaFormat struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// NewOpenAIClient creates a new OpenAI-compatible AI client.
func NewOpenAIClient(cfg *config.AIConfig, prompter PromptBuilder, validator ResponseValidator, logger *zap.Logger) *OpenAIClient {
	return &OpenAIClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		prompter:  prompter,
		validator: validator,
		logger:    logger.Named("openai_client"),
	}
}

// Name identifies the provider.
func (c *OpenAIClient) Name() string {
	return string(config.AIProviderOpenAI)
}

// Analyze sends one chat completion request constrained to the variant's JSON schema.
func (c *OpenAIClient) Analyze(ctx context.Context, in Input) (*domain.AnalysisResult, error) {
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
	c.logger.Debug("starting AI analysis",
		zap.String("variant", string(in.Variant)),
		zap.Int("log_length", len(in.LogText)),
	)

	reqBody := chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: c.prompter.BuildSystemPrompt()},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   c.config.MaxTokens,
		Temperature: 0.2,
		ResponseFormat: &responseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchemaFormat{
				Name:   strings.ReplaceAll(string(in.Variant), "-", "_"),
				Strict: true,
				Schema: schema.JSONSchema(),
			},
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, domain.WrapError("marshal_request", err, false)
	}

	url := fmt.Sprintf("%s/chat/completions", strings.TrimSuffix(c.config.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, domain.WrapError("create_request", err, false)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	result, err := c.executeRequest(ctx, in.Variant, req)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("AI analysis completed",
		zap.Duration("duration", time.Since(startTime)),
		zap.Int("items", result.ItemCount()),
	)

	return result, nil
}

// executeRequest performs the single HTTP request to the AI service.
func (c *OpenAIClient) executeRequest(ctx context.Context, variant domain.Variant, req *http.Request) (*domain.AnalysisResult, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(ctx, "ai", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, domain.WrapError("read_response",
			fmt.Errorf("%w: %v", domain.ErrTransport, err), true)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus("ai", resp.StatusCode, body)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, domain.WrapError("parse_response",
			fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err), true)
	}

	if chatResp.Error != nil {
		if chatResp.Error.Code == "invalid_api_key" {
			return nil, domain.WrapError("auth_error", domain.ErrInvalidCredential, false)
		}
		return nil, domain.WrapError("ai_api_error",
			fmt.Errorf("%w: %s: %s", domain.ErrTransport, chatResp.Error.Type, chatResp.Error.Message), false)
	}

	if len(chatResp.Choices) == 0 {
		return nil, domain.WrapError("empty_response",
			fmt.Errorf("%w: no choices", domain.ErrMalformedResponse), true)
	}

	choice := chatResp.Choices[0]
	if choice.Message.Refusal != "" {
		return nil, domain.WrapError("refusal",
			fmt.Errorf("%w: model refused: %s", domain.ErrMalformedResponse, truncate(choice.Message.Refusal, 200)), false)
	}
	if choice.FinishReason == "length" {
		return nil, domain.WrapError("response_truncated",
			fmt.Errorf("%w: output hit the token limit", domain.ErrMalformedResponse), true)
	}

	return decodeResult(variant, choice.Message.Content, c.validator)
}

// HealthCheck verifies the AI service is reachable.
func (c *OpenAIClient) HealthCheck(ctx context.Context) error {
	if !c.config.HasCredential() {
		return domain.WrapError("health_check", domain.ErrMissingCredential, false)
	}

	url := fmt.Sprintf("%s/models", strings.TrimSuffix(c.config.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(ctx, "ai", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return classifyStatus("ai", resp.StatusCode, nil)
	}

	return nil
}
