// Package ai provides the AI client interface and implementations.
package ai

import (
	"context"

	"github.com/deploy-doctor/internal/domain"
)

// Input is everything a client needs to compose one request.
type Input struct {
	// Variant selects the prompt, the declared schema and the result shape.
	Variant domain.Variant

	// LogText is the sanitized log.
	LogText string

	// Context is the caller's optional hint about the deployment.
	Context string

	// Hints are notes from matched failure signatures.
	Hints []string
}

// Client defines the interface for AI service interactions.
// Implementations issue exactly one upstream request per Analyze call.
type Client interface {
	// Analyze sends the log to the AI service and returns a validated result.
	// The context should carry timeout and cancellation signals.
	Analyze(ctx context.Context, in Input) (*domain.AnalysisResult, error)

	// HealthCheck verifies the AI service is reachable with the configured key.
	HealthCheck(ctx context.Context) error

	// Name identifies the provider in logs.
	Name() string
}

// PromptBuilder defines the interface for constructing AI prompts.
type PromptBuilder interface {
	// BuildSystemPrompt returns the system prompt that defines the AI's role.
	BuildSystemPrompt() string

	// BuildUserPrompt constructs the user prompt for the requested variant.
	BuildUserPrompt(in Input) (string, error)
}

// ResponseValidator defines the interface for validating AI responses.
type ResponseValidator interface {
	// Validate checks if the AI response satisfies its variant's required-field contract.
	Validate(result *domain.AnalysisResult) error
}
