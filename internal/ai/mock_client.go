// Package ai provides the AI client interface and implementations.
package ai

import (
	"context"

	"github.com/deploy-doctor/internal/domain"
	"go.uber.org/zap"
)

// MockClient implements the Client interface without network calls.
type MockClient struct {
	logger *zap.Logger
}

// NewMockClient creates a new mock AI client.
func NewMockClient(logger *zap.Logger) *MockClient {
	return &MockClient{
		logger: logger.Named("mock_ai_client"),
	}
}

// Name identifies the provider.
func (c *MockClient) Name() string {
	return "mock"
}

// Analyze returns a canned, schema-valid result for the requested variant.
func (c *MockClient) Analyze(ctx context.Context, in Input) (*domain.AnalysisResult, error) {
	c.logger.Debug("mock AI analysis",
		zap.String("variant", string(in.Variant)),
		zap.Int("log_length", len(in.LogText)),
	)

	switch in.Variant {
	case domain.VariantFileFix:
		return &domain.AnalysisResult{
			Variant: domain.VariantFileFix,
			FileFix: &domain.FileFix{
				Explanation: "This is a mock response. Set AI_MOCK_MODE=false and AI_API_KEY to enable real analysis.",
				Solution:    "1. Add the Dockerfile below to the repository root.\n2. Redeploy.",
				Files: []domain.GeneratedFile{
					{
						Name:     "Dockerfile",
						Language: "dockerfile",
						Content:  "FROM n8nio/n8n:latest\nENV N8N_PORT=5678\nEXPOSE 5678\n",
					},
				},
			},
		}, nil
	case domain.VariantLogDiagnosis:
		return &domain.AnalysisResult{
			Variant: domain.VariantLogDiagnosis,
			LogDiagnosis: &domain.LogDiagnosis{
				Diagnosis: "This is a mock response. Set AI_MOCK_MODE=false and AI_API_KEY to enable real analysis.",
				ProbableCauses: []string{
					"The service is running in mock mode",
				},
				SuggestedFixes: []domain.SuggestedFix{
					{
						Title:       "Enable real analysis",
						Description: "Configure an API key and turn off mock mode.",
						Code:        "AI_MOCK_MODE=false\nAI_API_KEY=<YOUR_API_KEY>",
					},
				},
			},
		}, nil
	}

	return nil, domain.WrapError("mock_analyze", domain.ErrUnknownVariant, false)
}

// HealthCheck always returns success for mock client.
func (c *MockClient) HealthCheck(ctx context.Context) error {
	return nil
}
