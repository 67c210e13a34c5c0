// Package service contains the business logic layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deploy-doctor/internal/ai"
	"github.com/deploy-doctor/internal/domain"
	"github.com/deploy-doctor/internal/rules"
	"github.com/deploy-doctor/pkg/sanitizer"
	"go.uber.org/zap"
)

// DefaultTimeout bounds one analysis when the configuration leaves it unset.
const DefaultTimeout = 45 * time.Second

// Analyzer runs the analysis pipeline: guard, sanitize, match signatures,
// then exactly one AI call under a bounded timeout.
// It holds no mutable state and is safe for concurrent use.
type Analyzer struct {
	aiClient         ai.Client
	ruleEngine       *rules.Engine
	sanitizer        *sanitizer.Sanitizer
	enableSignatures bool
	timeout          time.Duration
	logger           *zap.Logger
}

// AnalyzerConfig contains configuration for the Analyzer.
type AnalyzerConfig struct {
	// EnableSignatures adds known-failure hints to the prompt.
	EnableSignatures bool

	// Timeout bounds the AI call. Zero means DefaultTimeout.
	Timeout time.Duration
}

// NewAnalyzer creates a new Analyzer with all dependencies.
func NewAnalyzer(
	aiClient ai.Client,
	ruleEngine *rules.Engine,
	sanitizer *sanitizer.Sanitizer,
	config AnalyzerConfig,
	logger *zap.Logger,
) *Analyzer {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Analyzer{
		aiClient:         aiClient,
		ruleEngine:       ruleEngine,
		sanitizer:        sanitizer,
		enableSignatures: config.EnableSignatures && ruleEngine != nil,
		timeout:          timeout,
		logger:           logger.Named("analyzer"),
	}
}

// Prepare sanitizes the log and collects signature matches without calling the AI service.
func (a *Analyzer) Prepare(logText string) domain.PreparedLog {
	res := a.sanitizer.Sanitize(logText)
	prepared := domain.PreparedLog{
		Text:       res.Text,
		Redactions: res.TotalRedactions(),
		Truncated:  res.Truncated,
	}
	if a.enableSignatures {
		prepared.Signatures = a.ruleEngine.Analyze(res.Text)
	}
	return prepared
}

// Analyze processes one request and returns either a validated result of the
// requested variant or a classified error. It never retries and never
// substitutes a locally built result for a failed AI call.
func (a *Analyzer) Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	startTime := time.Now()

	variant := req.Variant
	if variant == "" {
		variant = domain.DefaultVariant
	}
	if !variant.IsValid() {
		return nil, domain.WrapError("validate_input",
			fmt.Errorf("%w: %q", domain.ErrUnknownVariant, variant), false)
	}

	// Empty input never reaches the network.
	if a.sanitizer.IsEmpty(req.LogText) {
		return nil, domain.WrapError("validate_input", domain.ErrEmptyLog, false)
	}

	if a.sanitizer.IsTooLarge(req.LogText) {
		a.logger.Warn("log too large, will be truncated",
			zap.Int("original_size", len(req.LogText)),
		)
	}

	prepared := a.Prepare(req.LogText)
	a.logger.Debug("log prepared",
		zap.String("variant", string(variant)),
		zap.Int("sanitized_size", len(prepared.Text)),
		zap.Int("secrets_found", prepared.Redactions),
		zap.Bool("truncated", prepared.Truncated),
		zap.Int("signatures", len(prepared.Signatures)),
	)

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	result, err := a.aiClient.Analyze(ctx, ai.Input{
		Variant: variant,
		LogText: prepared.Text,
		Context: req.Context,
		Hints:   rules.Hints(prepared.Signatures),
	})
	if err != nil {
		err = normalizeError(err)
		a.logger.Error("AI analysis failed",
			zap.String("provider", a.aiClient.Name()),
			zap.String("kind", string(domain.KindOf(err))),
			zap.Bool("retryable", domain.IsRetryable(err)),
			zap.Error(err),
			zap.Duration("duration", time.Since(startTime)),
		)
		return nil, err
	}

	if result == nil || result.Variant != variant {
		return nil, domain.WrapError("check_variant",
			fmt.Errorf("%w: expected a %s result", domain.ErrMalformedResponse, variant), true)
	}

	a.logger.Info("AI analysis completed",
		zap.String("provider", a.aiClient.Name()),
		zap.String("variant", string(variant)),
		zap.Int("items", result.ItemCount()),
		zap.Duration("duration", time.Since(startTime)),
	)

	return result, nil
}

// Provider returns the name of the configured AI client.
func (a *Analyzer) Provider() string {
	return a.aiClient.Name()
}

// HealthCheck reports whether the AI service is reachable with the configured key.
func (a *Analyzer) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.aiClient.HealthCheck(ctx)
}

// normalizeError makes sure every failure leaving the pipeline carries a kind.
func normalizeError(err error) error {
	if domain.KindOf(err) != domain.KindInternal {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrTransport) {
			return domain.WrapError("ai_timeout", domain.ErrAITimeout, true)
		}
		return err
	}
	return domain.WrapError("ai_call", fmt.Errorf("%w: %v", domain.ErrTransport, err), true)
}
