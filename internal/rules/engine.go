// Package rules detects well-known deployment failure signatures in logs.
package rules

import (
	"github.com/deploy-doctor/internal/domain"
	"go.uber.org/zap"
)

// Engine applies signature rules to logs before they are sent to the model.
type Engine struct {
	rules    []*Rule
	maxHints int
	logger   *zap.Logger
}

// NewEngine creates a new rule engine. maxHints caps how many hints reach the prompt.
func NewEngine(rules []*Rule, maxHints int, logger *zap.Logger) *Engine {
	if maxHints <= 0 {
		maxHints = len(rules)
	}
	return &Engine{
		rules:    rules,
		maxHints: maxHints,
		logger:   logger.Named("rule_engine"),
	}
}

// Analyze applies all rules to the log and returns matches in rule order.
func (e *Engine) Analyze(log string) []domain.SignatureMatch {
	var matches []domain.SignatureMatch

	for _, rule := range e.rules {
		if !rule.Match(log) {
			continue
		}
		e.logger.Debug("signature matched", zap.String("rule_id", rule.ID))

		matches = append(matches, domain.SignatureMatch{
			ID:   rule.ID,
			Hint: rule.Hint,
		})
		if len(matches) == e.maxHints {
			break
		}
	}

	return matches
}

// Hints returns just the hint text of the matches.
func Hints(matches []domain.SignatureMatch) []string {
	hints := make([]string, 0, len(matches))
	for _, m := range matches {
		hints = append(hints, m.Hint)
	}
	return hints
}
