package service

import (
	"github.com/deploy-doctor/internal/ai"
	"github.com/deploy-doctor/internal/config"
	"github.com/deploy-doctor/internal/rules"
	"github.com/deploy-doctor/pkg/sanitizer"
	"go.uber.org/zap"
)

// maxSignatureHints caps how many signature hints reach one prompt.
const maxSignatureHints = 3

// Build wires an Analyzer from configuration. The server and the CLI share it.
func Build(cfg *config.Config, logger *zap.Logger) (*Analyzer, error) {
	client, err := ai.NewClient(&cfg.AI, logger)
	if err != nil {
		return nil, err
	}

	return NewAnalyzer(
		client,
		rules.NewEngine(rules.DefaultRules(), maxSignatureHints, logger),
		sanitizer.New(cfg.Processing.MaxLogSize),
		AnalyzerConfig{
			EnableSignatures: cfg.Processing.EnableSignatures,
			Timeout:          cfg.AI.Timeout,
		},
		logger,
	), nil
}
