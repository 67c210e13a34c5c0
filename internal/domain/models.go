// Package domain contains the core domain models and types.
// These models represent the analysis contract and are independent
// of any infrastructure concerns.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Variant selects which result shape the caller asks for.
type Variant string

const (
	// VariantFileFix asks for an explanation, a solution and corrected files.
	VariantFileFix Variant = "file-fix"

	// VariantLogDiagnosis asks for a diagnosis, probable causes and suggested fixes.
	VariantLogDiagnosis Variant = "log-diagnosis"
)

// DefaultVariant is used when the caller does not pick one.
const DefaultVariant = VariantLogDiagnosis

// MaxInputBytes caps how much raw input a caller may submit, before sanitizing.
const MaxInputBytes = 10 << 20

// IsValid checks if the variant is one of the known shapes.
func (v Variant) IsValid() bool {
	switch v {
	case VariantFileFix, VariantLogDiagnosis:
		return true
	default:
		return false
	}
}

// ParseVariant maps user input to a Variant. Empty input yields DefaultVariant.
func ParseVariant(s string) (Variant, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultVariant, nil
	}
	switch s {
	case "fix", "file-fix", "file_fix":
		return VariantFileFix, nil
	case "diagnose", "diagnosis", "log-diagnosis", "log_diagnosis":
		return VariantLogDiagnosis, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownVariant, s)
}

// AnalysisRequest represents one user-initiated analysis.
// Build it with NewAnalysisRequest and pass it by value.
type AnalysisRequest struct {
	// LogText is the raw pasted log or error output.
	LogText string `json:"logText" binding:"required"`

	// Context is an optional hint such as the hosting platform or project type.
	Context string `json:"context,omitempty"`

	// Variant is the result shape the caller wants back.
	Variant Variant `json:"variant,omitempty"`
}

// NewAnalysisRequest trims the inputs and rejects empty logs or unknown variants.
func NewAnalysisRequest(logText, context string, variant Variant) (AnalysisRequest, error) {
	logText = strings.TrimSpace(logText)
	if logText == "" {
		return AnalysisRequest{}, ErrEmptyLog
	}
	if variant == "" {
		variant = DefaultVariant
	}
	if !variant.IsValid() {
		return AnalysisRequest{}, fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
	}
	return AnalysisRequest{
		LogText: logText,
		Context: strings.TrimSpace(context),
		Variant: variant,
	}, nil
}

// GeneratedFile is a configuration file proposed by the file-fix variant.
type GeneratedFile struct {
	Name     string `json:"name" yaml:"name" validate:"required"`
	Language string `json:"language" yaml:"language" validate:"required"`
	Content  string `json:"content" yaml:"content" validate:"required"`
}

// SuggestedFix is one remediation proposed by the log-diagnosis variant.
type SuggestedFix struct {
	Title       string `json:"title" yaml:"title" validate:"required"`
	Description string `json:"description" yaml:"description" validate:"required"`
	Code        string `json:"code,omitempty" yaml:"code,omitempty"`
}

// FileFix is the file-fix result shape.
type FileFix struct {
	Explanation string          `json:"explanation" yaml:"explanation" validate:"required"`
	Solution    string          `json:"solution" yaml:"solution" validate:"required"`
	Files       []GeneratedFile `json:"files" yaml:"files" validate:"required,min=1,dive"`
}

// LogDiagnosis is the log-diagnosis result shape.
type LogDiagnosis struct {
	Diagnosis      string         `json:"diagnosis" yaml:"diagnosis" validate:"required"`
	ProbableCauses []string       `json:"probableCauses" yaml:"probableCauses" validate:"required,min=1,dive,required"`
	SuggestedFixes []SuggestedFix `json:"suggestedFixes" yaml:"suggestedFixes" validate:"required,min=1,dive"`
}

// AnalysisResult is a tagged union over the two result shapes.
// Exactly the member selected by Variant is set.
type AnalysisResult struct {
	Variant      Variant       `json:"variant" yaml:"variant"`
	FileFix      *FileFix      `json:"fileFix,omitempty" yaml:"fileFix,omitempty"`
	LogDiagnosis *LogDiagnosis `json:"logDiagnosis,omitempty" yaml:"logDiagnosis,omitempty"`
}

// Summary returns the headline text of the result regardless of variant.
func (r *AnalysisResult) Summary() string {
	if r == nil {
		return ""
	}
	switch r.Variant {
	case VariantFileFix:
		if r.FileFix != nil {
			return r.FileFix.Explanation
		}
	case VariantLogDiagnosis:
		if r.LogDiagnosis != nil {
			return r.LogDiagnosis.Diagnosis
		}
	}
	return ""
}

// ItemCount returns the number of files or suggested fixes in the result.
func (r *AnalysisResult) ItemCount() int {
	if r == nil {
		return 0
	}
	switch {
	case r.FileFix != nil:
		return len(r.FileFix.Files)
	case r.LogDiagnosis != nil:
		return len(r.LogDiagnosis.SuggestedFixes)
	}
	return 0
}

// AnalysisResponse wraps the analysis result with metadata for the HTTP API.
type AnalysisResponse struct {
	// Success indicates whether the analysis completed successfully.
	Success bool `json:"success"`

	// Variant echoes the requested result shape.
	Variant Variant `json:"variant,omitempty"`

	// Result contains the analysis result if successful.
	Result *AnalysisResult `json:"result,omitempty"`

	// Error contains error details if the analysis failed.
	Error string `json:"error,omitempty"`

	// Code is the machine-readable failure kind.
	Code string `json:"code,omitempty"`

	// Hint tells the user whether to fix configuration or try again.
	Hint string `json:"hint,omitempty"`

	// RequestID correlates the response with server logs.
	RequestID string `json:"request_id,omitempty"`

	// ProcessedAt is the timestamp when the analysis was completed.
	ProcessedAt time.Time `json:"processed_at"`
}

// SignatureMatch is a known failure signature found in a log.
type SignatureMatch struct {
	// ID is the unique identifier of the matched signature.
	ID string

	// Hint is a short note passed to the model as extra context.
	Hint string
}

// PreparedLog contains the log after sanitization and signature matching.
type PreparedLog struct {
	// Text is the sanitized log sent to the model.
	Text string

	// Redactions is the number of secrets masked in the log.
	Redactions int

	// Truncated reports whether the log was cut to the size limit.
	Truncated bool

	// Signatures contains known failure signatures detected in the log.
	Signatures []SignatureMatch
}
