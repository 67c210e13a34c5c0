// Package ai provides the AI client interface and implementations.
package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/deploy-doctor/internal/domain"
	"github.com/go-playground/validator/v10"
)

// DefaultValidator implements ResponseValidator with the struct tags on the domain types.
type DefaultValidator struct {
	validate *validator.Validate
}

// NewDefaultValidator creates a new response validator.
func NewDefaultValidator() *DefaultValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report wire names ("probableCauses") rather than Go names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &DefaultValidator{validate: v}
}

// Validate checks that exactly the member selected by Variant is set and complete.
func (v *DefaultValidator) Validate(result *domain.AnalysisResult) error {
	if result == nil {
		return domain.WrapError("validate",
			fmt.Errorf("%w: result is nil", domain.ErrMalformedResponse), true)
	}

	var member any
	switch result.Variant {
	case domain.VariantFileFix:
		if result.FileFix == nil || result.LogDiagnosis != nil {
			return domain.WrapError("validate_variant",
				fmt.Errorf("%w: file-fix result must carry only fileFix", domain.ErrMalformedResponse), true)
		}
		member = result.FileFix
	case domain.VariantLogDiagnosis:
		if result.LogDiagnosis == nil || result.FileFix != nil {
			return domain.WrapError("validate_variant",
				fmt.Errorf("%w: log-diagnosis result must carry only logDiagnosis", domain.ErrMalformedResponse), true)
		}
		member = result.LogDiagnosis
	default:
		return domain.WrapError("validate_variant",
			fmt.Errorf("%w: %q", domain.ErrUnknownVariant, result.Variant), false)
	}

	if err := v.validate.Struct(member); err != nil {
		return domain.WrapError("validate_fields",
			fmt.Errorf("%w: %s", domain.ErrMalformedResponse, describeValidation(err)), true)
	}

	return nil
}

// describeValidation flattens validator errors into "field: rule" pairs.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		path := fe.Namespace()
		// Drop the Go type name prefix ("LogDiagnosis.").
		if idx := strings.Index(path, "."); idx != -1 {
			path = path[idx+1:]
		}
		parts = append(parts, fmt.Sprintf("%s failed %q", path, fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// decodeResult parses model output as a single JSON document of the variant's shape
// and validates it. No text is stripped or extracted: anything else is malformed.
func decodeResult(variant domain.Variant, content string, v ResponseValidator) (*domain.AnalysisResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.WrapError("empty_text",
			fmt.Errorf("%w: empty response text", domain.ErrMalformedResponse), true)
	}

	result := &domain.AnalysisResult{Variant: variant}
	var target any
	switch variant {
	case domain.VariantFileFix:
		result.FileFix = &domain.FileFix{}
		target = result.FileFix
	case domain.VariantLogDiagnosis:
		result.LogDiagnosis = &domain.LogDiagnosis{}
		target = result.LogDiagnosis
	default:
		return nil, domain.WrapError("decode_result",
			fmt.Errorf("%w: %q", domain.ErrUnknownVariant, variant), false)
	}

	if err := json.Unmarshal([]byte(content), target); err != nil {
		return nil, domain.WrapError("unmarshal_result",
			fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err), true)
	}

	if err := v.Validate(result); err != nil {
		return nil, err
	}

	return result, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
