// Package domain contains the core domain models and types.
package domain

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for common failure cases.
var (
	// ErrEmptyLog indicates the log content is empty or whitespace only.
	ErrEmptyLog = errors.New("log content is empty")

	// ErrInvalidBody indicates the request body could not be decoded.
	ErrInvalidBody = errors.New("request body is not valid JSON")

	// ErrBodyTooLarge indicates the request body exceeds MaxInputBytes.
	ErrBodyTooLarge = errors.New("request body is too large")

	// ErrUnknownVariant indicates the caller asked for a result shape that does not exist.
	ErrUnknownVariant = errors.New("unknown analysis variant")

	// ErrMissingCredential indicates no API key is configured for the AI service.
	ErrMissingCredential = errors.New("AI API key is not configured")

	// ErrInvalidCredential indicates the AI service rejected the API key.
	ErrInvalidCredential = errors.New("AI service rejected the API key")

	// ErrTransport indicates the AI service was unreachable or returned a non-success status.
	ErrTransport = errors.New("AI service request failed")

	// ErrAITimeout indicates the AI service did not respond in time.
	ErrAITimeout = fmt.Errorf("%w: timeout", ErrTransport)

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = fmt.Errorf("%w: rate limit exceeded", ErrTransport)

	// ErrAIUnavailable indicates the AI service is not available.
	ErrAIUnavailable = fmt.Errorf("%w: service unavailable", ErrTransport)

	// ErrMalformedResponse indicates the AI response was not valid JSON or failed validation.
	ErrMalformedResponse = errors.New("malformed AI response")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Kind classifies a failure for presentation.
type Kind string

const (
	KindNone              Kind = ""
	KindInvalidRequest    Kind = "invalid_request"
	KindMissingCredential Kind = "missing_credential"
	KindInvalidCredential Kind = "invalid_credential"
	KindTransportFailure  Kind = "transport_failure"
	KindMalformedResponse Kind = "malformed_response"
	KindInternal          Kind = "internal"
)

// AnalysisError wraps an error with additional context.
type AnalysisError struct {
	// Op is the operation that failed.
	Op string

	// Err is the underlying error.
	Err error

	// Retryable tells the caller that submitting again may succeed.
	// Nothing in the pipeline retries on its own.
	Retryable bool
}

// Error implements the error interface.
func (e *AnalysisError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// WrapError creates a new AnalysisError with context.
func WrapError(op string, err error, retryable bool) *AnalysisError {
	return &AnalysisError{
		Op:        op,
		Err:       err,
		Retryable: retryable,
	}
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Retryable
	}
	return false
}

// KindOf returns the failure kind of err.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrEmptyLog), errors.Is(err, ErrUnknownVariant),
		errors.Is(err, ErrInvalidBody), errors.Is(err, ErrBodyTooLarge):
		return KindInvalidRequest
	case errors.Is(err, ErrMissingCredential):
		return KindMissingCredential
	case errors.Is(err, ErrInvalidCredential):
		return KindInvalidCredential
	case errors.Is(err, ErrMalformedResponse):
		return KindMalformedResponse
	case errors.Is(err, ErrTransport),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return KindTransportFailure
	default:
		return KindInternal
	}
}

// IsTimeout reports whether err was caused by the AI call running out of time.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrAITimeout) || errors.Is(err, context.DeadlineExceeded)
}

// Hint returns a human-readable next step for err.
func Hint(err error) string {
	switch KindOf(err) {
	case KindInvalidRequest:
		switch {
		case errors.Is(err, ErrUnknownVariant):
			return "Choose one of the variants: file-fix or log-diagnosis."
		case errors.Is(err, ErrInvalidBody):
			return `Send a JSON body such as {"logText": "...", "context": "..."}.`
		case errors.Is(err, ErrBodyTooLarge):
			return "The log is too large. Send only the part around the failure."
		}
		return "Paste the error log you want analyzed."
	case KindMissingCredential:
		return "No API key is configured. Set AI_API_KEY in the environment and restart."
	case KindInvalidCredential:
		return "The API key was rejected. Check AI_API_KEY in your configuration."
	case KindTransportFailure:
		if !IsRetryable(err) && !IsTimeout(err) {
			return "The AI service refused the request. Check AI_MODEL and AI_BASE_URL."
		}
		return "The AI service could not be reached. Try again in a moment."
	case KindMalformedResponse:
		return "The AI service returned an unusable answer. Try again."
	case KindInternal:
		return "Something went wrong. Try again."
	}
	return ""
}
