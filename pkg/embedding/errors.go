package embedding

import (
	"errors"
	"fmt"
	"strings"

	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/apperrors"
)

// Error is a structured embedding provider error with classification.
type Error struct {
	Message    string
	Retryable  bool
	Cause      error
	StatusCode int // HTTP status code if applicable
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("embedding provider: HTTP %d %s: %v", e.StatusCode, e.Message, e.Cause)
	}
	if e.Cause != nil {
		return fmt.Sprintf("embedding provider: %s: %v", e.Message, e.Cause)
	}
	return "embedding provider: " + e.Message
}

// Unwrap supports errors.Is(err, apperrors.ErrEmbeddingProvider).
func (e *Error) Unwrap() error {
	return apperrors.ErrEmbeddingProvider
}

// IsRetryable implements the retry.RetryableError interface.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// ClassifyError categorizes a provider error into a structured Error.
// Auth and model-configuration failures are permanent; rate limits and
// server-side failures are transient.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	var embErr *Error
	if errors.As(err, &embErr) {
		return embErr
	}

	errStr := err.Error()
	lower := strings.ToLower(errStr)

	statusCode := 0
	for _, code := range []int{400, 401, 403, 404, 429, 500, 502, 503, 504} {
		if strings.Contains(errStr, fmt.Sprintf("%d", code)) {
			statusCode = code
			break
		}
	}

	switch {
	case statusCode == 401 || strings.Contains(lower, "invalid api key") || strings.Contains(lower, "unauthorized"):
		return &Error{Message: "authentication failed", Retryable: false, Cause: err, StatusCode: statusCode}
	case strings.Contains(lower, "model") && (strings.Contains(lower, "not found") || strings.Contains(lower, "does not exist")):
		return &Error{Message: "model not found", Retryable: false, Cause: err, StatusCode: statusCode}
	case statusCode == 404:
		return &Error{Message: "endpoint not found", Retryable: false, Cause: err, StatusCode: statusCode}
	case statusCode == 429 || strings.Contains(lower, "rate limit"):
		return &Error{Message: "rate limited", Retryable: true, Cause: err, StatusCode: statusCode}
	case statusCode >= 500:
		return &Error{Message: "provider unavailable", Retryable: true, Cause: err, StatusCode: statusCode}
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "connection refused"):
		return &Error{Message: "connection failed", Retryable: true, Cause: err}
	default:
		return &Error{Message: "request failed", Retryable: false, Cause: err, StatusCode: statusCode}
	}
}
