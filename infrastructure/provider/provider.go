// Package provider implements the inference capabilities (embedding and
// completion) against OpenAI-compatible APIs.
package provider

import (
	"fmt"

	"github.com/librarianhq/librarian/domain/library"
)

// ProviderError describes a failed provider call. It matches
// library.ErrService so mutation pipelines treat it as a rollback trigger.
type ProviderError struct {
	operation  string
	statusCode int
	message    string
	cause      error
}

// NewProviderError creates a new ProviderError.
func NewProviderError(operation string, statusCode int, message string, cause error) *ProviderError {
	return &ProviderError{
		operation:  operation,
		statusCode: statusCode,
		message:    message,
		cause:      cause,
	}
}

func (e *ProviderError) Error() string {
	if e.statusCode > 0 {
		return fmt.Sprintf("%s failed (status %d): %s", e.operation, e.statusCode, e.message)
	}
	return fmt.Sprintf("%s failed: %s", e.operation, e.message)
}

// Unwrap returns the underlying cause.
func (e *ProviderError) Unwrap() error { return e.cause }

// Is matches library.ErrService.
func (e *ProviderError) Is(target error) bool { return target == library.ErrService }

// StatusCode returns the HTTP status of the failed call, or 0.
func (e *ProviderError) StatusCode() int { return e.statusCode }

// Operation returns the name of the failed operation.
func (e *ProviderError) Operation() string { return e.operation }
