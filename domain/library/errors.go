package library

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is matching across layers.
var (
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrService       = errors.New("service error")
)

// ValidationError indicates bad input or a failed precondition.
// Recoverable and user-facing; excluded from operational alerting.
type ValidationError struct {
	message string
}

// NewValidationError creates a new ValidationError.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string { return e.message }

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError indicates a missing library or resource.
type NotFoundError struct {
	message string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(format string, args ...any) *NotFoundError {
	return &NotFoundError{message: fmt.Sprintf(format, args...)}
}

func (e *NotFoundError) Error() string { return e.message }

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// AlreadyExistsError indicates a conflicting library or resource.
type AlreadyExistsError struct {
	message string
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(format string, args ...any) *AlreadyExistsError {
	return &AlreadyExistsError{message: fmt.Sprintf(format, args...)}
}

func (e *AlreadyExistsError) Error() string { return e.message }

// Is matches ErrAlreadyExists.
func (e *AlreadyExistsError) Is(target error) bool { return target == ErrAlreadyExists }

// ServiceError indicates an embedding, completion or origin-access failure.
// A ServiceError during a mutation triggers the rollback path.
type ServiceError struct {
	operation string
	cause     error
}

// NewServiceError creates a new ServiceError for the given operation.
func NewServiceError(operation string, cause error) *ServiceError {
	return &ServiceError{operation: operation, cause: cause}
}

func (e *ServiceError) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("%s failed", e.operation)
	}
	return fmt.Sprintf("%s failed: %v", e.operation, e.cause)
}

// Unwrap returns the underlying cause.
func (e *ServiceError) Unwrap() error { return e.cause }

// Is matches ErrService.
func (e *ServiceError) Is(target error) bool { return target == ErrService }
