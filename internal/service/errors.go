package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/puris-api/internal/domain"
	"github.com/phrazzld/puris-api/internal/store"
)

// Common service errors - sentinel errors used across service implementations.
// The API layer maps each one to an HTTP status code.
var (
	// ErrRequestNotFound indicates that the request does not exist or is not
	// visible to the calling partner.
	ErrRequestNotFound = errors.New("request not found")

	// ErrCorrelation indicates that a response does not reference a request
	// that exists, belongs to the responding partner and is in PROCESSING.
	ErrCorrelation = errors.New("response does not correlate to an in-flight request")

	// ErrInvalidTransition indicates that the requested state is not
	// reachable from the request's current state.
	ErrInvalidTransition = errors.New("invalid request state transition")
)

// ValidationError reports a malformed payload. It matches
// domain.ErrValidation with errors.Is.
type ValidationError = domain.ValidationError

// ServiceError wraps unexpected errors from the service layer with context.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "create_request", "consume_response")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError maps err to the service error contract.
// Sentinels and validation errors are returned without the ServiceError
// wrapper; store not-found and domain transition errors are translated to
// their service counterparts.
func NewServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	var validationErr *ValidationError
	switch {
	case errors.Is(err, ErrCorrelation),
		errors.Is(err, ErrRequestNotFound),
		errors.Is(err, ErrInvalidTransition):
		return err
	case errors.As(err, &validationErr):
		return err
	case errors.Is(err, store.ErrRequestNotFound):
		return ErrRequestNotFound
	case errors.Is(err, domain.ErrInvalidTransition):
		return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}

	return &ServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
