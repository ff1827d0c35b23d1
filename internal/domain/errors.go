// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidFormat is returned when data is not in the expected format.
	ErrInvalidFormat = errors.New("invalid format")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrEmptyContent is returned when required content is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidRequestState is returned when a request state is not one of
	// the known lifecycle states.
	ErrInvalidRequestState = errors.New("invalid request state")

	// ErrInvalidTransition is returned when a request is asked to move to a
	// state that is not reachable from its current state.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidBPN is returned when a business partner number is malformed.
	ErrInvalidBPN = errors.New("invalid business partner number")

	// ErrUnknownApiMethod is returned when a purpose token does not name an
	// API method.
	ErrUnknownApiMethod = errors.New("unknown api method")
)

// ValidationError reports which input field failed validation.
// It matches ErrValidation with errors.Is in addition to its wrapped error.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{Field: field, Message: message, Err: err}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Field + " " + e.Message
}

// Unwrap returns the wrapped error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
