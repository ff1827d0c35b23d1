package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/phrazzld/puris-api/internal/api/middleware"
	"github.com/phrazzld/puris-api/internal/api/shared"
	"github.com/phrazzld/puris-api/internal/domain"
	"github.com/phrazzld/puris-api/internal/service"
	"github.com/phrazzld/puris-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, middleware.ErrInvalidAPIKey):
		return http.StatusUnauthorized

	// Bad request errors
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidFormat),
		errors.Is(err, domain.ErrEmptyContent),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Correlation and concurrent update conflicts
	case errors.Is(err, service.ErrCorrelation),
		errors.Is(err, store.ErrUpdateFailed),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	// Not found errors
	case errors.Is(err, service.ErrRequestNotFound),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, domain.ErrUnknownApiMethod):
		return http.StatusNotFound

	// Persistence unavailable
	case errors.Is(err, store.ErrStorage):
		return http.StatusServiceUnavailable

	// Invalid transitions are internal errors: no client input can cause one
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var validationErr *domain.ValidationError

	switch {
	case errors.Is(err, middleware.ErrInvalidAPIKey):
		return "Invalid API key"

	case errors.As(err, &validationErr):
		return SanitizeValidationError(validationErr)

	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid ID"

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidFormat),
		errors.Is(err, domain.ErrEmptyContent),
		errors.Is(err, store.ErrInvalidEntity):
		return "Validation failed"

	case errors.Is(err, service.ErrCorrelation):
		return "Response does not correlate to a request in progress"

	case errors.Is(err, store.ErrUpdateFailed):
		return "Request was modified concurrently"

	case errors.Is(err, store.ErrDuplicate):
		return "Response already recorded"

	case errors.Is(err, service.ErrRequestNotFound),
		errors.Is(err, store.ErrRequestNotFound):
		return "Request not found"

	case errors.Is(err, domain.ErrUnknownApiMethod):
		return "API method not found"

	case errors.Is(err, store.ErrStorage):
		return "Service temporarily unavailable"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError turns a validation error into a client message
// naming the offending field. Field names come from the JSON payload; the
// message never echoes submitted values.
func SanitizeValidationError(err error) string {
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) || validationErr.Field == "" {
		return "Validation failed"
	}

	msg := validationErr.Message
	if tag, ok := strings.CutPrefix(msg, "failed on the '"); ok {
		msg = getValidationTagMessage(strings.TrimSuffix(tag, "' tag"))
	}
	if msg == "" || strings.ContainsAny(msg, `"`) {
		return fmt.Sprintf("Invalid %s", validationErr.Field)
	}
	return fmt.Sprintf("Invalid %s: %s", validationErr.Field, msg)
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}

// HandleAPIError writes the error response for err.
// Client errors get the safe message for their kind; unexpected server
// errors get defaultMsg when one is given. Rejected keys and uncorrelated
// responses are logged at warn level.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, defaultMsg string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)

	if status == http.StatusInternalServerError && defaultMsg != "" {
		message = defaultMsg
	}

	var opts []shared.ResponseOption
	if errors.Is(err, middleware.ErrInvalidAPIKey) || errors.Is(err, service.ErrCorrelation) {
		opts = append(opts, shared.WithElevatedLogLevel())
	}

	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}
