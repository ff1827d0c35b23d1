package shared

import (
	"errors"
	"io"
	"net/http"

	"github.com/phrazzld/puris-api/internal/domain"
)

// MaxBodyBytes caps the size of an inbound payload.
const MaxBodyBytes = 1 << 20

// ReadBody reads the whole request body, up to MaxBodyBytes.
// Payloads are kept as raw bytes because they are stored verbatim as
// message content. An empty or oversized body is a validation error.
func ReadBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, domain.NewValidationError("payload", "is too large", domain.ErrValidation)
		}
		return nil, domain.NewValidationError("payload", "could not be read", domain.ErrInvalidFormat)
	}

	if len(body) == 0 {
		return nil, domain.NewValidationError("payload", "is required", domain.ErrEmptyContent)
	}
	return body, nil
}
