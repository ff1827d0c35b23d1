package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/puris-api/internal/api/middleware"
	"github.com/phrazzld/puris-api/internal/domain"
)

// getPartner extracts the authenticated partner from the request context.
// The partner is placed in the context by the API key middleware; when it is
// missing an error response is written and false returned.
func getPartner(w http.ResponseWriter, r *http.Request, log *slog.Logger) (domain.Partner, bool) {
	partner, ok := middleware.PartnerFromContext(r.Context())
	if !ok {
		log.Warn("partner not found in request context")
		HandleAPIError(w, r, middleware.ErrInvalidAPIKey, "")
		return domain.Partner{}, false
	}
	return partner, true
}

// getPathUUID extracts a UUID from the URL path parameters.
// It parses and validates the UUID, handling common error cases.
//
// Parameters:
//   - r: The HTTP request
//   - paramName: The name of the path parameter to extract
//
// Returns:
//   - (uuid.UUID, nil): The parsed UUID if valid
//   - (uuid.UUID{}, error): A zero UUID and appropriate error if parameter is missing or invalid
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, domain.NewValidationError(paramName, "is required", domain.ErrValidation)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(paramName, "has invalid format", domain.ErrInvalidID)
	}

	return id, nil
}
