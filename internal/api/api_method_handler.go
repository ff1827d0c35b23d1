package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/puris-api/internal/api/shared"
	"github.com/phrazzld/puris-api/internal/domain"
)

// ListApiMethods handles GET /api/v1/api-methods.
func ListApiMethods(w http.ResponseWriter, r *http.Request) {
	methods := domain.ApiMethods()
	resp := make([]ApiMethodResponse, 0, len(methods))
	for _, m := range methods {
		resp = append(resp, apiMethodToResponse(m))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// GetApiMethod handles GET /api/v1/api-methods/{purpose}.
func GetApiMethod(w http.ResponseWriter, r *http.Request) {
	m, err := domain.ParseApiMethod(chi.URLParam(r, "purpose"))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, apiMethodToResponse(m))
}
