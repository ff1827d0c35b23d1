package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/puris-api/internal/api/shared"
	"github.com/phrazzld/puris-api/internal/platform/logger"
	"github.com/phrazzld/puris-api/internal/service"
)

// RequestHandler serves the Request API.
type RequestHandler struct {
	requests service.RequestService
	logger   *slog.Logger
}

// NewRequestHandler creates a new RequestHandler.
func NewRequestHandler(requests service.RequestService, logger *slog.Logger) *RequestHandler {
	if requests == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("requests cannot be nil for RequestHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for RequestHandler")
	}

	return &RequestHandler{
		requests: requests,
		logger:   logger.With(slog.String("component", "request_handler")),
	}
}

// CreateRequest handles POST /api/v1/requests.
// The payload is recorded as a RECEIVED request and answered with 202;
// processing happens asynchronously.
func (h *RequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	partner, ok := getPartner(w, r, log)
	if !ok {
		return
	}

	body, err := shared.ReadBody(w, r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	req, err := h.requests.Create(r.Context(), partner.BPNL, body)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to record request")
		return
	}

	log.Info("request accepted",
		slog.String("request_id", req.ID.String()),
		slog.String("partner_bpnl", partner.BPNL))

	shared.RespondWithJSON(w, r, http.StatusAccepted, RequestAcceptedResponse{
		RequestID: req.ID.String(),
		State:     string(req.State),
	})
}

// GetRequest handles GET /api/v1/requests/{id}.
// Requests of other partners are reported as not found.
func (h *RequestHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	partner, ok := getPartner(w, r, log)
	if !ok {
		return
	}

	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	req, err := h.requests.GetForPartner(r.Context(), id, partner.BPNL)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get request")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, requestToResponse(req))
}
