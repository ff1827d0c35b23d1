package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/puris-api/internal/api/shared"
	"github.com/phrazzld/puris-api/internal/domain"
	"github.com/phrazzld/puris-api/internal/platform/logger"
	"github.com/phrazzld/puris-api/internal/service"
)

// ResponseHandler serves the Response API and the stocks reported through it.
type ResponseHandler struct {
	responses service.ResponseService
	logger    *slog.Logger
}

// NewResponseHandler creates a new ResponseHandler.
func NewResponseHandler(responses service.ResponseService, logger *slog.Logger) *ResponseHandler {
	if responses == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("responses cannot be nil for ResponseHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ResponseHandler")
	}

	return &ResponseHandler{
		responses: responses,
		logger:    logger.With(slog.String("component", "response_handler")),
	}
}

// ConsumeResponse handles POST /api/v1/responses.
// A response correlated to a request in progress completes it; 204 is
// returned with no body. Replays of consumed messages are also answered 204.
func (h *ResponseHandler) ConsumeResponse(w http.ResponseWriter, r *http.Request) {
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

	resp, err := service.DecodeProductStockResponse(body)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if err := h.responses.ConsumeResponse(r.Context(), partner.BPNL, resp); err != nil {
		HandleAPIError(w, r, err, "Failed to consume response")
		return
	}

	log.Debug("response consumed",
		slog.String("request_id", resp.Header.RequestID),
		slog.String("message_id", resp.Header.MessageID))

	w.WriteHeader(http.StatusNoContent)
}

// ListReportedProductStocks handles GET /api/v1/reported-product-stocks.
// Only the calling partner's stocks are returned.
func (h *ResponseHandler) ListReportedProductStocks(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	partner, ok := getPartner(w, r, log)
	if !ok {
		return
	}

	stocks, err := h.responses.ReportedProductStocks(r.Context(), partner.BPNL)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list reported product stocks")
		return
	}

	resp := ReportedProductStocksResponse{ProductStocks: stocks}
	if resp.ProductStocks == nil {
		resp.ProductStocks = []*domain.ReportedProductStock{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}
