package api

import (
	"encoding/json"
	"time"

	"github.com/phrazzld/puris-api/internal/domain"
)

// RequestAcceptedResponse is returned when a request has been recorded.
// Processing continues in the background.
type RequestAcceptedResponse struct {
	RequestID string `json:"request_id"`
	State     string `json:"state"`
}

// MessageResponse is the message owned by a request.
type MessageResponse struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Content   json.RawMessage `json:"content"`
	CreatedAt time.Time       `json:"created_at"`
}

// RequestResponse is the state of a request as seen by its partner.
type RequestResponse struct {
	ID          string          `json:"id"`
	State       string          `json:"state"`
	PartnerBPNL string          `json:"partner_bpnl"`
	Version     int             `json:"version"`
	Message     MessageResponse `json:"message"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ApiMethodResponse describes one data-exchange asset kind.
type ApiMethodResponse struct {
	Method  string `json:"method"`
	Name    string `json:"name"`
	Purpose string `json:"purpose"`
}

// ReportedProductStocksResponse lists the stocks reported by a partner.
type ReportedProductStocksResponse struct {
	ProductStocks []*domain.ReportedProductStock `json:"productStocks"`
}

func requestToResponse(req *domain.Request) RequestResponse {
	return RequestResponse{
		ID:          req.ID.String(),
		State:       string(req.State),
		PartnerBPNL: req.PartnerBPNL,
		Version:     req.Version,
		Message: MessageResponse{
			ID:        req.Message.ID.String(),
			Kind:      string(req.Message.Kind),
			Content:   req.Message.Content,
			CreatedAt: req.Message.CreatedAt,
		},
		CreatedAt: req.CreatedAt,
		UpdatedAt: req.UpdatedAt,
	}
}

func apiMethodToResponse(m domain.ApiMethod) ApiMethodResponse {
	return ApiMethodResponse{
		Method:  m.String(),
		Name:    m.Name(),
		Purpose: m.Purpose(),
	}
}
