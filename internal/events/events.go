package events

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/puris-api/internal/domain"
)

// Event types, one per lifecycle state.
const (
	TypeRequestReceived   = "request.received"
	TypeRequestProcessing = "request.processing"
	TypeRequestCompleted  = "request.completed"
	TypeRequestFailed     = "request.failed"
)

// RequestEvent records one committed state change of a Request.
// From is empty for the event announcing a new request.
type RequestEvent struct {
	ID          uuid.UUID           `json:"id"`
	Type        string              `json:"type"`
	RequestID   uuid.UUID           `json:"request_id"`
	PartnerBPNL string              `json:"partner_bpnl"`
	From        domain.RequestState `json:"from,omitempty"`
	To          domain.RequestState `json:"to"`
	OccurredAt  time.Time           `json:"occurred_at"`
}

// NewRequestEvent describes req having just moved from the given state to
// its current one.
func NewRequestEvent(req *domain.Request, from domain.RequestState) *RequestEvent {
	return &RequestEvent{
		ID:          uuid.New(),
		Type:        TypeFor(req.State),
		RequestID:   req.ID,
		PartnerBPNL: req.PartnerBPNL,
		From:        from,
		To:          req.State,
		OccurredAt:  req.UpdatedAt,
	}
}

// TypeFor returns the event type announcing entry into state.
func TypeFor(state domain.RequestState) string {
	return "request." + strings.ToLower(string(state))
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *RequestEvent) error
}

// HandlerFunc adapts a function to the EventHandler interface.
type HandlerFunc func(ctx context.Context, event *RequestEvent) error

// HandleEvent calls f(ctx, event).
func (f HandlerFunc) HandleEvent(ctx context.Context, event *RequestEvent) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *RequestEvent) error
}
