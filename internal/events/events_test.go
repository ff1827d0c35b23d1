package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/phrazzld/puris-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockEventHandler implements the EventHandler interface for testing
type MockEventHandler struct {
	// The last event received by this handler
	LastEvent *RequestEvent
	// Error to return from HandleEvent
	HandlerError error
	// Count of events handled
	HandledCount int
}

// HandleEvent implements the EventHandler interface
func (h *MockEventHandler) HandleEvent(ctx context.Context, event *RequestEvent) error {
	h.LastEvent = event
	h.HandledCount++
	return h.HandlerError
}

func newRequest(t *testing.T) *domain.Request {
	t.Helper()
	req, err := domain.NewRequest("BPNL4444444444XX", json.RawMessage(`{}`))
	require.NoError(t, err)
	return req
}

func TestNewRequestEvent(t *testing.T) {
	req := newRequest(t)

	received := NewRequestEvent(req, "")
	assert.Equal(t, TypeRequestReceived, received.Type)
	assert.Equal(t, req.ID, received.RequestID)
	assert.Equal(t, "BPNL4444444444XX", received.PartnerBPNL)
	assert.Empty(t, received.From)
	assert.Equal(t, domain.RequestStateReceived, received.To)

	require.NoError(t, req.TransitionTo(domain.RequestStateProcessing))
	processing := NewRequestEvent(req, domain.RequestStateReceived)
	assert.Equal(t, TypeRequestProcessing, processing.Type)
	assert.Equal(t, domain.RequestStateReceived, processing.From)
	assert.Equal(t, req.UpdatedAt, processing.OccurredAt)
	assert.NotEqual(t, received.ID, processing.ID)

	data, err := json.Marshal(processing)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"request.processing"`)
	assert.Contains(t, string(data), `"from":"RECEIVED"`)
}

func TestTypeFor(t *testing.T) {
	assert.Equal(t, TypeRequestCompleted, TypeFor(domain.RequestStateCompleted))
	assert.Equal(t, TypeRequestFailed, TypeFor(domain.RequestStateFailed))
}

func TestEventHandler(t *testing.T) {
	handler := &MockEventHandler{}
	event := NewRequestEvent(newRequest(t), "")

	err := handler.HandleEvent(context.Background(), event)
	assert.NoError(t, err)
	assert.Equal(t, 1, handler.HandledCount)
	assert.Equal(t, event, handler.LastEvent)

	expectedErr := errors.New("handler error")
	handler.HandlerError = expectedErr
	err = handler.HandleEvent(context.Background(), event)
	assert.Equal(t, expectedErr, err)
	assert.Equal(t, 2, handler.HandledCount)

	var seen *RequestEvent
	fn := HandlerFunc(func(_ context.Context, e *RequestEvent) error {
		seen = e
		return nil
	})
	require.NoError(t, fn.HandleEvent(context.Background(), event))
	assert.Same(t, event, seen)
}
