package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RequestState represents the lifecycle state of a tracked API request
type RequestState string

// Possible request state values
const (
	RequestStateReceived   RequestState = "RECEIVED"
	RequestStateProcessing RequestState = "PROCESSING"
	RequestStateCompleted  RequestState = "COMPLETED"
	RequestStateFailed     RequestState = "FAILED"
)

// MessageKind distinguishes the request message from the response message
// owned by the same Request.
type MessageKind string

// Possible message kinds
const (
	MessageKindRequest  MessageKind = "request"
	MessageKindResponse MessageKind = "response"
)

// Common validation errors for Request and Message
var (
	ErrEmptyRequestID      = errors.New("request ID cannot be empty")
	ErrEmptyRequestPartner = errors.New("request partner cannot be empty")
	ErrEmptyMessageID      = errors.New("message ID cannot be empty")
	ErrInvalidMessageKind  = errors.New("invalid message kind")
	ErrInvalidContent      = errors.New("message content is not valid JSON")
)

// transitions lists the states reachable from each state.
// Terminal states have no entry.
var transitions = map[RequestState][]RequestState{
	RequestStateReceived:   {RequestStateProcessing},
	RequestStateProcessing: {RequestStateCompleted, RequestStateFailed},
}

// IsValid reports whether s is one of the known lifecycle states.
func (s RequestState) IsValid() bool {
	switch s {
	case RequestStateReceived, RequestStateProcessing,
		RequestStateCompleted, RequestStateFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is possible from s.
func (s RequestState) IsTerminal() bool {
	return s == RequestStateCompleted || s == RequestStateFailed
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s RequestState) CanTransitionTo(next RequestState) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseRequestState converts a stored or user supplied value to a RequestState.
func ParseRequestState(value string) (RequestState, error) {
	state := RequestState(value)
	if !state.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRequestState, value)
	}
	return state, nil
}

// Message is the content of a request or response payload.
// Its lifetime is bound to the Request that owns it.
type Message struct {
	ID        uuid.UUID       `json:"id"`
	RequestID uuid.UUID       `json:"request_id"`
	Kind      MessageKind     `json:"kind"`
	Content   json.RawMessage `json:"content"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewMessage creates a message of the given kind for the request.
func NewMessage(requestID uuid.UUID, kind MessageKind, content json.RawMessage) (*Message, error) {
	msg := &Message{
		ID:        uuid.New(),
		RequestID: requestID,
		Kind:      kind,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	if err := msg.Validate(); err != nil {
		return nil, err
	}

	return msg, nil
}

// Validate checks if the Message has valid data.
func (m *Message) Validate() error {
	if m.ID == uuid.Nil {
		return ErrEmptyMessageID
	}

	if m.RequestID == uuid.Nil {
		return ErrEmptyRequestID
	}

	if m.Kind != MessageKindRequest && m.Kind != MessageKindResponse {
		return ErrInvalidMessageKind
	}

	if len(m.Content) == 0 {
		return ErrEmptyContent
	}

	if !json.Valid(m.Content) {
		return ErrInvalidContent
	}

	return nil
}

// Request represents a message received via the Request API.
// It is not an HTTP request: it is the tracked envelope of a data-exchange
// call. The ID is generated internally so it never collides with
// identifiers chosen by the calling partner.
type Request struct {
	ID          uuid.UUID    `json:"id"`
	State       RequestState `json:"state"`
	PartnerBPNL string       `json:"partner_bpnl"`
	Message     Message      `json:"message"`
	Version     int          `json:"version"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// NewRequest creates a new Request in the RECEIVED state that owns a
// request message with the given content.
func NewRequest(partnerBPNL string, content json.RawMessage) (*Request, error) {
	id := uuid.New()
	now := time.Now().UTC()

	msg, err := NewMessage(id, MessageKindRequest, content)
	if err != nil {
		return nil, err
	}

	req := &Request{
		ID:          id,
		State:       RequestStateReceived,
		PartnerBPNL: partnerBPNL,
		Message:     *msg,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	return req, nil
}

// Validate checks if the Request has valid data.
func (r *Request) Validate() error {
	if r.ID == uuid.Nil {
		return ErrEmptyRequestID
	}

	if r.PartnerBPNL == "" {
		return ErrEmptyRequestPartner
	}

	if !r.State.IsValid() {
		return ErrInvalidRequestState
	}

	if r.Message.RequestID != r.ID {
		return fmt.Errorf("%w: message belongs to another request", ErrValidation)
	}

	return r.Message.Validate()
}

// InFlight reports whether the request has not reached a terminal state.
func (r *Request) InFlight() bool {
	return !r.State.IsTerminal()
}

// TransitionTo moves the request to next, bumping its version.
// The request is left unchanged when next is not reachable.
func (r *Request) TransitionTo(next RequestState) error {
	if !next.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidRequestState, next)
	}

	if !r.State.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.State, next)
	}

	r.State = next
	r.Version++
	r.UpdatedAt = time.Now().UTC()
	return nil
}
