package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/puris-api/internal/domain"
	"github.com/phrazzld/puris-api/internal/service"
)

// RequestTransitioner is the part of service.RequestService the dispatcher
// needs.
type RequestTransitioner interface {
	Transition(ctx context.Context, id uuid.UUID, next domain.RequestState) (*domain.Request, error)
	ListByState(
		ctx context.Context,
		state domain.RequestState,
		olderThan time.Duration,
		limit int,
	) ([]*domain.Request, error)
}

// RequestTask transitions one request to a target state.
type RequestTask struct {
	id        uuid.UUID
	taskType  string
	requestID uuid.UUID
	next      domain.RequestState
	requests  RequestTransitioner
}

// NewProcessRequestTask creates a task moving the request to PROCESSING.
func NewProcessRequestTask(requests RequestTransitioner, requestID uuid.UUID) *RequestTask {
	return &RequestTask{
		id:        uuid.New(),
		taskType:  TaskTypeProcessRequest,
		requestID: requestID,
		next:      domain.RequestStateProcessing,
		requests:  requests,
	}
}

// NewFailRequestTask creates a task moving the request to FAILED.
func NewFailRequestTask(requests RequestTransitioner, requestID uuid.UUID) *RequestTask {
	return &RequestTask{
		id:        uuid.New(),
		taskType:  TaskTypeFailRequest,
		requestID: requestID,
		next:      domain.RequestStateFailed,
		requests:  requests,
	}
}

// ID implements Task.
func (t *RequestTask) ID() uuid.UUID { return t.id }

// Type implements Task.
func (t *RequestTask) Type() string { return t.taskType }

// RequestID returns the request the task acts on.
func (t *RequestTask) RequestID() uuid.UUID { return t.requestID }

// Execute performs the transition. A request that already moved on, or no
// longer exists, is not an error: the same request may be queued twice by
// the event handler and the sweeper.
func (t *RequestTask) Execute(ctx context.Context) error {
	_, err := t.requests.Transition(ctx, t.requestID, t.next)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrRequestNotFound):
		return nil
	default:
		return fmt.Errorf("transition request %s to %s: %w", t.requestID, t.next, err)
	}
}
