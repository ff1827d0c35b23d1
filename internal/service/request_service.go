package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/puris-api/internal/domain"
	"github.com/phrazzld/puris-api/internal/events"
	"github.com/phrazzld/puris-api/internal/metrics"
	"github.com/phrazzld/puris-api/internal/platform/logger"
	"github.com/phrazzld/puris-api/internal/store"
)

// RequestService records product-stock requests and drives their lifecycle.
type RequestService interface {
	// Create validates the payload and stores it as a new RECEIVED request
	// owned by the partner. The raw payload becomes the request message.
	Create(ctx context.Context, partnerBPNL string, payload json.RawMessage) (*domain.Request, error)

	// Transition moves the request to next under a row lock and returns the
	// updated request once the change is committed.
	Transition(ctx context.Context, id uuid.UUID, next domain.RequestState) (*domain.Request, error)

	// Get returns the request with its message.
	Get(ctx context.Context, id uuid.UUID) (*domain.Request, error)

	// GetForPartner returns the request only if it belongs to partnerBPNL.
	// Requests of other partners are reported as ErrRequestNotFound.
	GetForPartner(ctx context.Context, id uuid.UUID, partnerBPNL string) (*domain.Request, error)

	// ListByState returns up to limit requests in state that have not
	// changed for at least olderThan, oldest first.
	ListByState(
		ctx context.Context,
		state domain.RequestState,
		olderThan time.Duration,
		limit int,
	) ([]*domain.Request, error)
}

// Verify interface compliance at compile time
var _ RequestService = (*requestServiceImpl)(nil)

type requestServiceImpl struct {
	db       *sql.DB
	requests store.RequestStore
	emitter  events.EventEmitter
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewRequestService creates a RequestService.
// It returns an error if any of the required dependencies are nil.
// m may be nil.
func NewRequestService(
	db *sql.DB,
	requests store.RequestStore,
	emitter events.EventEmitter,
	m *metrics.Metrics,
	logger *slog.Logger,
) (RequestService, error) {
	if db == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "db cannot be nil"}
	}
	if requests == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "requests cannot be nil"}
	}
	if emitter == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "emitter cannot be nil"}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &requestServiceImpl{
		db:       db,
		requests: requests,
		emitter:  emitter,
		metrics:  m,
		logger:   logger.With(slog.String("component", "request_service")),
	}, nil
}

// Create implements RequestService.Create.
func (s *requestServiceImpl) Create(
	ctx context.Context,
	partnerBPNL string,
	payload json.RawMessage,
) (*domain.Request, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if _, err := DecodeProductStockRequest(payload); err != nil {
		log.Debug("request payload rejected",
			slog.String("partner_bpnl", partnerBPNL),
			slog.String("error", err.Error()))
		return nil, err
	}

	req, err := domain.NewRequest(partnerBPNL, payload)
	if err != nil {
		return nil, domain.NewValidationError("request", err.Error(), err)
	}

	if err := s.requests.Create(ctx, req); err != nil {
		log.Error("failed to store request",
			slog.String("error", err.Error()),
			slog.String("request_id", req.ID.String()))
		return nil, NewServiceError("create_request", "failed to store request", err)
	}

	s.metrics.RequestCreated()
	log.Info("request received",
		slog.String("request_id", req.ID.String()),
		slog.String("partner_bpnl", partnerBPNL))

	announce(ctx, log, s.emitter, s.metrics, req, "")
	return req, nil
}

// Transition implements RequestService.Transition.
// The row is locked with SELECT ... FOR UPDATE, the move is checked against
// the state machine and written with an optimistic version check, all in
// one transaction. An illegal move leaves the row untouched.
func (s *requestServiceImpl) Transition(
	ctx context.Context,
	id uuid.UUID,
	next domain.RequestState,
) (*domain.Request, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var (
		updated *domain.Request
		from    domain.RequestState
	)
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txRequests := s.requests.WithTx(tx)

		req, err := txRequests.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		from = req.State
		expected := req.Version
		if err := req.TransitionTo(next); err != nil {
			return err
		}

		if err := txRequests.UpdateState(ctx, req, expected); err != nil {
			return err
		}

		updated = req
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, store.ErrRequestNotFound) {
			log.Warn("request transition rejected",
				slog.String("request_id", id.String()),
				slog.String("to", string(next)),
				slog.String("error", err.Error()))
		} else {
			log.Error("request transition failed",
				slog.String("request_id", id.String()),
				slog.String("to", string(next)),
				slog.String("error", err.Error()))
		}
		return nil, NewServiceError("transition_request", "failed to transition request", err)
	}

	announce(ctx, log, s.emitter, s.metrics, updated, from)
	return updated, nil
}

// Get implements RequestService.Get.
func (s *requestServiceImpl) Get(ctx context.Context, id uuid.UUID) (*domain.Request, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, NewServiceError("get_request", "failed to get request", err)
	}
	return req, nil
}

// GetForPartner implements RequestService.GetForPartner.
func (s *requestServiceImpl) GetForPartner(
	ctx context.Context,
	id uuid.UUID,
	partnerBPNL string,
) (*domain.Request, error) {
	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.PartnerBPNL != partnerBPNL {
		logger.FromContextOrDefault(ctx, s.logger).Debug("request belongs to another partner",
			slog.String("request_id", id.String()),
			slog.String("partner_bpnl", partnerBPNL))
		return nil, ErrRequestNotFound
	}
	return req, nil
}

// ListByState implements RequestService.ListByState.
func (s *requestServiceImpl) ListByState(
	ctx context.Context,
	state domain.RequestState,
	olderThan time.Duration,
	limit int,
) ([]*domain.Request, error) {
	requests, err := s.requests.ListByState(ctx, state, olderThan, limit)
	if err != nil {
		return nil, NewServiceError("list_requests", "failed to list requests", err)
	}
	return requests, nil
}

// announce records a committed state change and emits its lifecycle event.
// Emission failures are logged only: the change is already durable.
func announce(
	ctx context.Context,
	log *slog.Logger,
	emitter events.EventEmitter,
	m *metrics.Metrics,
	req *domain.Request,
	from domain.RequestState,
) {
	if from != "" {
		m.Transition(from, req.State)
		log.Info("request state changed",
			slog.String("request_id", req.ID.String()),
			slog.String("from", string(from)),
			slog.String("to", string(req.State)),
			slog.Int("version", req.Version))
	}

	if err := emitter.EmitEvent(ctx, events.NewRequestEvent(req, from)); err != nil {
		log.Warn("failed to emit request event",
			slog.String("request_id", req.ID.String()),
			slog.String("state", string(req.State)),
			slog.String("error", err.Error()))
	}
}
