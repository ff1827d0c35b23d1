package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/puris-api/internal/domain"
	"github.com/phrazzld/puris-api/internal/events"
	"github.com/phrazzld/puris-api/internal/metrics"
	"github.com/phrazzld/puris-api/internal/platform/logger"
	"github.com/phrazzld/puris-api/internal/store"
)

// ReplayGuard remembers which response messages were already consumed.
// Implementations are best effort: an error means "unknown", never "seen".
type ReplayGuard interface {
	// Seen reports whether the message was consumed before.
	Seen(ctx context.Context, partnerBPNL, messageID string) (bool, error)

	// Remember marks the message as consumed.
	Remember(ctx context.Context, partnerBPNL, messageID string) error
}

// NopReplayGuard never reports a replay.
type NopReplayGuard struct{}

// Seen implements ReplayGuard.
func (NopReplayGuard) Seen(context.Context, string, string) (bool, error) { return false, nil }

// Remember implements ReplayGuard.
func (NopReplayGuard) Remember(context.Context, string, string) error { return nil }

// ResponseService consumes product-stock responses.
type ResponseService interface {
	// ConsumeResponse validates the response, correlates it to a request in
	// PROCESSING owned by partnerBPNL, and in one transaction stores the
	// response message and its stocks and completes the request.
	// Nothing is written when any step fails.
	ConsumeResponse(ctx context.Context, partnerBPNL string, resp *ProductStockResponse) error

	// ReportedProductStocks returns the stocks partnerBPNL reported so far,
	// most recently updated first.
	ReportedProductStocks(ctx context.Context, partnerBPNL string) ([]*domain.ReportedProductStock, error)
}

// Verify interface compliance at compile time
var _ ResponseService = (*responseServiceImpl)(nil)

type responseServiceImpl struct {
	db        *sql.DB
	requests  store.RequestStore
	responses store.ResponseStore
	guard     ReplayGuard
	emitter   events.EventEmitter
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewResponseService creates a ResponseService.
// A nil guard disables replay detection; m may be nil.
func NewResponseService(
	db *sql.DB,
	requests store.RequestStore,
	responses store.ResponseStore,
	guard ReplayGuard,
	emitter events.EventEmitter,
	m *metrics.Metrics,
	logger *slog.Logger,
) (ResponseService, error) {
	if db == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "db cannot be nil"}
	}
	if requests == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "requests cannot be nil"}
	}
	if responses == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "responses cannot be nil"}
	}
	if emitter == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "emitter cannot be nil"}
	}

	if guard == nil {
		guard = NopReplayGuard{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &responseServiceImpl{
		db:        db,
		requests:  requests,
		responses: responses,
		guard:     guard,
		emitter:   emitter,
		metrics:   m,
		logger:    logger.With(slog.String("component", "response_service")),
	}, nil
}

// ConsumeResponse implements ResponseService.ConsumeResponse.
func (s *responseServiceImpl) ConsumeResponse(
	ctx context.Context,
	partnerBPNL string,
	resp *ProductStockResponse,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if resp == nil {
		s.metrics.ResponseConsumed(metrics.ResultInvalid)
		return domain.NewValidationError("payload", "is required", domain.ErrEmptyContent)
	}

	if err := resp.Validate(); err != nil {
		s.metrics.ResponseConsumed(metrics.ResultInvalid)
		log.Debug("response payload rejected",
			slog.String("partner_bpnl", partnerBPNL),
			slog.String("error", err.Error()))
		return err
	}

	if err := checkStockOwnership(resp, partnerBPNL); err != nil {
		s.metrics.ResponseConsumed(metrics.ResultInvalid)
		log.Debug("response reports stocks of another partner",
			slog.String("partner_bpnl", partnerBPNL),
			slog.String("error", err.Error()))
		return err
	}

	messageID := resp.Header.MessageID
	log = log.With(
		slog.String("partner_bpnl", partnerBPNL),
		slog.String("message_id", messageID),
		slog.String("correlation_id", resp.Header.RequestID))

	seen, err := s.guard.Seen(ctx, partnerBPNL, messageID)
	if err != nil {
		log.Warn("replay check unavailable", slog.String("error", err.Error()))
	} else if seen {
		s.metrics.ResponseConsumed(metrics.ResultReplayed)
		log.Info("response already consumed, ignoring replay")
		return nil
	}

	requestID, err := uuid.Parse(resp.Header.RequestID)
	if err != nil {
		s.metrics.ResponseConsumed(metrics.ResultUncorrelated)
		log.Warn("response references an unknown request id")
		return fmt.Errorf("%w: request %q is unknown", ErrCorrelation, resp.Header.RequestID)
	}

	content, err := resp.content()
	if err != nil {
		s.metrics.ResponseConsumed(metrics.ResultInvalid)
		return domain.NewValidationError("payload", "cannot be encoded", err)
	}

	var (
		completed *domain.Request
		from      domain.RequestState
	)
	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txRequests := s.requests.WithTx(tx)
		txResponses := s.responses.WithTx(tx)

		req, err := txRequests.GetForUpdate(ctx, requestID)
		if err != nil {
			if errors.Is(err, store.ErrRequestNotFound) {
				return fmt.Errorf("%w: request %s does not exist", ErrCorrelation, requestID)
			}
			return err
		}

		if req.PartnerBPNL != partnerBPNL {
			return fmt.Errorf("%w: request %s does not exist", ErrCorrelation, requestID)
		}

		if req.State != domain.RequestStateProcessing {
			return fmt.Errorf("%w: request %s is %s", ErrCorrelation, requestID, req.State)
		}

		msg, err := domain.NewMessage(req.ID, domain.MessageKindResponse, content)
		if err != nil {
			return domain.NewValidationError("payload", err.Error(), err)
		}

		if err := txResponses.SaveMessage(ctx, msg); err != nil {
			return err
		}

		if err := txResponses.SaveReportedProductStocks(ctx, msg.ID, resp.Content.ProductStocks); err != nil {
			return err
		}

		from = req.State
		expected := req.Version
		if err := req.TransitionTo(domain.RequestStateCompleted); err != nil {
			return err
		}

		if err := txRequests.UpdateState(ctx, req, expected); err != nil {
			return err
		}

		completed = req
		return nil
	})
	if err != nil {
		var validationErr *ValidationError
		switch {
		case errors.Is(err, ErrCorrelation):
			s.metrics.ResponseConsumed(metrics.ResultUncorrelated)
			log.Warn("response does not correlate to an in-flight request",
				slog.String("error", err.Error()))
		case errors.As(err, &validationErr), errors.Is(err, store.ErrInvalidEntity):
			s.metrics.ResponseConsumed(metrics.ResultInvalid)
			log.Debug("response rejected", slog.String("error", err.Error()))
			if !errors.As(err, &validationErr) {
				return domain.NewValidationError("content", "is invalid", err)
			}
		default:
			s.metrics.ResponseConsumed(metrics.ResultError)
			log.Error("failed to consume response", slog.String("error", err.Error()))
		}
		return NewServiceError("consume_response", "failed to consume response", err)
	}

	s.metrics.ResponseConsumed(metrics.ResultCompleted)
	log.Info("response consumed",
		slog.String("request_id", completed.ID.String()),
		slog.Int("stock_count", len(resp.Content.ProductStocks)))

	announce(ctx, log, s.emitter, s.metrics, completed, from)

	if err := s.guard.Remember(ctx, partnerBPNL, messageID); err != nil {
		log.Warn("failed to remember consumed response", slog.String("error", err.Error()))
	}
	return nil
}

// ReportedProductStocks implements ResponseService.ReportedProductStocks.
func (s *responseServiceImpl) ReportedProductStocks(
	ctx context.Context,
	partnerBPNL string,
) ([]*domain.ReportedProductStock, error) {
	stocks, err := s.responses.ListReportedProductStocks(ctx, partnerBPNL)
	if err != nil {
		return nil, NewServiceError("list_reported_stocks", "failed to list reported product stocks", err)
	}
	return stocks, nil
}

// checkStockOwnership rejects stocks attributed to anyone but the responding
// partner: a partner only reports its own stock.
func checkStockOwnership(resp *ProductStockResponse, partnerBPNL string) error {
	for i, stock := range resp.Content.ProductStocks {
		if stock.Partner.BPNL != partnerBPNL {
			return domain.NewValidationError(
				fmt.Sprintf("content.productStocks[%d].partner", i),
				"must be the responding partner",
				domain.ErrValidation,
			)
		}
	}
	return nil
}
