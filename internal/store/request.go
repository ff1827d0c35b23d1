package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/puris-api/internal/domain"
)

// RequestStore defines the interface for API request persistence.
// A request and its request message are always written together.
type RequestStore interface {
	// Create saves a new request together with the message it owns.
	// Returns ErrInvalidEntity if the request fails domain validation.
	Create(ctx context.Context, req *domain.Request) error

	// GetByID retrieves a request and its request message.
	// Returns ErrRequestNotFound if the request does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Request, error)

	// GetForUpdate retrieves a request and locks its row until the enclosing
	// transaction ends, serializing state changes on the same identifier.
	// Must be called on a store bound to a transaction via WithTx.
	// Returns ErrRequestNotFound if the request does not exist.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Request, error)

	// UpdateState writes the request's state, version and update time.
	// The write only succeeds if the stored version equals expectedVersion.
	// Returns ErrRequestNotFound if the request does not exist and
	// ErrUpdateFailed if the version no longer matches.
	UpdateState(ctx context.Context, req *domain.Request, expectedVersion int) error

	// ListByState returns up to limit requests in the given state whose last
	// update is older than olderThan. A zero olderThan matches every request
	// in the state. Results are ordered oldest first.
	ListByState(
		ctx context.Context,
		state domain.RequestState,
		olderThan time.Duration,
		limit int,
	) ([]*domain.Request, error)

	// WithTx returns a new RequestStore instance that uses the provided transaction.
	// This allows for multiple operations to be executed within a single transaction.
	// The transaction should be created and managed by the caller (typically a service).
	WithTx(tx *sql.Tx) RequestStore
}

// ResponseStore defines the interface for persisting consumed responses.
type ResponseStore interface {
	// SaveMessage stores the response message of a request.
	// Returns ErrResponseExists if the request already owns a response.
	SaveMessage(ctx context.Context, msg *domain.Message) error

	// GetMessage retrieves the message of the given kind owned by a request.
	// Returns ErrMessageNotFound if there is none.
	GetMessage(ctx context.Context, requestID uuid.UUID, kind domain.MessageKind) (*domain.Message, error)

	// SaveReportedProductStocks stores the stocks carried by a response.
	SaveReportedProductStocks(
		ctx context.Context,
		messageID uuid.UUID,
		stocks []*domain.ReportedProductStock,
	) error

	// ListReportedProductStocks returns the stocks carried by responses to
	// the partner's own requests, most recently updated first.
	ListReportedProductStocks(ctx context.Context, partnerBPNL string) ([]*domain.ReportedProductStock, error)

	// WithTx returns a new ResponseStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ResponseStore
}
