package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/puris-api/internal/domain"
	"github.com/phrazzld/puris-api/internal/platform/logger"
	"github.com/phrazzld/puris-api/internal/store"
)

const requestColumns = `
	r.id, r.partner_bpnl, r.state, r.version, r.created_at, r.updated_at,
	m.id, m.kind, m.content, m.created_at`

const requestFrom = `
	FROM requests r
	JOIN messages m ON m.request_id = r.id AND m.kind = 'request'`

// PostgresRequestStore implements the store.RequestStore interface
// using a PostgreSQL database as the storage backend.
type PostgresRequestStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresRequestStore creates a new PostgreSQL implementation of the RequestStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresRequestStore(db store.DBTX, logger *slog.Logger) *PostgresRequestStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresRequestStore{
		db:     db,
		logger: logger.With(slog.String("component", "request_store")),
	}
}

// Ensure PostgresRequestStore implements store.RequestStore interface
var _ store.RequestStore = (*PostgresRequestStore)(nil)

// Create implements store.RequestStore.Create.
// The request row and its request message are inserted by one statement,
// so neither is ever visible without the other.
func (s *PostgresRequestStore) Create(ctx context.Context, req *domain.Request) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := req.Validate(); err != nil {
		log.Warn("request validation failed during create",
			slog.String("error", err.Error()),
			slog.String("request_id", req.ID.String()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		WITH inserted AS (
			INSERT INTO requests (id, partner_bpnl, state, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		)
		INSERT INTO messages (id, request_id, kind, content, created_at)
		SELECT $7, inserted.id, $8, $9::jsonb, $10
		FROM inserted
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		req.ID,
		req.PartnerBPNL,
		string(req.State),
		req.Version,
		req.CreatedAt,
		req.UpdatedAt,
		req.Message.ID,
		string(req.Message.Kind),
		string(req.Message.Content),
		req.Message.CreatedAt,
	)
	if err != nil {
		log.Error("failed to create request",
			slog.String("error", err.Error()),
			slog.String("request_id", req.ID.String()),
			slog.String("partner_bpnl", req.PartnerBPNL))
		return MapError(err)
	}

	log.Info("request created successfully",
		slog.String("request_id", req.ID.String()),
		slog.String("partner_bpnl", req.PartnerBPNL))
	return nil
}

// GetByID implements store.RequestStore.GetByID.
func (s *PostgresRequestStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Request, error) {
	return s.get(ctx, id, false)
}

// GetForUpdate implements store.RequestStore.GetForUpdate.
// Concurrent callers on the same identifier block until the lock holder's
// transaction commits or rolls back.
func (s *PostgresRequestStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Request, error) {
	return s.get(ctx, id, true)
}

func (s *PostgresRequestStore) get(ctx context.Context, id uuid.UUID, lock bool) (*domain.Request, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	log.Debug("retrieving request by ID",
		slog.String("request_id", id.String()),
		slog.Bool("lock", lock))

	query := "SELECT " + requestColumns + requestFrom + "\n\tWHERE r.id = $1"
	if lock {
		query += "\n\tFOR UPDATE OF r"
	}

	req, err := scanRequest(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("request not found", slog.String("request_id", id.String()))
			return nil, store.ErrRequestNotFound
		}
		log.Error("failed to get request by ID",
			slog.String("error", err.Error()),
			slog.String("request_id", id.String()))
		return nil, MapError(err)
	}

	return req, nil
}

// UpdateState implements store.RequestStore.UpdateState.
func (s *PostgresRequestStore) UpdateState(
	ctx context.Context,
	req *domain.Request,
	expectedVersion int,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !req.State.IsValid() {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrInvalidRequestState)
	}

	query := `
		UPDATE requests
		SET state = $1, version = $2, updated_at = $3
		WHERE id = $4 AND version = $5
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		string(req.State),
		req.Version,
		req.UpdatedAt,
		req.ID,
		expectedVersion,
	)
	if err != nil {
		log.Error("failed to update request state",
			slog.String("error", err.Error()),
			slog.String("request_id", req.ID.String()),
			slog.String("state", string(req.State)))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, store.ErrUpdateFailed); err != nil {
		if !errors.Is(err, store.ErrUpdateFailed) {
			return err
		}

		var exists bool
		existsQuery := `SELECT EXISTS(SELECT 1 FROM requests WHERE id = $1)`
		if qerr := s.db.QueryRowContext(ctx, existsQuery, req.ID).Scan(&exists); qerr != nil {
			return MapError(qerr)
		}
		if !exists {
			return store.ErrRequestNotFound
		}

		log.Warn("request version changed during update",
			slog.String("request_id", req.ID.String()),
			slog.Int("expected_version", expectedVersion))
		return fmt.Errorf("%w: request %s is no longer at version %d",
			store.ErrUpdateFailed, req.ID, expectedVersion)
	}

	log.Debug("request state updated",
		slog.String("request_id", req.ID.String()),
		slog.String("state", string(req.State)),
		slog.Int("version", req.Version))
	return nil
}

// ListByState implements store.RequestStore.ListByState.
func (s *PostgresRequestStore) ListByState(
	ctx context.Context,
	state domain.RequestState,
	olderThan time.Duration,
	limit int,
) ([]*domain.Request, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !state.IsValid() {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrInvalidRequestState)
	}

	if limit <= 0 {
		limit = 100
	}

	cutoff := time.Now().UTC().Add(-olderThan)
	if olderThan <= 0 {
		// every request in the state qualifies
		cutoff = time.Now().UTC().Add(time.Hour)
	}

	query := "SELECT " + requestColumns + requestFrom + `
	WHERE r.state = $1 AND r.updated_at < $2
	ORDER BY r.updated_at ASC
	LIMIT $3`

	rows, err := s.db.QueryContext(ctx, query, string(state), cutoff, limit)
	if err != nil {
		log.Error("failed to list requests by state",
			slog.String("error", err.Error()),
			slog.String("state", string(state)))
		return nil, MapError(err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.Warn("failed to close rows", slog.String("error", cerr.Error()))
		}
	}()

	var requests []*domain.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, MapError(err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	log.Debug("listed requests by state",
		slog.String("state", string(state)),
		slog.Int("count", len(requests)))
	return requests, nil
}

// WithTx implements store.RequestStore.WithTx.
func (s *PostgresRequestStore) WithTx(tx *sql.Tx) store.RequestStore {
	return &PostgresRequestStore{
		db:     tx,
		logger: s.logger,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*domain.Request, error) {
	var (
		req     domain.Request
		state   string
		kind    string
		content []byte
	)

	err := row.Scan(
		&req.ID,
		&req.PartnerBPNL,
		&state,
		&req.Version,
		&req.CreatedAt,
		&req.UpdatedAt,
		&req.Message.ID,
		&kind,
		&content,
		&req.Message.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := domain.ParseRequestState(state)
	if err != nil {
		return nil, err
	}

	req.State = parsed
	req.Message.RequestID = req.ID
	req.Message.Kind = domain.MessageKind(kind)
	req.Message.Content = content
	return &req, nil
}
