package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/puris-api/internal/domain"
	"github.com/phrazzld/puris-api/internal/platform/logger"
	"github.com/phrazzld/puris-api/internal/store"
	"github.com/shopspring/decimal"
)

// PostgresResponseStore implements the store.ResponseStore interface
// using a PostgreSQL database as the storage backend.
type PostgresResponseStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresResponseStore creates a new PostgreSQL implementation of the ResponseStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresResponseStore(db store.DBTX, logger *slog.Logger) *PostgresResponseStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresResponseStore{
		db:     db,
		logger: logger.With(slog.String("component", "response_store")),
	}
}

// Ensure PostgresResponseStore implements store.ResponseStore interface
var _ store.ResponseStore = (*PostgresResponseStore)(nil)

// SaveMessage implements store.ResponseStore.SaveMessage.
// Returns store.ErrRequestNotFound if the owning request does not exist.
func (s *PostgresResponseStore) SaveMessage(ctx context.Context, msg *domain.Message) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := msg.Validate(); err != nil {
		log.Warn("message validation failed during save",
			slog.String("error", err.Error()),
			slog.String("request_id", msg.RequestID.String()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO messages (id, request_id, kind, content, created_at)
		VALUES ($1, $2, $3, $4::jsonb, $5)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		msg.ID,
		msg.RequestID,
		string(msg.Kind),
		string(msg.Content),
		msg.CreatedAt,
	)
	if err != nil {
		switch {
		case IsUniqueViolation(err):
			log.Warn("message already stored for request",
				slog.String("request_id", msg.RequestID.String()),
				slog.String("kind", string(msg.Kind)))
			if msg.Kind == domain.MessageKindResponse {
				return store.ErrResponseExists
			}
			return MapError(err)
		case IsForeignKeyViolation(err):
			return fmt.Errorf("%w: %s", store.ErrRequestNotFound, msg.RequestID)
		}

		log.Error("failed to save message",
			slog.String("error", err.Error()),
			slog.String("request_id", msg.RequestID.String()))
		return MapError(err)
	}

	log.Debug("message saved",
		slog.String("message_id", msg.ID.String()),
		slog.String("request_id", msg.RequestID.String()),
		slog.String("kind", string(msg.Kind)))
	return nil
}

// GetMessage implements store.ResponseStore.GetMessage.
func (s *PostgresResponseStore) GetMessage(
	ctx context.Context,
	requestID uuid.UUID,
	kind domain.MessageKind,
) (*domain.Message, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, request_id, kind, content, created_at
		FROM messages
		WHERE request_id = $1 AND kind = $2
	`

	var (
		msg     domain.Message
		k       string
		content []byte
	)
	err := s.db.QueryRowContext(ctx, query, requestID, string(kind)).Scan(
		&msg.ID,
		&msg.RequestID,
		&k,
		&content,
		&msg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrMessageNotFound
		}
		log.Error("failed to get message",
			slog.String("error", err.Error()),
			slog.String("request_id", requestID.String()))
		return nil, MapError(err)
	}

	msg.Kind = domain.MessageKind(k)
	msg.Content = content
	return &msg, nil
}

// SaveReportedProductStocks implements store.ResponseStore.SaveReportedProductStocks.
// Every stock is validated before anything is written.
func (s *PostgresResponseStore) SaveReportedProductStocks(
	ctx context.Context,
	messageID uuid.UUID,
	stocks []*domain.ReportedProductStock,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(stocks) == 0 {
		return nil
	}

	for i, stock := range stocks {
		if err := stock.Validate(); err != nil {
			return fmt.Errorf("%w: stock %d: %w", store.ErrInvalidEntity, i, err)
		}
	}

	stmt, err := s.db.PrepareContext(ctx, `
		INSERT INTO reported_product_stocks (
			id, message_id, type,
			own_material_number, material_number_customer, material_number_supplier,
			material_number_cx, material_name,
			quantity, measurement_unit, stock_location_bpns, stock_location_bpna,
			customer_order_number, customer_order_position_number, supplier_order_number,
			partner_bpnl, partner_name, last_updated_on, is_blocked
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`)
	if err != nil {
		log.Error("failed to prepare stock insert", slog.String("error", err.Error()))
		return MapError(err)
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			log.Warn("failed to close statement", slog.String("error", cerr.Error()))
		}
	}()

	for _, stock := range stocks {
		_, err := stmt.ExecContext(
			ctx,
			uuid.New(),
			messageID,
			string(stock.Type),
			nullString(stock.Material.OwnMaterialNumber),
			nullString(stock.Material.MaterialNumberCustomer),
			nullString(stock.Material.MaterialNumberSupplier),
			nullString(stock.Material.MaterialNumberCx),
			nullString(stock.Material.Name),
			stock.Quantity,
			string(stock.MeasurementUnit),
			stock.StockLocationBPNS,
			stock.StockLocationBPNA,
			stock.CustomerOrderNumber,
			stock.CustomerOrderPositionNumber,
			stock.SupplierOrderNumber,
			stock.Partner.BPNL,
			nullString(stock.Partner.Name),
			stock.LastUpdatedOn,
			stock.IsBlocked,
		)
		if err != nil {
			log.Error("failed to insert reported product stock",
				slog.String("error", err.Error()),
				slog.String("message_id", messageID.String()))
			return MapError(err)
		}
	}

	log.Debug("reported product stocks saved",
		slog.String("message_id", messageID.String()),
		slog.Int("count", len(stocks)))
	return nil
}

// ListReportedProductStocks implements store.ResponseStore.ListReportedProductStocks.
func (s *PostgresResponseStore) ListReportedProductStocks(
	ctx context.Context,
	partnerBPNL string,
) ([]*domain.ReportedProductStock, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT s.type,
			s.own_material_number, s.material_number_customer, s.material_number_supplier,
			s.material_number_cx, s.material_name,
			s.quantity, s.measurement_unit, s.stock_location_bpns, s.stock_location_bpna,
			s.customer_order_number, s.customer_order_position_number, s.supplier_order_number,
			s.partner_bpnl, s.partner_name, s.last_updated_on, s.is_blocked
		FROM reported_product_stocks s
		JOIN messages m ON m.id = s.message_id
		JOIN requests r ON r.id = m.request_id
		WHERE r.partner_bpnl = $1
		ORDER BY s.last_updated_on DESC
	`
	rows, err := s.db.QueryContext(ctx, query, partnerBPNL)
	if err != nil {
		log.Error("failed to list reported product stocks",
			slog.String("error", err.Error()),
			slog.String("partner_bpnl", partnerBPNL))
		return nil, MapError(err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.Warn("failed to close rows", slog.String("error", cerr.Error()))
		}
	}()

	var stocks []*domain.ReportedProductStock
	for rows.Next() {
		var (
			stock                                     domain.ReportedProductStock
			stockType, unit                           string
			own, customer, supplier, cx, name         sql.NullString
			customerOrder, customerPos, supplierOrder sql.NullString
			partnerName                               sql.NullString
			quantity                                  decimal.Decimal
		)
		if err := rows.Scan(
			&stockType,
			&own, &customer, &supplier, &cx, &name,
			&quantity,
			&unit,
			&stock.StockLocationBPNS,
			&stock.StockLocationBPNA,
			&customerOrder, &customerPos, &supplierOrder,
			&stock.Partner.BPNL,
			&partnerName,
			&stock.LastUpdatedOn,
			&stock.IsBlocked,
		); err != nil {
			return nil, MapError(err)
		}

		stock.Type = domain.StockType(stockType)
		stock.Material = domain.MaterialDto{
			OwnMaterialNumber:      own.String,
			MaterialNumberCustomer: customer.String,
			MaterialNumberSupplier: supplier.String,
			MaterialNumberCx:       cx.String,
			Name:                   name.String,
		}
		stock.Quantity = quantity
		stock.MeasurementUnit = domain.ItemUnit(unit)
		stock.Partner.Name = partnerName.String
		stock.CustomerOrderNumber = stringPtr(customerOrder)
		stock.CustomerOrderPositionNumber = stringPtr(customerPos)
		stock.SupplierOrderNumber = stringPtr(supplierOrder)
		stocks = append(stocks, &stock)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return stocks, nil
}

// WithTx implements store.ResponseStore.WithTx.
func (s *PostgresResponseStore) WithTx(tx *sql.Tx) store.ResponseStore {
	return &PostgresResponseStore{
		db:     tx,
		logger: s.logger,
	}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}
