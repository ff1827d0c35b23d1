package mocks

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/puris-api/internal/domain"
	"github.com/phrazzld/puris-api/internal/store"
)

// MockResponseStore is an in-memory store.ResponseStore.
type MockResponseStore struct {
	SaveMessageFn               func(ctx context.Context, msg *domain.Message) error
	SaveReportedProductStocksFn func(ctx context.Context, messageID uuid.UUID, stocks []*domain.ReportedProductStock) error
	ListReportedProductStocksFn func(ctx context.Context, partnerBPNL string) ([]*domain.ReportedProductStock, error)

	mu       sync.Mutex
	requests *MockRequestStore
	messages map[uuid.UUID]map[domain.MessageKind]domain.Message
	owners   map[uuid.UUID]uuid.UUID // message ID -> request ID
	stocks   map[uuid.UUID][]*domain.ReportedProductStock
}

// NewMockResponseStore creates an empty MockResponseStore. Stocks are
// attributed to the partner owning the request in requests, so listing
// needs the same request store the service uses.
func NewMockResponseStore(requests *MockRequestStore) *MockResponseStore {
	return &MockResponseStore{
		requests: requests,
		messages: make(map[uuid.UUID]map[domain.MessageKind]domain.Message),
		owners:   make(map[uuid.UUID]uuid.UUID),
		stocks:   make(map[uuid.UUID][]*domain.ReportedProductStock),
	}
}

var _ store.ResponseStore = (*MockResponseStore)(nil)

// MessageCount returns the number of stored messages.
func (m *MockResponseStore) MessageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, byKind := range m.messages {
		n += len(byKind)
	}
	return n
}

// StockCount returns the number of stored stocks.
func (m *MockResponseStore) StockCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, s := range m.stocks {
		n += len(s)
	}
	return n
}

// SaveMessage implements store.ResponseStore.
func (m *MockResponseStore) SaveMessage(ctx context.Context, msg *domain.Message) error {
	if m.SaveMessageFn != nil {
		return m.SaveMessageFn(ctx, msg)
	}
	if err := msg.Validate(); err != nil {
		return store.ErrInvalidEntity
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	byKind, ok := m.messages[msg.RequestID]
	if !ok {
		byKind = make(map[domain.MessageKind]domain.Message)
		m.messages[msg.RequestID] = byKind
	}
	if _, exists := byKind[msg.Kind]; exists {
		return store.ErrResponseExists
	}
	byKind[msg.Kind] = *msg
	m.owners[msg.ID] = msg.RequestID
	return nil
}

// GetMessage implements store.ResponseStore.
func (m *MockResponseStore) GetMessage(
	ctx context.Context,
	requestID uuid.UUID,
	kind domain.MessageKind,
) (*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.messages[requestID][kind]
	if !ok {
		return nil, store.ErrMessageNotFound
	}
	return &msg, nil
}

// SaveReportedProductStocks implements store.ResponseStore.
func (m *MockResponseStore) SaveReportedProductStocks(
	ctx context.Context,
	messageID uuid.UUID,
	stocks []*domain.ReportedProductStock,
) error {
	if m.SaveReportedProductStocksFn != nil {
		return m.SaveReportedProductStocksFn(ctx, messageID, stocks)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stocks[messageID] = append(m.stocks[messageID], stocks...)
	return nil
}

// ListReportedProductStocks implements store.ResponseStore.
func (m *MockResponseStore) ListReportedProductStocks(
	ctx context.Context,
	partnerBPNL string,
) ([]*domain.ReportedProductStock, error) {
	if m.ListReportedProductStocksFn != nil {
		return m.ListReportedProductStocksFn(ctx, partnerBPNL)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*domain.ReportedProductStock
	for messageID, stocks := range m.stocks {
		if m.requestPartner(messageID) != partnerBPNL {
			continue
		}
		result = append(result, stocks...)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].LastUpdatedOn.After(result[j].LastUpdatedOn)
	})
	return result, nil
}

// requestPartner returns the BPNL of the request owning messageID, or ""
// when the message or its request is unknown. Callers hold m.mu.
func (m *MockResponseStore) requestPartner(messageID uuid.UUID) string {
	requestID, ok := m.owners[messageID]
	if !ok || m.requests == nil {
		return ""
	}

	m.requests.mu.Lock()
	defer m.requests.mu.Unlock()
	return m.requests.requests[requestID].PartnerBPNL
}

// WithTx implements store.ResponseStore.
func (m *MockResponseStore) WithTx(tx *sql.Tx) store.ResponseStore {
	return m
}
