package mocks

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/puris-api/internal/domain"
	"github.com/phrazzld/puris-api/internal/service"
)

// MockRequestService implements service.RequestService for testing
type MockRequestService struct {
	CreateFn        func(ctx context.Context, partnerBPNL string, payload json.RawMessage) (*domain.Request, error)
	TransitionFn    func(ctx context.Context, id uuid.UUID, next domain.RequestState) (*domain.Request, error)
	GetFn           func(ctx context.Context, id uuid.UUID) (*domain.Request, error)
	GetForPartnerFn func(ctx context.Context, id uuid.UUID, partnerBPNL string) (*domain.Request, error)
	ListByStateFn   func(ctx context.Context, state domain.RequestState, olderThan time.Duration, limit int) ([]*domain.Request, error)

	mu          sync.Mutex
	CreateCalls int
	Transitions []domain.RequestState
}

var _ service.RequestService = (*MockRequestService)(nil)

// Create implements service.RequestService.
func (m *MockRequestService) Create(
	ctx context.Context,
	partnerBPNL string,
	payload json.RawMessage,
) (*domain.Request, error) {
	m.mu.Lock()
	m.CreateCalls++
	m.mu.Unlock()

	if m.CreateFn != nil {
		return m.CreateFn(ctx, partnerBPNL, payload)
	}
	return domain.NewRequest(partnerBPNL, payload)
}

// Transition implements service.RequestService.
func (m *MockRequestService) Transition(
	ctx context.Context,
	id uuid.UUID,
	next domain.RequestState,
) (*domain.Request, error) {
	m.mu.Lock()
	m.Transitions = append(m.Transitions, next)
	m.mu.Unlock()

	if m.TransitionFn != nil {
		return m.TransitionFn(ctx, id, next)
	}
	return nil, service.ErrRequestNotFound
}

// Get implements service.RequestService.
func (m *MockRequestService) Get(ctx context.Context, id uuid.UUID) (*domain.Request, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, id)
	}
	return nil, service.ErrRequestNotFound
}

// GetForPartner implements service.RequestService.
func (m *MockRequestService) GetForPartner(
	ctx context.Context,
	id uuid.UUID,
	partnerBPNL string,
) (*domain.Request, error) {
	if m.GetForPartnerFn != nil {
		return m.GetForPartnerFn(ctx, id, partnerBPNL)
	}
	return nil, service.ErrRequestNotFound
}

// ListByState implements service.RequestService.
func (m *MockRequestService) ListByState(
	ctx context.Context,
	state domain.RequestState,
	olderThan time.Duration,
	limit int,
) ([]*domain.Request, error) {
	if m.ListByStateFn != nil {
		return m.ListByStateFn(ctx, state, olderThan, limit)
	}
	return nil, nil
}

// TransitionCount returns how many transitions were requested.
func (m *MockRequestService) TransitionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Transitions)
}

// MockResponseService implements service.ResponseService for testing
type MockResponseService struct {
	ConsumeResponseFn       func(ctx context.Context, partnerBPNL string, resp *service.ProductStockResponse) error
	ReportedProductStocksFn func(ctx context.Context, partnerBPNL string) ([]*domain.ReportedProductStock, error)

	mu           sync.Mutex
	ConsumeCalls int
}

var _ service.ResponseService = (*MockResponseService)(nil)

// ConsumeResponse implements service.ResponseService.
func (m *MockResponseService) ConsumeResponse(
	ctx context.Context,
	partnerBPNL string,
	resp *service.ProductStockResponse,
) error {
	m.mu.Lock()
	m.ConsumeCalls++
	m.mu.Unlock()

	if m.ConsumeResponseFn != nil {
		return m.ConsumeResponseFn(ctx, partnerBPNL, resp)
	}
	return nil
}

// ReportedProductStocks implements service.ResponseService.
func (m *MockResponseService) ReportedProductStocks(
	ctx context.Context,
	partnerBPNL string,
) ([]*domain.ReportedProductStock, error) {
	if m.ReportedProductStocksFn != nil {
		return m.ReportedProductStocksFn(ctx, partnerBPNL)
	}
	return nil, nil
}

// MockReplayGuard is an in-memory service.ReplayGuard.
type MockReplayGuard struct {
	SeenErr     error
	RememberErr error

	mu   sync.Mutex
	seen map[string]bool
}

var _ service.ReplayGuard = (*MockReplayGuard)(nil)

// Seen implements service.ReplayGuard.
func (g *MockReplayGuard) Seen(ctx context.Context, partnerBPNL, messageID string) (bool, error) {
	if g.SeenErr != nil {
		return false, g.SeenErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seen[partnerBPNL+"/"+messageID], nil
}

// Remember implements service.ReplayGuard.
func (g *MockReplayGuard) Remember(ctx context.Context, partnerBPNL, messageID string) error {
	if g.RememberErr != nil {
		return g.RememberErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seen == nil {
		g.seen = make(map[string]bool)
	}
	g.seen[partnerBPNL+"/"+messageID] = true
	return nil
}
