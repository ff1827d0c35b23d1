package mocks

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/puris-api/internal/domain"
	"github.com/phrazzld/puris-api/internal/store"
)

// MockRequestStore is an in-memory store.RequestStore.
// WithTx returns the same instance, so writes are visible immediately and
// are not undone by a rollback.
type MockRequestStore struct {
	CreateFn       func(ctx context.Context, req *domain.Request) error
	GetByIDFn      func(ctx context.Context, id uuid.UUID) (*domain.Request, error)
	GetForUpdateFn func(ctx context.Context, id uuid.UUID) (*domain.Request, error)
	UpdateStateFn  func(ctx context.Context, req *domain.Request, expectedVersion int) error

	mu       sync.Mutex
	requests map[uuid.UUID]domain.Request

	// Call tracking for verification
	LockedIDs   []uuid.UUID
	UpdateCalls int
}

// NewMockRequestStore creates an empty MockRequestStore.
func NewMockRequestStore() *MockRequestStore {
	return &MockRequestStore{requests: make(map[uuid.UUID]domain.Request)}
}

var _ store.RequestStore = (*MockRequestStore)(nil)

// Put stores req as-is, bypassing validation. Useful to seed a state.
func (m *MockRequestStore) Put(req *domain.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = *req
}

// Len returns the number of stored requests.
func (m *MockRequestStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Create implements store.RequestStore.
func (m *MockRequestStore) Create(ctx context.Context, req *domain.Request) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, req)
	}
	if err := req.Validate(); err != nil {
		return store.ErrInvalidEntity
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[req.ID]; ok {
		return store.ErrDuplicate
	}
	m.requests[req.ID] = *req
	return nil
}

// GetByID implements store.RequestStore.
func (m *MockRequestStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Request, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return m.get(id)
}

// GetForUpdate implements store.RequestStore.
func (m *MockRequestStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Request, error) {
	m.mu.Lock()
	m.LockedIDs = append(m.LockedIDs, id)
	m.mu.Unlock()

	if m.GetForUpdateFn != nil {
		return m.GetForUpdateFn(ctx, id)
	}
	return m.get(id)
}

func (m *MockRequestStore) get(id uuid.UUID) (*domain.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[id]
	if !ok {
		return nil, store.ErrRequestNotFound
	}
	return &req, nil
}

// UpdateState implements store.RequestStore.
func (m *MockRequestStore) UpdateState(ctx context.Context, req *domain.Request, expectedVersion int) error {
	m.mu.Lock()
	m.UpdateCalls++
	m.mu.Unlock()

	if m.UpdateStateFn != nil {
		return m.UpdateStateFn(ctx, req, expectedVersion)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.requests[req.ID]
	if !ok {
		return store.ErrRequestNotFound
	}
	if stored.Version != expectedVersion {
		return store.ErrUpdateFailed
	}

	stored.State = req.State
	stored.Version = req.Version
	stored.UpdatedAt = req.UpdatedAt
	m.requests[req.ID] = stored
	return nil
}

// ListByState implements store.RequestStore.
func (m *MockRequestStore) ListByState(
	ctx context.Context,
	state domain.RequestState,
	olderThan time.Duration,
	limit int,
) ([]*domain.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	var result []*domain.Request
	for _, req := range m.requests {
		if req.State != state {
			continue
		}
		if olderThan > 0 && !req.UpdatedAt.Before(cutoff) {
			continue
		}
		r := req
		result = append(result, &r)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.Before(result[j].UpdatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// WithTx implements store.RequestStore.
func (m *MockRequestStore) WithTx(tx *sql.Tx) store.RequestStore {
	return m
}
