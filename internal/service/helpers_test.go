package service_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/phrazzld/puris-api/internal/events"
	"github.com/phrazzld/puris-api/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

const (
	testPartnerBPNL  = "BPNL4444444444XX"
	otherPartnerBPNL = "BPNL1234567890ZZ"

	validRequestPayload = `{
		"header": {"messageId": "msg-req-1", "senderBpn": "BPNL1234567890ZZ"},
		"content": {"materials": [{"materialNumberCustomer": "MNR-7307-AU340474.002"}]}
	}`
)

// responsePayload builds a Response API payload answering requestID.
func responsePayload(messageID, requestID string) string {
	return fmt.Sprintf(`{
		"header": {"messageId": %q, "requestId": %q},
		"content": {"productStocks": [{
			"material": {"materialNumberCustomer": "MNR-7307-AU340474.002"},
			"quantity": 20.5,
			"measurementUnit": "unit:piece",
			"stockLocationBpns": "BPNS4444444444XX",
			"stockLocationBpna": "BPNA4444444444AA",
			"partner": {"bpnl": "BPNL4444444444XX", "name": "Supplier Partner"},
			"lastUpdatedOn": "2026-03-01T10:00:00Z",
			"isBlocked": false
		}]}
	}`, messageID, requestID)
}

// newTxDB returns a sqlmock database used only to begin, commit and roll
// back transactions; the stores themselves are in-memory.
func newTxDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

// eventRecorder captures every emitted event.
type eventRecorder struct {
	mu     sync.Mutex
	events []*events.RequestEvent
}

func (r *eventRecorder) HandleEvent(ctx context.Context, event *events.RequestEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func newEmitter() (*events.InMemoryEventEmitter, *eventRecorder) {
	emitter := events.NewInMemoryEventEmitter(nil)
	rec := &eventRecorder{}
	emitter.RegisterHandler(rec)
	return emitter, rec
}

func newMetrics() (*metrics.Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return metrics.New(reg), reg
}

// counterValue returns the value of the counter series name with the given
// labels, or zero when the series does not exist.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			if labelsMatch(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(m *dto.Metric, labels map[string]string) bool {
	if len(m.GetLabel()) != len(labels) {
		return false
	}
	for _, pair := range m.GetLabel() {
		if labels[pair.GetName()] != pair.GetValue() {
			return false
		}
	}
	return true
}

// mockTx declares the transaction outcome the next call should produce.
type mockTx struct {
	mock sqlmock.Sqlmock
}

func (m *mockTx) commit() {
	m.mock.ExpectBegin()
	m.mock.ExpectCommit()
}

func (m *mockTx) rollback() {
	m.mock.ExpectBegin()
	m.mock.ExpectRollback()
}
