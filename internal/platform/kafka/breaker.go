package kafka

import (
	"time"

	"github.com/phrazzld/puris-api/internal/metrics"
	"github.com/sony/gobreaker"
)

// NewCircuitBreaker creates a breaker that opens once at least 10 calls
// were made and a quarter of them failed. After 3 seconds it lets a trial
// call through.
// State changes are counted in m.
func NewCircuitBreaker(name string, m *metrics.Metrics) *gobreaker.CircuitBreaker {
	var st gobreaker.Settings
	st.Name = name
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
		return counts.Requests >= 10 && failureRatio >= 0.25
	}
	st.Timeout = 3 * time.Second
	st.OnStateChange = func(_ string, _ gobreaker.State, to gobreaker.State) {
		m.CircuitBreakerState(name, to)
	}
	m.InitCircuitBreaker(name)

	return gobreaker.NewCircuitBreaker(st)
}
