// Package metrics defines the Prometheus instruments of the service.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/phrazzld/puris-api/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
)

const namespace = "puris"

// Result labels of puris_responses_consumed_total.
const (
	ResultCompleted    = "completed"
	ResultReplayed     = "replayed"
	ResultInvalid      = "invalid"
	ResultUncorrelated = "uncorrelated"
	ResultError        = "error"
)

// Metrics holds every instrument, registered on one registry.
type Metrics struct {
	requestsCreated   prometheus.Counter
	transitions       *prometheus.CounterVec
	responsesConsumed *prometheus.CounterVec
	authFailures      prometheus.Counter
	circuitBreaker    *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// New creates the instruments and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		requestsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_created_total",
			Help:      "The total number of requests received through the Request API.",
		}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_transitions_total",
			Help:      "The total number of committed request state transitions.",
		}, []string{"from", "to"}),
		responsesConsumed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_consumed_total",
			Help:      "The total number of responses handled by result.",
		}, []string{"result"}),
		authFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "The total number of calls rejected for a missing or unknown API key.",
		}),
		circuitBreaker: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_states",
			Help:      "The number of circuit breaker states by name and state.",
		}, []string{"name", "status"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "The total number of HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// NewRegistry returns a registry preloaded with the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RequestCreated counts a new request.
func (m *Metrics) RequestCreated() {
	if m == nil {
		return
	}
	m.requestsCreated.Inc()
}

// Transition counts a committed state change.
func (m *Metrics) Transition(from, to domain.RequestState) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
}

// ResponseConsumed counts a handled response by result.
func (m *Metrics) ResponseConsumed(result string) {
	if m == nil {
		return
	}
	m.responsesConsumed.WithLabelValues(result).Inc()
}

// AuthFailure counts a rejected API key.
func (m *Metrics) AuthFailure() {
	if m == nil {
		return
	}
	m.authFailures.Inc()
}

// InitCircuitBreaker pre-creates the series of every breaker state so they
// are exported as zero before the first change.
func (m *Metrics) InitCircuitBreaker(name string) {
	if m == nil {
		return
	}
	for _, state := range []gobreaker.State{gobreaker.StateClosed, gobreaker.StateHalfOpen, gobreaker.StateOpen} {
		m.circuitBreaker.WithLabelValues(name, state.String())
	}
}

// CircuitBreakerState counts a breaker entering state.
func (m *Metrics) CircuitBreakerState(name string, state gobreaker.State) {
	if m == nil {
		return
	}
	m.circuitBreaker.WithLabelValues(name, state.String()).Inc()
}

// HTTPRequest records one served HTTP request. route is the matched route
// pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) HTTPRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
