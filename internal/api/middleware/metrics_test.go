package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/puris-api/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordsRoutePattern(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	r := chi.NewRouter()
	r.Use(Metrics(metrics.New(reg)))
	r.Get("/api/v1/requests/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Post("/api/v1/responses", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	for _, path := range []string{"/api/v1/requests/1", "/api/v1/requests/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/responses", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	expected := `
# HELP puris_http_requests_total The total number of HTTP requests by method, route and status.
# TYPE puris_http_requests_total counter
puris_http_requests_total{method="GET",route="/api/v1/requests/{id}",status="404"} 2
puris_http_requests_total{method="GET",route="unmatched",status="404"} 1
puris_http_requests_total{method="POST",route="/api/v1/responses",status="204"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "puris_http_requests_total"))

	count, err := testutil.GatherAndCount(reg, "puris_http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestMetrics_NilMetrics(t *testing.T) {
	t.Parallel()

	handler := Metrics(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
