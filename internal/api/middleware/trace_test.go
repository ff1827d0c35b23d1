package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/puris-api/internal/api/shared"
	"github.com/phrazzld/puris-api/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

const incomingTraceParent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"

func newTracedRouter(
	t *testing.T,
	log *slog.Logger,
	handler http.HandlerFunc,
) (*chi.Mux, *tracetest.SpanRecorder) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(Trace(log,
		WithTraceProvider(tp),
		WithTracePropagator(propagation.TraceContext{}),
	))
	r.Get("/api/v1/requests/{id}", handler)
	return r, recorder
}

func TestTrace_ContinuesCallerTrace(t *testing.T) {
	t.Parallel()

	var logBuf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var traceID string
	router, recorder := newTracedRouter(t, log, func(w http.ResponseWriter, r *http.Request) {
		traceID = shared.GetTraceID(r.Context())
		logger.FromContext(r.Context()).Info("looking up request")
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/requests/42", nil)
	req.Header.Set("traceparent", incomingTraceParent)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", traceID)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "GET /api/v1/requests/{id}", span.Name())
	assert.Equal(t, trace.SpanKindServer, span.SpanKind())
	assert.Equal(t, traceID, span.SpanContext().TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", span.Parent().SpanID().String())
	assert.Contains(t, span.Attributes(), attribute.String("http.route", "/api/v1/requests/{id}"))
	assert.Contains(t, span.Attributes(), attribute.Int("http.response.status_code", http.StatusOK))

	out := logBuf.String()
	assert.Contains(t, out, `"trace_id":"4bf92f3577b34da6a3ce929d0e0e4736"`)
	assert.Contains(t, out, `"path":"/api/v1/requests/42"`)
	assert.Contains(t, out, `"method":"GET"`)
	assert.Contains(t, out, `"request_id":"`)
}

func TestTrace_StartsNewTrace(t *testing.T) {
	t.Parallel()

	var traceID string
	router, recorder := newTracedRouter(t, slog.Default(), func(w http.ResponseWriter, r *http.Request) {
		traceID = shared.GetTraceID(r.Context())
		shared.RespondWithError(w, r, http.StatusServiceUnavailable, "Service temporarily unavailable")
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/requests/42", nil))

	assert.Len(t, traceID, 32)
	assert.Contains(t, rr.Body.String(), traceID)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.False(t, spans[0].Parent().IsValid())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}
