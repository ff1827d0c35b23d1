package middleware

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/puris-api/internal/api/shared"
	"github.com/phrazzld/puris-api/internal/platform/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/phrazzld/puris-api/internal/api/middleware"

type traceConfig struct {
	propagator propagation.TextMapPropagator
	provider   trace.TracerProvider
}

// TraceOption configures Trace.
type TraceOption func(*traceConfig)

// WithTracePropagator sets the propagator used to extract the caller's trace
// context. Defaults to the global propagator.
func WithTracePropagator(p propagation.TextMapPropagator) TraceOption {
	return func(c *traceConfig) { c.propagator = p }
}

// WithTraceProvider sets the tracer provider. Defaults to the global provider.
func WithTraceProvider(tp trace.TracerProvider) TraceOption {
	return func(c *traceConfig) { c.provider = tp }
}

// Trace starts a server span for every call, continuing the caller's trace
// when it sent one, and stores a request logger in the context carrying
// trace_id, method, path and request_id.
// It should be applied early in the middleware chain, after RequestID.
func Trace(base *slog.Logger, opts ...TraceOption) func(http.Handler) http.Handler {
	cfg := traceConfig{
		propagator: otel.GetTextMapPropagator(),
		provider:   otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if base == nil {
		base = slog.Default()
	}
	tracer := cfg.provider.Tracer(tracerName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := cfg.propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, r.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()

			ctx = shared.SetTraceID(ctx)
			traceID := shared.GetTraceID(ctx)

			log := base.With(
				slog.String("trace_id", traceID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("request_id", chimiddleware.GetReqID(ctx)),
			)
			ctx = logger.WithLogger(ctx, log)

			log.Debug("request started", slog.String("remote_addr", r.RemoteAddr))

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			if route := routePattern(r); route != "" {
				span.SetName(r.Method + " " + route)
				span.SetAttributes(semconv.HTTPRoute(route))
			}
			span.SetAttributes(semconv.HTTPResponseStatusCode(status))
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}

			log.Debug("request finished", slog.Int("status", status))
		})
	}
}

// routePattern returns the matched chi route pattern, or "" outside a chi
// router or before routing.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	return rctx.RoutePattern()
}
