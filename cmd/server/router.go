package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/phrazzld/puris-api/internal/api"
	apiMiddleware "github.com/phrazzld/puris-api/internal/api/middleware"
	"github.com/phrazzld/puris-api/internal/api/shared"
	"github.com/phrazzld/puris-api/internal/metrics"
	"github.com/sony/gobreaker"
)

// healthCheckTimeout bounds each dependency check of /health.
const healthCheckTimeout = 2 * time.Second

// corsMaxAge is how long, in seconds, browsers may cache a preflight answer.
const corsMaxAge = 300

// setupRouter creates the API router with all routes and middleware.
// Every call needs a partner API key, and the key is checked before routing,
// so unknown paths and methods are rejected like known ones. CORS preflights
// are answered before authentication.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	authMiddleware := apiMiddleware.NewAPIKeyMiddleware(
		app.partners,
		app.config.Server.APIKeyHeader,
		app.metrics,
		app.logger,
	)
	requestHandler := api.NewRequestHandler(app.requestService, app.logger)
	responseHandler := api.NewResponseHandler(app.responseService, app.logger)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.Trace(app.logger))
	r.Use(apiMiddleware.Metrics(app.metrics))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(app.corsOptions()))
	r.Use(authMiddleware.Authenticate)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/requests", requestHandler.CreateRequest)
		r.Get("/requests/{id}", requestHandler.GetRequest)

		r.Post("/responses", responseHandler.ConsumeResponse)
		r.Get("/reported-product-stocks", responseHandler.ListReportedProductStocks)

		r.Get("/api-methods", api.ListApiMethods)
		r.Get("/api-methods/{purpose}", api.GetApiMethod)
	})

	return r
}

// corsOptions builds the CORS policy from the configured allow-list.
// An empty list admits no cross-origin callers.
func (app *application) corsOptions() cors.Options {
	opts := cors.Options{
		AllowedOrigins: app.config.Server.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", app.config.Server.APIKeyHeader, "traceparent", "tracestate"},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         corsMaxAge,
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowOriginFunc = func(*http.Request, string) bool { return false }
	}
	return opts
}

// setupOpsRouter creates the operations router serving /health and /metrics.
func (app *application) setupOpsRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", app.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(app.registry))

	return r
}

// healthResponse reports the state of each dependency.
type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

const (
	checkOK       = "ok"
	checkDown     = "down"
	checkDisabled = "disabled"
)

// handleHealth answers 200 when the database is reachable and 503 otherwise.
// Redis and Kafka are reported but do not fail the check.
func (app *application) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{Status: checkOK, Checks: map[string]string{}}
	status := http.StatusOK

	if err := app.db.PingContext(ctx); err != nil {
		app.logger.Error("Health check: database unreachable", "error", err)
		resp.Status = checkDown
		resp.Checks["database"] = checkDown
		status = http.StatusServiceUnavailable
	} else {
		resp.Checks["database"] = checkOK
	}

	switch {
	case app.replayGuard == nil:
		resp.Checks["redis"] = checkDisabled
	case app.replayGuard.Ping(ctx) != nil:
		resp.Checks["redis"] = checkDown
	default:
		resp.Checks["redis"] = checkOK
	}

	switch {
	case app.publisher == nil:
		resp.Checks["kafka"] = checkDisabled
	case app.publisher.State() == gobreaker.StateOpen:
		resp.Checks["kafka"] = checkDown
	default:
		resp.Checks["kafka"] = checkOK
	}

	shared.RespondWithJSON(w, r, status, resp)
}
