package middleware

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/puris-api/internal/metrics"
)

// unmatchedRoute labels calls no route matched.
const unmatchedRoute = "unmatched"

// Metrics records the count and latency of every call by method, matched
// route pattern and status.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routePattern(r)
			if route == "" {
				route = unmatchedRoute
			}
			m.HTTPRequest(r.Method, route, status, time.Since(start))
		})
	}
}
