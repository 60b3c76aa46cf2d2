package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/credencehq/credence/internal/metrics"
	"github.com/go-chi/chi/v5"
)

// Metrics returns middleware that records request counts and latency into
// the Prometheus collectors. The route label is chi's route pattern, not
// the raw path, so per-ID URLs do not explode the cardinality.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}

			m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			m.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}
