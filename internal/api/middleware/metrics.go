package middleware

import (
	"net/http"
	"time"

	"github.com/trustify/backend/internal/observability"
)

// routeOther labels requests to paths the server does not route.
const routeOther = "other"

// Metrics returns middleware that records HTTP request count and duration. routes lists the
// served paths; anything else is recorded as "other" to bound cardinality.
// When metrics is nil, recording is skipped.
func Metrics(metrics observability.HTTPMetrics, routes ...string) func(http.Handler) http.Handler {
	known := make(map[string]bool, len(routes))
	for _, route := range routes {
		known[route] = true
	}

	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := newStatusWriter(w)

			next.ServeHTTP(sw, r)

			route := r.URL.Path
			if !known[route] {
				route = routeOther
			}

			metrics.RecordRequest(r.Context(), r.Method, route, statusToClass(sw.status), time.Since(start))
		})
	}
}

// statusToClass maps HTTP status code to 1xx, 2xx, 3xx, 4xx, 5xx.
func statusToClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	case status >= 100:
		return "1xx"
	default:
		return "unknown"
	}
}
