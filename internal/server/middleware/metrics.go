package middleware

import (
	"net/http"
	"regexp"
	"strconv"

	"github.com/felixge/httpsnoop"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/faciam-dev/formportal/internal/metrics"
)

// Metrics records request count and latency per route.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		path := routePattern(r)
		labels := prometheus.Labels{"method": r.Method, "path": path, "status": strconv.Itoa(m.Code)}
		metrics.HTTPRequests.With(labels).Inc()
		metrics.HTTPLatency.WithLabelValues(r.Method, path).Observe(m.Duration.Seconds())
	})
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return normalizePath(r.URL.Path)
}

var idRe = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F-]{27}|\d+`)

func normalizePath(path string) string {
	return idRe.ReplaceAllString(path, ":id")
}
