package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupMetrics registers the scrape endpoint. chi rejects middleware added
// after a route, so it runs once every r.Use call is done.
func setupMetrics(r chi.Router) {
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
}
