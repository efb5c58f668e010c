package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_http_requests_total",
			Help: "Number of portal HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portal_http_latency_seconds",
			Help:    "Portal HTTP latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_submissions_total",
			Help: "Application submissions by outcome",
		},
		[]string{"form", "outcome"},
	)
	OptionFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_option_fetch_total",
			Help: "Dynamic option fetches by outcome",
		},
		[]string{"field", "outcome"},
	)
	DraftWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_draft_writes_total",
			Help: "Draft writes by outcome",
		},
		[]string{"outcome"},
	)
	ListingFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_listing_fetch_total",
			Help: "Application listing fetches by outcome",
		},
		[]string{"outcome"},
	)
	CatalogReloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_catalog_reloads_total",
			Help: "Insurance catalog reloads by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequests,
		HTTPLatency,
		Submissions,
		OptionFetches,
		DraftWrites,
		ListingFetches,
		CatalogReloads,
	)
}
