// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LinkVerdicts counts validator outcomes by state and reason.
	LinkVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cartcompass_link_verdicts_total",
		Help: "Link validation verdicts by state and reason",
	}, []string{"state", "reason"})

	// VerdictCacheHits counts verdicts served from cache without refetching.
	VerdictCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cartcompass_verdict_cache_hits_total",
		Help: "Link verdicts answered from cache",
	})

	// DiscoveryProducts tracks how many normalized products each category
	// search produced.
	DiscoveryProducts = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cartcompass_discovery_products",
		Help:    "Normalized products per category discovery",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
	}, []string{"category"})

	// FallbackServes counts times the embedded catalog had to cover an
	// empty must-have category.
	FallbackServes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cartcompass_fallback_serves_total",
		Help: "Categories served from the embedded fallback catalog",
	}, []string{"category"})

	// CartsBuilt counts cart assembly operations by kind.
	CartsBuilt = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cartcompass_cart_operations_total",
		Help: "Cart operations by kind (build, swap, optimize_budget, optimize_delivery)",
	}, []string{"kind"})

	// HTTPDuration observes request latency per route and status.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cartcompass_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "method", "status"})
)
