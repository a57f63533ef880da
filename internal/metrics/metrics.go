// Package metrics exposes the process-wide prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PriceCacheHits counts daily curve lookups served from the cache.
	PriceCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stromtracker_price_cache_hits_total",
		Help: "Daily price curve lookups answered from the cache.",
	})

	// PriceCacheMisses counts lookups that had to go upstream.
	PriceCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stromtracker_price_cache_misses_total",
		Help: "Daily price curve lookups that required an upstream fetch.",
	})

	// PriceFetchFailures counts failed upstream fetches.
	PriceFetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stromtracker_price_fetch_failures_total",
		Help: "Upstream spot price fetches that failed or timed out.",
	})

	// PriceFetchDuration observes upstream fetch latency.
	PriceFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stromtracker_price_fetch_duration_seconds",
		Help:    "Latency of upstream spot price fetches.",
		Buckets: prometheus.DefBuckets,
	})

	// DegradedCalculations counts cost results that used a fallback price.
	DegradedCalculations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stromtracker_degraded_calculations_total",
		Help: "Cost calculations that fell back to a non-curve price.",
	})
)
