package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks badge cache hits.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "badge_cache_hits_total",
			Help: "Total number of badge cache hits",
		},
	)

	// CacheMisses tracks badge cache misses.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "badge_cache_misses_total",
			Help: "Total number of badge cache misses",
		},
	)

	// CacheErrors tracks cache operation errors by operation.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "badge_cache_errors_total",
			Help: "Total number of badge cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
