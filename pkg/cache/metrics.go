package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by layer (redis)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xero_cache_hits_total",
			Help: "Total number of Xero cache hits",
		},
		[]string{"layer"}, // "redis"
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xero_cache_misses_total",
			Help: "Total number of Xero cache misses",
		},
	)

	// CacheSize tracks bytes written to the cache by layer
	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "xero_cache_size_bytes",
			Help: "Bytes written to the Xero response cache",
		},
		[]string{"layer"}, // "redis"
	)

	// CacheInvalidations tracks keys removed after writes
	CacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xero_cache_invalidations_total",
			Help: "Total number of cache keys removed by invalidation",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xero_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
