// Package metrics provides the Prometheus registry and scrape handler for the
// Xero client. All metrics are defined in their respective packages (client,
// cache, ratelimit, pagination) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the Xero client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer matching Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the HTTP handler exposing every registered metric.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - xero_minute_limit_remaining (Gauge): Calls remaining in the tenant minute window
//   - xero_day_limit_remaining (Gauge): Calls remaining in the tenant day window
//   - xero_rate_limit_blocks_total (Counter): Requests blocked because a limit was exhausted
//   - xero_rate_limit_throttles_total (Counter): Requests delayed by the rate limiter
//
// Cache Metrics (pkg/cache):
//   - xero_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - xero_cache_misses_total (Counter): Cache misses
//   - xero_cache_size_bytes{layer="redis"} (Gauge): Bytes written to the cache
//   - xero_cache_invalidations_total (Counter): Keys removed after contact updates
//   - xero_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - xero_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - xero_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - xero_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - xero_retries_total{error_class} (Counter): Retry attempts by error class
//   - xero_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - xero_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Pagination Metrics (pkg/pagination):
//   - xero_pages_fetched_total{resource} (Counter): Pages fetched by resource
//   - xero_pager_fetches_total{resource, result} (Counter): Paged reads by result (ok, error, cancelled)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(xero_cache_hits_total[5m])) /
//   (sum(rate(xero_cache_hits_total[5m])) + sum(rate(xero_cache_misses_total[5m])))
//
//   # Day budget running low
//   xero_day_limit_remaining < 500
//
//   # Request Error Rate
//   rate(xero_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(xero_request_duration_seconds_bucket[5m]))
//
//   # Pages per paged read
//   rate(xero_pages_fetched_total[5m]) / rate(xero_pager_fetches_total[5m])
