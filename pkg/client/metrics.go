package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for Xero client operations.
var (
	xeroRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xero_requests_total",
		Help: "Total Xero requests by endpoint and status",
	}, []string{"endpoint", "status"})

	xeroRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "xero_request_duration_seconds",
		Help:    "Xero request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	xeroErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xero_errors_total",
		Help: "Total Xero errors by class",
	}, []string{"class"})

	xeroRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xero_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	xeroRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "xero_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	xeroRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xero_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)
