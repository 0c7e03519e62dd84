package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xero_pages_fetched_total",
		Help: "Total pages fetched by resource",
	}, []string{"resource"})

	pagerFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xero_pager_fetches_total",
		Help: "Total paginated fetches by resource and result",
	}, []string{"resource", "result"})
)
