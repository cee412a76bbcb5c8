// Package metrics holds the Prometheus collectors for the cache and order paths.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hot_product"

type Metrics struct {
	// cache lookups by result: hit, null_hit, miss
	CacheLookups *prometheus.CounterVec
	// store reads issued by the cache controller, by path: locked, fallback, bypass
	StoreReads *prometheus.CounterVec
	// soft failures swallowed on the cache path, by kind: cache, lock, lock_timeout
	CacheErrors *prometheus.CounterVec

	OrdersCreated   prometheus.Counter
	OrdersRejected  *prometheus.CounterVec
	OrdersCancelled prometheus.Counter
}

// New registers all collectors with reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Hot product cache lookups by result",
		}, []string{"result"}),
		StoreReads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_reads_total",
			Help:      "Product store reads issued by the cache controller",
		}, []string{"path"}),
		CacheErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_errors_total",
			Help:      "Cache and lock failures degraded to the store",
		}, []string{"kind"}),
		OrdersCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders committed",
		}),
		OrdersRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_rejected_total",
			Help:      "Orders aborted by reason",
		}, []string{"reason"}),
		OrdersCancelled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_cancelled_total",
			Help:      "Orders cancelled with stock restored",
		}),
	}
}

// Nop returns collectors bound to a private registry.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}
