package gateway

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for dispatching.
type Metrics struct {
	dispatched *prometheus.CounterVec
	unmatched  prometheus.Counter
	aborted    prometheus.Counter
	swaps      prometheus.Counter
	routes     prometheus.Gauge
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// GetMetrics returns the metrics registered with the default registry.
func GetMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// NewMetrics registers gateway collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		dispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imagegw",
			Subsystem: "gateway",
			Name:      "dispatched_total",
			Help:      "Total number of requests dispatched to a route",
		}, []string{"route"}),
		unmatched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "imagegw",
			Subsystem: "gateway",
			Name:      "unmatched_total",
			Help:      "Total number of requests matching no route",
		}),
		aborted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "imagegw",
			Subsystem: "gateway",
			Name:      "aborted_responses_total",
			Help:      "Total number of responses aborted after a partial write",
		}),
		swaps: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "imagegw",
			Subsystem: "gateway",
			Name:      "route_table_swaps_total",
			Help:      "Total number of route table replacements",
		}),
		routes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "imagegw",
			Subsystem: "gateway",
			Name:      "routes",
			Help:      "Number of routes in the active table",
		}),
	}
}
