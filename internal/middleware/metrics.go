package middleware

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for middleware operations.
type Metrics struct {
	panicsRecovered   prometheus.Counter
	rateLimitAllowed  prometheus.Counter
	rateLimitRejected prometheus.Counter
	rateLimitErrors   prometheus.Counter
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

// NewMetrics registers middleware collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		panicsRecovered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "imagegw",
			Subsystem: "middleware",
			Name:      "panics_recovered_total",
			Help:      "Total number of panics recovered",
		}),
		rateLimitAllowed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "imagegw",
			Subsystem: "middleware",
			Name:      "rate_limit_allowed_total",
			Help:      "Total number of requests allowed by the rate limiter",
		}),
		rateLimitRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "imagegw",
			Subsystem: "middleware",
			Name:      "rate_limit_rejected_total",
			Help:      "Total number of requests rejected by the rate limiter",
		}),
		rateLimitErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "imagegw",
			Subsystem: "middleware",
			Name:      "rate_limit_errors_total",
			Help:      "Total number of limiter failures that let the request through",
		}),
	}
}
