package fetch

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch outcomes used as metric labels.
const (
	outcomeOK          = "ok"
	outcomeNon200      = "non_200"
	outcomeTransport   = "transport_error"
	outcomeTimeout     = "timeout"
	outcomeBreakerOpen = "breaker_open"
	outcomeClosed      = "queue_closed"
)

// Metrics holds Prometheus collectors for the fetch queue.
type Metrics struct {
	queueDepth  prometheus.Gauge
	inFlight    prometheus.Gauge
	duration    *prometheus.HistogramVec
	outcomes    *prometheus.CounterVec
	waitSeconds prometheus.Histogram
	breakerMove *prometheus.CounterVec
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

// NewMetrics registers fetch collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "imagegw",
			Subsystem: "fetch",
			Name:      "queue_depth",
			Help:      "Number of fetch tasks waiting for a worker",
		}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "imagegw",
			Subsystem: "fetch",
			Name:      "in_flight",
			Help:      "Number of upstream GETs currently held by a worker",
		}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "imagegw",
			Subsystem: "fetch",
			Name:      "duration_seconds",
			Help:      "Time from issuing the GET to receiving response headers",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imagegw",
			Subsystem: "fetch",
			Name:      "outcomes_total",
			Help:      "Total number of settled fetch tasks by outcome",
		}, []string{"route", "outcome"}),
		waitSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "imagegw",
			Subsystem: "fetch",
			Name:      "queue_wait_seconds",
			Help:      "Time a task spent queued before a worker took it",
			Buckets:   prometheus.DefBuckets,
		}),
		breakerMove: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imagegw",
			Subsystem: "fetch",
			Name:      "circuit_breaker_transitions_total",
			Help:      "Circuit breaker state transitions per upstream host",
		}, []string{"host", "from", "to"}),
	}
}
