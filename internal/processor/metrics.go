package processor

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request outcomes used as metric labels.
const (
	outcomeOK        = "ok"
	outcomeForwarded = "forwarded"
	outcomeResolve   = "resolve_error"
	outcomeFetch     = "fetch_error"
	outcomeDecode    = "decode_error"
	outcomeTransform = "transform_error"
	outcomeContract  = "contract_violation"
	outcomeEmit      = "emit_error"
)

// Metrics holds Prometheus collectors for the processor.
type Metrics struct {
	outcomes      *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	cleanupErrors prometheus.Counter
	emittedBytes  *prometheus.CounterVec
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

// NewMetrics registers processor collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imagegw",
			Subsystem: "processor",
			Name:      "requests_total",
			Help:      "Total number of processed requests by outcome",
		}, []string{"route", "outcome"}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "imagegw",
			Subsystem: "processor",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "stage"}),
		cleanupErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "imagegw",
			Subsystem: "processor",
			Name:      "cleanup_errors_total",
			Help:      "Total number of failed cleanup callbacks",
		}),
		emittedBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imagegw",
			Subsystem: "processor",
			Name:      "emitted_bytes_total",
			Help:      "Total number of image bytes written to clients",
		}, []string{"route"}),
	}
}
