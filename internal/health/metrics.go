package health

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for health probes.
type Metrics struct {
	probes      *prometheus.CounterVec
	checkStatus *prometheus.GaugeVec
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

// NewMetrics registers health collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		probes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imagegw",
			Subsystem: "health",
			Name:      "probes_total",
			Help:      "Total number of health probes served",
		}, []string{"type"}),
		checkStatus: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "imagegw",
			Subsystem: "health",
			Name:      "check_status",
			Help:      "Last check status (1=healthy, 0.5=degraded, 0=unhealthy)",
		}, []string{"check"}),
	}
	for _, probe := range []string{probeLiveness, probeReadiness, probeHealth} {
		m.probes.WithLabelValues(probe)
	}
	return m
}

func (m *Metrics) observe(name string, status Status) {
	var v float64
	switch status {
	case StatusHealthy:
		v = 1
	case StatusDegraded:
		v = 0.5
	}
	m.checkStatus.WithLabelValues(name).Set(v)
}
