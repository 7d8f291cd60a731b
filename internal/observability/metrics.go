package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vyrodovalexey/avaimg/internal/util"
)

// unmatchedRoute labels requests no route pattern claimed.
const unmatchedRoute = "unmatched"

var httpLabels = []string{"method", "route", "status"}

// Metrics holds the inbound HTTP collectors. They live on a private
// registry so tests and multiple instances do not collide.
type Metrics struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	bytesOut      *prometheus.HistogramVec
	inFlight      prometheus.Gauge
	rateLimitHits *prometheus.CounterVec
	buildInfo     *prometheus.GaugeVec
}

// NewMetrics registers the HTTP collectors under namespace, "imagegw" when
// empty.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "imagegw"
	}
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, httpLabels),
		// Transforms on large sources can run for seconds.
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time from request arrival to the last response byte.",
			Buckets:   prometheus.ExponentialBucketsRange(0.005, 30, 12),
		}, httpLabels),
		bytesOut: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_size_bytes",
			Help:      "Response body size.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		}, httpLabels),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_requests",
			Help:      "Requests currently being served.",
		}),
		rateLimitHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_hits_total",
			Help:      "Requests rejected with 429, by limiter.",
		}, []string{"limiter"}),
		buildInfo: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Always 1, labelled with the running build.",
		}, []string{"version", "commit", "build_time"}),
	}

	f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "start_time_seconds",
		Help:      "Process start time in unix seconds.",
	}).SetToCurrentTime()

	return m
}

// RecordRequest records one finished request. route must be a pattern,
// never a raw path.
func (m *Metrics) RecordRequest(method, route string, status int, d time.Duration, size int64) {
	labels := prometheus.Labels{"method": method, "route": route, "status": strconv.Itoa(status)}
	m.requests.With(labels).Inc()
	m.latency.With(labels).Observe(d.Seconds())
	m.bytesOut.With(labels).Observe(float64(size))
}

// SetBuildInfo publishes the build labels.
func (m *Metrics) SetBuildInfo(version, commit, buildTime string) {
	m.buildInfo.WithLabelValues(version, commit, buildTime).Set(1)
}

// RecordRateLimitHit counts a rejection by the named limiter.
func (m *Metrics) RecordRateLimitHit(limiter string) {
	m.rateLimitHits.WithLabelValues(limiter).Inc()
}

// Handler serves this registry merged with the default one, which holds
// the runtime collectors and the pipeline packages' collectors.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(
		prometheus.Gatherers{m.registry, prometheus.DefaultGatherer},
		promhttp.HandlerOpts{EnableOpenMetrics: true},
	)
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// MetricsMiddleware records every request. The route label comes from the
// request's util.RequestInfo, which the gateway fills on dispatch.
func MetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, info := util.EnsureRequestInfo(r.Context(), time.Now())
			rw := util.NewResponseRecorder(w)

			metrics.inFlight.Inc()
			defer metrics.inFlight.Dec()

			next.ServeHTTP(rw, r.WithContext(ctx))

			route := info.Route
			if route == "" {
				route = unmatchedRoute
			}
			metrics.RecordRequest(r.Method, route, rw.StatusCode, time.Since(info.Start), rw.BytesWritten)
		})
	}
}
