package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avaimg/internal/util"
)

func findFamily(t *testing.T, reg prometheus.Gatherer, name string) *dto.MetricFamily {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("metric family %s not found", name)
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func TestNewMetrics_DefaultNamespace(t *testing.T) {
	t.Parallel()

	m := NewMetrics("")
	m.SetBuildInfo("1.0.0", "abc", "today")

	mf := findFamily(t, m.Registry(), "imagegw_build_info")
	require.Len(t, mf.GetMetric(), 1)
	assert.Equal(t, "1.0.0", labelValue(mf.GetMetric()[0], "version"))
}

func TestMetrics_RecordRequest(t *testing.T) {
	t.Parallel()

	m := NewMetrics("test_record")
	m.RecordRequest(http.MethodGet, "/thumb/:name", 200, 25*time.Millisecond, 2048)
	m.RecordRequest(http.MethodGet, "/thumb/:name", 200, 5*time.Millisecond, 1024)

	mf := findFamily(t, m.Registry(), "test_record_requests_total")
	require.Len(t, mf.GetMetric(), 1)
	metric := mf.GetMetric()[0]
	assert.Equal(t, "/thumb/:name", labelValue(metric, "route"))
	assert.Equal(t, "200", labelValue(metric, "status"))
	assert.Equal(t, float64(2), metric.GetCounter().GetValue())
}

func TestMetrics_RecordRateLimitHit(t *testing.T) {
	t.Parallel()

	m := NewMetrics("test_ratelimit")
	m.RecordRateLimitHit("memory")

	mf := findFamily(t, m.Registry(), "test_ratelimit_rate_limit_hits_total")
	assert.Equal(t, float64(1), mf.GetMetric()[0].GetCounter().GetValue())
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := NewMetrics("test_handler")
	m.RecordRequest(http.MethodGet, "unmatched", 404, time.Millisecond, 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_handler_requests_total")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestMetricsMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		route     string
		wantRoute string
		status    int
	}{
		{name: "matched route", route: "/img/:file", wantRoute: "/img/:file", status: http.StatusOK},
		{name: "unmatched", wantRoute: unmatchedRoute, status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := NewMetrics("test_mw")
			handler := MetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.route != "" {
					util.SetRoute(r.Context(), tt.route)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("body"))
			}))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/img/a.jpg", nil))

			mf := findFamily(t, m.Registry(), "test_mw_requests_total")
			require.Len(t, mf.GetMetric(), 1)
			assert.Equal(t, tt.wantRoute, labelValue(mf.GetMetric()[0], "route"))

			sizes := findFamily(t, m.Registry(), "test_mw_response_size_bytes")
			assert.Equal(t, float64(4), sizes.GetMetric()[0].GetHistogram().GetSampleSum())
		})
	}
}

func TestMetricsMiddleware_SharesRequestInfo(t *testing.T) {
	t.Parallel()

	m := NewMetrics("test_shared")
	handler := MetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		util.SetRoute(r.Context(), "/avatar/:size/:id")
		w.WriteHeader(http.StatusNoContent)
	}))

	ctx, info := util.WithRequestInfo(context.Background(), time.Now())
	req := httptest.NewRequest(http.MethodGet, "/avatar/64/u1", nil).WithContext(ctx)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "/avatar/:size/:id", info.Route)
	mf := findFamily(t, m.Registry(), "test_shared_requests_total")
	assert.Equal(t, "/avatar/:size/:id", labelValue(mf.GetMetric()[0], "route"))
	assert.Equal(t, "204", labelValue(mf.GetMetric()[0], "status"))
}
