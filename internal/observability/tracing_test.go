package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/avaimg/internal/util"
)

func TestNewTracer_Disabled(t *testing.T) {
	t.Parallel()

	tracer, err := NewTracer(TracerConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, tracer.provider)

	_, span := tracer.StartSpan(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	assert.NoError(t, tracer.Shutdown(context.Background()))
}

func TestNewTracer_EnabledWithoutEndpoint(t *testing.T) {
	t.Parallel()

	tracer, err := NewTracer(TracerConfig{ServiceName: "imagegw-test", Enabled: true, SamplingRate: 1})
	require.NoError(t, err)
	require.NotNil(t, tracer.provider)

	_, span := tracer.StartSpan(context.Background(), "fetch")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	assert.NoError(t, tracer.Shutdown(context.Background()))
}

func TestNewResource(t *testing.T) {
	t.Parallel()

	res, err := newResource("imagegw-test")
	require.NoError(t, err)
	assert.Equal(t, resource.Default().SchemaURL(), res.SchemaURL())

	name, ok := res.Set().Value("service.name")
	require.True(t, ok)
	assert.Equal(t, "imagegw-test", name.AsString())
}

func TestCreateSampler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rate float64
		want string
	}{
		{rate: 1, want: sdktrace.AlwaysSample().Description()},
		{rate: 2, want: sdktrace.AlwaysSample().Description()},
		{rate: 0, want: sdktrace.NeverSample().Description()},
		{rate: 0.25, want: sdktrace.TraceIDRatioBased(0.25).Description()},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, createSampler(tt.rate).Description())
	}
}

func TestExporterOptions(t *testing.T) {
	t.Parallel()

	secure := exporterOptions(TracerConfig{OTLPEndpoint: "collector:4317"})
	insecure := exporterOptions(TracerConfig{OTLPEndpoint: "collector:4317", Insecure: true})
	assert.Len(t, insecure, len(secure)+1)
}

func TestEndSpan(t *testing.T) {
	t.Parallel()

	_, span := StartStage(context.Background(), "transform")
	assert.NotPanics(t, func() { EndSpan(span, errors.New("boom")) })

	_, span = StartStage(context.Background(), "emit")
	assert.NotPanics(t, func() { EndSpan(span, nil) })
}

func TestTracingMiddleware(t *testing.T) {
	t.Parallel()

	tracer, err := NewTracer(TracerConfig{Enabled: true, SamplingRate: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tracer.Shutdown(context.Background()) })

	var traceID string
	handler := TracingMiddleware(tracer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = trace.SpanContextFromContext(r.Context()).TraceID().String()
		w.WriteHeader(http.StatusBadGateway)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/thumb/a.jpg", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Len(t, traceID, 32)
}

func TestTracingMiddleware_RouteSpanName(t *testing.T) {
	t.Parallel()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	tracer := &Tracer{provider: tp, tracer: tp.Tracer("test")}

	handler := TracingMiddleware(tracer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/missing" {
			util.SetRoute(r.Context(), "/thumb/:w/:name")
		}
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/thumb/4/a.png", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "GET /thumb/:w/:name", spans[0].Name())
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind())
	assert.Equal(t, "GET", spans[1].Name())
}

func TestInjectTraceContext(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "http://upstream/a.jpg", nil)
	assert.NotPanics(t, func() { InjectTraceContext(context.Background(), req) })
}
