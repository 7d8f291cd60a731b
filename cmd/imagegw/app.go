package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"

	"github.com/vyrodovalexey/avaimg/internal/config"
	"github.com/vyrodovalexey/avaimg/internal/fetch"
	"github.com/vyrodovalexey/avaimg/internal/gateway"
	"github.com/vyrodovalexey/avaimg/internal/health"
	"github.com/vyrodovalexey/avaimg/internal/observability"
	"github.com/vyrodovalexey/avaimg/internal/ratelimit"
)

// maxPendingPerWorker is the backlog per fetch worker above which the
// queue is reported degraded.
const maxPendingPerWorker = 16

// application holds all application components.
type application struct {
	config        *config.Config
	holder        *gateway.Holder
	queue         *fetch.Queue
	limiter       ratelimit.Limiter
	healthChecker *health.Checker
	metrics       *observability.Metrics
	tracer        *observability.Tracer
	server        *http.Server
	adminServer   *http.Server
	logger        observability.Logger
}

// initApplication initializes all application components. Components
// created before a failure are released.
func initApplication(cfg *config.Config, logger observability.Logger) (app *application, err error) {
	metrics := observability.NewMetrics(config.DefaultServiceName)
	metrics.SetBuildInfo(version, gitCommit, buildTime)

	tracer, err := initTracer(cfg, logger)
	if err != nil {
		return nil, err
	}

	queue := newFetchQueue(&cfg.Fetch, logger)
	defer func() {
		if err != nil {
			queue.Close()
			_ = tracer.Shutdown(context.Background())
		}
	}()

	gw, err := gateway.FromConfig(cfg.Routes, queue, gateway.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to build routes: %w", err)
	}

	limiter, err := ratelimit.New(context.Background(), cfg.RateLimit, logger)
	if err != nil {
		return nil, err
	}

	app = &application{
		config:  cfg,
		holder:  gateway.NewHolder(gw),
		queue:   queue,
		limiter: limiter,
		metrics: metrics,
		tracer:  tracer,
		logger:  logger,
	}
	app.healthChecker = newHealthChecker(app)

	engine := newEngine(app.holder)
	app.server = &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           buildMiddlewareChain(engine, app),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout.Duration(),
		WriteTimeout:      cfg.Server.WriteTimeout.Duration(),
		IdleTimeout:       cfg.Server.IdleTimeout.Duration(),
		ErrorLog:          observability.NewStdLogger(logger),
	}

	return app, nil
}

// initTracer initializes the tracer and routes OpenTelemetry's internal
// diagnostics to the application logger.
func initTracer(cfg *config.Config, logger observability.Logger) (*observability.Tracer, error) {
	otel.SetLogger(observability.Logr(logger))

	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SamplingRate: cfg.Tracing.SamplingRate,
		Enabled:      cfg.Tracing.Enabled,
		Insecure:     cfg.Tracing.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	return tracer, nil
}

// newFetchQueue creates the shared upstream fetch queue.
func newFetchQueue(cfg *config.FetchConfig, logger observability.Logger) *fetch.Queue {
	clientCfg := fetch.DefaultClientConfig()
	if cfg.MaxIdleConnsPerHost > 0 {
		clientCfg.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
	}
	if d := cfg.ResponseHeaderTimeout.Duration(); d > 0 {
		clientCfg.ResponseHeaderTimeout = d
	}

	opts := []fetch.Option{
		fetch.WithClient(fetch.NewClient(clientCfg)),
		fetch.WithLogger(logger),
		fetch.WithUserAgent(cfg.UserAgent),
	}
	if cb := cfg.CircuitBreaker; cb != nil && cb.Enabled {
		opts = append(opts, fetch.WithCircuitBreaker(cb.Threshold, cb.Timeout.Duration()))
	}

	return fetch.New(cfg.Workers, opts...)
}

// newHealthChecker registers readiness checks for the fetch queue and, when
// configured, the redis limiter.
func newHealthChecker(app *application) *health.Checker {
	checker := health.NewChecker(version, health.WithLogger(app.logger))
	checker.RegisterCheck("fetch_queue",
		health.QueueCheck(app.queue, app.config.Fetch.Workers*maxPendingPerWorker))

	// The limiter fails open, so an unreachable redis degrades rather than
	// fails readiness.
	if p, ok := app.limiter.(health.Pinger); ok {
		checker.RegisterCheck("rate_limit_store", health.PingCheck(p, false))
	}
	return checker
}

// newEngine creates the public gin engine. Unmatched requests fall through
// the gateway to gin's 404.
func newEngine(holder *gateway.Holder) *gin.Engine {
	engine := gin.New()
	engine.Use(holder.GinHandler())
	return engine
}
