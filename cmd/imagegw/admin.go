package main

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/vyrodovalexey/avaimg/internal/config"
	"github.com/vyrodovalexey/avaimg/internal/health"
	"github.com/vyrodovalexey/avaimg/internal/observability"
)

// Admin listener timeouts. Scrapes and probes are small and fast.
const (
	adminReadHeaderTimeout = 5 * time.Second
	adminTimeout           = 10 * time.Second
)

// newAdminServer serves metrics at cfg.Path plus the health probes, kept
// off the public listener.
func newAdminServer(cfg config.MetricsConfig, metrics *observability.Metrics, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, metrics.Handler())
	checker.RegisterRoutes(mux)

	return &http.Server{
		Addr:              cfg.Address,
		Handler:           mux,
		ReadHeaderTimeout: adminReadHeaderTimeout,
		ReadTimeout:       adminTimeout,
		WriteTimeout:      adminTimeout,
	}
}

// startAdminServer binds the admin listener before returning, so a busy
// port fails startup instead of surfacing later in a log line.
func startAdminServer(app *application) error {
	cfg := app.config.Metrics
	if !cfg.Enabled {
		return nil
	}

	srv := newAdminServer(cfg, app.metrics, app.healthChecker)
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	app.adminServer = srv

	app.logger.Info("serving metrics and health",
		observability.String("address", ln.Addr().String()),
		observability.String("metrics_path", cfg.Path),
	)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error("admin server stopped", observability.Error(err))
		}
	}()
	return nil
}
