package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/vyrodovalexey/avaimg/internal/config"
	"github.com/vyrodovalexey/avaimg/internal/observability"
)

// runGateway serves until a shutdown signal arrives.
func runGateway(app *application, configPath string, logger observability.Logger) {
	if err := startAdminServer(app); err != nil {
		fatalWithSync(logger, "failed to start admin server", observability.Error(err))
	}
	watcher := startConfigWatcher(app, configPath)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting image gateway", observability.String("address", app.server.Addr))
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", observability.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", observability.Error(err))
	}

	shutdown(app, watcher)
}

// shutdown fails readiness first and drains in-flight requests before
// releasing the components they use.
func shutdown(app *application, watcher *config.Watcher) {
	logger := app.logger
	app.healthChecker.SetDraining(true)

	ctx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout.Duration())
	defer cancel()

	if watcher != nil {
		_ = watcher.Stop()
	}

	if app.server != nil {
		if err := app.server.Shutdown(ctx); err != nil {
			logger.Error("failed to stop server gracefully", observability.Error(err))
		}
	}

	app.queue.Close()

	if err := app.limiter.Close(); err != nil {
		logger.Error("failed to close rate limiter", observability.Error(err))
	}

	if err := app.tracer.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown tracer", observability.Error(err))
	}

	if app.adminServer != nil {
		if err := app.adminServer.Shutdown(ctx); err != nil {
			logger.Error("failed to stop admin server gracefully", observability.Error(err))
		}
	}

	logger.Info("image gateway stopped")
}
