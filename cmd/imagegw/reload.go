package main

import (
	"context"

	"github.com/vyrodovalexey/avaimg/internal/config"
	"github.com/vyrodovalexey/avaimg/internal/gateway"
	"github.com/vyrodovalexey/avaimg/internal/observability"
)

// reloadRoutes rebuilds the route table from cfg and swaps it into the
// holder. On error the active table keeps serving. Only routes are hot
// reloaded; other sections take effect on restart.
func reloadRoutes(app *application, cfg *config.Config) error {
	gw, err := gateway.FromConfig(cfg.Routes, app.queue, gateway.WithLogger(app.logger))
	if err != nil {
		return err
	}
	if err := app.holder.Store(gw); err != nil {
		return err
	}

	app.logger.Info("routes reloaded",
		observability.Int("routes", len(cfg.Routes)),
		observability.Strings("patterns", gw.Routes()),
	)
	return nil
}

// startConfigWatcher starts the configuration watcher. A watcher that
// cannot start is logged and the process keeps its initial routes.
func startConfigWatcher(app *application, configPath string) *config.Watcher {
	logger := app.logger
	watcher, err := config.NewWatcher(configPath, func(newCfg *config.Config) {
		logger.Info("configuration changed, reloading")
		if reloadErr := reloadRoutes(app, newCfg); reloadErr != nil {
			logger.Error("failed to reload configuration", observability.Error(reloadErr))
		}
	},
		config.WithLogger(logger),
		config.WithErrorCallback(func(err error) {
			logger.Error("configuration rejected", observability.Error(err))
		}),
	)
	if err != nil {
		logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(context.Background()); err != nil {
		logger.Warn("failed to start config watcher", observability.Error(err))
		return nil
	}

	return watcher
}
