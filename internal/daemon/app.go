// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"os"
	"os/signal"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/mediatranscoding/internal/config"
	"github.com/ManuGH/mediatranscoding/internal/log"
	"github.com/ManuGH/mediatranscoding/internal/policy/resource"
)

const shutdownTimeout = 15 * time.Second

// Run starts the background workers and the API and blocks until ctx is
// cancelled or one of them fails. Components are shut down before it
// returns.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	// The watcher is best-effort; the daemon runs without hot reload.
	g.Go(func() error {
		if err := a.holder.Watch(ctx); err != nil {
			a.logger.Warn().Err(err).Str(log.FieldEvent, "config.watcher_start_failed").Msg("failed to start config watcher")
		}
		return nil
	})

	applyCh := make(chan config.AppConfig, 1)
	a.holder.RegisterListener(applyCh)
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case cfg := <-applyCh:
				a.apply(cfg)
			}
		}
	})

	if a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str(log.FieldEvent, "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")
					if err := a.holder.Reload(ctx); err != nil {
						a.logger.Warn().Err(err).Str(log.FieldEvent, "config.reload_failed").Msg("config reload failed")
					}
				}
			}
		})
	}

	interval := a.holder.Get().Resource.PollInterval
	g.Go(func() error {
		return resource.RunSampler(ctx, a.monitor, interval, a.provider)
	})

	g.Go(func() error {
		return a.api.Run(ctx)
	})

	err := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if serr := a.Shutdown(shutdownCtx); serr != nil {
		a.logger.Error().Err(serr).Str(log.FieldEvent, "daemon.shutdown_failed").Msg("shutdown incomplete")
		if err == nil {
			err = serr
		}
	}
	a.logger.Info().Str(log.FieldEvent, "daemon.stopped").Msg("transcoding service stopped")
	return err
}

// apply pushes the reloadable parts of a new configuration into the running
// components. Package names are read through the holder on every dump.
func (a *App) apply(cfg config.AppConfig) {
	if !log.SetLevel(cfg.LogLevel) {
		a.logger.Warn().Str("level", cfg.LogLevel).Msg("ignoring invalid log level")
	}
	a.monitor.SetThresholds(thresholds(cfg.Resource))
	a.logger.Info().Str(log.FieldEvent, "config.applied").Msg("applied reloaded configuration")
}
