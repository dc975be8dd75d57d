// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package daemon builds the transcoding service from configuration and owns
// its runtime lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/ManuGH/mediatranscoding/internal/api"
	"github.com/ManuGH/mediatranscoding/internal/config"
	"github.com/ManuGH/mediatranscoding/internal/domain/session/controller"
	"github.com/ManuGH/mediatranscoding/internal/engine"
	"github.com/ManuGH/mediatranscoding/internal/engine/ffmpeg"
	"github.com/ManuGH/mediatranscoding/internal/history"
	"github.com/ManuGH/mediatranscoding/internal/log"
	"github.com/ManuGH/mediatranscoding/internal/policy/resource"
	"github.com/ManuGH/mediatranscoding/internal/policy/uid"
	"github.com/ManuGH/mediatranscoding/internal/telemetry"
)

// Option customises how the daemon is assembled.
type Option func(*options)

type options struct {
	jobs     engine.JobFactory
	provider resource.Provider
}

// WithJobFactory replaces the configured engine's job factory.
func WithJobFactory(f engine.JobFactory) Option {
	return func(o *options) { o.jobs = f }
}

// WithSampleProvider replaces the host probe feeding the resource monitor.
func WithSampleProvider(p resource.Provider) Option {
	return func(o *options) { o.provider = p }
}

// App owns the long-lived components: the scheduler and its collaborators,
// the operator API and the background workers feeding them.
type App struct {
	logger zerolog.Logger
	holder *config.Holder

	telemetry  *telemetry.Provider
	history    *history.Store
	policy     *uid.Policy
	monitor    *resource.Monitor
	driver     *engine.Driver
	controller *controller.SessionController
	api        *api.Server

	provider     resource.Provider
	reloadSignal os.Signal
}

// New assembles the daemon from the holder's current configuration.
func New(ctx context.Context, holder *config.Holder, opts ...Option) (_ *App, err error) {
	if holder == nil {
		return nil, ErrMissingConfig
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg := holder.Get()
	a := &App{
		logger:       log.WithComponent("daemon"),
		holder:       holder,
		provider:     o.provider,
		reloadSignal: syscall.SIGHUP,
	}
	defer func() {
		if err != nil {
			_ = a.Shutdown(context.WithoutCancel(ctx))
		}
	}()

	a.telemetry, err = telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.ExporterType,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	if cfg.History.Path != "" {
		a.history, err = history.Open(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
	}

	jobs := o.jobs
	if jobs == nil {
		jobs, err = jobFactory(cfg.Engine)
		if err != nil {
			return nil, err
		}
	}

	a.policy = uid.New()
	a.monitor = resource.NewMonitor(thresholds(cfg.Resource),
		resource.WithHysteresis(cfg.Resource.LostAfter, cfg.Resource.AvailableAfter))
	a.driver = engine.New(jobs,
		engine.WithProgressInterval(cfg.Engine.ProgressInterval),
		engine.WithKind(cfg.Engine.Kind))

	ctrlOpts := []controller.Option{controller.WithPackageNames(holder)}
	if a.history != nil {
		ctrlOpts = append(ctrlOpts, controller.WithOutcomeRecorder(a.history))
	}
	a.controller = controller.New(a.driver, a.policy, ctrlOpts...)

	// Resource transitions reach the controller through the driver, which
	// pauses running jobs first.
	a.driver.SetCallback(a.controller)
	a.policy.SetCallback(a.controller)
	a.monitor.SetCallback(a.driver)

	deps := api.Deps{
		Sessions:   a.controller,
		Foreground: a.policy,
		Resources:  a.monitor,
	}
	if a.history != nil {
		deps.History = a.history
	}
	apiCfg := api.Config{
		ListenAddr:   cfg.API.ListenAddr,
		RateLimit:    cfg.API.RateLimit,
		Version:      cfg.Version,
		EventLogIdle: cfg.API.EventLogIdle,
	}
	if cfg.Telemetry.Enabled {
		apiCfg.TracingService = cfg.LogService
	}
	a.api = api.New(apiCfg, deps)

	a.logger.Info().
		Str(log.FieldEvent, "daemon.built").
		Str("engine", cfg.Engine.Kind).
		Bool("history", a.history != nil).
		Bool("telemetry", cfg.Telemetry.Enabled).
		Msg("transcoding service assembled")
	return a, nil
}

func jobFactory(cfg config.EngineConfig) (engine.JobFactory, error) {
	switch cfg.Kind {
	case config.EngineFFmpeg:
		return ffmpeg.NewFactory(ffmpeg.Config{
			Bin:          cfg.FFmpegBin,
			KillTimeout:  cfg.KillTimeout,
			StartTimeout: cfg.StartTimeout,
			StallTimeout: cfg.StallTimeout,
		}), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, cfg.Kind)
	}
}

func thresholds(cfg config.ResourceConfig) resource.Thresholds {
	return resource.Thresholds{
		MinAvailableMemoryMB: cfg.MinAvailableMemoryMB,
		MaxCPUPercent:        cfg.MaxCPUPercent,
	}
}

// Controller returns the session scheduler.
func (a *App) Controller() *controller.SessionController { return a.controller }

// API returns the operator HTTP server.
func (a *App) API() *api.Server { return a.api }

// Shutdown stops the engine and releases every component. It is safe on a
// partially built App.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.driver != nil {
		if err := a.driver.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close engine: %w", err))
		}
	}
	if a.policy != nil {
		a.policy.Close()
	}
	if a.history != nil {
		if err := a.history.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close history: %w", err))
		}
	}
	if a.telemetry != nil {
		if err := a.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
	}
	return errors.Join(errs...)
}
