// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ManuGH/mediatranscoding/internal/config"
	"github.com/ManuGH/mediatranscoding/internal/daemon"
	"github.com/ManuGH/mediatranscoding/internal/log"
	"github.com/ManuGH/mediatranscoding/internal/version"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		console    bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the transcoding service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, configPath, console)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config file (YAML)")
	cmd.Flags().BoolVar(&console, "console", false, "human readable log output")
	return cmd
}

func serve(ctx context.Context, configPath string, console bool) error {
	// Safe defaults until the config is loaded.
	log.Configure(log.Config{Level: "info", Service: "transcodingd", Version: version.Version, Console: console})
	logger := log.WithComponent("daemon")

	loader := config.NewLoader(configPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log.Configure(log.Config{Level: cfg.LogLevel, Service: cfg.LogService, Version: cfg.Version, Console: console})

	source := "env+defaults"
	if configPath != "" {
		source = "file"
	}
	logger.Info().
		Str(log.FieldEvent, "config.loaded").
		Str("source", source).
		Str(log.FieldPath, configPath).
		Msg("loaded configuration")

	app, err := daemon.New(ctx, config.NewHolder(cfg, loader))
	if err != nil {
		return err
	}
	logger.Info().
		Str(log.FieldEvent, "daemon.start").
		Str("version", version.String()).
		Str("listen", cfg.API.ListenAddr).
		Msg("starting transcodingd")
	return app.Run(ctx)
}
