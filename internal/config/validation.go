// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"strings"
	"time"

	"github.com/ManuGH/mediatranscoding/internal/validate"
)

// Validate checks cfg and reports every invalid field at once.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.LogLevel("LogLevel", cfg.LogLevel)

	v.ListenAddr("API.ListenAddr", cfg.API.ListenAddr)
	v.NonNegative("API.RateLimit", cfg.API.RateLimit)
	v.MinDuration("API.EventLogIdle", cfg.API.EventLogIdle, time.Minute)

	v.OneOf("Engine.Kind", cfg.Engine.Kind, []string{EngineFFmpeg})
	if cfg.Engine.Kind == EngineFFmpeg {
		v.NotEmpty("Engine.FFmpegBin", cfg.Engine.FFmpegBin)
		v.MinDuration("Engine.KillTimeout", cfg.Engine.KillTimeout, 100*time.Millisecond)
		v.MinDuration("Engine.StartTimeout", cfg.Engine.StartTimeout, time.Second)
		v.MinDuration("Engine.StallTimeout", cfg.Engine.StallTimeout, time.Second)
	}
	v.MinDuration("Engine.ProgressInterval", cfg.Engine.ProgressInterval, 0)

	v.MinDuration("Resource.PollInterval", cfg.Resource.PollInterval, 100*time.Millisecond)
	v.FloatRange("Resource.MaxCPUPercent", cfg.Resource.MaxCPUPercent, 0, 100)
	v.Range("Resource.LostAfter", cfg.Resource.LostAfter, 1, 100)
	v.Range("Resource.AvailableAfter", cfg.Resource.AvailableAfter, 1, 100)

	v.FilePath("History.Path", cfg.History.Path)

	if cfg.Telemetry.Enabled {
		v.OneOf("Telemetry.ExporterType", cfg.Telemetry.ExporterType, []string{"grpc", "http"})
		v.NotEmpty("Telemetry.Endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("Telemetry.SamplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	for uid, name := range cfg.Packages {
		if strings.TrimSpace(name) == "" {
			v.AddError("Packages", "package name cannot be empty", uid)
		}
	}

	return v.Err()
}
