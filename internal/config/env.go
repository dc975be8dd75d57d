// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Environment keys. Every key is prefixed with TRANSCODING_.
const (
	EnvLogLevel             = "TRANSCODING_LOG_LEVEL"
	EnvLogService           = "TRANSCODING_LOG_SERVICE"
	EnvAPIListen            = "TRANSCODING_API_LISTEN"
	EnvAPIRateLimit         = "TRANSCODING_API_RATE_LIMIT"
	EnvEngineKind           = "TRANSCODING_ENGINE_KIND"
	EnvFFmpegBin            = "TRANSCODING_FFMPEG_BIN"
	EnvFFmpegKillTimeout    = "TRANSCODING_FFMPEG_KILL_TIMEOUT"
	EnvFFmpegStartTimeout   = "TRANSCODING_FFMPEG_START_TIMEOUT"
	EnvFFmpegStallTimeout   = "TRANSCODING_FFMPEG_STALL_TIMEOUT"
	EnvProgressInterval     = "TRANSCODING_PROGRESS_INTERVAL"
	EnvResourcePoll         = "TRANSCODING_RESOURCE_POLL_INTERVAL"
	EnvResourceMinMemoryMB  = "TRANSCODING_RESOURCE_MIN_MEMORY_MB"
	EnvResourceMaxCPU       = "TRANSCODING_RESOURCE_MAX_CPU_PERCENT"
	EnvHistoryPath          = "TRANSCODING_HISTORY_PATH"
	EnvTelemetryEnabled     = "TRANSCODING_TELEMETRY_ENABLED"
	EnvTelemetryExporter    = "TRANSCODING_TELEMETRY_EXPORTER"
	EnvTelemetryEndpoint    = "TRANSCODING_TELEMETRY_ENDPOINT"
	EnvTelemetrySampleRatio = "TRANSCODING_TELEMETRY_SAMPLING_RATE"
)

// lookupFunc abstracts os.LookupEnv for tests.
type lookupFunc func(key string) (string, bool)

// envReader reads typed values and logs where each one came from. Invalid
// values fall back to the current value with a warning.
type envReader struct {
	lookup   lookupFunc
	logger   zerolog.Logger
	consumed map[string]struct{}
}

func newEnvReader(lookup lookupFunc, logger zerolog.Logger) *envReader {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &envReader{lookup: lookup, logger: logger, consumed: make(map[string]struct{})}
}

func readEnv[T any](r *envReader, key string, cur T, parse func(string) (T, error)) T {
	r.consumed[key] = struct{}{}
	v, ok := r.lookup(key)
	if !ok || v == "" {
		return cur
	}
	parsed, err := parse(v)
	if err != nil {
		r.logger.Warn().
			Str("key", key).
			Str("value", v).
			Str("default", fmt.Sprint(cur)).
			Msg("invalid value in environment variable, keeping current value")
		return cur
	}
	r.logger.Debug().
		Str("key", key).
		Str("value", v).
		Str("source", "environment").
		Msg("using environment variable")
	return parsed
}

func (r *envReader) str(key, cur string) string {
	return readEnv(r, key, cur, func(s string) (string, error) { return s, nil })
}

func (r *envReader) integer(key string, cur int) int {
	return readEnv(r, key, cur, strconv.Atoi)
}

func (r *envReader) uint64(key string, cur uint64) uint64 {
	return readEnv(r, key, cur, func(s string) (uint64, error) { return strconv.ParseUint(s, 10, 64) })
}

func (r *envReader) float(key string, cur float64) float64 {
	return readEnv(r, key, cur, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func (r *envReader) duration(key string, cur time.Duration) time.Duration {
	return readEnv(r, key, cur, time.ParseDuration)
}

// boolean accepts true/false, 1/0 and yes/no in any case.
func (r *envReader) boolean(key string, cur bool) bool {
	return readEnv(r, key, cur, func(s string) (bool, error) {
		switch strings.ToLower(s) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
		return false, fmt.Errorf("invalid boolean %q", s)
	})
}

// apply overrides cfg from the environment.
func (r *envReader) apply(cfg *AppConfig) {
	cfg.LogLevel = r.str(EnvLogLevel, cfg.LogLevel)
	cfg.LogService = r.str(EnvLogService, cfg.LogService)

	cfg.API.ListenAddr = r.str(EnvAPIListen, cfg.API.ListenAddr)
	cfg.API.RateLimit = r.integer(EnvAPIRateLimit, cfg.API.RateLimit)

	cfg.Engine.Kind = r.str(EnvEngineKind, cfg.Engine.Kind)
	cfg.Engine.FFmpegBin = r.str(EnvFFmpegBin, cfg.Engine.FFmpegBin)
	cfg.Engine.KillTimeout = r.duration(EnvFFmpegKillTimeout, cfg.Engine.KillTimeout)
	cfg.Engine.StartTimeout = r.duration(EnvFFmpegStartTimeout, cfg.Engine.StartTimeout)
	cfg.Engine.StallTimeout = r.duration(EnvFFmpegStallTimeout, cfg.Engine.StallTimeout)
	cfg.Engine.ProgressInterval = r.duration(EnvProgressInterval, cfg.Engine.ProgressInterval)

	cfg.Resource.PollInterval = r.duration(EnvResourcePoll, cfg.Resource.PollInterval)
	cfg.Resource.MinAvailableMemoryMB = r.uint64(EnvResourceMinMemoryMB, cfg.Resource.MinAvailableMemoryMB)
	cfg.Resource.MaxCPUPercent = r.float(EnvResourceMaxCPU, cfg.Resource.MaxCPUPercent)

	cfg.History.Path = r.str(EnvHistoryPath, cfg.History.Path)

	cfg.Telemetry.Enabled = r.boolean(EnvTelemetryEnabled, cfg.Telemetry.Enabled)
	cfg.Telemetry.ExporterType = r.str(EnvTelemetryExporter, cfg.Telemetry.ExporterType)
	cfg.Telemetry.Endpoint = r.str(EnvTelemetryEndpoint, cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = r.float(EnvTelemetrySampleRatio, cfg.Telemetry.SamplingRate)
}
