// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads the daemon configuration with the precedence
// environment > file > defaults, validates it and reloads it on change.
package config

import (
	"maps"
	"time"

	"github.com/ManuGH/mediatranscoding/internal/domain/session/model"
)

// Engine kinds.
const (
	EngineFFmpeg = "ffmpeg"
)

// AppConfig is the effective daemon configuration.
type AppConfig struct {
	Version    string `yaml:"-"`
	LogLevel   string `yaml:"logLevel"`
	LogService string `yaml:"logService"`

	API       APIConfig       `yaml:"api"`
	Engine    EngineConfig    `yaml:"engine"`
	Resource  ResourceConfig  `yaml:"resource"`
	History   HistoryConfig   `yaml:"history"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Packages maps uids to application package names for session dumps.
	Packages map[model.UID]string `yaml:"packages"`
}

// APIConfig configures the operator HTTP surface.
type APIConfig struct {
	ListenAddr string `yaml:"listenAddr"`
	// RateLimit is the number of mutating requests per minute per client IP.
	// Zero disables rate limiting.
	RateLimit int `yaml:"rateLimit"`
	// EventLogIdle drops a client's event log after this long without
	// events or reads.
	EventLogIdle time.Duration `yaml:"eventLogIdle"`
}

// EngineConfig configures the transcoder engine.
type EngineConfig struct {
	Kind             string        `yaml:"kind"`
	FFmpegBin        string        `yaml:"ffmpegBin"`
	KillTimeout      time.Duration `yaml:"killTimeout"`
	StartTimeout     time.Duration `yaml:"startTimeout"`
	StallTimeout     time.Duration `yaml:"stallTimeout"`
	ProgressInterval time.Duration `yaml:"progressInterval"`
}

// ResourceConfig configures the host pressure monitor.
type ResourceConfig struct {
	PollInterval         time.Duration `yaml:"pollInterval"`
	MinAvailableMemoryMB uint64        `yaml:"minAvailableMemoryMB"`
	MaxCPUPercent        float64       `yaml:"maxCPUPercent"`
	LostAfter            int           `yaml:"lostAfter"`
	AvailableAfter       int           `yaml:"availableAfter"`
}

// HistoryConfig configures the outcome history. An empty path disables it.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Environment  string  `yaml:"environment"`
	ExporterType string  `yaml:"exporterType"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel:   "info",
		LogService: "transcodingd",
		API: APIConfig{
			ListenAddr:   ":8089",
			RateLimit:    120,
			EventLogIdle: time.Hour,
		},
		Engine: EngineConfig{
			Kind:             EngineFFmpeg,
			FFmpegBin:        "ffmpeg",
			KillTimeout:      5 * time.Second,
			StartTimeout:     30 * time.Second,
			StallTimeout:     time.Minute,
			ProgressInterval: 500 * time.Millisecond,
		},
		Resource: ResourceConfig{
			PollInterval:         5 * time.Second,
			MinAvailableMemoryMB: 256,
			MaxCPUPercent:        95,
			LostAfter:            3,
			AvailableAfter:       3,
		},
		Telemetry: TelemetryConfig{
			ExporterType: "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
		Packages: map[model.UID]string{},
	}
}

// Clone returns a deep copy of c.
func (c AppConfig) Clone() AppConfig {
	out := c
	out.Packages = maps.Clone(c.Packages)
	return out
}

// PackageName implements ports.PackageNameResolver.
func (c AppConfig) PackageName(uid model.UID) (string, bool) {
	name, ok := c.Packages[uid]
	return name, ok
}
