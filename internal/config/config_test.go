// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/mediatranscoding/internal/domain/session/model"
	"github.com/ManuGH/mediatranscoding/internal/validate"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func loaderWithEnv(path string, env map[string]string) *Loader {
	l := NewLoader(path, "test")
	l.lookup = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	return l
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loaderWithEnv("", nil).Load()
	require.NoError(t, err)

	want := Defaults()
	want.Version = "test"
	assert.Equal(t, want, cfg)
	require.NoError(t, Validate(cfg))
}

func TestLoad_Precedence(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
logLevel: debug
api:
  listenAddr: ":9000"
engine:
  ffmpegBin: /opt/ffmpeg
  killTimeout: 2s
resource:
  maxCPUPercent: 80
packages:
  1000: com.example.player
`)
	l := loaderWithEnv(path, map[string]string{
		EnvAPIListen:        "127.0.0.1:9100",
		EnvResourceMaxCPU:   "70.5",
		EnvTelemetryEnabled: "yes",
		EnvAPIRateLimit:     "not-a-number",
	})
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:9100", cfg.API.ListenAddr, "env beats file")
	assert.Equal(t, 120, cfg.API.RateLimit, "invalid env keeps default")
	assert.Equal(t, "/opt/ffmpeg", cfg.Engine.FFmpegBin)
	assert.Equal(t, 2*time.Second, cfg.Engine.KillTimeout)
	assert.Equal(t, 30*time.Second, cfg.Engine.StartTimeout, "default survives partial section")
	assert.InDelta(t, 70.5, cfg.Resource.MaxCPUPercent, 1e-9)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, map[model.UID]string{1000: "com.example.player"}, cfg.Packages)

	name, ok := cfg.PackageName(1000)
	assert.True(t, ok)
	assert.Equal(t, "com.example.player", name)

	assert.Contains(t, l.ConsumedEnvKeys, EnvHistoryPath)
}

func TestLoad_StrictFile(t *testing.T) {
	dir := t.TempDir()

	_, err := loaderWithEnv(writeFile(t, dir, "unknown.yaml", "engine:\n  threads: 4\n"), nil).Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownConfigField), "got %v", err)

	_, err = loaderWithEnv(writeFile(t, dir, "multi.yaml", "logLevel: info\n---\nlogLevel: debug\n"), nil).Load()
	require.ErrorContains(t, err, "multiple documents")

	_, err = loaderWithEnv(writeFile(t, dir, "config.json", "{}"), nil).Load()
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	cfg, err := loaderWithEnv(writeFile(t, dir, "empty.yaml", ""), nil).Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults().API, cfg.API)

	_, err = loaderWithEnv(filepath.Join(dir, "missing.yaml"), nil).Load()
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate_ReportsAllFields(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "chatty"
	cfg.API.ListenAddr = "nowhere"
	cfg.API.EventLogIdle = time.Second
	cfg.Engine.Kind = "gstreamer"
	cfg.Resource.MaxCPUPercent = 140
	cfg.History.Path = "../history.db"
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.ExporterType = "zipkin"
	cfg.Packages = map[model.UID]string{7: " "}

	err := Validate(cfg)
	var verr validate.ValidationError
	require.True(t, errors.As(err, &verr))

	fields := make([]string, 0, len(verr.Errors()))
	for _, e := range verr.Errors() {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{
		"LogLevel", "API.ListenAddr", "API.EventLogIdle", "Engine.Kind", "Resource.MaxCPUPercent",
		"History.Path", "Telemetry.ExporterType", "Packages",
	}, fields)
}

func TestHolder_Reload(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "logLevel: info\n")
	l := loaderWithEnv(path, nil)
	initial, err := l.Load()
	require.NoError(t, err)

	h := NewHolder(initial, l)
	updates := make(chan AppConfig, 1)
	h.RegisterListener(updates)

	writeFile(t, dir, "config.yaml", "logLevel: warn\npackages:\n  5: com.example.five\n")
	require.NoError(t, h.Reload(context.Background()))
	assert.Equal(t, "warn", h.Get().LogLevel)
	name, ok := h.PackageName(5)
	assert.True(t, ok)
	assert.Equal(t, "com.example.five", name)

	select {
	case got := <-updates:
		assert.Equal(t, "warn", got.LogLevel)
	default:
		t.Fatal("listener not notified")
	}

	writeFile(t, dir, "config.yaml", "logLevel: nope\n")
	require.Error(t, h.Reload(context.Background()))
	assert.Equal(t, "warn", h.Get().LogLevel, "invalid config is not applied")
}

func TestHolder_GetReturnsCopy(t *testing.T) {
	h := NewHolder(Defaults(), NewLoader("", ""))
	cfg := h.Get()
	cfg.Packages[1] = "mutated"
	_, ok := h.PackageName(1)
	assert.False(t, ok)
}

func TestHolder_WatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "logLevel: info\n")
	l := loaderWithEnv(path, nil)
	initial, err := l.Load()
	require.NoError(t, err)
	h := NewHolder(initial, l)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Watch(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "config.yaml", "logLevel: error\n")

	require.Eventually(t, func() bool { return h.Get().LogLevel == "error" }, 5*time.Second, 50*time.Millisecond)
}

func TestHolder_WatchWithoutFile(t *testing.T) {
	h := NewHolder(Defaults(), NewLoader("", ""))
	require.NoError(t, h.Watch(context.Background()))
}
