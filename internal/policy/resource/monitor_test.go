// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package resource

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type recordingCallback struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingCallback) OnResourceLost()      { r.add("lost") }
func (r *recordingCallback) OnResourceAvailable() { r.add("available") }

func (r *recordingCallback) add(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingCallback) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

var (
	healthy  = Sample{AvailableMemoryMB: 4096, CPUPercent: 20}
	lowMem   = Sample{AvailableMemoryMB: 100, CPUPercent: 20}
	busyCPU  = Sample{AvailableMemoryMB: 4096, CPUPercent: 99}
	defaults = Thresholds{MinAvailableMemoryMB: 512, MaxCPUPercent: 90}
)

func newMonitor(t *testing.T) (*Monitor, *recordingCallback) {
	t.Helper()
	m := NewMonitor(defaults, WithHysteresis(2, 2))
	cb := &recordingCallback{}
	m.SetCallback(cb)
	return m, cb
}

func TestThresholds_Exceeds(t *testing.T) {
	assert.Equal(t, "", defaults.Exceeds(healthy))
	assert.Equal(t, "memory", defaults.Exceeds(lowMem))
	assert.Equal(t, "cpu", defaults.Exceeds(busyCPU))
	assert.Equal(t, "", Thresholds{}.Exceeds(lowMem))
}

func TestMonitor_PressureHysteresis(t *testing.T) {
	m, cb := newMonitor(t)

	m.Observe(lowMem)
	assert.Empty(t, cb.take())
	m.Observe(healthy)
	m.Observe(busyCPU)
	assert.Empty(t, cb.take(), "pressure streak was broken")

	m.Observe(busyCPU)
	assert.Equal(t, []string{"lost"}, cb.take())
	assert.Equal(t, 1.0, testutil.ToFloat64(lostGauge))

	m.Observe(lowMem)
	m.Observe(healthy)
	assert.Empty(t, cb.take())
	m.Observe(healthy)
	assert.Equal(t, []string{"available"}, cb.take())

	lost, forced, last := m.Status()
	assert.False(t, lost)
	assert.False(t, forced)
	assert.Equal(t, healthy, last)
}

func TestMonitor_ForcedOverride(t *testing.T) {
	m, cb := newMonitor(t)

	m.ForceLost()
	m.ForceLost()
	assert.Equal(t, []string{"lost"}, cb.take())

	// Pressure while forced does not add transitions.
	m.Observe(lowMem)
	m.Observe(lowMem)
	assert.Empty(t, cb.take())

	m.ClearForced()
	assert.Empty(t, cb.take(), "host pressure still holds resources")

	m.Observe(healthy)
	m.Observe(healthy)
	assert.Equal(t, []string{"available"}, cb.take())
}

func TestMonitor_NoCallback(t *testing.T) {
	m := NewMonitor(defaults, WithHysteresis(1, 1))
	require.NotPanics(t, func() {
		m.Observe(lowMem)
		m.Observe(healthy)
	})
}

func TestMonitor_SetThresholds(t *testing.T) {
	m, cb := newMonitor(t)
	m.SetThresholds(Thresholds{MaxCPUPercent: 10})
	m.Observe(healthy)
	m.Observe(healthy)
	assert.Equal(t, []string{"lost"}, cb.take())
}

func TestRunSampler(t *testing.T) {
	defer goleak.VerifyNone(t)

	m, cb := newMonitor(t)

	var calls atomic.Int32
	provider := func(context.Context) (Sample, error) {
		n := calls.Add(1)
		switch {
		case n == 1:
			return Sample{}, errors.New("probe failed")
		case n <= 3:
			return lowMem, nil
		default:
			return healthy, nil
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunSampler(ctx, m, 5*time.Millisecond, provider) }()

	require.Eventually(t, func() bool { return calls.Load() >= 6 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []string{"lost", "available"}, cb.take())
}
