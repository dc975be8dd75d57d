// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ffmpeg

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockClock struct {
	mu           sync.Mutex
	now          time.Time
	latestTicker *mockTicker
}

func (m *mockClock) Now() time.Time { m.mu.Lock(); defer m.mu.Unlock(); return m.now }
func (m *mockClock) NewTicker(d time.Duration) ticker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latestTicker = &mockTicker{c: make(chan time.Time)}
	return m.latestTicker
}

func (m *mockClock) advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

func (m *mockClock) ticker(t *testing.T) *mockTicker {
	t.Helper()
	var tk *mockTicker
	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		tk = m.latestTicker
		return tk != nil
	}, time.Second, time.Millisecond)
	return tk
}

type mockTicker struct {
	c chan time.Time
}

func (m *mockTicker) C() <-chan time.Time { return m.c }
func (m *mockTicker) Stop()               {}

func startWatchdog(t *testing.T, w *Watchdog) (*mockClock, <-chan error, context.CancelFunc) {
	t.Helper()
	clock := &mockClock{now: time.Now()}
	w.clock = clock

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	clock.ticker(t)
	return clock, errCh, cancel
}

func TestWatchdog_StartTimeout(t *testing.T) {
	w := NewWatchdog(2*time.Second, 5*time.Second, zerolog.Nop())
	clock, errCh, _ := startWatchdog(t, w)

	clock.advance(3 * time.Second)
	clock.ticker(t).c <- clock.Now()

	assert.ErrorIs(t, <-errCh, ErrStalled)
	assert.Equal(t, StateTimedOut, w.State())
}

func TestWatchdog_StallTimeout(t *testing.T) {
	w := NewWatchdog(2*time.Second, 5*time.Second, zerolog.Nop())
	clock, errCh, _ := startWatchdog(t, w)

	w.ParseLine("out_time_us=100")
	assert.Equal(t, StateRunning, w.State())

	clock.advance(6 * time.Second)
	clock.ticker(t).c <- clock.Now()

	assert.ErrorIs(t, <-errCh, ErrStalled)
	assert.Equal(t, StateStalled, w.State())
}

func TestWatchdog_SuspendedDoesNotStall(t *testing.T) {
	w := NewWatchdog(2*time.Second, 5*time.Second, zerolog.Nop())
	clock, errCh, cancel := startWatchdog(t, w)
	tk := clock.ticker(t)

	w.Suspend()
	clock.advance(time.Hour)
	tk.c <- clock.Now()

	w.Resume()
	clock.advance(time.Second)
	tk.c <- clock.Now()

	cancel()
	assert.NoError(t, <-errCh)
	assert.Equal(t, StateStarting, w.State())
}

func TestWatchdog_EndOfProgressStopsRun(t *testing.T) {
	w := NewWatchdog(2*time.Second, 5*time.Second, zerolog.Nop())
	_, errCh, _ := startWatchdog(t, w)

	w.ParseLine("progress=end")
	assert.NoError(t, <-errCh)
	assert.Equal(t, StateCompleted, w.State())
}

func TestWatchdog_MeaningfulProgress(t *testing.T) {
	w := NewWatchdog(2*time.Second, 5*time.Second, zerolog.Nop())

	w.ParseLine("frame=10")
	assert.Equal(t, StateStarting, w.State(), "frame= alone is not meaningful progress")

	w.ParseLine("out_time_us=0")
	assert.Equal(t, StateStarting, w.State(), "out_time_us=0 is not meaningful progress")

	w.ParseLine("total_size=123")
	assert.Equal(t, StateRunning, w.State(), "total_size > 0 is meaningful progress")
}

func TestWatchdog_ParserRobustness(t *testing.T) {
	w := NewWatchdog(2*time.Second, 5*time.Second, zerolog.Nop())

	w.ParseLine("out_time_ms=N/A")
	assert.Equal(t, int64(0), w.lastOutTimeUs)

	w.ParseLine("garbage")
	w.ParseLine("key=val=extra")

	w.ParseLine("total_size=100")
	assert.Equal(t, int64(100), w.lastTotalSize)
	w.ParseLine("total_size=50")
	assert.Equal(t, int64(100), w.lastTotalSize, "should not record non-monotonic size")
}

func TestWatchdog_Percent(t *testing.T) {
	w := NewWatchdog(2*time.Second, 5*time.Second, zerolog.Nop())
	var got []int32
	w.OnProgress(func(p int32) { got = append(got, p) })

	w.ParseLine("out_time_us=1000000")
	w.SetDuration(10 * time.Second)
	w.SetDuration(time.Second)
	w.ParseLine("out_time_us=2500000")
	w.ParseLine("out_time_us=2500000")
	w.ParseLine("out_time_ms=12000000")

	assert.Equal(t, []int32{25, 99}, got)
}

func TestParseDuration(t *testing.T) {
	d, ok := parseDuration("  Duration: 01:02:03.50, start: 0.000000, bitrate: 1411 kb/s")
	require.True(t, ok)
	assert.Equal(t, time.Hour+2*time.Minute+3500*time.Millisecond, d)

	_, ok = parseDuration("Stream #0:0: Video: h264")
	assert.False(t, ok)
}
