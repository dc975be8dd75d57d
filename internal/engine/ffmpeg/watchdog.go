// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ffmpeg

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrStalled is returned by Watchdog.Run when ffmpeg stops making progress.
var ErrStalled = errors.New("ffmpeg made no progress")

type State int

const (
	StateStarting State = iota
	StateRunning
	StateStalled
	StateTimedOut
	StateCompleted
)

type clock interface {
	Now() time.Time
	NewTicker(d time.Duration) ticker
}

type ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

func (realClock) Now() time.Time                   { return time.Now() }
func (realClock) NewTicker(d time.Duration) ticker { return &realTicker{time.NewTicker(d)} }

type realTicker struct {
	*time.Ticker
}

func (rt *realTicker) C() <-chan time.Time { return rt.Ticker.C }

// Watchdog follows the ffmpeg -progress stream. It converts output time into
// a completion percentage and enforces start and stall timeouts. Time spent
// suspended does not count towards either timeout.
type Watchdog struct {
	mu sync.Mutex

	startTimeout time.Duration
	stallTimeout time.Duration
	tick         time.Duration

	durationUs    int64
	lastOutTimeUs int64
	lastTotalSize int64
	lastHeartbeat time.Time

	state       State
	hasProgress bool
	suspended   bool

	cancel     context.CancelFunc
	onProgress func(percent int32)
	logger     zerolog.Logger

	clock clock
}

// NewWatchdog creates a watchdog with the given timeouts.
func NewWatchdog(startTimeout, stallTimeout time.Duration, logger zerolog.Logger) *Watchdog {
	tick := time.Second
	if q := min(startTimeout, stallTimeout) / 4; q > 0 && q < tick {
		tick = q
	}
	return &Watchdog{
		startTimeout: startTimeout,
		stallTimeout: stallTimeout,
		tick:         tick,
		logger:       logger,
		clock:        realClock{},
	}
}

// OnProgress registers fn to receive completion percentages. fn runs on the
// goroutine calling ParseLine.
func (w *Watchdog) OnProgress(fn func(percent int32)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onProgress = fn
}

// SetDuration sets the input duration used to compute percentages.
func (w *Watchdog) SetDuration(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.durationUs == 0 && d > 0 {
		w.durationUs = d.Microseconds()
	}
}

// Run checks the timeouts until ctx is done or ffmpeg reports the end of its
// progress stream. It returns ErrStalled on timeout.
func (w *Watchdog) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w.mu.Lock()
	if w.state == StateCompleted {
		w.mu.Unlock()
		return nil
	}
	w.cancel = cancel
	w.lastHeartbeat = w.clock.Now()
	w.mu.Unlock()

	t := w.clock.NewTicker(w.tick)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C():
			if err := w.check(); err != nil {
				return err
			}
		}
	}
}

// ParseLine processes a line from the ffmpeg -progress pipe.
func (w *Watchdog) ParseLine(line string) {
	key, val, ok := strings.Cut(line, "=")
	if !ok || strings.Contains(val, "=") {
		return
	}
	key = strings.TrimSpace(key)
	val = strings.TrimSpace(val)

	w.mu.Lock()
	var report func(int32)
	var percent int32

	switch key {
	// ffmpeg reports microseconds under both keys.
	case "out_time_us", "out_time_ms":
		us, err := strconv.ParseInt(val, 10, 64)
		if err == nil && us > w.lastOutTimeUs {
			w.lastOutTimeUs = us
			w.recordHeartbeat()
			if w.durationUs > 0 && w.onProgress != nil {
				report = w.onProgress
				percent = int32(min(us*100/w.durationUs, 99))
			}
		}
	case "total_size":
		size, err := strconv.ParseInt(val, 10, 64)
		if err == nil && size > w.lastTotalSize {
			w.lastTotalSize = size
			w.recordHeartbeat()
		}
	case "progress":
		if val == "end" {
			w.state = StateCompleted
			if w.cancel != nil {
				w.cancel()
			}
		}
	}
	w.mu.Unlock()

	if report != nil {
		report(percent)
	}
}

func (w *Watchdog) recordHeartbeat() {
	w.lastHeartbeat = w.clock.Now()
	if !w.hasProgress && (w.lastOutTimeUs > 0 || w.lastTotalSize > 0) {
		w.hasProgress = true
		w.state = StateRunning
		w.logger.Debug().Msg("watchdog: meaningful progress detected")
	}
}

// Suspend stops the timeouts while the process is paused.
func (w *Watchdog) Suspend() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.suspended = true
}

// Resume restarts the timeouts from now.
func (w *Watchdog) Resume() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.suspended = false
	w.lastHeartbeat = w.clock.Now()
}

func (w *Watchdog) check() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.suspended {
		return nil
	}
	elapsed := w.clock.Now().Sub(w.lastHeartbeat)

	switch w.state {
	case StateStarting:
		if elapsed > w.startTimeout {
			w.state = StateTimedOut
			return ErrStalled
		}
	case StateRunning:
		if elapsed > w.stallTimeout {
			w.state = StateStalled
			return ErrStalled
		}
	}
	return nil
}

// State returns the current watchdog state.
func (w *Watchdog) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}
