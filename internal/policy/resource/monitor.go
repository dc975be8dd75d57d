// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package resource is the transcoding resource oracle. Host pressure samples
// and an operator override decide whether transcoding resources are
// available; transitions are reported to a ports.ResourcePolicyCallback.
package resource

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/ManuGH/mediatranscoding/internal/domain/session/ports"
	"github.com/ManuGH/mediatranscoding/internal/log"
)

const (
	defaultLostAfter      = 3
	defaultAvailableAfter = 3
)

// Thresholds bound acceptable host pressure. Zero disables a check.
type Thresholds struct {
	MinAvailableMemoryMB uint64
	MaxCPUPercent        float64
}

// Sample is one host observation.
type Sample struct {
	AvailableMemoryMB uint64
	CPUPercent        float64
}

// Exceeds reports the first threshold s violates, or "".
func (t Thresholds) Exceeds(s Sample) string {
	switch {
	case t.MinAvailableMemoryMB > 0 && s.AvailableMemoryMB < t.MinAvailableMemoryMB:
		return "memory"
	case t.MaxCPUPercent > 0 && s.CPUPercent > t.MaxCPUPercent:
		return "cpu"
	default:
		return ""
	}
}

var _ ports.ResourcePolicy = (*Monitor)(nil)

// Monitor implements ports.ResourcePolicy. Resources are lost while the
// operator forces it or while host pressure persists for LostAfter
// consecutive samples; they return after AvailableAfter healthy samples.
type Monitor struct {
	logger zerolog.Logger

	// deliverMu serializes transitions with their callback so the callback
	// sees them in order. It is never held by the callback's callers.
	deliverMu sync.Mutex

	mu             sync.Mutex
	cb             ports.ResourcePolicyCallback
	thresholds     Thresholds
	lostAfter      int
	availableAfter int
	pressured      int
	healthy        int
	pressureLost   bool
	forcedLost     bool
	lost           bool
	last           Sample
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithHysteresis sets how many consecutive samples flip the pressure state.
func WithHysteresis(lostAfter, availableAfter int) Option {
	return func(m *Monitor) {
		if lostAfter > 0 {
			m.lostAfter = lostAfter
		}
		if availableAfter > 0 {
			m.availableAfter = availableAfter
		}
	}
}

// NewMonitor returns a monitor with resources available.
func NewMonitor(t Thresholds, opts ...Option) *Monitor {
	m := &Monitor{
		logger:         log.WithComponent("resource"),
		thresholds:     t,
		lostAfter:      defaultLostAfter,
		availableAfter: defaultAvailableAfter,
	}
	for _, opt := range opts {
		opt(m)
	}
	lostGauge.Set(0)
	return m
}

// SetCallback sets the transition receiver.
func (m *Monitor) SetCallback(cb ports.ResourcePolicyCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cb = cb
}

// SetThresholds replaces the pressure thresholds; the next sample applies them.
func (m *Monitor) SetThresholds(t Thresholds) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.thresholds = t
}

// Observe feeds one host sample.
func (m *Monitor) Observe(s Sample) {
	m.update(func() {
		m.last = s
		availableMemoryGauge.Set(float64(s.AvailableMemoryMB))
		cpuGauge.Set(s.CPUPercent)

		if reason := m.thresholds.Exceeds(s); reason != "" {
			m.healthy = 0
			m.pressured++
			if !m.pressureLost && m.pressured >= m.lostAfter {
				m.pressureLost = true
				m.logger.Warn().Str("reason", reason).
					Uint64("available_mb", s.AvailableMemoryMB).
					Float64("cpu_percent", s.CPUPercent).
					Msg("host under pressure")
				pressureTotal.WithLabelValues(reason).Inc()
			}
			return
		}
		m.pressured = 0
		m.healthy++
		if m.pressureLost && m.healthy >= m.availableAfter {
			m.pressureLost = false
			m.logger.Info().Msg("host pressure cleared")
		}
	})
}

// ForceLost marks resources lost regardless of host pressure.
func (m *Monitor) ForceLost() {
	m.update(func() { m.forcedLost = true })
}

// ClearForced removes the override; host pressure alone decides again.
func (m *Monitor) ClearForced() {
	m.update(func() { m.forcedLost = false })
}

// Status reports the effective state, the override and the last sample.
func (m *Monitor) Status() (lost, forced bool, last Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lost, m.forcedLost, m.last
}

func (m *Monitor) update(fn func()) {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	m.mu.Lock()
	fn()
	lost := m.forcedLost || m.pressureLost
	changed := lost != m.lost
	m.lost = lost
	cb := m.cb
	m.mu.Unlock()

	if !changed {
		return
	}
	if lost {
		lostGauge.Set(1)
	} else {
		lostGauge.Set(0)
	}
	transitionsTotal.WithLabelValues(transitionLabel(lost)).Inc()
	m.logger.Info().Bool("lost", lost).Msg("resource state changed")
	if cb == nil {
		return
	}
	if lost {
		cb.OnResourceLost()
	} else {
		cb.OnResourceAvailable()
	}
}

func transitionLabel(lost bool) string {
	if lost {
		return "lost"
	}
	return "available"
}
