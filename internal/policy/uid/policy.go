// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package uid is the in-process application priority oracle. Applications
// report a process state per uid; the top uids are the monitored uids sharing
// the best state. Changes of the top set are delivered to the callback from
// the policy's own goroutine.
package uid

import (
	"maps"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ManuGH/mediatranscoding/internal/domain/session/model"
	"github.com/ManuGH/mediatranscoding/internal/domain/session/ports"
	"github.com/ManuGH/mediatranscoding/internal/log"
	"github.com/ManuGH/mediatranscoding/internal/media/queue"
)

// ProcState ranks an application; lower values are more important.
type ProcState int32

const (
	StateTop        ProcState = 2
	StateForeground ProcState = 4
	StateBackground ProcState = 10
	StateCached     ProcState = 16
	// StateUnknown never makes a uid top.
	StateUnknown ProcState = 1 << 30
)

var _ ports.UidPolicy = (*Policy)(nil)

type change struct {
	top      model.UIDSet
	shutdown bool
}

// Policy implements ports.UidPolicy.
type Policy struct {
	logger zerolog.Logger

	mu        sync.Mutex
	states    map[model.UID]ProcState
	monitored map[model.UID]struct{}
	top       model.UIDSet
	cb        ports.UidPolicyCallback
	closed    bool

	changes *queue.BlockingQueue[change]
	done    chan struct{}
}

// New starts the notification goroutine. Close stops it.
func New() *Policy {
	p := &Policy{
		logger:    log.WithComponent("uidpolicy"),
		states:    make(map[model.UID]ProcState),
		monitored: make(map[model.UID]struct{}),
		top:       model.NewUIDSet(),
		changes:   queue.New[change](),
		done:      make(chan struct{}),
	}
	go p.notify()
	return p
}

// SetCallback sets the receiver of top-set changes.
func (p *Policy) SetCallback(cb ports.UidPolicyCallback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cb = cb
}

// RegisterMonitorUid starts tracking uid for the top set.
func (p *Policy) RegisterMonitorUid(uid model.UID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.monitored[uid]; ok {
		return
	}
	p.monitored[uid] = struct{}{}
	monitoredGauge.Set(float64(len(p.monitored)))
	p.logger.Debug().Int32(log.FieldUID, int32(uid)).Msg("monitoring uid")
	p.recompute()
}

// UnregisterMonitorUid stops tracking uid.
func (p *Policy) UnregisterMonitorUid(uid model.UID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.monitored[uid]; !ok {
		return
	}
	delete(p.monitored, uid)
	monitoredGauge.Set(float64(len(p.monitored)))
	p.logger.Debug().Int32(log.FieldUID, int32(uid)).Msg("stopped monitoring uid")
	p.recompute()
}

// IsUidOnTop reports whether uid is monitored and in the top set.
func (p *Policy) IsUidOnTop(uid model.UID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.top.Has(uid)
}

// GetTopUids returns a copy of the top set.
func (p *Policy) GetTopUids() model.UIDSet {
	p.mu.Lock()
	defer p.mu.Unlock()
	return maps.Clone(p.top)
}

// SetState records the process state of uid. States of unmonitored uids are
// remembered and apply once the uid is registered.
func (p *Policy) SetState(uid model.UID, state ProcState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cur, ok := p.states[uid]; ok && cur == state {
		return
	}
	if state == StateUnknown {
		delete(p.states, uid)
	} else {
		p.states[uid] = state
	}
	p.recompute()
}

// SetForeground makes uids the only applications in the top state. Every
// other known uid drops to the background state.
func (p *Policy) SetForeground(uids ...model.UID) {
	fg := model.NewUIDSet(uids...)

	p.mu.Lock()
	defer p.mu.Unlock()
	for uid := range p.states {
		if !fg.Has(uid) {
			p.states[uid] = StateBackground
		}
	}
	for uid := range fg {
		p.states[uid] = StateTop
	}
	p.recompute()
}

// States returns a copy of the known process states.
func (p *Policy) States() map[model.UID]ProcState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return maps.Clone(p.states)
}

func (p *Policy) stateOf(uid model.UID) ProcState {
	if s, ok := p.states[uid]; ok {
		return s
	}
	return StateUnknown
}

// recompute updates the top set and queues a notification when it changed.
// Callers hold p.mu.
func (p *Policy) recompute() {
	best := StateUnknown
	for uid := range p.monitored {
		best = min(best, p.stateOf(uid))
	}

	top := model.NewUIDSet()
	if best != StateUnknown {
		for uid := range p.monitored {
			if p.stateOf(uid) == best {
				top[uid] = struct{}{}
			}
		}
	}

	if maps.Equal(top, p.top) {
		return
	}
	p.top = top
	topSizeGauge.Set(float64(len(top)))
	if p.closed || len(top) == 0 {
		return
	}
	p.logger.Debug().Str("uids", top.String()).Msg("top uids changed")
	p.changes.Push(change{top: maps.Clone(top)})
}

func (p *Policy) notify() {
	defer close(p.done)
	for {
		ch := p.changes.Pop()
		if ch.shutdown {
			return
		}

		p.mu.Lock()
		cb := p.cb
		p.mu.Unlock()

		if cb == nil {
			topChangesTotal.WithLabelValues("dropped").Inc()
			continue
		}
		cb.OnTopUidsChanged(ch.top)
		topChangesTotal.WithLabelValues("delivered").Inc()
	}
}

// Close delivers pending notifications and stops the notification goroutine.
func (p *Policy) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.changes.Push(change{shutdown: true})
	<-p.done
	p.changes.Abort()
}
