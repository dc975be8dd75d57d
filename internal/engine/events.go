// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package engine

import (
	"github.com/ManuGH/mediatranscoding/internal/domain/session/model"
	"github.com/ManuGH/mediatranscoding/internal/log"
)

type eventKind int

const (
	eventStarted eventKind = iota
	eventPaused
	eventResumed
	eventProgress
	eventFinish
	eventError
	eventResourceLost
	eventResourceAvailable
	eventShutdown
)

func (k eventKind) String() string {
	switch k {
	case eventStarted:
		return "started"
	case eventPaused:
		return "paused"
	case eventResumed:
		return "resumed"
	case eventProgress:
		return "progress"
	case eventFinish:
		return "finish"
	case eventError:
		return "error"
	case eventResourceLost:
		return "resource_lost"
	case eventResourceAvailable:
		return "resource_available"
	default:
		return "shutdown"
	}
}

type event struct {
	kind     eventKind
	key      model.SessionKey
	progress int32
	code     model.ErrorCode
}

// emit queues ev for the dispatcher. Callers hold d.mu so that events of one
// session keep the order of the commands that produced them.
func (d *Driver) emit(ev event) {
	d.events.Push(ev)
}

func (d *Driver) dispatch() {
	defer close(d.dispatcherDone)
	for {
		ev := d.events.Pop()
		if ev.kind == eventShutdown {
			return
		}

		d.mu.Lock()
		cb := d.cb
		d.mu.Unlock()

		if cb == nil {
			d.logger.Debug().Stringer(log.FieldEvent, ev.kind).Msg("no callback, dropping engine event")
			eventsTotal.WithLabelValues(ev.kind.String(), "dropped").Inc()
			continue
		}
		deliver(cb, ev)
		eventsTotal.WithLabelValues(ev.kind.String(), "delivered").Inc()
	}
}

func deliver(cb Callback, ev event) {
	c, s := ev.key.Client, ev.key.Session
	switch ev.kind {
	case eventStarted:
		cb.OnStarted(c, s)
	case eventPaused:
		cb.OnPaused(c, s)
	case eventResumed:
		cb.OnResumed(c, s)
	case eventProgress:
		cb.OnProgressUpdate(c, s, ev.progress)
	case eventFinish:
		cb.OnFinish(c, s)
	case eventError:
		cb.OnError(c, s, ev.code)
	case eventResourceLost:
		cb.OnResourceLost()
	case eventResourceAvailable:
		cb.OnResourceAvailable()
	}
}
