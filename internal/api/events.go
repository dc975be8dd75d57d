// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/ManuGH/mediatranscoding/internal/domain/session/model"
	"github.com/ManuGH/mediatranscoding/internal/domain/session/ports"
)

const (
	// DefaultEventLogSize is the per-client event capacity.
	DefaultEventLogSize = 256
	// DefaultEventLogIdle is how long a client log survives without events
	// or reads.
	DefaultEventLogIdle = time.Hour
)

// EventType names a client notification.
type EventType string

const (
	EventStarted  EventType = "started"
	EventPaused   EventType = "paused"
	EventResumed  EventType = "resumed"
	EventProgress EventType = "progress"
	EventFinished EventType = "finished"
	EventFailed   EventType = "failed"
)

// Event is one recorded client notification.
type Event struct {
	Seq      uint64          `json:"seq"`
	Time     time.Time       `json:"time"`
	Session  model.SessionID `json:"sessionId"`
	Type     EventType       `json:"type"`
	Progress int32           `json:"progress,omitempty"`
	Error    model.ErrorCode `json:"error,omitempty"`
	Result   *model.Result   `json:"result,omitempty"`
}

var _ ports.ClientCallback = (*EventLog)(nil)

// EventLog is a bounded ring of notifications for one client. It is the
// client callback for sessions submitted over HTTP. Methods never block.
type EventLog struct {
	mu     sync.Mutex
	events []Event
	next   int
	full   bool
	seq    uint64
	now    func() time.Time
	touch  func(*EventLog)
}

func newEventLog(size int) *EventLog {
	return &EventLog{events: make([]Event, size), now: time.Now}
}

func (l *EventLog) add(ev Event) {
	if l.touch != nil {
		l.touch(l)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	ev.Seq = l.seq
	ev.Time = l.now()
	l.events[l.next] = ev
	l.next = (l.next + 1) % len(l.events)
	if l.next == 0 {
		l.full = true
	}
}

// Since returns the retained events with a sequence number above after,
// oldest first.
func (l *EventLog) Since(after uint64) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	var ordered []Event
	if l.full {
		ordered = append(ordered, l.events[l.next:]...)
	}
	ordered = append(ordered, l.events[:l.next]...)

	out := make([]Event, 0, len(ordered))
	for _, ev := range ordered {
		if ev.Seq > after {
			out = append(out, ev)
		}
	}
	return out
}

func (l *EventLog) OnTranscodingStarted(s model.SessionID) {
	l.add(Event{Session: s, Type: EventStarted})
}

func (l *EventLog) OnTranscodingPaused(s model.SessionID) {
	l.add(Event{Session: s, Type: EventPaused})
}

func (l *EventLog) OnTranscodingResumed(s model.SessionID) {
	l.add(Event{Session: s, Type: EventResumed})
}

func (l *EventLog) OnProgressUpdate(s model.SessionID, progress int32) {
	l.add(Event{Session: s, Type: EventProgress, Progress: progress})
}

func (l *EventLog) OnTranscodingFinished(s model.SessionID, result model.Result) {
	l.add(Event{Session: s, Type: EventFinished, Progress: 100, Result: &result})
}

func (l *EventLog) OnTranscodingFailed(s model.SessionID, code model.ErrorCode) {
	l.add(Event{Session: s, Type: EventFailed, Error: code})
}

// EventLogs holds one EventLog per client. A log that sees neither events
// nor reads for the idle period is dropped; a later event from a session
// still holding it puts it back.
type EventLogs struct {
	size int
	idle time.Duration

	mu   sync.Mutex
	logs *cache.Cache
}

// NewEventLogs creates an empty registry. Non-positive arguments select
// DefaultEventLogSize and DefaultEventLogIdle.
func NewEventLogs(size int, idle time.Duration) *EventLogs {
	if size <= 0 {
		size = DefaultEventLogSize
	}
	if idle <= 0 {
		idle = DefaultEventLogIdle
	}
	return &EventLogs{size: size, idle: idle, logs: cache.New(idle, idle)}
}

func clientKey(client model.ClientID) string {
	return strconv.FormatInt(int64(client), 10)
}

// For returns the log of client, creating it on first use.
func (e *EventLogs) For(client model.ClientID) *EventLog {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := clientKey(client)
	if v, ok := e.logs.Get(key); ok {
		l := v.(*EventLog)
		e.logs.SetDefault(key, l)
		return l
	}
	l := newEventLog(e.size)
	l.touch = func(l *EventLog) { e.keep(key, l) }
	e.logs.SetDefault(key, l)
	return l
}

// keep refreshes the idle deadline of l, re-adding it if it expired and no
// newer log took its place.
func (e *EventLogs) keep(key string, l *EventLog) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v, ok := e.logs.Get(key); ok && v.(*EventLog) != l {
		return
	}
	e.logs.SetDefault(key, l)
}

// Lookup returns the log of client if one exists.
func (e *EventLogs) Lookup(client model.ClientID) (*EventLog, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := clientKey(client)
	v, ok := e.logs.Get(key)
	if !ok {
		return nil, false
	}
	e.logs.SetDefault(key, v)
	return v.(*EventLog), true
}

// Len returns the number of retained client logs.
func (e *EventLogs) Len() int {
	return e.logs.ItemCount()
}
