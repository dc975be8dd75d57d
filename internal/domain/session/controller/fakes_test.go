package controller

import (
	"fmt"
	"sync"

	"github.com/ManuGH/mediatranscoding/internal/domain/session/model"
	"github.com/ManuGH/mediatranscoding/internal/domain/session/ports"
)

// recordingEngine records engine commands as "start(1,2)" style strings.
type recordingEngine struct {
	mu    sync.Mutex
	calls []string
}

func (e *recordingEngine) record(op string, key model.SessionKey) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, fmt.Sprintf("%s(%d,%d)", op, key.Client, key.Session))
}

func (e *recordingEngine) Start(key model.SessionKey, _ model.Request, _ ports.CallbackRef) {
	e.record("start", key)
}
func (e *recordingEngine) Pause(key model.SessionKey) { e.record("pause", key) }
func (e *recordingEngine) Resume(key model.SessionKey, _ model.Request, _ ports.CallbackRef) {
	e.record("resume", key)
}
func (e *recordingEngine) Stop(key model.SessionKey) { e.record("stop", key) }

// take returns and clears the recorded calls.
func (e *recordingEngine) take() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.calls
	e.calls = nil
	return out
}

type fakeUidPolicy struct {
	mu         sync.Mutex
	top        model.UIDSet
	registered map[model.UID]bool
	cb         ports.UidPolicyCallback
}

func newFakeUidPolicy(top ...model.UID) *fakeUidPolicy {
	return &fakeUidPolicy{top: model.NewUIDSet(top...), registered: make(map[model.UID]bool)}
}

func (p *fakeUidPolicy) RegisterMonitorUid(uid model.UID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered[uid] = true
}

func (p *fakeUidPolicy) UnregisterMonitorUid(uid model.UID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.registered, uid)
}

func (p *fakeUidPolicy) IsUidOnTop(uid model.UID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.top.Has(uid)
}

func (p *fakeUidPolicy) GetTopUids() model.UIDSet {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(model.UIDSet, len(p.top))
	for u := range p.top {
		out[u] = struct{}{}
	}
	return out
}

func (p *fakeUidPolicy) SetCallback(cb ports.UidPolicyCallback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cb = cb
}

func (p *fakeUidPolicy) setTop(uids ...model.UID) {
	p.mu.Lock()
	p.top = model.NewUIDSet(uids...)
	p.mu.Unlock()
}

func (p *fakeUidPolicy) isRegistered(uid model.UID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registered[uid]
}

// recordingClient records client notifications.
type recordingClient struct {
	mu     sync.Mutex
	events []string
}

func (c *recordingClient) add(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, fmt.Sprintf(format, args...))
}

func (c *recordingClient) OnTranscodingStarted(s model.SessionID) { c.add("started(%d)", s) }
func (c *recordingClient) OnTranscodingPaused(s model.SessionID)  { c.add("paused(%d)", s) }
func (c *recordingClient) OnTranscodingResumed(s model.SessionID) { c.add("resumed(%d)", s) }
func (c *recordingClient) OnProgressUpdate(s model.SessionID, p int32) {
	c.add("progress(%d,%d)", s, p)
}
func (c *recordingClient) OnTranscodingFinished(s model.SessionID, r model.Result) {
	c.add("finished(%d,%d)", s, r.ActualBitrateBps)
}
func (c *recordingClient) OnTranscodingFailed(s model.SessionID, code model.ErrorCode) {
	c.add("failed(%d,%s)", s, code)
}

func (c *recordingClient) take() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.events
	c.events = nil
	return out
}

type staticNames map[model.UID]string

func (n staticNames) PackageName(uid model.UID) (string, bool) {
	name, ok := n[uid]
	return name, ok
}

type outcomeLog struct {
	mu       sync.Mutex
	outcomes []model.Outcome
}

func (l *outcomeLog) RecordOutcome(o model.Outcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outcomes = append(l.outcomes, o)
}

func realtime(src string) model.Request {
	return model.Request{SourcePath: src, DestinationPath: src + ".out", Priority: model.PriorityRealtime}
}

func offline(src string) model.Request {
	return model.Request{SourcePath: src, DestinationPath: src + ".out", Priority: model.PriorityUnspecified}
}

// stateOf reads a session's state from a snapshot.
func stateOf(c *SessionController, client model.ClientID, sessionID model.SessionID) (model.State, bool) {
	for _, q := range c.Snapshot().Queues {
		for _, s := range q.Sessions {
			if s.Key == model.Key(client, sessionID) {
				return s.State, true
			}
		}
	}
	return "", false
}
