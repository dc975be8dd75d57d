// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package uid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/mediatranscoding/internal/domain/session/model"
)

type chanCallback chan model.UIDSet

func (c chanCallback) OnTopUidsChanged(uids model.UIDSet) { c <- uids }

func newPolicy(t *testing.T) (*Policy, chanCallback) {
	t.Helper()
	p := New()
	cb := make(chanCallback, 16)
	p.SetCallback(cb)
	t.Cleanup(p.Close)
	return p, cb
}

func next(t *testing.T, cb chanCallback) model.UIDSet {
	t.Helper()
	select {
	case uids := <-cb:
		return uids
	case <-time.After(2 * time.Second):
		t.Fatal("no top uids notification")
		return nil
	}
}

func assertQuiet(t *testing.T, cb chanCallback) {
	t.Helper()
	select {
	case uids := <-cb:
		t.Fatalf("unexpected notification %v", uids)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPolicy_TopSetFollowsBestState(t *testing.T) {
	p, cb := newPolicy(t)

	p.SetState(10, StateBackground)
	p.SetState(11, StateTop)
	assertQuiet(t, cb)

	p.RegisterMonitorUid(10)
	assert.Equal(t, model.NewUIDSet(10), next(t, cb))
	assert.True(t, p.IsUidOnTop(10))

	p.RegisterMonitorUid(11)
	assert.Equal(t, model.NewUIDSet(11), next(t, cb))
	assert.False(t, p.IsUidOnTop(10))

	p.SetState(10, StateTop)
	assert.Equal(t, model.NewUIDSet(10, 11), next(t, cb))
	assert.Equal(t, model.NewUIDSet(10, 11), p.GetTopUids())
}

func TestPolicy_UnregisterPromotesNext(t *testing.T) {
	p, cb := newPolicy(t)

	p.SetState(1, StateTop)
	p.SetState(2, StateForeground)
	p.RegisterMonitorUid(1)
	p.RegisterMonitorUid(2)
	assert.Equal(t, model.NewUIDSet(1), next(t, cb))

	p.UnregisterMonitorUid(1)
	assert.Equal(t, model.NewUIDSet(2), next(t, cb))
	assert.False(t, p.IsUidOnTop(1))

	p.UnregisterMonitorUid(2)
	assert.Empty(t, p.GetTopUids())
	assertQuiet(t, cb)
}

func TestPolicy_SetForeground(t *testing.T) {
	p, cb := newPolicy(t)

	p.RegisterMonitorUid(1)
	p.RegisterMonitorUid(2)
	p.RegisterMonitorUid(3)
	assertQuiet(t, cb)

	p.SetForeground(2, 3)
	assert.Equal(t, model.NewUIDSet(2, 3), next(t, cb))

	p.SetForeground(1)
	assert.Equal(t, model.NewUIDSet(1), next(t, cb))
	assert.Equal(t, map[model.UID]ProcState{1: StateTop, 2: StateBackground, 3: StateBackground}, p.States())

	p.SetForeground(1)
	assertQuiet(t, cb)
}

func TestPolicy_UnknownStateNeverTop(t *testing.T) {
	p, cb := newPolicy(t)

	p.RegisterMonitorUid(5)
	assert.False(t, p.IsUidOnTop(5))

	p.SetState(5, StateCached)
	assert.Equal(t, model.NewUIDSet(5), next(t, cb))

	p.SetState(5, StateUnknown)
	assert.False(t, p.IsUidOnTop(5))
	assertQuiet(t, cb)
}

// A callback that calls back into the policy must not deadlock.
type reentrantCallback struct {
	p   *Policy
	got chan bool
}

func (r *reentrantCallback) OnTopUidsChanged(uids model.UIDSet) {
	for uid := range uids {
		r.got <- r.p.IsUidOnTop(uid)
	}
}

func TestPolicy_CallbackMayReenter(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	p := New()
	cb := &reentrantCallback{p: p, got: make(chan bool, 1)}
	p.SetCallback(cb)

	p.SetState(7, StateTop)
	p.RegisterMonitorUid(7)

	select {
	case onTop := <-cb.got:
		assert.True(t, onTop)
	case <-time.After(2 * time.Second):
		t.Fatal("callback not delivered")
	}
	p.Close()
}

func TestPolicy_CloseIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	p := New()
	p.Close()
	p.Close()

	require.NotPanics(t, func() { p.SetForeground(1) })
}
