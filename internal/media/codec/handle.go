// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package codec

import (
	"sync"
	"sync/atomic"
	"weak"
)

// Handle keeps a codec alive for as long as anyone references it: the owning
// transcoder holds one reference and every outstanding output sample holds
// another. The codec is stopped (if it was started) and deleted when the last
// reference is released.
//
// The back-reference to the owner is weak so that a handle kept alive by
// samples never keeps the owner alive.
type Handle[O any] struct {
	codec   Codec
	owner   weak.Pointer[O]
	refs    atomic.Int32
	started atomic.Bool
	once    sync.Once
}

// NewHandle wraps c with one reference held by the caller.
func NewHandle[O any](c Codec, owner *O) *Handle[O] {
	h := &Handle[O]{codec: c}
	if owner != nil {
		h.owner = weak.Make(owner)
	}
	h.refs.Store(1)
	return h
}

// Codec returns the wrapped codec.
func (h *Handle[O]) Codec() Codec { return h.codec }

// Owner returns the owner, or nil once it has been collected.
func (h *Handle[O]) Owner() *O { return h.owner.Value() }

// SetStarted records that the codec was started so it is stopped on teardown.
func (h *Handle[O]) SetStarted() { h.started.Store(true) }

// Acquire adds a reference. It returns false if the handle was already torn down.
func (h *Handle[O]) Acquire() bool {
	for {
		n := h.refs.Load()
		if n <= 0 {
			return false
		}
		if h.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release drops a reference and tears the codec down on the last one.
func (h *Handle[O]) Release() {
	if h.refs.Add(-1) != 0 {
		return
	}
	h.once.Do(func() {
		if h.started.Load() {
			_ = h.codec.Stop()
		}
		h.codec.Delete()
	})
}

// Refs reports the current reference count.
func (h *Handle[O]) Refs() int { return int(h.refs.Load()) }
