// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ports

import "weak"

// CallbackRef is a non-owning reference to a client callback. Get reports
// false once the client is gone; callers skip the notification.
type CallbackRef interface {
	Get() (ClientCallback, bool)
}

type weakRef[T any, PT interface {
	*T
	ClientCallback
}] struct {
	p weak.Pointer[T]
}

func (r weakRef[T, PT]) Get() (ClientCallback, bool) {
	v := r.p.Value()
	if v == nil {
		return nil, false
	}
	return PT(v), true
}

// WeakCallback returns a reference that does not keep cb alive.
func WeakCallback[T any, PT interface {
	*T
	ClientCallback
}](cb PT) CallbackRef {
	if cb == nil {
		return NoCallback()
	}
	return weakRef[T, PT]{p: weak.Make((*T)(cb))}
}

type strongRef struct{ cb ClientCallback }

func (r strongRef) Get() (ClientCallback, bool) { return r.cb, r.cb != nil }

// StrongCallback returns a reference that keeps cb alive. Used where the
// controller is the only holder, such as the HTTP event log.
func StrongCallback(cb ClientCallback) CallbackRef { return strongRef{cb: cb} }

// NoCallback returns a reference that is always gone.
func NoCallback() CallbackRef { return strongRef{} }

// Deref resolves ref, treating a nil ref as gone.
func Deref(ref CallbackRef) (ClientCallback, bool) {
	if ref == nil {
		return nil, false
	}
	return ref.Get()
}
