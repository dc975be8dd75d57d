// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package controller

import (
	"github.com/ManuGH/mediatranscoding/internal/domain/session/model"
	"github.com/ManuGH/mediatranscoding/internal/domain/session/ports"
	"github.com/ManuGH/mediatranscoding/internal/log"
)

var (
	_ ports.EngineCallback         = (*SessionController)(nil)
	_ ports.UidPolicyCallback      = (*SessionController)(nil)
	_ ports.ResourcePolicyCallback = (*SessionController)(nil)
)

// notifyClient runs fn for a known session that has been started at least
// once. Events for paused sessions are still delivered: the engine may have
// posted a finish while the session was being paused.
func (c *SessionController) notifyClient(client model.ClientID, sessionID model.SessionID, event string, fn func(s *session)) {
	key := model.Key(client, sessionID)

	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[key]
	if !ok {
		c.logger.Warn().Str(log.FieldEvent, event).Str("session", key.String()).Msg("ignoring event for session that doesn't exist")
		staleEventsTotal.WithLabelValues(event, "unknown").Inc()
		return
	}
	if s.state == model.StateNotStarted {
		c.logger.Warn().Str(log.FieldEvent, event).Str("session", key.String()).Msg("ignoring event for session that was never started")
		staleEventsTotal.WithLabelValues(event, "not_started").Inc()
		return
	}

	c.logger.Debug().Str(log.FieldEvent, event).Str("session", key.String()).Msg("engine event")
	fn(s)
}

func clientOf(s *session) (ports.ClientCallback, bool) {
	return ports.Deref(s.callback)
}

// OnStarted forwards an engine start notification to the client.
func (c *SessionController) OnStarted(client model.ClientID, sessionID model.SessionID) {
	c.notifyClient(client, sessionID, "started", func(s *session) {
		if cb, ok := clientOf(s); ok {
			cb.OnTranscodingStarted(sessionID)
		}
	})
}

// OnPaused forwards an engine pause notification to the client.
func (c *SessionController) OnPaused(client model.ClientID, sessionID model.SessionID) {
	c.notifyClient(client, sessionID, "paused", func(s *session) {
		if cb, ok := clientOf(s); ok {
			cb.OnTranscodingPaused(sessionID)
		}
	})
}

// OnResumed forwards an engine resume notification to the client.
func (c *SessionController) OnResumed(client model.ClientID, sessionID model.SessionID) {
	c.notifyClient(client, sessionID, "resumed", func(s *session) {
		if cb, ok := clientOf(s); ok {
			cb.OnTranscodingResumed(sessionID)
		}
	})
}

// OnProgressUpdate forwards progress and records it as the session's last progress.
func (c *SessionController) OnProgressUpdate(client model.ClientID, sessionID model.SessionID, progress int32) {
	c.notifyClient(client, sessionID, "progress", func(s *session) {
		if cb, ok := clientOf(s); ok {
			cb.OnProgressUpdate(sessionID, progress)
		}
		s.lastProgress = progress
	})
}

// OnFinish reports success to the client, removes the session and schedules the next one.
func (c *SessionController) OnFinish(client model.ClientID, sessionID model.SessionID) {
	c.notifyClient(client, sessionID, "finish", func(s *session) {
		if cb, ok := clientOf(s); ok {
			cb.OnTranscodingFinished(sessionID, model.Result{SessionID: sessionID, ActualBitrateBps: -1})
		}
		c.removeSession(s.key, model.OutcomeFinished, model.ErrorNone)
		c.updateCurrentSession()
		c.validateState()
		c.observe()
	})
}

// OnError reports failure to the client, removes the session and schedules the next one.
func (c *SessionController) OnError(client model.ClientID, sessionID model.SessionID, code model.ErrorCode) {
	c.notifyClient(client, sessionID, "error", func(s *session) {
		if cb, ok := clientOf(s); ok {
			cb.OnTranscodingFailed(sessionID, code)
		}
		c.removeSession(s.key, model.OutcomeFailed, code)
		c.updateCurrentSession()
		c.validateState()
		c.observe()
	})
}

// OnTopUidsChanged moves the new foreground uids to the head of the ordering.
func (c *SessionController) OnTopUidsChanged(uids model.UIDSet) {
	if len(uids) == 0 {
		c.logger.Warn().Msg("ignoring empty uids")
		return
	}

	c.logger.Debug().Int("size", len(uids)).Str("uids", uids.String()).Msg("top uids changed")

	c.mu.Lock()
	defer c.mu.Unlock()

	c.moveUidsToTop(uids, true)
	c.updateCurrentSession()
	c.validateState()
	c.observe()
}

// OnResourceLost marks resources lost. The engine has already paused the
// running session itself; only its state changes and the client is told.
func (c *SessionController) OnResourceLost() {
	c.logger.Info().Msg("resource lost")

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resourceLost {
		return
	}

	if cur := c.current; cur != nil && cur.state == model.StateRunning {
		c.setState(cur, model.StatePaused)
		if cb, ok := clientOf(cur); ok {
			cb.OnTranscodingPaused(cur.key.Session)
		}
	}
	c.resourceLost = true

	c.validateState()
	c.observe()
}

// OnResourceAvailable clears the lost flag and reschedules.
func (c *SessionController) OnResourceAvailable() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.resourceLost {
		return
	}

	c.logger.Info().Msg("resource available")

	c.resourceLost = false
	c.updateCurrentSession()
	c.validateState()
	c.observe()
}
