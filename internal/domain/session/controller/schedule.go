// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package controller

import (
	"slices"

	"github.com/ManuGH/mediatranscoding/internal/domain/session/model"
	"github.com/ManuGH/mediatranscoding/internal/log"
)

func (c *SessionController) topSession() *session {
	if len(c.sessions) == 0 {
		return nil
	}
	topUID := c.order.Front().Value.(model.UID)
	q := c.queues[topUID]
	if len(q) == 0 {
		return nil
	}
	return c.sessions[q[0]]
}

// updateCurrentSession makes the top session the current one, pausing the
// previously running session and starting or resuming the top one unless
// resources are lost.
func (c *SessionController) updateCurrentSession() {
	top := c.topSession()
	cur := c.current

	if top != nil && (top != cur || top.state != model.StateRunning) {
		if cur != nil && cur.state == model.StateRunning {
			c.enginePause(cur)
		}
		if !c.resourceLost {
			switch top.state {
			case model.StateNotStarted:
				c.engineStart(top)
			case model.StatePaused:
				c.engineResume(top)
			}
			c.setState(top, model.StateRunning)
		}
	}
	// Kept even while resources are lost so the same session resumes once
	// they return.
	c.current = top
}

func (c *SessionController) setState(s *session, to model.State) {
	if s.state == to {
		return
	}
	c.logger.Debug().
		Str("session", s.key.String()).
		Str(log.FieldOldState, string(s.state)).
		Str(log.FieldNewState, string(to)).
		Msg("session state")
	stateTransitionsTotal.WithLabelValues(string(s.state), string(to)).Inc()
	s.state = to
}

func (c *SessionController) engineStart(s *session) {
	engineCommandsTotal.WithLabelValues("start").Inc()
	s.started = true
	c.engine.Start(s.key, s.request, s.callback)
}

func (c *SessionController) engineResume(s *session) {
	engineCommandsTotal.WithLabelValues("resume").Inc()
	c.engine.Resume(s.key, s.request, s.callback)
}

func (c *SessionController) enginePause(s *session) {
	engineCommandsTotal.WithLabelValues("pause").Inc()
	c.engine.Pause(s.key)
	c.setState(s, model.StatePaused)
}

func (c *SessionController) engineStop(key model.SessionKey) {
	engineCommandsTotal.WithLabelValues("stop").Inc()
	c.engine.Stop(key)
}

// removeSession drops key from its queue and the session map. Emptying a
// realtime queue also removes the uid from the ordering and the uid policy.
func (c *SessionController) removeSession(key model.SessionKey, kind model.OutcomeKind, code model.ErrorCode) {
	s, ok := c.sessions[key]
	if !ok {
		c.logger.Error().Str("session", key.String()).Msg("session doesn't exist")
		return
	}

	q := c.queues[s.uid]
	idx := slices.Index(q, key)
	if idx < 0 {
		c.logger.Error().Str("session", key.String()).Int32(log.FieldUID, int32(s.uid)).Msg("couldn't find session in uid queue")
		return
	}
	q = slices.Delete(q, idx, idx+1)
	c.queues[s.uid] = q

	if s.uid != model.OfflineUID && len(q) == 0 {
		c.order.Remove(c.uidElems[s.uid])
		delete(c.uidElems, s.uid)
		delete(c.queues, s.uid)
		c.uidPolicy.UnregisterMonitorUid(s.uid)

		c.moveUidsToTop(c.uidPolicy.GetTopUids(), false)
	}

	if c.current == s {
		c.current = nil
	}
	delete(c.sessions, key)

	sessionsRemovedTotal.WithLabelValues(string(kind)).Inc()
	if c.recorder != nil {
		c.recorder.RecordOutcome(model.Outcome{
			Key:          key,
			UID:          s.uid,
			Request:      s.request,
			Kind:         kind,
			Error:        code,
			LastProgress: s.lastProgress,
			Started:      s.started,
			SubmittedAt:  s.submittedAt,
			EndedAt:      c.now(),
		})
	}
}

// moveUidsToTop moves every uid of uids present in the ordering to the head
// in a single pass, in the order they are encountered. With preserveTopUid
// the uid currently at the head stays there if it is part of uids, so a
// reshuffle of lower-ranked apps does not interrupt the running session.
func (c *SessionController) moveUidsToTop(uids model.UIDSet, preserveTopUid bool) {
	if len(uids) == 0 {
		return
	}

	curTop := c.order.Front()
	pushCurTopToFront := false
	moved := 0

	for e := c.order.Front(); e != nil; {
		next := e.Next()
		uid := e.Value.(model.UID)
		if uid != model.OfflineUID && uids.Has(uid) {
			if e == curTop && preserveTopUid {
				pushCurTopToFront = true
			} else {
				c.order.MoveToFront(e)
			}
			moved++
			if moved == len(uids) {
				break
			}
		}
		e = next
	}

	if pushCurTopToFront {
		c.order.MoveToFront(curTop)
	}
}
