// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package controller

import (
	"fmt"

	"github.com/ManuGH/mediatranscoding/internal/domain/session/model"
)

// violations lists every broken scheduler invariant. Callers hold c.mu.
func (c *SessionController) violations() []string {
	var out []string

	if _, ok := c.queues[model.OfflineUID]; !ok {
		out = append(out, "offline queue missing")
	}
	if c.offline == nil || c.offline.Value.(model.UID) != model.OfflineUID {
		out = append(out, "offline pin not pointing to offline uid")
	} else if c.order.Back() != c.offline {
		out = append(out, "offline uid is not last in the ordering")
	}
	if c.order.Len() != len(c.queues) {
		out = append(out, fmt.Sprintf("ordering has %d uids but there are %d queues", c.order.Len(), len(c.queues)))
	}

	seen := make(map[model.UID]bool, c.order.Len())
	total := 0
	for e := c.order.Front(); e != nil; e = e.Next() {
		uid := e.Value.(model.UID)
		if seen[uid] {
			out = append(out, fmt.Sprintf("uid %d appears more than once in the ordering", uid))
			continue
		}
		seen[uid] = true
		q, ok := c.queues[uid]
		if !ok {
			out = append(out, fmt.Sprintf("no queue for uid %d", uid))
			continue
		}
		if uid != model.OfflineUID && len(q) == 0 {
			out = append(out, fmt.Sprintf("empty realtime queue for uid %d", uid))
		}
		for _, k := range q {
			s, ok := c.sessions[k]
			if !ok {
				out = append(out, fmt.Sprintf("session %s queued under uid %d is not in the session map", k, uid))
				continue
			}
			if s.uid != uid {
				out = append(out, fmt.Sprintf("session %s has uid %d but is queued under uid %d", k, s.uid, uid))
			}
		}
		total += len(q)
	}
	if len(c.sessions) != total {
		out = append(out, fmt.Sprintf("session map has %d entries but queues hold %d", len(c.sessions), total))
	}

	running := 0
	for _, s := range c.sessions {
		if s.state != model.StateRunning {
			continue
		}
		running++
		if c.resourceLost {
			out = append(out, fmt.Sprintf("session %s is running while resources are lost", s.key))
		}
		if s != c.current {
			out = append(out, fmt.Sprintf("running session %s is not current", s.key))
		}
		if top := c.topSession(); top != s {
			out = append(out, fmt.Sprintf("running session %s is not the top session", s.key))
		}
	}
	if running > 1 {
		out = append(out, fmt.Sprintf("%d sessions running", running))
	}
	if c.current != nil && c.sessions[c.current.key] != c.current {
		out = append(out, fmt.Sprintf("current session %s is not in the session map", c.current.key))
	}
	return out
}

// repair restores the runtime invariants that can be fixed locally: stray
// running sessions are paused on the engine and a dangling current pointer
// is dropped. Structural damage to queues is only reported.
func (c *SessionController) repair() {
	if c.current != nil && c.sessions[c.current.key] != c.current {
		c.current = nil
	}
	top := c.topSession()
	for _, s := range c.sessions {
		if s.state != model.StateRunning {
			continue
		}
		if !c.resourceLost && s == top && s == c.current {
			continue
		}
		c.enginePause(s)
	}
}
