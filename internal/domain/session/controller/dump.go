// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package controller

import (
	"bufio"
	"fmt"
	"io"

	"github.com/ManuGH/mediatranscoding/internal/domain/session/model"
)

// SessionInfo is a read-only view of one session.
type SessionInfo struct {
	Key          model.SessionKey `json:"key"`
	UID          model.UID        `json:"uid"`
	State        model.State      `json:"state"`
	LastProgress int32            `json:"lastProgress"`
	Request      model.Request    `json:"request"`
}

// AppQueue is the queue of one uid.
type AppQueue struct {
	UID      model.UID     `json:"uid"`
	Package  string        `json:"package"`
	Sessions []SessionInfo `json:"sessions"`
}

// Snapshot is a consistent copy of the scheduler state.
type Snapshot struct {
	// Order lists uids from scheduling head to the offline tail.
	Order        []model.UID       `json:"order"`
	Queues       []AppQueue        `json:"queues"`
	Current      *model.SessionKey `json:"current,omitempty"`
	ResourceLost bool              `json:"resourceLost"`
	Total        int               `json:"total"`
}

// Snapshot copies the scheduler state under the lock.
func (c *SessionController) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Order:        make([]model.UID, 0, c.order.Len()),
		Queues:       make([]AppQueue, 0, c.order.Len()),
		ResourceLost: c.resourceLost,
		Total:        len(c.sessions),
	}
	if c.current != nil {
		k := c.current.key
		snap.Current = &k
	}
	for e := c.order.Front(); e != nil; e = e.Next() {
		uid := e.Value.(model.UID)
		snap.Order = append(snap.Order, uid)

		q := AppQueue{UID: uid, Package: c.packageName(uid), Sessions: make([]SessionInfo, 0, len(c.queues[uid]))}
		for _, k := range c.queues[uid] {
			s, ok := c.sessions[k]
			if !ok {
				continue
			}
			q.Sessions = append(q.Sessions, SessionInfo{
				Key:          s.key,
				UID:          s.uid,
				State:        s.state,
				LastProgress: s.lastProgress,
				Request:      s.request,
			})
		}
		snap.Queues = append(snap.Queues, q)
	}
	return snap
}

func (c *SessionController) packageName(uid model.UID) string {
	if uid == model.OfflineUID {
		return "(offline)"
	}
	if c.names != nil {
		if name, ok := c.names.PackageName(uid); ok {
			return name
		}
	}
	return "(unknown)"
}

// DumpAllSessions writes a human readable listing of every non-empty queue,
// realtime uids in scheduling order followed by the offline queue.
func (c *SessionController) DumpAllSessions(w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "\n========== Dumping all sessions queues =========\n")
	fmt.Fprintf(bw, "  Total num of Sessions: %d\n", len(c.sessions))

	for e := c.order.Front(); e != nil; e = e.Next() {
		uid := e.Value.(model.UID)
		q := c.queues[uid]
		if len(q) == 0 {
			continue
		}
		fmt.Fprintf(bw, "    Uid: %d, pkg: %s\n", uid, c.packageName(uid))
		fmt.Fprintf(bw, "      Num of sessions: %d\n", len(q))
		for _, k := range q {
			s, ok := c.sessions[k]
			if !ok {
				fmt.Fprintf(bw, "Failed to look up Session %s\n", k)
				continue
			}
			fmt.Fprintf(bw, "      Session: %s, %s, %d%%\n", k, s.state, s.lastProgress)
			fmt.Fprintf(bw, "        Src: %s\n", s.request.SourcePath)
			fmt.Fprintf(bw, "        Dst: %s\n", s.request.DestinationPath)
		}
	}
	return bw.Flush()
}
