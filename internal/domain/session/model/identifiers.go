// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package model holds the value types shared by the session controller, its
// collaborators and the operator API.
package model

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ClientID identifies a connected client.
type ClientID int64

// SessionID identifies a session within a client. It is signed: a negative
// value addresses every session of the client in Cancel.
type SessionID int32

// UID identifies the application that owns a session.
type UID int32

// OfflineUID is the sentinel uid under which all unspecified-priority
// sessions are queued.
const OfflineUID UID = -1

// SessionKey uniquely identifies a session.
type SessionKey struct {
	Client  ClientID  `json:"clientId"`
	Session SessionID `json:"sessionId"`
}

// Key builds a SessionKey.
func Key(client ClientID, session SessionID) SessionKey {
	return SessionKey{Client: client, Session: session}
}

func (k SessionKey) String() string {
	return fmt.Sprintf("{client:%d, session:%d}", k.Client, k.Session)
}

// UIDSet is an unordered set of uids.
type UIDSet map[UID]struct{}

// NewUIDSet builds a set from uids.
func NewUIDSet(uids ...UID) UIDSet {
	s := make(UIDSet, len(uids))
	for _, u := range uids {
		s[u] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s UIDSet) Has(uid UID) bool {
	_, ok := s[uid]
	return ok
}

// Sorted returns the members in ascending order.
func (s UIDSet) Sorted() []UID {
	out := make([]UID, 0, len(s))
	for u := range s {
		out = append(out, u)
	}
	slices.Sort(out)
	return out
}

func (s UIDSet) String() string {
	parts := make([]string, 0, len(s))
	for _, u := range s.Sorted() {
		parts = append(parts, strconv.Itoa(int(u)))
	}
	return strings.Join(parts, ", ")
}
