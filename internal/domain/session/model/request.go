// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import (
	"fmt"
	"strings"
	"time"
)

// State is the scheduler-visible lifecycle of a session.
type State string

const (
	StateNotStarted State = "NOT_STARTED"
	StateRunning    State = "RUNNING"
	StatePaused     State = "PAUSED"
)

// Priority selects the queue a session is scheduled under.
type Priority string

const (
	// PriorityUnspecified sessions are offline work and always run last.
	PriorityUnspecified Priority = "UNSPECIFIED"
	// PriorityRealtime sessions are ordered by their application's foreground rank.
	PriorityRealtime Priority = "REALTIME"
)

// ParsePriority accepts the canonical names case-insensitively; an empty
// string means unspecified.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(PriorityUnspecified), "OFFLINE":
		return PriorityUnspecified, nil
	case string(PriorityRealtime):
		return PriorityRealtime, nil
	default:
		return "", fmt.Errorf("unknown priority %q", s)
	}
}

// Request is the immutable description of a transcoding job.
type Request struct {
	SourcePath      string   `json:"sourcePath"`
	DestinationPath string   `json:"destinationPath"`
	Priority        Priority `json:"priority"`

	// Destination hints. Zero values leave the choice to the engine.
	VideoMIME  string `json:"videoMime,omitempty"`
	BitrateBps int32  `json:"bitrateBps,omitempty"`
	Width      int32  `json:"width,omitempty"`
	Height     int32  `json:"height,omitempty"`
}

// Result is delivered to the client when a session finishes.
type Result struct {
	SessionID        SessionID `json:"sessionId"`
	ActualBitrateBps int32     `json:"actualBitrateBps"`
}

// ErrorCode classifies session failures reported to clients.
type ErrorCode string

const (
	ErrorNone                  ErrorCode = "E_NONE"
	ErrorUnknown               ErrorCode = "E_UNKNOWN"
	ErrorDroppedByService      ErrorCode = "E_DROPPED_BY_SERVICE"
	ErrorMalformed             ErrorCode = "E_MALFORMED"
	ErrorUnsupported           ErrorCode = "E_UNSUPPORTED"
	ErrorInvalidParameter      ErrorCode = "E_INVALID_PARAMETER"
	ErrorInvalidOperation      ErrorCode = "E_INVALID_OPERATION"
	ErrorIO                    ErrorCode = "E_IO"
	ErrorInsufficientResources ErrorCode = "E_INSUFFICIENT_RESOURCES"
)

// OutcomeKind is the terminal result of a session.
type OutcomeKind string

const (
	OutcomeFinished  OutcomeKind = "finished"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomeCancelled OutcomeKind = "cancelled"
)

// Outcome records how a session left the scheduler.
type Outcome struct {
	Key          SessionKey  `json:"key"`
	UID          UID         `json:"uid"`
	Request      Request     `json:"request"`
	Kind         OutcomeKind `json:"kind"`
	Error        ErrorCode   `json:"error,omitempty"`
	LastProgress int32       `json:"lastProgress"`
	// Started is false when the session was removed before it ever ran.
	Started     bool      `json:"started"`
	SubmittedAt time.Time `json:"submittedAt"`
	EndedAt     time.Time `json:"endedAt"`
}
