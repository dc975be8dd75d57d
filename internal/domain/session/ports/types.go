// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package ports defines the contracts between the session controller and its
// collaborators. Implementations live in engine, policy, history and api.
package ports

import (
	"github.com/ManuGH/mediatranscoding/internal/domain/session/model"
)

// TranscoderEngine runs sessions on behalf of the controller. All methods are
// fire-and-forget: they must not block and must not call back into the
// controller synchronously. Progress and completion are reported later
// through EngineCallback.
type TranscoderEngine interface {
	Start(key model.SessionKey, req model.Request, cb CallbackRef)
	Pause(key model.SessionKey)
	Resume(key model.SessionKey, req model.Request, cb CallbackRef)
	Stop(key model.SessionKey)
}

// EngineCallback receives engine events. The session controller implements it.
type EngineCallback interface {
	OnStarted(client model.ClientID, session model.SessionID)
	OnPaused(client model.ClientID, session model.SessionID)
	OnResumed(client model.ClientID, session model.SessionID)
	OnProgressUpdate(client model.ClientID, session model.SessionID, progress int32)
	OnFinish(client model.ClientID, session model.SessionID)
	OnError(client model.ClientID, session model.SessionID, code model.ErrorCode)
}

// UidPolicy tracks which applications are in the foreground.
type UidPolicy interface {
	RegisterMonitorUid(uid model.UID)
	UnregisterMonitorUid(uid model.UID)
	IsUidOnTop(uid model.UID) bool
	GetTopUids() model.UIDSet
	SetCallback(cb UidPolicyCallback)
}

// UidPolicyCallback is notified when the foreground set changes. It is never
// invoked while the policy holds its own lock.
type UidPolicyCallback interface {
	OnTopUidsChanged(uids model.UIDSet)
}

// ResourcePolicy reports transcoding resource availability.
type ResourcePolicy interface {
	SetCallback(cb ResourcePolicyCallback)
}

// ResourcePolicyCallback is notified when resources are lost or regained.
type ResourcePolicyCallback interface {
	OnResourceLost()
	OnResourceAvailable()
}

// ClientCallback is the per-session notification sink of a client.
type ClientCallback interface {
	OnTranscodingStarted(session model.SessionID)
	OnTranscodingPaused(session model.SessionID)
	OnTranscodingResumed(session model.SessionID)
	OnProgressUpdate(session model.SessionID, progress int32)
	OnTranscodingFinished(session model.SessionID, result model.Result)
	OnTranscodingFailed(session model.SessionID, code model.ErrorCode)
}

// PackageNameResolver maps uids to application package names for dumps.
type PackageNameResolver interface {
	PackageName(uid model.UID) (string, bool)
}

// OutcomeRecorder receives terminal session outcomes. Implementations must
// not block; the controller calls it with its lock held.
type OutcomeRecorder interface {
	RecordOutcome(o model.Outcome)
}
