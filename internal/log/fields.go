// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldClientID      = "client_id"
	FieldSessionID     = "session_id"
	FieldUID           = "uid"
	FieldRequestID     = "request_id"
	FieldCorrelationID = "correlation_id"
	FieldRecordID      = "record_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldPID       = "pid"

	// Media fields
	FieldCodec = "codec"
	FieldTrack = "track"
	FieldPath  = "path"

	// State fields
	FieldState    = "state"
	FieldOldState = "old_state"
	FieldNewState = "new_state"
	FieldPriority = "priority"

	// Trace fields
	FieldTraceID = "trace_id"
	FieldSpanID  = "span_id"
)
