// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import "errors"

var (
	// ErrMissingConfig is returned when the daemon is built without a config holder.
	ErrMissingConfig = errors.New("config holder is required")

	// ErrUnknownEngine is returned for an engine kind without a job factory.
	ErrUnknownEngine = errors.New("unknown engine kind")
)
