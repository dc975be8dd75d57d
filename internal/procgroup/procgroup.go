// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package procgroup spawns child processes in their own process group and
// signals the whole group, so helpers forked by ffmpeg are paused, resumed
// and reaped together with it.
package procgroup

import "errors"

// ErrUnsupported is returned by Pause and Resume on platforms without job
// control signals.
var ErrUnsupported = errors.New("procgroup: operation not supported on this platform")
