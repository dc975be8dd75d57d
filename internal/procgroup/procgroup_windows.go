// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

//go:build windows

package procgroup

import (
	"os/exec"
	"syscall"
)

// Set is a no-op on Windows.
func Set(cmd *exec.Cmd) {}

// Kill maps SIGKILL to Process.Kill. Other signals are ignored.
func Kill(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if sig == syscall.SIGKILL {
		return cmd.Process.Kill()
	}
	return nil
}

func Pause(cmd *exec.Cmd) error  { return ErrUnsupported }
func Resume(cmd *exec.Cmd) error { return ErrUnsupported }

func terminate(cmd *exec.Cmd) error {
	// No graceful termination signal; Terminate escalates after the grace period.
	return nil
}

func forceKill(cmd *exec.Cmd) error {
	return Kill(cmd, syscall.SIGKILL)
}
