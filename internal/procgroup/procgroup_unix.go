// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

//go:build unix

package procgroup

import (
	"errors"
	"os/exec"
	"syscall"
)

// Set configures the command to start in a new process group.
func Set(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// Kill sends a signal to the process group of the command.
// If the command or process is nil, or if the process has already exited, it returns nil.
func Kill(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return err
	}

	// Negative PGID signals the whole group
	if err := syscall.Kill(-pgid, sig); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return err
	}
	return nil
}

// Pause stops every process of the group with SIGSTOP.
func Pause(cmd *exec.Cmd) error {
	return Kill(cmd, syscall.SIGSTOP)
}

// Resume continues a group stopped by Pause.
func Resume(cmd *exec.Cmd) error {
	return Kill(cmd, syscall.SIGCONT)
}

func terminate(cmd *exec.Cmd) error {
	if err := Kill(cmd, syscall.SIGTERM); err != nil {
		return err
	}
	// A stopped group only acts on SIGTERM once continued.
	return Kill(cmd, syscall.SIGCONT)
}

func forceKill(cmd *exec.Cmd) error {
	return Kill(cmd, syscall.SIGKILL)
}
