// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package procgroup

import (
	"os/exec"
	"time"
)

// Terminate stops a process group gracefully. It sends SIGTERM (continuing
// the group if it was paused), waits up to grace for waitCh, then sends
// SIGKILL and drains waitCh. It returns the error received from waitCh and is
// safe to call on nil commands.
func Terminate(cmd *exec.Cmd, waitCh <-chan error, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	countSignal("SIGTERM", terminate(cmd))

	select {
	case err := <-waitCh:
		if err == nil {
			waitTotal.WithLabelValues("exit0").Inc()
		} else {
			waitTotal.WithLabelValues("exit_nonzero").Inc()
		}
		return err
	case <-time.After(grace):
		countSignal("SIGKILL", forceKill(cmd))

		err := <-waitCh
		if err == nil {
			waitTotal.WithLabelValues("forced_exit0").Inc()
		} else {
			waitTotal.WithLabelValues("forced_error").Inc()
		}
		return err
	}
}

func countSignal(sig string, err error) {
	if err != nil {
		terminateTotal.WithLabelValues(sig, "error").Inc()
		return
	}
	terminateTotal.WithLabelValues(sig, "sent").Inc()
}
