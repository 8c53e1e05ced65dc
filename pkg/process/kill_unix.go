//go:build !windows

package process

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"
)

// KillProcess stops a process by its ID. It sends SIGTERM first for a
// graceful shutdown, waits briefly, then escalates to SIGKILL if the
// process is still alive.
func KillProcess(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		return fmt.Errorf("failed to send SIGTERM to process: %w", err)
	}

	time.Sleep(500 * time.Millisecond)

	alive, err := FindProcess(pid)
	if err != nil || !alive {
		return nil
	}

	if err := proc.Signal(syscall.SIGKILL); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		return fmt.Errorf("failed to send SIGKILL to process: %w", err)
	}
	return nil
}
