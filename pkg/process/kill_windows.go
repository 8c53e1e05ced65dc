//go:build windows

package process

import (
	"fmt"
	"os"
)

// KillProcess stops a process by its ID. On Windows this terminates the
// process immediately.
func KillProcess(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}
	if err := proc.Kill(); err != nil {
		return fmt.Errorf("failed to terminate process: %w", err)
	}
	return nil
}
