//go:build !windows

package process

import (
	"errors"
	"os"
	"syscall"
)

// FindProcess reports whether a process with the given ID is running.
func FindProcess(pid int) (bool, error) {
	proc, err := os.FindProcess(pid)
	if err != nil {
		// On unix this never fails, but keep the contract honest.
		return false, err
	}

	// Signal 0 probes for existence without delivering anything.
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
		return false, nil
	}
	if errors.Is(err, syscall.EPERM) {
		// The process exists but belongs to another user.
		return true, nil
	}
	return false, err
}
