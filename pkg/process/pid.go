// Package process provides PID file handling and process control for the
// background sync agent.
package process

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
)

// PIDFilePath returns the path to the PID file for a named daemon, under
// the XDG data directory.
func PIDFilePath(name string) (string, error) {
	path, err := xdg.DataFile(filepath.Join("repoman", "pids", fmt.Sprintf("repoman-%s.pid", name)))
	if err != nil {
		return "", fmt.Errorf("failed to get PID file path: %w", err)
	}
	return path, nil
}

// WritePIDFile writes a process ID to the daemon's PID file.
func WritePIDFile(name string, pid int) error {
	path, err := PIDFilePath(name)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0600); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// WriteCurrentPIDFile writes the current process ID to the daemon's PID
// file.
func WriteCurrentPIDFile(name string) error {
	return WritePIDFile(name, os.Getpid())
}

// ReadPIDFile reads the process ID from the daemon's PID file.
func ReadPIDFile(name string) (int, error) {
	path, err := PIDFilePath(name)
	if err != nil {
		return 0, err
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("failed to parse PID: %w", err)
	}
	return pid, nil
}

// RemovePIDFile removes the daemon's PID file. A missing file is not an
// error.
func RemovePIDFile(name string) error {
	path, err := PIDFilePath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
