package agent

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/jwbla/repoman/pkg/config"
	"github.com/jwbla/repoman/pkg/errors"
	"github.com/jwbla/repoman/pkg/logger"
	"github.com/jwbla/repoman/pkg/process"
)

// Running reports whether a live agent process is recorded in the PID
// file. A PID file pointing at a dead process is removed on detection.
func Running() (bool, int) {
	pid, err := process.ReadPIDFile(DaemonName)
	if err != nil {
		return false, 0
	}
	alive, err := process.FindProcess(pid)
	if err != nil || !alive {
		if err := process.RemovePIDFile(DaemonName); err != nil {
			logger.Warnf("Failed to remove stale agent PID file: %v", err)
		}
		return false, pid
	}
	return true, pid
}

// Start spawns a detached agent process running the scheduler loop, with
// its output appended to the agent log file.
func Start(cfg *config.Config) (int, error) {
	if running, pid := Running(); running {
		return 0, errors.NewProcessControlError(fmt.Sprintf("agent already running (pid %d)", pid), nil)
	}

	exe, err := os.Executable()
	if err != nil {
		return 0, errors.NewProcessControlError("failed to locate executable", err)
	}

	logFile, err := os.OpenFile(LogFilePath(cfg), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return 0, errors.NewProcessControlError("failed to open agent log file", err)
	}
	defer logFile.Close()

	cmd := exec.Command(exe, "agent", "run")
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Start(); err != nil {
		return 0, errors.NewProcessControlError("failed to start agent", err)
	}

	pid := cmd.Process.Pid
	if err := process.WritePIDFile(DaemonName, pid); err != nil {
		logger.Warnf("Agent started but PID file could not be written: %v", err)
	}
	if err := cmd.Process.Release(); err != nil {
		logger.Warnf("Failed to release agent process handle: %v", err)
	}
	return pid, nil
}

// Stop terminates the running agent process and removes its PID file.
func Stop() error {
	running, pid := Running()
	if !running {
		return errors.NewProcessControlError("agent is not running", nil)
	}
	if err := process.KillProcess(pid); err != nil {
		return errors.NewProcessControlError(fmt.Sprintf("failed to stop agent (pid %d)", pid), err)
	}
	if err := process.RemovePIDFile(DaemonName); err != nil {
		logger.Warnf("Failed to remove agent PID file: %v", err)
	}
	return nil
}
