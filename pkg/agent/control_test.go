package agent

import (
	"os"
	"os/exec"
	"testing"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwbla/repoman/pkg/process"
)

func TestRunningCleansStalePIDFile(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	xdg.Reload()

	// A short-lived child gives us a PID that is guaranteed dead.
	cmd := exec.Command("true")
	require.NoError(t, cmd.Run())
	require.NoError(t, process.WritePIDFile(DaemonName, cmd.Process.Pid))

	running, _ := Running()
	assert.False(t, running)

	path, err := process.PIDFilePath(DaemonName)
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "stale PID file should be removed on detection")
}

func TestRunningKeepsLivePIDFile(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	xdg.Reload()

	require.NoError(t, process.WriteCurrentPIDFile(DaemonName))

	running, pid := Running()
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), pid)

	path, err := process.PIDFilePath(DaemonName)
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}
