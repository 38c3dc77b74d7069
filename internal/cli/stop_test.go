package cli

import (
	"os"
	"os/exec"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/walletlink/internal/daemon"
)

func TestStopCommand(t *testing.T) {
	t.Run("timeout flag", func(t *testing.T) {
		flag := stopCmd.Flags().Lookup("timeout")
		require.NotNil(t, flag)
		assert.Equal(t, "30", flag.DefValue)
	})

	t.Run("not running", func(t *testing.T) {
		path, _ := writeTestConfig(t, nil)

		_, err := execute(t, "--config", path, "stop")
		assert.ErrorIs(t, err, daemon.ErrNotRunning)
	})

	t.Run("stale PID file is removed", func(t *testing.T) {
		path, cfg := writeTestConfig(t, nil)
		require.NoError(t, os.WriteFile(cfg.PIDFile(), []byte("999999999"), 0644))

		_, err := execute(t, "--config", path, "stop")
		assert.ErrorIs(t, err, daemon.ErrNotRunning)
		_, statErr := os.Stat(cfg.PIDFile())
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("terminates the daemon process", func(t *testing.T) {
		sleeper := exec.Command("sleep", "30")
		if err := sleeper.Start(); err != nil {
			t.Skipf("sleep unavailable: %v", err)
		}
		// Reap the child so it does not linger as a zombie
		go func() { _ = sleeper.Wait() }()

		path, cfg := writeTestConfig(t, nil)
		require.NoError(t, os.WriteFile(cfg.PIDFile(), []byte(strconv.Itoa(sleeper.Process.Pid)), 0644))

		output, err := execute(t, "--config", path, "stop", "--timeout", "5")
		require.NoError(t, err)
		assert.Contains(t, output, "Daemon stopped successfully")
		_, statErr := os.Stat(cfg.PIDFile())
		assert.True(t, os.IsNotExist(statErr))
	})
}
