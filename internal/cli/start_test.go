package cli

import (
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/walletlink/internal/config"
)

func TestStartCommand(t *testing.T) {
	t.Run("refuses when daemon is running", func(t *testing.T) {
		path, cfg := writeTestConfig(t, nil)
		require.NoError(t, os.WriteFile(cfg.PIDFile(), []byte(strconv.Itoa(os.Getpid())), 0644))

		_, err := execute(t, "--config", path, "start")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already running")
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		path, _ := writeTestConfig(t, func(cfg *config.Config) {
			cfg.Provider.Transport = "carrier-pigeon"
			cfg.Wallet.RefreshSchedule = "whenever"
		})

		_, err := execute(t, "--config", path, "start")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "carrier-pigeon")
		assert.Contains(t, err.Error(), "whenever")
	})
}

func TestLoadConfigLogLevelOverride(t *testing.T) {
	path, _ := writeTestConfig(t, nil)

	prevFile, prevLevel := cfgFile, logLevel
	flag := rootCmd.PersistentFlags().Lookup("log-level")
	t.Cleanup(func() {
		cfgFile, logLevel = prevFile, prevLevel
		flag.Changed = false
	})

	cfgFile = path
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Logging.Level)

	require.NoError(t, rootCmd.PersistentFlags().Set("log-level", "debug"))
	cfg, err = loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}
