package hooks

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerTriggerExecutesHookScript(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "connected.txt")
	hookScript := "echo connected > " + outputPath

	manager, err := NewManager(Config{
		Enabled: true,
		Logger:  zerolog.Nop(),
		Hooks: []Hook{
			{
				ID:      "notify",
				Event:   "wallet:connected",
				Script:  hookScript,
				Enabled: true,
			},
		},
	})
	require.NoError(t, err)

	require.NoError(t, manager.Trigger(context.Background(), "wallet:connected", nil))

	content, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, "connected\n", string(content))
}

func TestManagerTriggerInjectsEventDataIntoEnvironment(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "env.txt")
	hookScript := "echo \"$WALLETLINK_HOOK_EVENT:$WALLETLINK_HOOK_DATA_CHAIN_ID:$WALLETLINK_HOOK_DATA_PREVIOUS_CHAIN_ID\" > " + outputPath

	manager, err := NewManager(Config{
		Enabled: true,
		Logger:  zerolog.Nop(),
		Hooks: []Hook{
			{
				ID:      "chain",
				Event:   "wallet:chain_changed",
				Script:  hookScript,
				Enabled: true,
			},
		},
	})
	require.NoError(t, err)

	require.NoError(t, manager.Trigger(context.Background(), "wallet:chain_changed", map[string]interface{}{
		"chain_id":          "0x89",
		"previous_chain_id": "0x1",
	}))

	content, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, "wallet:chain_changed:0x89:0x1\n", string(content))
}

func TestManagerTriggerReturnsJoinedErrors(t *testing.T) {
	manager, err := NewManager(Config{
		Enabled: true,
		Logger:  zerolog.Nop(),
		Hooks: []Hook{
			{
				ID:      "fail-1",
				Event:   "wallet:error",
				Script:  "exit 2",
				Enabled: true,
			},
			{
				ID:      "fail-2",
				Event:   "wallet:error",
				Script:  "exit 3",
				Enabled: true,
			},
		},
	})
	require.NoError(t, err)

	err = manager.Trigger(context.Background(), "wallet:error", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hook fail-1 failed")
	assert.Contains(t, err.Error(), "hook fail-2 failed")
}

func TestManagerTriggerRespectsTimeout(t *testing.T) {
	manager, err := NewManager(Config{
		Enabled: true,
		Logger:  zerolog.Nop(),
		Hooks: []Hook{
			{
				ID:      "timeout",
				Event:   "wallet:disconnected",
				Script:  "sleep 1",
				Enabled: true,
				Timeout: 30 * time.Millisecond,
			},
		},
	})
	require.NoError(t, err)

	err = manager.Trigger(context.Background(), "wallet:disconnected", nil)
	require.Error(t, err)
	assert.True(t,
		strings.Contains(err.Error(), "deadline exceeded") || strings.Contains(err.Error(), "signal: killed"),
		"expected timeout-related error, got: %v",
		err,
	)
}

func TestNewManagerRejectsIncompleteHooks(t *testing.T) {
	_, err := NewManager(Config{
		Enabled: true,
		Logger:  zerolog.Nop(),
		Hooks:   []Hook{{ID: "empty", Event: "wallet:connected", Enabled: true}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "script is required")
}

func TestManagerReloadReplacesHooks(t *testing.T) {
	manager, err := NewManager(Config{
		Enabled: true,
		Logger:  zerolog.Nop(),
		Hooks:   []Hook{{ID: "a", Event: "wallet:connected", Script: "true", Enabled: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"wallet:connected"}, manager.Events())

	require.NoError(t, manager.Reload(true, []Hook{
		{ID: "b", Event: "wallet:error", Script: "true", Enabled: true},
		{ID: "c", Event: "wallet:chain_changed", Script: "true", Enabled: false},
	}))
	assert.Equal(t, []string{"wallet:error"}, manager.Events())

	require.Error(t, manager.Reload(true, []Hook{{ID: "bad", Enabled: true, Script: "true"}}))
	assert.Equal(t, []string{"wallet:error"}, manager.Events())

	require.NoError(t, manager.Reload(false, nil))
	assert.Empty(t, manager.Events())
	assert.NoError(t, manager.Trigger(context.Background(), "wallet:error", nil))
}

func TestManagerTriggerWritesJSONPayloadToStdin(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "payload.json")

	manager, err := NewManager(Config{
		Enabled: true,
		Logger:  zerolog.Nop(),
		Hooks:   []Hook{{Event: "wallet:account_changed", Script: "cat > " + outputPath, Enabled: true}},
	})
	require.NoError(t, err)

	require.NoError(t, manager.Trigger(context.Background(), " wallet:account_changed ", map[string]interface{}{
		"account": "0xabc",
	}))

	content, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"wallet:account_changed","data":{"account":"0xabc"}}`, string(content))
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "CHAIN_ID", envKey("chain_id"))
	assert.Equal(t, "PREVIOUS_CHAIN_ID", envKey("previous-chain.id"))
	assert.Equal(t, "UNKNOWN", envKey("  "))
}

func TestNilManagerTriggerIsNoop(t *testing.T) {
	var manager *Manager
	assert.NoError(t, manager.Trigger(context.Background(), "wallet:connected", nil))
}
