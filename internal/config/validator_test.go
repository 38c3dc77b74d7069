package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harun/walletlink/pkg/wallet"
)

func TestValidateFlagName(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateFlagName("isMetaMask"))
	assert.NoError(t, v.ValidateFlagName("_metamask"))
	assert.Error(t, v.ValidateFlagName(""))
	assert.Error(t, v.ValidateFlagName("is MetaMask"))
	assert.Error(t, v.ValidateFlagName("9lives"))
}

func TestValidateLogLevel(t *testing.T) {
	v := NewValidator()

	for _, level := range []string{"debug", "info", "warn", "error"} {
		assert.NoError(t, v.ValidateLogLevel(level))
	}
	assert.Error(t, v.ValidateLogLevel("verbose"))
}

func TestValidateTransport(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateTransport(TransportWebSocket))
	assert.NoError(t, v.ValidateTransport(TransportBrowser))
	assert.Error(t, v.ValidateTransport("http"))
}

func TestValidateWebSocketURL(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateWebSocketURL("ws://127.0.0.1:8546"))
	assert.NoError(t, v.ValidateWebSocketURL("wss://wallet.example.com/rpc"))
	assert.Error(t, v.ValidateWebSocketURL("http://127.0.0.1:8546"))
	assert.Error(t, v.ValidateWebSocketURL("ws://"))
}

func TestValidatePort(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidatePort(0))
	assert.NoError(t, v.ValidatePort(7420))
	assert.Error(t, v.ValidatePort(-1))
	assert.Error(t, v.ValidatePort(65536))
}

func TestValidateSchedule(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateSchedule(""))
	assert.NoError(t, v.ValidateSchedule("@every 15s"))
	assert.NoError(t, v.ValidateSchedule("*/5 * * * *"))
	assert.Error(t, v.ValidateSchedule("every so often"))
}

func TestValidateHookEvent(t *testing.T) {
	v := NewValidator()

	for _, event := range wallet.HookEvents {
		assert.NoError(t, v.ValidateHookEvent(event))
	}
	assert.Error(t, v.ValidateHookEvent("wallet:exploded"))
}

func TestValidateConfig(t *testing.T) {
	v := NewValidator()

	t.Run("defaults are valid", func(t *testing.T) {
		assert.Empty(t, v.ValidateConfig(DefaultConfig()))
	})

	t.Run("collects every problem", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Wallet.TargetFlag = "is-bad"
		cfg.Wallet.ChainNames = map[string]string{"not-a-chain": "Nope"}
		cfg.Provider.WebSocket.URL = "http://wrong"
		cfg.Logging.Level = "loud"

		errs := v.ValidateConfig(cfg)
		assert.Len(t, errs, 4)
	})

	t.Run("hooks are checked when enabled", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Hooks.Enabled = true
		cfg.Hooks.Entries = []HookEntryConfig{
			{ID: "ok", Event: wallet.HookConnected, Script: "echo hi", Enabled: true},
			{ID: "no-script", Event: wallet.HookError, Enabled: true},
			{ID: "bad-event", Event: "wallet:unknown", Script: "true", Enabled: true},
			{ID: "disabled", Enabled: false},
		}

		errs := v.ValidateConfig(cfg)
		assert.Len(t, errs, 2)
	})

	t.Run("browser transport", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Provider.Transport = TransportBrowser
		cfg.Provider.Browser.CDPPort = 99999

		errs := v.ValidateConfig(cfg)
		assert.Len(t, errs, 2)
	})
}
