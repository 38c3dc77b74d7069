package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/harun/walletlink/pkg/provider"
	"github.com/harun/walletlink/pkg/wallet"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

var flagPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// ValidateFlagName validates a provider property name such as isMetaMask
func (v *Validator) ValidateFlagName(name string) error {
	if name == "" {
		return fmt.Errorf("flag name cannot be empty")
	}
	if !flagPattern.MatchString(name) {
		return fmt.Errorf("invalid flag name: %s", name)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateTransport validates the provider transport
func (v *Validator) ValidateTransport(transport string) error {
	switch transport {
	case TransportWebSocket, TransportBrowser:
		return nil
	}
	return fmt.Errorf("invalid provider transport: %s (must be one of: %s, %s)", transport, TransportWebSocket, TransportBrowser)
}

// ValidateWebSocketURL validates a wallet endpoint URL
func (v *Validator) ValidateWebSocketURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid websocket url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("websocket url must use ws or wss, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("websocket url has no host: %s", raw)
	}
	return nil
}

// ValidatePort validates a TCP port; 0 selects an ephemeral port
func (v *Validator) ValidatePort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", port)
	}
	return nil
}

// ValidateSchedule validates a cron spec such as "@every 15s"
func (v *Validator) ValidateSchedule(spec string) error {
	if spec == "" {
		return nil // Refresh disabled
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	return nil
}

// ValidateHookEvent validates a lifecycle hook event name
func (v *Validator) ValidateHookEvent(event string) error {
	for _, known := range wallet.HookEvents {
		if event == known {
			return nil
		}
	}
	return fmt.Errorf("unknown hook event: %s (must be one of: %s)", event, strings.Join(wallet.HookEvents, ", "))
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	// Validate wallet brand
	if err := v.ValidateFlagName(cfg.Wallet.TargetFlag); err != nil {
		errors = append(errors, fmt.Errorf("wallet target_flag: %w", err))
	}
	for _, flag := range append(append([]string{}, cfg.Wallet.ListCompetitors...), cfg.Wallet.SingleCompetitors...) {
		if err := v.ValidateFlagName(flag); err != nil {
			errors = append(errors, fmt.Errorf("wallet competitors: %w", err))
		}
	}
	if cfg.Wallet.Marker != "" {
		if err := v.ValidateFlagName(cfg.Wallet.Marker); err != nil {
			errors = append(errors, fmt.Errorf("wallet marker: %w", err))
		}
	}
	if cfg.Wallet.PromptTimeout < 0 {
		errors = append(errors, fmt.Errorf("wallet.prompt_timeout must be >= 0"))
	}
	if cfg.Wallet.RequestTimeout < 0 {
		errors = append(errors, fmt.Errorf("wallet.request_timeout must be >= 0"))
	}
	if err := v.ValidateSchedule(cfg.Wallet.RefreshSchedule); err != nil {
		errors = append(errors, err)
	}
	for id, name := range cfg.Wallet.ChainNames {
		if _, err := provider.NormalizeChainID(id); err != nil {
			errors = append(errors, fmt.Errorf("wallet chain_names: %w", err))
		}
		if strings.TrimSpace(name) == "" {
			errors = append(errors, fmt.Errorf("wallet chain_names: empty name for %s", id))
		}
	}

	// Validate provider transport
	if err := v.ValidateTransport(cfg.Provider.Transport); err != nil {
		errors = append(errors, err)
	}
	switch cfg.Provider.Transport {
	case TransportWebSocket:
		if err := v.ValidateWebSocketURL(cfg.Provider.WebSocket.URL); err != nil {
			errors = append(errors, fmt.Errorf("provider websocket: %w", err))
		}
		if cfg.Provider.WebSocket.DialTimeout < 0 {
			errors = append(errors, fmt.Errorf("provider.websocket.dial_timeout must be >= 0"))
		}
		for _, flag := range cfg.Provider.WebSocket.Flags {
			if err := v.ValidateFlagName(flag); err != nil {
				errors = append(errors, fmt.Errorf("provider websocket flags: %w", err))
			}
		}
	case TransportBrowser:
		if strings.TrimSpace(cfg.Provider.Browser.DappURL) == "" {
			errors = append(errors, fmt.Errorf("provider.browser.dapp_url is required"))
		}
		if cfg.Provider.Browser.CDPPort != 0 {
			if err := v.ValidatePort(cfg.Provider.Browser.CDPPort); err != nil {
				errors = append(errors, fmt.Errorf("provider browser cdp_port: %w", err))
			}
		}
	}

	// Validate gateway
	if cfg.Gateway.Enabled {
		if err := v.ValidatePort(cfg.Gateway.Port); err != nil {
			errors = append(errors, fmt.Errorf("gateway: %w", err))
		}
		if cfg.Gateway.TickInterval < 0 {
			errors = append(errors, fmt.Errorf("gateway.tick_interval must be >= 0"))
		}
	}

	if cfg.Hooks.Enabled {
		for i, hook := range cfg.Hooks.Entries {
			if !hook.Enabled {
				continue
			}
			if strings.TrimSpace(hook.Event) == "" {
				errors = append(errors, fmt.Errorf("hook %d: event is required", i))
			} else if err := v.ValidateHookEvent(hook.Event); err != nil {
				errors = append(errors, fmt.Errorf("hook %d: %w", i, err))
			}
			if strings.TrimSpace(hook.Script) == "" {
				errors = append(errors, fmt.Errorf("hook %d: script is required", i))
			}
			if hook.Timeout < 0 {
				errors = append(errors, fmt.Errorf("hook %d: timeout must be >= 0", i))
			}
		}
	}

	// Validate logging
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
