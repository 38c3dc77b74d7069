package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Provider transports.
const (
	TransportWebSocket = "websocket"
	TransportBrowser   = "browser"
)

// Config represents the main walletlink configuration
type Config struct {
	// Wallet brand and operation settings
	Wallet WalletConfig `json:"wallet" mapstructure:"wallet"`

	// Provider transport
	Provider ProviderConfig `json:"provider" mapstructure:"provider"`

	// Gateway configuration
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Lifecycle hooks
	Hooks HooksConfig `json:"hooks" mapstructure:"hooks"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// WalletConfig describes the targeted wallet brand and its timeouts
type WalletConfig struct {
	Name              string            `json:"name" mapstructure:"name"`
	TargetFlag        string            `json:"target_flag" mapstructure:"target_flag"`
	ListCompetitors   []string          `json:"list_competitors" mapstructure:"list_competitors"`
	SingleCompetitors []string          `json:"single_competitors" mapstructure:"single_competitors"`
	Marker            string            `json:"marker" mapstructure:"marker"`
	PromptTimeout     int               `json:"prompt_timeout" mapstructure:"prompt_timeout"`   // seconds
	RequestTimeout    int               `json:"request_timeout" mapstructure:"request_timeout"` // seconds
	RefreshSchedule   string            `json:"refresh_schedule" mapstructure:"refresh_schedule"`
	ChainNames        map[string]string `json:"chain_names" mapstructure:"chain_names"`
}

// ProviderConfig selects how the injected provider is reached
type ProviderConfig struct {
	Transport string          `json:"transport" mapstructure:"transport"` // websocket, browser
	WebSocket WebSocketConfig `json:"websocket" mapstructure:"websocket"`
	Browser   BrowserConfig   `json:"browser" mapstructure:"browser"`
}

// WebSocketConfig holds the wallet endpoint for the websocket transport
type WebSocketConfig struct {
	URL         string   `json:"url" mapstructure:"url"`
	Token       string   `json:"token" mapstructure:"token"`
	Flags       []string `json:"flags" mapstructure:"flags"`
	DialTimeout int      `json:"dial_timeout" mapstructure:"dial_timeout"` // seconds
}

// BrowserConfig holds the Chrome profile and dapp page for the browser transport
type BrowserConfig struct {
	Profile        string   `json:"profile" mapstructure:"profile"`
	CDPPort        int      `json:"cdp_port" mapstructure:"cdp_port"`
	CDPUrl         string   `json:"cdp_url" mapstructure:"cdp_url"`
	Headless       bool     `json:"headless" mapstructure:"headless"`
	NoSandbox      bool     `json:"no_sandbox" mapstructure:"no_sandbox"`
	AttachOnly     bool     `json:"attach_only" mapstructure:"attach_only"`
	UserDataDir    string   `json:"user_data_dir" mapstructure:"user_data_dir"`
	ChromePath     string   `json:"chrome_path" mapstructure:"chrome_path"`
	Extensions     []string `json:"extensions" mapstructure:"extensions"`
	Args           []string `json:"args" mapstructure:"args"`
	DappURL        string   `json:"dapp_url" mapstructure:"dapp_url"`
	FlagNames      []string `json:"flag_names" mapstructure:"flag_names"`
	AllowFileUrls  bool     `json:"allow_file_urls" mapstructure:"allow_file_urls"`
	AllowLocalhost bool     `json:"allow_localhost" mapstructure:"allow_localhost"`
	AllowedDomains []string `json:"allowed_domains" mapstructure:"allowed_domains"`
	BlockedDomains []string `json:"blocked_domains" mapstructure:"blocked_domains"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
	Console   bool   `json:"console" mapstructure:"console"`
}

// GatewayConfig holds gateway server configuration
type GatewayConfig struct {
	Enabled      bool   `json:"enabled" mapstructure:"enabled"`
	Port         int    `json:"port" mapstructure:"port"`
	Host         string `json:"host" mapstructure:"host"`
	SharedSecret string `json:"shared_secret" mapstructure:"shared_secret"`
	TickInterval int    `json:"tick_interval" mapstructure:"tick_interval"` // ms
}

// HooksConfig holds lifecycle hook configuration
type HooksConfig struct {
	Enabled bool              `json:"enabled" mapstructure:"enabled"`
	Entries []HookEntryConfig `json:"entries" mapstructure:"entries"`
}

// HookEntryConfig is one script bound to a wallet event
type HookEntryConfig struct {
	ID      string `json:"id" mapstructure:"id"`
	Event   string `json:"event" mapstructure:"event"`
	Script  string `json:"script" mapstructure:"script"`
	Timeout int    `json:"timeout" mapstructure:"timeout"` // seconds
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Wallet: WalletConfig{
			Name:              "MetaMask",
			TargetFlag:        "isMetaMask",
			ListCompetitors:   []string{"isTrust", "isPhantom"},
			SingleCompetitors: []string{"isTrust", "isPhantom", "isBraveWallet"},
			Marker:            "_metamask",
			PromptTimeout:     120,
			RequestTimeout:    15,
			RefreshSchedule:   "@every 15s",
			ChainNames:        map[string]string{},
		},
		Provider: ProviderConfig{
			Transport: TransportWebSocket,
			WebSocket: WebSocketConfig{
				URL:         "ws://127.0.0.1:8546",
				Flags:       []string{"isMetaMask"},
				DialTimeout: 10,
			},
			Browser: BrowserConfig{
				Profile:        "default",
				Headless:       false,
				AllowLocalhost: true,
			},
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
			Console:   true,
		},
		Gateway: GatewayConfig{
			Enabled:      true,
			Port:         7420,
			Host:         "127.0.0.1",
			SharedSecret: "",
			TickInterval: 15000,
		},
		Hooks: HooksConfig{
			Enabled: false,
			Entries: []HookEntryConfig{},
		},
		DataDir: "",
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Wallet.TargetFlag) == "" {
		return fmt.Errorf("wallet target_flag is required")
	}

	switch c.Provider.Transport {
	case TransportWebSocket:
		if c.Provider.WebSocket.URL == "" {
			return fmt.Errorf("provider websocket url is required for the websocket transport")
		}
	case TransportBrowser:
		b := c.Provider.Browser
		if b.DappURL == "" {
			return fmt.Errorf("provider browser dapp_url is required for the browser transport")
		}
		if b.AttachOnly && b.CDPUrl == "" && b.CDPPort == 0 {
			return fmt.Errorf("provider browser attach_only requires cdp_url or cdp_port")
		}
	default:
		return fmt.Errorf("invalid provider transport %q (must be: websocket, browser)", c.Provider.Transport)
	}

	if c.Gateway.Enabled && (c.Gateway.Port < 0 || c.Gateway.Port > 65535) {
		return fmt.Errorf("gateway port must be between 0 and 65535, got %d", c.Gateway.Port)
	}

	return nil
}
