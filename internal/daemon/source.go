package daemon

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/walletlink/internal/config"
	"github.com/harun/walletlink/pkg/browser"
	"github.com/harun/walletlink/pkg/provider"
	"github.com/harun/walletlink/pkg/wsprovider"
)

// walletSource is a provider.Source the daemon owns and must close.
type walletSource interface {
	provider.Source
	Close() error
}

// healthChecker is implemented by sources backed by a process that can die.
type healthChecker interface {
	Healthy(ctx context.Context) error
}

// openSource is a variable so tests can substitute an in-memory source.
var openSource = func(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (walletSource, error) {
	switch cfg.Provider.Transport {
	case config.TransportWebSocket:
		return wsprovider.NewSource(webSocketConfig(cfg.Provider.WebSocket, logger)), nil

	case config.TransportBrowser:
		session, err := browser.Open(ctx, browserSessionConfig(cfg, logger))
		if err != nil {
			return nil, fmt.Errorf("failed to open browser session: %w", err)
		}
		return session, nil

	default:
		return nil, fmt.Errorf("unsupported provider transport: %s", cfg.Provider.Transport)
	}
}

func webSocketConfig(cfg config.WebSocketConfig, logger zerolog.Logger) wsprovider.Config {
	flags := make(provider.Flags, len(cfg.Flags))
	for _, name := range cfg.Flags {
		flags[name] = true
	}

	header := http.Header{}
	if cfg.Token != "" {
		header.Set("Authorization", "Bearer "+cfg.Token)
	}

	return wsprovider.Config{
		URL:         cfg.URL,
		Header:      header,
		Flags:       flags,
		DialTimeout: time.Duration(cfg.DialTimeout) * time.Second,
		Logger:      logger,
	}
}

func browserSessionConfig(cfg *config.Config, logger zerolog.Logger) browser.SessionConfig {
	b := cfg.Provider.Browser
	return browser.SessionConfig{
		Profile: browser.Profile{
			Name:        b.Profile,
			CDPPort:     b.CDPPort,
			CDPUrl:      b.CDPUrl,
			Headless:    b.Headless,
			NoSandbox:   b.NoSandbox,
			AttachOnly:  b.AttachOnly,
			UserDataDir: b.UserDataDir,
			ChromePath:  b.ChromePath,
			Extensions:  b.Extensions,
			Args:        b.Args,
			DappURL:     b.DappURL,
		},
		Security: browser.SecurityConfig{
			AllowFileUrls:      b.AllowFileUrls,
			AllowLocalhostUrls: b.AllowLocalhost,
			AllowedDomains:     b.AllowedDomains,
			BlockedDomains:     b.BlockedDomains,
		},
		BaseDir:   cfg.DataDir,
		FlagNames: b.FlagNames,
		Logger:    logger,
	}
}
