package daemon

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/walletlink/internal/config"
	"github.com/harun/walletlink/pkg/hooks"
)

const defaultHookTimeout = 5 * time.Second

func hookDefinitions(cfg config.HooksConfig) []hooks.Hook {
	hookDefs := make([]hooks.Hook, 0, len(cfg.Entries))
	for _, entry := range cfg.Entries {
		timeout := time.Duration(entry.Timeout) * time.Second
		if entry.Timeout <= 0 {
			timeout = defaultHookTimeout
		}
		hookDefs = append(hookDefs, hooks.Hook{
			ID:      strings.TrimSpace(entry.ID),
			Event:   strings.TrimSpace(entry.Event),
			Script:  strings.TrimSpace(entry.Script),
			Timeout: timeout,
			Enabled: entry.Enabled,
		})
	}
	return hookDefs
}

func newHookManager(cfg config.HooksConfig, logger zerolog.Logger) (*hooks.Manager, error) {
	return hooks.NewManager(hooks.Config{
		Enabled: cfg.Enabled,
		Hooks:   hookDefinitions(cfg),
		Logger:  logger,
	})
}
