// Package hooks runs user shell scripts when wallet lifecycle events fire.
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// EnvPrefix prefixes every environment variable passed to hook scripts.
const EnvPrefix = "WALLETLINK_HOOK_"

// Hook is one script bound to an event.
type Hook struct {
	ID      string
	Event   string
	Script  string
	Timeout time.Duration
	Enabled bool
}

func (h Hook) name() string {
	if id := strings.TrimSpace(h.ID); id != "" {
		return id
	}
	return h.Event
}

// Config configures a Hook manager.
type Config struct {
	Enabled bool
	Hooks   []Hook
	Logger  zerolog.Logger
}

// binding is the immutable hook table swapped in by Reload.
type binding map[string][]Hook

// Manager runs the hooks bound to an event. The table can be swapped while
// hooks run; a Trigger uses the table current when it started.
type Manager struct {
	logger zerolog.Logger
	table  atomic.Pointer[binding]
}

// NewManager creates a hook manager.
func NewManager(cfg Config) (*Manager, error) {
	m := &Manager{logger: cfg.Logger.With().Str("component", "hooks").Logger()}
	if err := m.Reload(cfg.Enabled, cfg.Hooks); err != nil {
		return nil, err
	}
	return m, nil
}

// Reload replaces the hook table. On error the previous table is kept.
// Disabled managers get an empty table.
func (m *Manager) Reload(enabled bool, hooks []Hook) error {
	next := binding{}
	for _, h := range hooks {
		if !enabled || !h.Enabled {
			continue
		}
		h.Event = strings.TrimSpace(h.Event)
		switch {
		case h.Event == "":
			return fmt.Errorf("hook event is required")
		case strings.TrimSpace(h.Script) == "":
			return fmt.Errorf("hook script is required for event %q", h.Event)
		}
		next[h.Event] = append(next[h.Event], h)
	}
	m.table.Store(&next)
	return nil
}

// Events returns the events that have at least one enabled hook.
func (m *Manager) Events() []string {
	table := *m.table.Load()
	events := make([]string, 0, len(table))
	for event := range table {
		events = append(events, event)
	}
	sort.Strings(events)
	return events
}

// Trigger runs every hook bound to event in order and joins their failures.
// The event data reaches scripts as WALLETLINK_HOOK_DATA_* variables and as
// a JSON object on stdin.
func (m *Manager) Trigger(ctx context.Context, event string, data map[string]interface{}) error {
	if m == nil {
		return nil
	}
	event = strings.TrimSpace(event)
	if event == "" {
		return fmt.Errorf("event is required")
	}
	hooks := (*m.table.Load())[event]
	if len(hooks) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	payload, err := json.Marshal(struct {
		Event string                 `json:"event"`
		Data  map[string]interface{} `json:"data"`
	}{event, data})
	if err != nil {
		return fmt.Errorf("encode hook payload: %w", err)
	}
	env := hookEnv(event, data)

	var errs []error
	for _, h := range hooks {
		errs = append(errs, m.run(ctx, h, env, payload))
	}
	return errors.Join(errs...)
}

func (m *Manager) run(ctx context.Context, h Hook, env []string, payload []byte) error {
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", h.Script)
	cmd.Env = env
	cmd.Stdin = bytes.NewReader(payload)
	out, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(out))

	switch {
	case err != nil && text != "":
		return fmt.Errorf("hook %s failed: %w: %s", h.name(), err, text)
	case err != nil:
		return fmt.Errorf("hook %s failed: %w", h.name(), err)
	}
	m.logger.Debug().Str("event", h.Event).Str("hook_id", h.name()).Str("output", text).Msg("Hook executed")
	return nil
}

func hookEnv(event string, data map[string]interface{}) []string {
	env := append(os.Environ(), EnvPrefix+"EVENT="+event)

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%sDATA_%s=%v", EnvPrefix, envKey(k), data[k]))
	}
	return env
}

// envKey upper-cases key and replaces anything outside [A-Z0-9] with '_'.
func envKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "UNKNOWN"
	}
	return strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, strings.ToUpper(key))
}
