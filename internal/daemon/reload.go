package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/harun/walletlink/internal/config"
	"github.com/harun/walletlink/internal/observability"
)

// ConfigWatcher reloads the config file when it changes on disk. The parent
// directory is watched because editors often replace the file by renaming.
type ConfigWatcher struct {
	watcher            *fsnotify.Watcher
	path               string
	stabilityThreshold time.Duration
	onChange           func()
	logger             zerolog.Logger

	done      chan struct{}
	timerMu   sync.Mutex
	debounce  *time.Timer
	stopOnce  sync.Once
	loopGroup sync.WaitGroup
}

// NewConfigWatcher creates a watcher that calls onChange after path settles.
func NewConfigWatcher(path string, onChange func(), logger zerolog.Logger) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &ConfigWatcher{
		watcher:            watcher,
		path:               filepath.Clean(path),
		stabilityThreshold: 200 * time.Millisecond,
		onChange:           onChange,
		logger:             logger.With().Str("component", "config-watcher").Logger(),
		done:               make(chan struct{}),
	}, nil
}

// Start starts watching the config file
func (w *ConfigWatcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	w.loopGroup.Add(1)
	go w.eventLoop()

	w.logger.Info().Str("path", w.path).Msg("Config watcher started")
	return nil
}

// Stop stops the watcher
func (w *ConfigWatcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)

		w.timerMu.Lock()
		if w.debounce != nil {
			w.debounce.Stop()
		}
		w.timerMu.Unlock()

		err = w.watcher.Close()
		w.loopGroup.Wait()
	})
	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (w *ConfigWatcher) eventLoop() {
	defer w.loopGroup.Done()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")

		case <-w.done:
			return
		}
	}
}

// schedule debounces bursts of writes into one reload
func (w *ConfigWatcher) schedule() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(w.stabilityThreshold, func() {
		select {
		case <-w.done:
		default:
			w.onChange()
		}
	})
}

// errConfigInvalid marks a reload rejected by validation.
var errConfigInvalid = errors.New("config is invalid")

// reloadConfig applies the settings that can change at runtime: log level,
// hooks and chain names. Other sections take effect on restart.
func (d *Daemon) reloadConfig() error {
	ctx := context.Background()
	logger := d.logger.GetZerolog()

	next, err := config.Load(d.configPath)
	if err != nil {
		observability.RecordConfigAudit(ctx, "config.reload", "file", "failed", map[string]interface{}{"error": err.Error()})
		return fmt.Errorf("failed to load config: %w", err)
	}

	if errs := config.NewValidator().ValidateConfig(next); len(errs) > 0 {
		joined := errors.Join(errs...)
		observability.RecordConfigAudit(ctx, "config.reload", "file", "rejected", map[string]interface{}{"error": joined.Error()})
		return fmt.Errorf("%w: %v", errConfigInvalid, joined)
	}

	if err := d.hookManager.Reload(next.Hooks.Enabled, hookDefinitions(next.Hooks)); err != nil {
		return fmt.Errorf("failed to reload hooks: %w", err)
	}
	if err := d.logger.SetLevel(next.Logging.Level); err != nil {
		return err
	}
	d.manager.SetChainNames(next.Wallet.ChainNames)

	d.mu.Lock()
	prev := d.config
	updated := *prev
	updated.Logging.Level = next.Logging.Level
	updated.Hooks = next.Hooks
	updated.Wallet.ChainNames = next.Wallet.ChainNames
	d.config = &updated
	d.mu.Unlock()

	if next.Provider.Transport != prev.Provider.Transport || next.Gateway.Port != prev.Gateway.Port {
		logger.Warn().Msg("Provider and gateway changes take effect after a restart")
	}

	observability.RecordConfigAudit(ctx, "config.reload", "file", "applied", map[string]interface{}{
		"log_level":   next.Logging.Level,
		"hook_events": d.hookManager.Events(),
		"chain_names": len(next.Wallet.ChainNames),
	})
	logger.Info().Str("log_level", next.Logging.Level).Msg("Configuration reloaded")
	return nil
}
