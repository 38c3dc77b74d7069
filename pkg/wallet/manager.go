package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/walletlink/internal/observability"
	"github.com/harun/walletlink/pkg/provider"
)

// Lifecycle hook events fired on session transitions.
const (
	HookConnected      = "wallet:connected"
	HookDisconnected   = "wallet:disconnected"
	HookAccountChanged = "wallet:account_changed"
	HookChainChanged   = "wallet:chain_changed"
	HookError          = "wallet:error"
)

// HookEvents lists every lifecycle hook event.
var HookEvents = []string{HookConnected, HookDisconnected, HookAccountChanged, HookChainChanged, HookError}

// HookTrigger runs lifecycle hooks for an event.
type HookTrigger interface {
	Trigger(ctx context.Context, event string, data map[string]interface{}) error
}

// Brand identifies the wallet the Manager targets.
type Brand struct {
	Name              string
	TargetFlag        string
	ListCompetitors   []string
	SingleCompetitors []string
	Marker            string
}

// Config configures a Manager.
type Config struct {
	Source provider.Source
	// Locator overrides the locator built from Source and Brand.
	Locator        Locator
	Brand          Brand
	PromptTimeout  time.Duration
	RequestTimeout time.Duration
	// ChainNames adds display names on top of the built-in ones.
	ChainNames map[string]string
	Hooks      HookTrigger
	Logger     zerolog.Logger
}

type hookCall struct {
	event string
	data  map[string]interface{}
}

// Manager owns one Session and everything that writes to it.
type Manager struct {
	store      *Store
	controller *Controller
	bridge     *Bridge
	locator    Locator
	hooks      HookTrigger
	logger     zerolog.Logger

	mu      sync.Mutex
	binding *Binding

	chainsMu sync.RWMutex
	chains   ChainNames

	hookQueue   chan hookCall
	hookDone    chan struct{}
	unsubscribe func()
	closeOnce   sync.Once
}

// NewManager creates a Manager. It does not touch the provider until Start.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger.With().Str("component", "wallet").Logger()

	locator := cfg.Locator
	if locator == nil {
		locator = provider.NewLocator(provider.LocatorConfig{
			Source:            cfg.Source,
			TargetFlag:        cfg.Brand.TargetFlag,
			ListCompetitors:   cfg.Brand.ListCompetitors,
			SingleCompetitors: cfg.Brand.SingleCompetitors,
			Marker:            cfg.Brand.Marker,
			Logger:            cfg.Logger,
		})
	}

	store := NewStore()
	m := &Manager{
		store: store,
		controller: NewController(ControllerConfig{
			Locator:        locator,
			Store:          store,
			Messages:       DefaultMessages(cfg.Brand.Name),
			PromptTimeout:  cfg.PromptTimeout,
			RequestTimeout: cfg.RequestTimeout,
			Logger:         cfg.Logger,
		}),
		bridge:    NewBridge(store, cfg.RequestTimeout, cfg.Logger),
		locator:   locator,
		chains:    DefaultChainNames(cfg.ChainNames),
		hooks:     cfg.Hooks,
		logger:    logger,
		hookQueue: make(chan hookCall, 64),
		hookDone:  make(chan struct{}),
	}

	go m.runHooks()
	m.unsubscribe = store.Subscribe(m.observe(store.Snapshot()))
	return m
}

// Store returns the session store.
func (m *Manager) Store() *Store {
	return m.store
}

// Snapshot returns the current session.
func (m *Manager) Snapshot() Session {
	return m.store.Snapshot()
}

// Subscribe registers fn for every session update.
func (m *Manager) Subscribe(fn Subscriber) func() {
	return m.store.Subscribe(fn)
}

// ChainName returns the display name for chainID.
func (m *Manager) ChainName(chainID string) string {
	m.chainsMu.RLock()
	defer m.chainsMu.RUnlock()
	return m.chains.Name(chainID)
}

// SetChainNames replaces the configured names on top of the built-in ones.
func (m *Manager) SetChainNames(extra map[string]string) {
	names := DefaultChainNames(extra)
	m.chainsMu.Lock()
	m.chains = names
	m.chainsMu.Unlock()
}

// Chains returns a copy of the known chain names.
func (m *Manager) Chains() ChainNames {
	m.chainsMu.RLock()
	defer m.chainsMu.RUnlock()
	out := make(ChainNames, len(m.chains))
	for id, name := range m.chains {
		out[id] = name
	}
	return out
}

func (m *Manager) Connect(ctx context.Context) {
	m.controller.Connect(ctx)
}

func (m *Manager) Disconnect(ctx context.Context) {
	m.controller.Disconnect(ctx)
}

func (m *Manager) SwitchChain(ctx context.Context, chainID string) {
	m.controller.SwitchChain(ctx, chainID)
}

func (m *Manager) AddToken(ctx context.Context, token Token) {
	m.controller.AddToken(ctx, token)
}

// Start locates the provider, binds its events and restores an already
// authorised session. A missing provider is not an error.
func (m *Manager) Start(ctx context.Context) error {
	return m.Refresh(ctx)
}

// Refresh re-locates the provider. When its identity changed the old
// binding is released and the new provider is bound and reconciled.
func (m *Manager) Refresh(ctx context.Context) error {
	handle, found := m.locator.Locate(ctx)

	m.mu.Lock()
	current := m.binding

	if !found {
		if current != nil {
			m.binding = nil
			m.mu.Unlock()
			m.logger.Info().Str("provider", current.ProviderID()).Msg("Provider no longer available")
			return current.Close()
		}
		m.mu.Unlock()
		return nil
	}

	if current != nil && current.ProviderID() == handle.ID() {
		m.mu.Unlock()
		return nil
	}

	if current != nil {
		if err := current.Close(); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to release previous provider binding")
		}
		m.binding = nil
		observability.RecordRebind()
		m.logger.Info().Str("previous", current.ProviderID()).Str("provider", handle.ID()).Msg("Provider changed, rebinding")
	}

	binding, err := m.bridge.Bind(ctx, handle.Provider)
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("bind provider %s: %w", handle.ID(), err)
	}
	m.binding = binding
	m.mu.Unlock()

	m.bridge.Reconcile(ctx, handle.Provider)
	return nil
}

// BoundProviderID returns the ID of the provider whose events are bound.
func (m *Manager) BoundProviderID() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.binding == nil {
		return "", false
	}
	return m.binding.ProviderID(), true
}

// Close releases the provider binding and stops hook dispatch.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.mu.Lock()
		binding := m.binding
		m.binding = nil
		m.mu.Unlock()

		err = binding.Close()
		m.unsubscribe()
		// Wait out any notification that captured the subscriber before it
		// was removed.
		m.store.notifyMu.Lock()
		m.store.notifyMu.Unlock()
		close(m.hookQueue)
		<-m.hookDone
	})
	return err
}

func (m *Manager) observe(initial Session) Subscriber {
	prev := initial
	return func(next Session) {
		observability.SetSessionConnected(next.IsConnected)
		for _, call := range transitions(prev, next, m.Chains()) {
			m.enqueueHook(call)
		}
		prev = next
	}
}

func (m *Manager) enqueueHook(call hookCall) {
	if m.hooks == nil {
		return
	}
	select {
	case m.hookQueue <- call:
	default:
		m.logger.Warn().Str("event", call.event).Msg("Hook queue full, dropping event")
	}
}

func (m *Manager) runHooks() {
	defer close(m.hookDone)
	for call := range m.hookQueue {
		err := m.hooks.Trigger(context.Background(), call.event, call.data)
		observability.RecordHookRun(call.event, err == nil)
		if err != nil {
			m.logger.Warn().Err(err).Str("event", call.event).Msg("Wallet hooks failed")
		}
	}
}

func transitions(prev, next Session, chains ChainNames) []hookCall {
	var calls []hookCall

	switch {
	case !prev.IsConnected && next.IsConnected:
		calls = append(calls, hookCall{event: HookConnected, data: map[string]interface{}{
			"account":    next.Account,
			"chain_id":   next.ChainID,
			"chain_name": chains.Name(next.ChainID),
		}})
	case prev.IsConnected && !next.IsConnected:
		calls = append(calls, hookCall{event: HookDisconnected, data: map[string]interface{}{
			"account": prev.Account,
		}})
	case prev.IsConnected && next.IsConnected && prev.Account != next.Account:
		calls = append(calls, hookCall{event: HookAccountChanged, data: map[string]interface{}{
			"account":          next.Account,
			"previous_account": prev.Account,
		}})
	}

	if prev.ChainID != "" && next.ChainID != "" && prev.ChainID != next.ChainID {
		calls = append(calls, hookCall{event: HookChainChanged, data: map[string]interface{}{
			"chain_id":          next.ChainID,
			"previous_chain_id": prev.ChainID,
			"chain_name":        chains.Name(next.ChainID),
		}})
	}

	if next.Error != "" && next.Error != prev.Error {
		calls = append(calls, hookCall{event: HookError, data: map[string]interface{}{
			"error": next.Error,
		}})
	}

	return calls
}
