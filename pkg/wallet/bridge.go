package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/walletlink/internal/observability"
	"github.com/harun/walletlink/pkg/provider"
)

// Bridge mirrors provider events into the Store.
type Bridge struct {
	store          *Store
	requestTimeout time.Duration
	logger         zerolog.Logger
}

// NewBridge creates a Bridge writing to store.
func NewBridge(store *Store, requestTimeout time.Duration, logger zerolog.Logger) *Bridge {
	if requestTimeout == 0 {
		requestTimeout = DefaultRequestTimeout
	}
	return &Bridge{
		store:          store,
		requestTimeout: requestTimeout,
		logger:         logger.With().Str("component", "bridge").Logger(),
	}
}

type registration struct {
	event string
	id    provider.ListenerID
}

// Binding owns the event subscriptions on one provider.
type Binding struct {
	provider      provider.Provider
	registrations []registration
	closed        atomic.Bool
	once          sync.Once
	closeErr      error
}

// ProviderID returns the ID of the bound provider.
func (b *Binding) ProviderID() string {
	return b.provider.ID()
}

// Close releases every subscription. Only the first call has an effect.
func (b *Binding) Close() error {
	if b == nil {
		return nil
	}
	b.once.Do(func() {
		b.closed.Store(true)
		b.closeErr = release(b.provider, b.registrations)
	})
	return b.closeErr
}

func release(p provider.Provider, regs []registration) error {
	var errs []error
	for _, reg := range regs {
		if err := p.RemoveListener(reg.event, reg.id); err != nil {
			errs = append(errs, fmt.Errorf("remove %s listener: %w", reg.event, err))
		}
	}
	return errors.Join(errs...)
}

// Bind subscribes to accountsChanged, chainChanged and disconnect. If any
// subscription fails the ones already acquired are released.
func (br *Bridge) Bind(ctx context.Context, p provider.Provider) (*Binding, error) {
	if p == nil {
		return nil, fmt.Errorf("provider is required")
	}

	binding := &Binding{provider: p}
	logger := br.logger.With().Str("provider", p.ID()).Logger()

	handlers := []struct {
		event   string
		handler func(json.RawMessage)
	}{
		{event: provider.EventAccountsChanged, handler: br.onAccountsChanged(logger)},
		{event: provider.EventChainChanged, handler: br.onChainChanged(logger)},
		{event: provider.EventDisconnect, handler: br.onDisconnect(logger)},
	}

	for _, h := range handlers {
		event, handler := h.event, h.handler
		id, err := p.On(event, func(payload json.RawMessage) {
			if binding.closed.Load() {
				return
			}
			observability.RecordEvent(event)
			handler(payload)
		})
		if err != nil {
			if releaseErr := release(p, binding.registrations); releaseErr != nil {
				logger.Warn().Err(releaseErr).Msg("Failed to release partial subscriptions")
			}
			return nil, fmt.Errorf("subscribe to %s: %w", event, err)
		}
		binding.registrations = append(binding.registrations, registration{event: event, id: id})
	}

	logger.Debug().Msg("Provider events bound")
	return binding, nil
}

func (br *Bridge) onAccountsChanged(logger zerolog.Logger) func(json.RawMessage) {
	return func(payload json.RawMessage) {
		var accounts []string
		if len(payload) > 0 && string(payload) != "null" {
			if err := json.Unmarshal(payload, &accounts); err != nil {
				logger.Warn().Err(err).Msg("Ignoring malformed accountsChanged payload")
				return
			}
		}

		if len(accounts) == 0 || accounts[0] == "" {
			br.store.Reset()
			return
		}
		br.store.Update(Patch{
			Account:     str(accounts[0]),
			IsConnected: boolean(true),
			Error:       str(""),
		})
	}
}

func (br *Bridge) onChainChanged(logger zerolog.Logger) func(json.RawMessage) {
	return func(payload json.RawMessage) {
		chainID, err := provider.DecodeChainID(payload)
		if err != nil {
			logger.Warn().Err(err).Msg("Ignoring malformed chainChanged payload")
			return
		}
		br.store.Update(Patch{ChainID: str(chainID)})
	}
}

func (br *Bridge) onDisconnect(logger zerolog.Logger) func(json.RawMessage) {
	return func(payload json.RawMessage) {
		logger.Info().RawJSON("payload", nonEmptyJSON(payload)).Msg("Provider disconnected")
		br.store.Reset()
	}
}

// Reconcile silently restores a session the wallet already authorised.
// Failures are logged and otherwise ignored.
func (br *Bridge) Reconcile(ctx context.Context, p provider.Provider) {
	if p == nil {
		return
	}
	logger := br.logger.With().Str("provider", p.ID()).Logger()

	reqCtx, cancel := context.WithTimeout(ctx, br.requestTimeout)
	defer cancel()

	accounts, perr := provider.Accounts(reqCtx, p, false)
	if perr != nil {
		logger.Debug().Str("reason", perr.Message).Msg("Account reconciliation failed")
		return
	}
	if len(accounts) == 0 || accounts[0] == "" {
		return
	}

	chainID, perr := provider.ChainID(reqCtx, p)
	if perr != nil {
		logger.Debug().Str("reason", perr.Message).Msg("Chain reconciliation failed")
		return
	}

	br.store.Update(Patch{
		Account:     str(accounts[0]),
		ChainID:     str(chainID),
		IsConnected: boolean(true),
	})
	logger.Info().Str("account", ShortAddress(accounts[0])).Str("chain_id", chainID).Msg("Restored authorised session")
}

func nonEmptyJSON(payload json.RawMessage) []byte {
	if len(payload) == 0 || !json.Valid(payload) {
		return []byte("null")
	}
	return payload
}
