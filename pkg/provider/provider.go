// Package provider models EIP-1193 wallet providers and the injected surface
// they are discovered on.
//
// Invariants:
// - Provider errors are decoded into *Error exactly once, at the Call boundary.
// - Locate never mutates a provider and never returns an error.
// - Every listener registered through On is removable through RemoveListener.
package provider

import (
	"context"
	"encoding/json"
)

// Request methods used by the connection manager.
const (
	MethodRequestAccounts    = "eth_requestAccounts"
	MethodAccounts           = "eth_accounts"
	MethodChainID            = "eth_chainId"
	MethodSwitchChain        = "wallet_switchEthereumChain"
	MethodWatchAsset         = "wallet_watchAsset"
	MethodRevokePermissions  = "wallet_revokePermissions"
	MethodRequestPermissions = "wallet_requestPermissions"
)

// Provider-emitted event names.
const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
	EventDisconnect      = "disconnect"
)

// Flags holds brand flags and markers a provider advertises about itself,
// keyed by property name (isMetaMask, isTrust, _metamask, ...).
type Flags map[string]bool

// Has reports whether the named flag is set.
func (f Flags) Has(name string) bool {
	return f != nil && f[name]
}

// Any reports whether at least one of the named flags is set.
func (f Flags) Any(names ...string) bool {
	for _, name := range names {
		if f.Has(name) {
			return true
		}
	}
	return false
}

// Listener receives the raw JSON payload of a provider event.
type Listener func(payload json.RawMessage)

// ListenerID identifies a registered listener.
type ListenerID uint64

// Provider is a single wallet provider capability.
type Provider interface {
	// ID is stable for the lifetime of the underlying provider object.
	ID() string
	Flags() Flags
	Request(ctx context.Context, method string, params interface{}) (json.RawMessage, error)
	On(event string, listener Listener) (ListenerID, error)
	RemoveListener(event string, id ListenerID) error
}

// Selector is implemented by aggregating surfaces that let a page pin one
// provider as the active one.
type Selector interface {
	SetSelectedProvider(ctx context.Context, p Provider) error
}

// Surface is a snapshot of the injected provider surface.
type Surface struct {
	// Injected is the single exposed provider (window.ethereum).
	Injected Provider
	// Providers is the multi-provider aggregation list, if any.
	Providers []Provider
	// Selector is nil when the surface cannot pin a provider.
	Selector Selector
}

// Source yields the current injected surface. A nil surface with a nil
// error means no provider environment is present.
type Source interface {
	Surface(ctx context.Context) (*Surface, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (*Surface, error)

// Surface implements Source.
func (f SourceFunc) Surface(ctx context.Context) (*Surface, error) {
	return f(ctx)
}

// StaticSource always yields the same surface.
func StaticSource(s *Surface) Source {
	return SourceFunc(func(context.Context) (*Surface, error) {
		return s, nil
	})
}
