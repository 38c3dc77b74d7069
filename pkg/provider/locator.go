package provider

import (
	"context"

	"github.com/rs/zerolog"
)

// Default brand configuration: MetaMask, with look-alikes that also set
// isMetaMask.
const (
	DefaultTargetFlag = "isMetaMask"
	DefaultMarker     = "_metamask"
)

var (
	DefaultListCompetitors   = []string{"isTrust", "isPhantom"}
	DefaultSingleCompetitors = []string{"isTrust", "isPhantom", "isBraveWallet"}
)

// LocatorConfig configures brand disambiguation.
type LocatorConfig struct {
	Source Source
	// TargetFlag is the brand flag the wanted wallet sets.
	TargetFlag string
	// ListCompetitors must all be unset on an aggregation-list entry.
	ListCompetitors []string
	// SingleCompetitors must all be unset on the single exposed provider.
	SingleCompetitors []string
	// Marker is the lower-confidence brand marker checked last.
	Marker string
	Logger zerolog.Logger
}

// Locator selects one provider from the injected surface.
type Locator struct {
	source            Source
	targetFlag        string
	listCompetitors   []string
	singleCompetitors []string
	marker            string
	logger            zerolog.Logger
}

// NewLocator creates a Locator, filling unset brand fields with the defaults.
func NewLocator(cfg LocatorConfig) *Locator {
	l := &Locator{
		source:            cfg.Source,
		targetFlag:        cfg.TargetFlag,
		listCompetitors:   cfg.ListCompetitors,
		singleCompetitors: cfg.SingleCompetitors,
		marker:            cfg.Marker,
		logger:            cfg.Logger.With().Str("component", "locator").Logger(),
	}
	if l.targetFlag == "" {
		l.targetFlag = DefaultTargetFlag
	}
	if l.listCompetitors == nil {
		l.listCompetitors = DefaultListCompetitors
	}
	if l.singleCompetitors == nil {
		l.singleCompetitors = DefaultSingleCompetitors
	}
	if l.marker == "" {
		l.marker = DefaultMarker
	}
	return l
}

// Handle is a borrowed reference to the located provider.
type Handle struct {
	Provider
	selector   Selector
	aggregated bool
}

// Aggregated reports whether the surface exposed a provider list.
func (h Handle) Aggregated() bool {
	return h.aggregated
}

// Activate pins the provider on aggregating surfaces. It is a no-op when
// the surface cannot select.
func (h Handle) Activate(ctx context.Context) error {
	if !h.aggregated || h.selector == nil {
		return nil
	}
	return h.selector.SetSelectedProvider(ctx, h.Provider)
}

// Locate returns the target provider, or false when none is found.
func (l *Locator) Locate(ctx context.Context) (Handle, bool) {
	if l == nil || l.source == nil {
		return Handle{}, false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	surface, err := l.source.Surface(ctx)
	if err != nil {
		l.logger.Debug().Err(err).Msg("Injected surface unavailable")
		return Handle{}, false
	}
	if surface == nil {
		return Handle{}, false
	}

	p, ok := l.Select(surface)
	if !ok {
		return Handle{}, false
	}
	return Handle{
		Provider:   p,
		selector:   surface.Selector,
		aggregated: len(surface.Providers) > 0,
	}, true
}

// Select applies the disambiguation rules to a surface snapshot.
func (l *Locator) Select(surface *Surface) (Provider, bool) {
	if surface == nil {
		return nil, false
	}

	for _, candidate := range surface.Providers {
		if candidate == nil {
			continue
		}
		flags := candidate.Flags()
		if flags.Has(l.targetFlag) && !flags.Any(l.listCompetitors...) {
			return candidate, true
		}
	}

	injected := surface.Injected
	if injected == nil {
		return nil, false
	}

	flags := injected.Flags()
	if flags.Has(l.targetFlag) && !flags.Any(l.singleCompetitors...) {
		return injected, true
	}
	if flags.Has(l.marker) {
		return injected, true
	}

	return nil, false
}
