package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"

	"github.com/harun/walletlink/pkg/provider"
)

// SessionConfig configures Open.
type SessionConfig struct {
	Profile  Profile
	Security SecurityConfig
	// BaseDir anchors relative profile paths.
	BaseDir   string
	FlagNames []string
	Logger    zerolog.Logger
}

// Session is a dapp page in Chrome whose injected providers are exposed as
// a provider.Source.
type Session struct {
	*InjectedSource

	process  *ProcessManager
	browser  *rod.Browser
	page     *rod.Page
	spawned  bool
	stopHook func() error
	logger   zerolog.Logger

	closeOnce sync.Once
	closeErr  error
}

var _ provider.Source = (*Session)(nil)

// Open launches or attaches to Chrome and opens the dapp page.
func Open(ctx context.Context, cfg SessionConfig) (*Session, error) {
	logger := cfg.Logger.With().Str("component", "browser").Str("profile", cfg.Profile.Name).Logger()

	if err := ValidateProfile(&cfg.Profile); err != nil {
		return nil, err
	}
	if err := NewSecurityValidator(cfg.Security, cfg.Logger).ValidateURL(cfg.Profile.DappURL); err != nil {
		return nil, err
	}

	resolved, err := ResolveProfile(&cfg.Profile, cfg.BaseDir)
	if err != nil {
		return nil, err
	}

	s := &Session{
		process: NewProcessManager(resolved),
		spawned: !resolved.AttachOnly,
		logger:  logger,
	}

	if s.spawned {
		s.browser, err = s.process.Launch(ctx)
	} else {
		s.browser, err = s.process.Attach(ctx)
	}
	if err != nil {
		s.process.Kill()
		return nil, err
	}

	s.page, err = s.browser.Page(proto.TargetCreateTarget{URL: cfg.Profile.DappURL})
	if err != nil {
		s.release()
		return nil, &BrowserError{
			Code:    ErrCodeNavigation,
			Message: fmt.Sprintf("Failed to open %s: %v", cfg.Profile.DappURL, err),
		}
	}
	if err := s.page.Context(ctx).WaitLoad(); err != nil {
		s.release()
		return nil, &BrowserError{
			Code:    ErrCodeNavigation,
			Message: fmt.Sprintf("Dapp page did not load: %v", err),
		}
	}

	s.InjectedSource, s.stopHook, err = NewInjectedSource(s.page, cfg.FlagNames, cfg.Logger)
	if err != nil {
		s.release()
		return nil, err
	}

	logger.Info().
		Str("dapp_url", cfg.Profile.DappURL).
		Bool("attached", !s.spawned).
		Msg("Dapp page opened")
	return s, nil
}

// Healthy reports whether the CDP endpoint still answers.
func (s *Session) Healthy(ctx context.Context) error {
	return s.process.CheckHealth(ctx)
}

// Close closes the dapp page. A browser launched by Open is terminated, an
// attached one is left running.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.stopHook != nil {
			if err := s.stopHook(); err != nil {
				s.logger.Debug().Err(err).Msg("Failed to remove event binding")
			}
		}
		s.closeErr = s.release()
	})
	return s.closeErr
}

func (s *Session) release() error {
	var err error
	if s.page != nil {
		err = s.page.Close()
	}
	if s.spawned {
		if s.browser != nil {
			_ = s.browser.Close()
		}
		s.process.Kill()
	}
	return err
}
