package wsprovider

import (
	"context"
	"sync"

	"github.com/harun/walletlink/pkg/provider"
)

// Source exposes the websocket provider as a single-provider surface. It
// dials lazily and redials after the connection drops.
type Source struct {
	cfg Config

	mu      sync.Mutex
	current *Provider
}

// NewSource creates a Source for the endpoint in cfg.
func NewSource(cfg Config) *Source {
	return &Source{cfg: cfg}
}

// Surface implements provider.Source.
func (s *Source) Surface(ctx context.Context) (*provider.Surface, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		select {
		case <-s.current.Done():
			s.current = nil
		default:
		}
	}

	if s.current == nil {
		p, err := Dial(ctx, s.cfg)
		if err != nil {
			return nil, err
		}
		s.current = p
	}

	return &provider.Surface{Injected: s.current}, nil
}

// Close closes the current connection, if any.
func (s *Source) Close() error {
	s.mu.Lock()
	current := s.current
	s.current = nil
	s.mu.Unlock()

	if current == nil {
		return nil
	}
	return current.Close()
}
