// Package providertest provides an in-memory provider for tests.
package providertest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/harun/walletlink/pkg/provider"
)

// Handler answers one request method.
type Handler func(ctx context.Context, params interface{}) (json.RawMessage, error)

// RecordedCall is a request the fake received.
type RecordedCall struct {
	Method string
	Params interface{}
}

// Fake is a scriptable provider.Provider.
type Fake struct {
	provider.Emitter

	id    string
	flags provider.Flags

	mu       sync.Mutex
	handlers map[string]Handler
	calls    []RecordedCall
}

// New creates a fake with the given id and brand flags.
func New(id string, flags provider.Flags) *Fake {
	return &Fake{
		id:       id,
		flags:    flags,
		handlers: make(map[string]Handler),
	}
}

// NewMetaMask creates a fake that only sets isMetaMask.
func NewMetaMask(id string) *Fake {
	return New(id, provider.Flags{"isMetaMask": true})
}

func (f *Fake) ID() string {
	return f.id
}

func (f *Fake) Flags() provider.Flags {
	return f.flags
}

// Handle installs a handler for method.
func (f *Fake) Handle(method string, h Handler) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = h
	return f
}

// Respond installs a handler that returns value marshalled as JSON.
func (f *Fake) Respond(method string, value interface{}) *Fake {
	data, err := json.Marshal(value)
	if err != nil {
		panic(err)
	}
	return f.Handle(method, func(context.Context, interface{}) (json.RawMessage, error) {
		return data, nil
	})
}

// Fail installs a handler that returns a provider error.
func (f *Fake) Fail(method string, code int, message string) *Fake {
	return f.Handle(method, func(context.Context, interface{}) (json.RawMessage, error) {
		return nil, provider.NewError(code, message)
	})
}

// Block installs a handler that waits until the context ends.
func (f *Fake) Block(method string) *Fake {
	return f.Handle(method, func(ctx context.Context, _ interface{}) (json.RawMessage, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
}

// Request implements provider.Provider.
func (f *Fake) Request(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, RecordedCall{Method: method, Params: params})
	h, ok := f.handlers[method]
	f.mu.Unlock()

	if !ok {
		return nil, provider.NewError(4200, fmt.Sprintf("method %s is not supported", method))
	}
	return h(ctx, params)
}

// Calls returns the requests received so far.
func (f *Fake) Calls() []RecordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RecordedCall(nil), f.calls...)
}

// Methods returns the method names received so far, in order.
func (f *Fake) Methods() []string {
	calls := f.Calls()
	methods := make([]string, 0, len(calls))
	for _, c := range calls {
		methods = append(methods, c.Method)
	}
	return methods
}

// EmitJSON marshals payload and emits it as event.
func (f *Fake) EmitJSON(event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	f.Emit(event, data)
}

// Selector records SetSelectedProvider calls.
type Selector struct {
	mu       sync.Mutex
	Selected []string
	Err      error
}

func (s *Selector) SetSelectedProvider(_ context.Context, p provider.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Selected = append(s.Selected, p.ID())
	return s.Err
}

// MutableSource is a provider.Source whose surface can be swapped.
type MutableSource struct {
	mu      sync.Mutex
	surface *provider.Surface
	err     error
}

// NewSource creates a MutableSource exposing surface.
func NewSource(surface *provider.Surface) *MutableSource {
	return &MutableSource{surface: surface}
}

// Set replaces the surface.
func (s *MutableSource) Set(surface *provider.Surface) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surface = surface
	s.err = nil
}

// SetError makes Surface fail.
func (s *MutableSource) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *MutableSource) Surface(context.Context) (*provider.Surface, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surface, s.err
}
