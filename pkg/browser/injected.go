package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/ysmood/gson"

	"github.com/harun/walletlink/pkg/provider"
)

// DefaultFlagNames are the provider properties copied into provider.Flags.
var DefaultFlagNames = []string{
	"isMetaMask", "isTrust", "isTrustWallet", "isPhantom", "isBraveWallet",
	"isCoinbaseWallet", "isRabby", "isTokenPocket", "isOkxWallet", "_metamask",
}

// describeJS snapshots window.ethereum. Provider objects are registered in
// window.__walletlink so later calls can reach them by id. Ids carry a
// per-document prefix, so a reload always yields new identities.
const describeJS = `(flagNames) => {
	const w = window;
	if (!w.__walletlink) {
		w.__walletlink = {
			prefix: Math.random().toString(36).slice(2, 10),
			seq: 0,
			ids: new WeakMap(),
			registry: {},
			handlers: {},
		};
	}
	const state = w.__walletlink;
	const idOf = (p) => {
		let id = state.ids.get(p);
		if (!id) {
			state.seq += 1;
			id = state.prefix + ":" + state.seq;
			state.ids.set(p, id);
			state.registry[id] = p;
		}
		return id;
	};
	const describe = (p) => {
		const flags = {};
		for (const name of flagNames) {
			const v = p[name];
			if (v === true || (v !== null && typeof v === "object")) flags[name] = true;
		}
		return { id: idOf(p), flags };
	};
	const eth = w.ethereum;
	if (!eth || typeof eth.request !== "function") return { present: false };
	return {
		present: true,
		injected: describe(eth),
		providers: Array.isArray(eth.providers) ? eth.providers.map(describe) : null,
		canSelect: typeof eth.setSelectedProvider === "function",
	};
}`

const requestJS = `async (id, method, params) => {
	const p = window.__walletlink && window.__walletlink.registry[id];
	if (!p) return { ok: false, error: { code: 4900, message: "provider is no longer available" } };
	try {
		const args = params === null ? { method } : { method, params };
		const result = await p.request(args);
		return { ok: true, result: result === undefined ? null : result };
	} catch (e) {
		return {
			ok: false,
			error: {
				code: typeof (e && e.code) === "number" ? e.code : -32603,
				message: (e && e.message) || String(e),
				data: e && e.data !== undefined ? e.data : null,
			},
		};
	}
}`

const subscribeJS = `(id, event, binding) => {
	const state = window.__walletlink;
	const p = state && state.registry[id];
	if (!p || typeof p.on !== "function") return false;
	const key = id + "|" + event;
	if (state.handlers[key]) return true;
	const handler = (payload) => {
		window[binding](JSON.stringify({ id, event, payload: payload === undefined ? null : payload }));
	};
	state.handlers[key] = handler;
	p.on(event, handler);
	return true;
}`

const unsubscribeJS = `(id, event) => {
	const state = window.__walletlink;
	const key = id + "|" + event;
	const handler = state && state.handlers[key];
	if (!handler) return false;
	delete state.handlers[key];
	const p = state.registry[id];
	if (p && typeof p.removeListener === "function") p.removeListener(event, handler);
	return true;
}`

const selectJS = `(id) => {
	const state = window.__walletlink;
	const p = state && state.registry[id];
	if (!p) throw new Error("provider is no longer available");
	window.ethereum.setSelectedProvider(p);
	return true;
}`

type descriptor struct {
	ID    string          `json:"id"`
	Flags map[string]bool `json:"flags"`
}

type description struct {
	Present   bool         `json:"present"`
	Injected  descriptor   `json:"injected"`
	Providers []descriptor `json:"providers"`
	CanSelect bool         `json:"canSelect"`
}

type requestOutcome struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  *provider.Error `json:"error"`
}

type eventFrame struct {
	ID      string          `json:"id"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// evaluator runs a JS function on the page and returns its JSON value.
type evaluator interface {
	eval(ctx context.Context, js string, args ...interface{}) (json.RawMessage, error)
}

type pageEvaluator struct {
	page *rod.Page
}

func (e pageEvaluator) eval(ctx context.Context, js string, args ...interface{}) (json.RawMessage, error) {
	res, err := e.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return nil, &BrowserError{
			Code:    ErrCodeScriptExecution,
			Message: fmt.Sprintf("Script execution failed: %v", err),
		}
	}
	return json.Marshal(res.Value)
}

// InjectedSource exposes the providers injected into a dapp page.
type InjectedSource struct {
	eval      evaluator
	flagNames []string
	binding   string
	logger    zerolog.Logger

	mu        sync.Mutex
	providers map[string]*InjectedProvider
}

// NewInjectedSource exposes the event binding on page and returns a source
// reading its window.ethereum.
func NewInjectedSource(page *rod.Page, flagNames []string, logger zerolog.Logger) (*InjectedSource, func() error, error) {
	s := newInjectedSource(pageEvaluator{page: page}, flagNames, logger)
	stop, err := page.Expose(s.binding, func(arg gson.JSON) (interface{}, error) {
		s.dispatch([]byte(arg.Str()))
		return nil, nil
	})
	if err != nil {
		return nil, nil, &BrowserError{
			Code:    ErrCodeScriptExecution,
			Message: fmt.Sprintf("Failed to expose event binding: %v", err),
		}
	}
	return s, stop, nil
}

func newInjectedSource(eval evaluator, flagNames []string, logger zerolog.Logger) *InjectedSource {
	if len(flagNames) == 0 {
		flagNames = DefaultFlagNames
	}
	return &InjectedSource{
		eval:      eval,
		flagNames: flagNames,
		binding:   bindingName(),
		logger:    logger.With().Str("component", "injected-source").Logger(),
		providers: make(map[string]*InjectedProvider),
	}
}

func bindingName() string {
	id, err := gonanoid.Generate("abcdefghijklmnopqrstuvwxyz", 12)
	if err != nil {
		return "__walletlinkEvent"
	}
	return "__walletlinkEvent_" + id
}

// Surface implements provider.Source.
func (s *InjectedSource) Surface(ctx context.Context) (*provider.Surface, error) {
	raw, err := s.eval.eval(ctx, describeJS, s.flagNames)
	if err != nil {
		return nil, err
	}

	var desc description
	if err := json.Unmarshal(raw, &desc); err != nil {
		return nil, fmt.Errorf("decode injected surface: %w", err)
	}
	return s.build(desc), nil
}

func (s *InjectedSource) build(desc description) *provider.Surface {
	if !desc.Present {
		return nil
	}

	surface := &provider.Surface{Injected: s.lookup(desc.Injected)}
	if desc.Providers != nil {
		surface.Providers = make([]provider.Provider, 0, len(desc.Providers))
		for _, d := range desc.Providers {
			surface.Providers = append(surface.Providers, s.lookup(d))
		}
	}
	if desc.CanSelect {
		surface.Selector = selector{source: s}
	}
	s.prune(desc)
	return surface
}

// prune forgets providers that are no longer on the page, such as those of
// a previous document.
func (s *InjectedSource) prune(desc description) {
	live := map[string]bool{desc.Injected.ID: true}
	for _, d := range desc.Providers {
		live[d.ID] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.providers {
		if !live[id] {
			delete(s.providers, id)
		}
	}
}

// lookup returns the cached instance for d so listener registrations
// survive repeated Surface calls.
func (s *InjectedSource) lookup(d descriptor) *InjectedProvider {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.providers[d.ID]; ok {
		return p
	}
	p := &InjectedProvider{
		id:     d.ID,
		flags:  provider.Flags(d.Flags),
		source: s,
		counts: make(map[string]int),
	}
	s.providers[d.ID] = p
	return p
}

func (s *InjectedSource) dispatch(raw []byte) {
	var frame eventFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		s.logger.Warn().Err(err).Msg("Dropping malformed provider event")
		return
	}

	s.mu.Lock()
	p, ok := s.providers[frame.ID]
	s.mu.Unlock()
	if !ok {
		return
	}
	p.Emit(frame.Event, frame.Payload)
}

type selector struct {
	source *InjectedSource
}

func (s selector) SetSelectedProvider(ctx context.Context, p provider.Provider) error {
	_, err := s.source.eval.eval(ctx, selectJS, p.ID())
	return err
}

// InjectedProvider is one provider object living in the page.
type InjectedProvider struct {
	provider.Emitter

	id     string
	flags  provider.Flags
	source *InjectedSource

	subMu  sync.Mutex
	counts map[string]int
}

func (p *InjectedProvider) ID() string {
	return p.id
}

func (p *InjectedProvider) Flags() provider.Flags {
	return p.flags
}

// Request forwards an EIP-1193 request to the page.
func (p *InjectedProvider) Request(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	raw, err := p.source.eval.eval(ctx, requestJS, p.id, method, params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	var out requestOutcome
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}
	if !out.OK {
		if out.Error == nil {
			return nil, provider.NewError(-32603, "request failed without an error")
		}
		perr := provider.NewError(out.Error.Code, out.Error.Message)
		if string(out.Error.Data) != "null" {
			perr.Data = out.Error.Data
		}
		return nil, perr
	}
	return out.Result, nil
}

// On registers a listener. The page-side handler is attached with the first
// listener of an event.
func (p *InjectedProvider) On(event string, listener provider.Listener) (provider.ListenerID, error) {
	p.subMu.Lock()
	defer p.subMu.Unlock()

	if p.counts[event] == 0 {
		ctx := context.Background()
		if _, err := p.source.eval.eval(ctx, subscribeJS, p.id, event, p.source.binding); err != nil {
			return 0, err
		}
	}

	id, err := p.Emitter.On(event, listener)
	if err != nil {
		return 0, err
	}
	p.counts[event]++
	return id, nil
}

// RemoveListener unregisters a listener and detaches the page-side handler
// with the last one.
func (p *InjectedProvider) RemoveListener(event string, id provider.ListenerID) error {
	p.subMu.Lock()
	defer p.subMu.Unlock()

	if err := p.Emitter.RemoveListener(event, id); err != nil {
		return err
	}
	p.counts[event]--
	if p.counts[event] > 0 {
		return nil
	}
	delete(p.counts, event)
	_, err := p.source.eval.eval(context.Background(), unsubscribeJS, p.id, event)
	return err
}
