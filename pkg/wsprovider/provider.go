// Package wsprovider implements provider.Provider over a JSON-RPC 2.0
// websocket connection to a wallet endpoint.
package wsprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/harun/walletlink/pkg/provider"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

// ErrClosed is returned for requests on a closed connection.
var ErrClosed = errors.New("wallet connection closed")

// Config configures a websocket provider.
type Config struct {
	URL         string
	Header      http.Header
	Flags       provider.Flags
	DialTimeout time.Duration
	Logger      zerolog.Logger
}

// Provider is one websocket connection to a wallet endpoint. Its ID changes
// with every connection, so a reconnect is seen as a provider swap.
type Provider struct {
	provider.Emitter

	id     string
	flags  provider.Flags
	conn   *websocket.Conn
	logger zerolog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan response
	closed  bool

	closing   atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to the wallet endpoint.
func Dial(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("wallet endpoint URL is required")
	}

	dialer := *websocket.DefaultDialer
	if cfg.DialTimeout > 0 {
		dialer.HandshakeTimeout = cfg.DialTimeout
	}

	conn, _, err := dialer.DialContext(ctx, cfg.URL, cfg.Header)
	if err != nil {
		return nil, fmt.Errorf("dial wallet endpoint: %w", err)
	}

	p := &Provider{
		id:      uuid.New().String(),
		flags:   cfg.Flags,
		conn:    conn,
		pending: make(map[uint64]chan response),
		done:    make(chan struct{}),
	}
	p.logger = cfg.Logger.With().Str("component", "wsprovider").Str("provider", p.id).Logger()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))

	go p.readLoop()
	go p.pingLoop()

	p.logger.Info().Str("url", cfg.URL).Msg("Connected to wallet endpoint")
	return p, nil
}

func (p *Provider) ID() string {
	return p.id
}

func (p *Provider) Flags() provider.Flags {
	return p.flags
}

// Done is closed when the connection ends.
func (p *Provider) Done() <-chan struct{} {
	return p.done
}

// Request sends one JSON-RPC call and waits for its response.
func (p *Provider) Request(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	p.nextID++
	id := p.nextID
	ch := make(chan response, 1)
	p.pending[id] = ch
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
	}()

	if err := p.write(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		return nil, fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case res := <-ch:
		return res.result, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		return nil, ErrClosed
	}
}

func (p *Provider) write(v interface{}) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return p.conn.WriteJSON(v)
}

// Close ends the connection. Pending requests fail with ErrClosed.
func (p *Provider) Close() error {
	p.closing.Store(true)
	p.writeMu.Lock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = p.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	p.writeMu.Unlock()

	err := p.conn.Close()
	<-p.done
	return err
}

func (p *Provider) readLoop() {
	var readErr error
	defer func() { p.shutdown(readErr) }()

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			readErr = err
			return
		}

		var msg rpcMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			p.logger.Warn().Err(err).Msg("Ignoring malformed frame")
			continue
		}

		switch {
		case msg.ID != nil:
			p.deliver(*msg.ID, msg)
		case msg.Method == EventMethod:
			var params EventParams
			if err := json.Unmarshal(msg.Params, &params); err != nil || params.Event == "" {
				p.logger.Warn().Msg("Ignoring malformed wallet event")
				continue
			}
			p.Emit(params.Event, params.Data)
		default:
			p.logger.Debug().Str("method", msg.Method).Msg("Ignoring unknown notification")
		}
	}
}

func (p *Provider) deliver(id uint64, msg rpcMessage) {
	p.mu.Lock()
	ch, ok := p.pending[id]
	p.mu.Unlock()
	if !ok {
		p.logger.Debug().Uint64("id", id).Msg("Response for unknown request")
		return
	}

	if msg.Error != nil {
		ch <- response{err: provider.Decode(msg.Error)}
		return
	}
	ch <- response{result: msg.Result}
}

func (p *Provider) shutdown(readErr error) {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.done)

		reason := "wallet connection closed"
		if readErr != nil && !p.closing.Load() && !websocket.IsCloseError(readErr, websocket.CloseNormalClosure) {
			reason = readErr.Error()
			p.logger.Warn().Err(readErr).Msg("Wallet connection lost")
		}

		payload, _ := json.Marshal(map[string]interface{}{"code": 1013, "message": reason})
		p.Emit(provider.EventDisconnect, payload)
	})
}

func (p *Provider) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.writeMu.Lock()
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := p.conn.WriteMessage(websocket.PingMessage, nil)
			p.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
