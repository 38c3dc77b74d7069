package wsprovider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/walletlink/pkg/provider"
)

// fakeWallet is a websocket wallet endpoint answering from a method table.
type fakeWallet struct {
	t       *testing.T
	server  *httptest.Server
	answers map[string]interface{}

	mu    sync.Mutex
	conns []*websocket.Conn
	auth  []string
}

type rpcErrorAnswer struct {
	Code    int
	Message string
}

func newFakeWallet(t *testing.T, answers map[string]interface{}) *fakeWallet {
	t.Helper()
	w := &fakeWallet{t: t, answers: answers}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	w.server = httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		w.mu.Lock()
		w.conns = append(w.conns, conn)
		w.auth = append(w.auth, r.Header.Get("Authorization"))
		w.mu.Unlock()
		w.serve(conn)
	}))
	t.Cleanup(w.server.Close)
	return w
}

func (w *fakeWallet) url() string {
	return "ws" + strings.TrimPrefix(w.server.URL, "http")
}

func (w *fakeWallet) serve(conn *websocket.Conn) {
	for {
		var req rpcRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		answer, ok := w.answers[req.Method]
		if !ok {
			continue
		}

		frame := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr, isErr := answer.(rpcErrorAnswer); isErr {
			frame["error"] = map[string]interface{}{"code": rpcErr.Code, "message": rpcErr.Message}
		} else {
			frame["result"] = answer
		}

		w.mu.Lock()
		err := conn.WriteJSON(frame)
		w.mu.Unlock()
		if err != nil {
			return
		}
	}
}

func (w *fakeWallet) push(event string, data interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	conn := w.conns[len(w.conns)-1]
	require.NoError(w.t, conn.WriteJSON(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  EventMethod,
		"params":  map[string]interface{}{"event": event, "data": data},
	}))
}

func (w *fakeWallet) dropConnections() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, conn := range w.conns {
		_ = conn.Close()
	}
}

func dialFake(t *testing.T, w *fakeWallet) *Provider {
	t.Helper()
	p, err := Dial(context.Background(), Config{
		URL:    w.url(),
		Flags:  provider.Flags{"isMetaMask": true},
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestRequestReturnsResult(t *testing.T) {
	wallet := newFakeWallet(t, map[string]interface{}{
		provider.MethodChainID: "0x89",
	})
	p := dialFake(t, wallet)

	chainID, perr := provider.ChainID(context.Background(), p)
	require.Nil(t, perr)
	assert.Equal(t, "0x89", chainID)
	assert.True(t, p.Flags().Has("isMetaMask"))
}

func TestRequestDecodesProviderError(t *testing.T) {
	wallet := newFakeWallet(t, map[string]interface{}{
		provider.MethodRequestAccounts: rpcErrorAnswer{Code: provider.CodeUserRejected, Message: "User rejected the request."},
	})
	p := dialFake(t, wallet)

	_, perr := provider.Accounts(context.Background(), p, true)
	require.NotNil(t, perr)
	assert.Equal(t, provider.KindUserRejected, perr.Kind)
	assert.Equal(t, "User rejected the request.", perr.Message)
}

func TestRequestHonoursContext(t *testing.T) {
	wallet := newFakeWallet(t, map[string]interface{}{})
	p := dialFake(t, wallet)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := p.Request(ctx, provider.MethodSwitchChain, []interface{}{map[string]string{"chainId": "0x1"}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWalletEventsAreEmitted(t *testing.T) {
	wallet := newFakeWallet(t, map[string]interface{}{})
	p := dialFake(t, wallet)

	received := make(chan json.RawMessage, 1)
	_, err := p.On(provider.EventChainChanged, func(payload json.RawMessage) {
		received <- payload
	})
	require.NoError(t, err)

	wallet.push(provider.EventChainChanged, "0xa")

	select {
	case payload := <-received:
		assert.JSONEq(t, `"0xa"`, string(payload))
	case <-time.After(2 * time.Second):
		t.Fatal("chainChanged was not emitted")
	}
}

func TestConnectionLossEmitsDisconnect(t *testing.T) {
	wallet := newFakeWallet(t, map[string]interface{}{})
	p := dialFake(t, wallet)

	disconnected := make(chan struct{}, 1)
	_, err := p.On(provider.EventDisconnect, func(json.RawMessage) {
		disconnected <- struct{}{}
	})
	require.NoError(t, err)

	wallet.dropConnections()

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect was not emitted")
	}

	_, err = p.Request(context.Background(), provider.MethodChainID, nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSourceRedialsWithNewIdentity(t *testing.T) {
	wallet := newFakeWallet(t, map[string]interface{}{})
	header := http.Header{}
	header.Set("Authorization", "Bearer local")
	source := NewSource(Config{URL: wallet.url(), Header: header, Logger: zerolog.Nop()})
	defer source.Close()

	first, err := source.Surface(context.Background())
	require.NoError(t, err)
	again, err := source.Surface(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.Injected.ID(), again.Injected.ID())

	wallet.dropConnections()
	select {
	case <-first.Injected.(*Provider).Done():
	case <-time.After(2 * time.Second):
		t.Fatal("connection did not close")
	}

	second, err := source.Surface(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first.Injected.ID(), second.Injected.ID())

	wallet.mu.Lock()
	assert.Equal(t, []string{"Bearer local", "Bearer local"}, wallet.auth)
	wallet.mu.Unlock()
}

func TestSourceDialFailure(t *testing.T) {
	source := NewSource(Config{URL: "ws://127.0.0.1:1/unreachable", DialTimeout: 200 * time.Millisecond, Logger: zerolog.Nop()})

	surface, err := source.Surface(context.Background())
	assert.Error(t, err)
	assert.Nil(t, surface)
}
