package cli

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harun/walletlink/internal/config"
	"github.com/harun/walletlink/pkg/gateway"
)

const testSecret = "s3cret-value"

// writeTestConfig writes a config file whose data dir is a temp dir.
func writeTestConfig(t *testing.T, mutate func(cfg *config.Config)) (string, *config.Config) {
	t.Helper()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DataDir = dir
	cfg.Logging.File = filepath.Join(dir, "walletlink.log")
	cfg.Logging.Console = false
	cfg.Gateway.SharedSecret = testSecret
	if mutate != nil {
		mutate(cfg)
	}

	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	path := filepath.Join(dir, "walletlink.json")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path, cfg
}

// fakeGateway records RPC requests and answers them with reply.
type fakeGateway struct {
	server *httptest.Server

	mu       sync.Mutex
	requests []gateway.RPCRequest
	reply    func(req gateway.RPCRequest) gateway.RPCResponse
}

func newFakeGateway(t *testing.T, reply func(req gateway.RPCRequest) gateway.RPCResponse) *fakeGateway {
	t.Helper()

	g := &fakeGateway{reply: reply}
	g.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rpc" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get(gateway.SecretHeader) != testSecret {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req gateway.RPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		g.mu.Lock()
		g.requests = append(g.requests, req)
		g.mu.Unlock()

		resp := g.reply(req)
		resp.ID = req.ID
		resp.JSONRPC = "2.0"
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(g.server.Close)
	return g
}

func (g *fakeGateway) port() int {
	return g.server.Listener.Addr().(*net.TCPAddr).Port
}

func (g *fakeGateway) lastRequest(t *testing.T) gateway.RPCRequest {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	require.NotEmpty(t, g.requests)
	return g.requests[len(g.requests)-1]
}

func (g *fakeGateway) requestCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

// useGateway points a config at the fake gateway.
func (g *fakeGateway) useGateway(cfg *config.Config) {
	cfg.Gateway.Enabled = true
	cfg.Gateway.Host = "127.0.0.1"
	cfg.Gateway.Port = g.port()
}

func sessionReply(view gateway.SessionView) func(gateway.RPCRequest) gateway.RPCResponse {
	return func(gateway.RPCRequest) gateway.RPCResponse {
		return gateway.RPCResponse{Result: view}
	}
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := GetRootCmd()
	output := &bytes.Buffer{}
	cmd.SetOut(output)
	cmd.SetErr(output)
	cmd.SetArgs(args)
	t.Cleanup(func() {
		cmd.SetOut(nil)
		cmd.SetErr(nil)
		cmd.SetArgs(nil)
	})

	err := cmd.Execute()
	return output.String(), err
}
