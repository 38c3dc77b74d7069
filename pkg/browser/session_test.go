package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/walletlink/pkg/provider"
)

const stubWalletPage = `<!doctype html>
<html><body><script>
(() => {
	const listeners = {};
	window.ethereum = {
		isMetaMask: true,
		_metamask: {},
		chainId: "0x1",
		on(event, fn) { (listeners[event] = listeners[event] || []).push(fn); },
		removeListener(event, fn) { listeners[event] = (listeners[event] || []).filter((l) => l !== fn); },
		async request({ method, params }) {
			switch (method) {
			case "eth_chainId":
				return this.chainId;
			case "eth_requestAccounts":
				throw { code: 4001, message: "User rejected the request." };
			case "wallet_switchEthereumChain":
				this.chainId = params[0].chainId;
				(listeners.chainChanged || []).forEach((l) => l(this.chainId));
				return null;
			default:
				throw { code: 4200, message: "unsupported" };
			}
		},
	};
})();
</script></body></html>`

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestSessionAgainstStubWallet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	if _, found := launcher.LookPath(); !found {
		t.Skip("Chrome not installed")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, stubWalletPage)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	session, err := Open(ctx, SessionConfig{
		Profile: Profile{
			Name:      "test",
			CDPPort:   freePort(t),
			Headless:  true,
			NoSandbox: true,
			DappURL:   server.URL,
		},
		Security: SecurityConfig{AllowLocalhostUrls: true},
		BaseDir:  t.TempDir(),
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	defer session.Close()

	surface, err := session.Surface(ctx)
	require.NoError(t, err)
	require.NotNil(t, surface)
	p := surface.Injected
	assert.True(t, p.Flags().Has("isMetaMask"))
	assert.True(t, p.Flags().Has("_metamask"))

	chainID, perr := provider.ChainID(ctx, p)
	require.Nil(t, perr)
	assert.Equal(t, "0x1", chainID)

	_, perr = provider.Accounts(ctx, p, true)
	require.NotNil(t, perr)
	assert.Equal(t, provider.KindUserRejected, perr.Kind)

	changed := make(chan json.RawMessage, 1)
	_, err = p.On(provider.EventChainChanged, func(payload json.RawMessage) { changed <- payload })
	require.NoError(t, err)

	result := provider.Call(ctx, p, provider.MethodSwitchChain, []interface{}{map[string]string{"chainId": "0x89"}})
	require.True(t, result.OK())

	select {
	case payload := <-changed:
		assert.JSONEq(t, `"0x89"`, string(payload))
	case <-time.After(10 * time.Second):
		t.Fatal("chainChanged was not delivered")
	}

	require.NoError(t, session.Healthy(ctx))
}

func TestOpenRejectsBlockedDappURL(t *testing.T) {
	_, err := Open(context.Background(), SessionConfig{
		Profile: Profile{Name: "test", DappURL: "http://localhost:3000"},
		Logger:  zerolog.Nop(),
	})
	require.Error(t, err)
	assert.Equal(t, ErrCodeSecurity, err.(*BrowserError).Code)
}
