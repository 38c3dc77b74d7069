package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/walletlink/internal/config"
	"github.com/harun/walletlink/pkg/gateway"
	"github.com/harun/walletlink/pkg/wallet"
)

const testAccount = "0x1234567890abcdef1234567890abcdef12345678"

func connectedView(chainID, chainName string) gateway.SessionView {
	return gateway.SessionView{
		Session: wallet.Session{
			Account:     testAccount,
			ChainID:     chainID,
			IsConnected: true,
		},
		ChainName:    chainName,
		ShortAccount: wallet.ShortAddress(testAccount),
	}
}

func TestConnectCommand(t *testing.T) {
	gw := newFakeGateway(t, sessionReply(connectedView("0x1", "Ethereum Mainnet")))
	path, _ := writeTestConfig(t, gw.useGateway)

	output, err := execute(t, "--config", path, "connect")
	require.NoError(t, err)

	assert.Equal(t, gateway.MethodConnect, gw.lastRequest(t).Method)
	assert.NotEmpty(t, gw.lastRequest(t).ID)
	assert.Contains(t, output, "Wallet: connected 0x1234...5678")
	assert.Contains(t, output, "Network: Ethereum Mainnet (0x1)")
}

func TestConnectCommandFailsOnWalletError(t *testing.T) {
	view := gateway.SessionView{Session: wallet.Session{Error: "Connection request rejected"}}
	gw := newFakeGateway(t, sessionReply(view))
	path, _ := writeTestConfig(t, gw.useGateway)

	output, err := execute(t, "--config", path, "connect")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Connection request rejected")
	assert.Contains(t, output, "Wallet: not connected")
}

func TestDisconnectCommand(t *testing.T) {
	gw := newFakeGateway(t, sessionReply(gateway.SessionView{}))
	path, _ := writeTestConfig(t, gw.useGateway)

	output, err := execute(t, "--config", path, "disconnect")
	require.NoError(t, err)

	assert.Equal(t, gateway.MethodDisconnect, gw.lastRequest(t).Method)
	assert.Contains(t, output, "Wallet: not connected")
}

func TestSwitchChainCommand(t *testing.T) {
	t.Run("decimal id is normalized", func(t *testing.T) {
		gw := newFakeGateway(t, sessionReply(connectedView("0x89", "Polygon Mainnet")))
		path, _ := writeTestConfig(t, gw.useGateway)

		output, err := execute(t, "--config", path, "switch-chain", "137")
		require.NoError(t, err)

		req := gw.lastRequest(t)
		assert.Equal(t, gateway.MethodSwitchChain, req.Method)
		assert.Equal(t, "0x89", req.Params["chainId"])
		assert.Contains(t, output, "Polygon Mainnet")
	})

	t.Run("invalid id is rejected locally", func(t *testing.T) {
		gw := newFakeGateway(t, sessionReply(gateway.SessionView{}))
		path, _ := writeTestConfig(t, gw.useGateway)

		_, err := execute(t, "--config", path, "switch-chain", "polygon")
		require.Error(t, err)
		assert.Equal(t, 0, gw.requestCount())
	})
}

func TestAddTokenCommand(t *testing.T) {
	const token = "0xdAC17F958D2ee523a2206206994597C13D831ec7"

	t.Run("sends token params", func(t *testing.T) {
		gw := newFakeGateway(t, sessionReply(connectedView("0x1", "Ethereum Mainnet")))
		path, _ := writeTestConfig(t, gw.useGateway)

		_, err := execute(t, "--config", path, "add-token", token, "USDT", "6")
		require.NoError(t, err)

		req := gw.lastRequest(t)
		assert.Equal(t, gateway.MethodAddToken, req.Method)
		assert.Equal(t, token, req.Params["address"])
		assert.Equal(t, "USDT", req.Params["symbol"])
		assert.Equal(t, float64(6), req.Params["decimals"])
		assert.NotContains(t, req.Params, "image")
	})

	t.Run("invalid address", func(t *testing.T) {
		gw := newFakeGateway(t, sessionReply(gateway.SessionView{}))
		path, _ := writeTestConfig(t, gw.useGateway)

		_, err := execute(t, "--config", path, "add-token", "0x1234", "USDT", "6")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid token address")
		assert.Equal(t, 0, gw.requestCount())
	})

	t.Run("invalid decimals", func(t *testing.T) {
		gw := newFakeGateway(t, sessionReply(gateway.SessionView{}))
		path, _ := writeTestConfig(t, gw.useGateway)

		for _, decimals := range []string{"six", "256", "1.5"} {
			_, err := execute(t, "--config", path, "add-token", token, "USDT", decimals)
			require.Error(t, err, decimals)
			assert.Contains(t, err.Error(), "decimals")
		}
		assert.Equal(t, 0, gw.requestCount())
	})
}

func TestChainsCommand(t *testing.T) {
	gw := newFakeGateway(t, func(gateway.RPCRequest) gateway.RPCResponse {
		return gateway.RPCResponse{Result: map[string]interface{}{
			"chains": map[string]string{
				"0x89": "Polygon Mainnet",
				"0x1":  "Ethereum Mainnet",
				"0xa":  "Optimism",
			},
		}}
	})
	path, _ := writeTestConfig(t, gw.useGateway)

	output, err := execute(t, "--config", path, "chains")
	require.NoError(t, err)

	assert.Equal(t, gateway.MethodChains, gw.lastRequest(t).Method)
	eth := strings.Index(output, "Ethereum Mainnet")
	op := strings.Index(output, "Optimism")
	poly := strings.Index(output, "Polygon Mainnet")
	assert.True(t, eth >= 0 && eth < op && op < poly, "chains should be sorted numerically:\n%s", output)
}

func TestWalletCommandsNeedGateway(t *testing.T) {
	path, _ := writeTestConfig(t, func(cfg *config.Config) {
		cfg.Gateway.Enabled = false
	})

	_, err := execute(t, "--config", path, "connect")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway is disabled")
}

func TestWalletCommandRejectedSecret(t *testing.T) {
	gw := newFakeGateway(t, sessionReply(gateway.SessionView{}))
	path, _ := writeTestConfig(t, func(cfg *config.Config) {
		gw.useGateway(cfg)
		cfg.Gateway.SharedSecret = "wrong-secret"
	})

	_, err := execute(t, "--config", path, "connect")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shared secret")
}

func TestWalletCommandRPCError(t *testing.T) {
	gw := newFakeGateway(t, func(gateway.RPCRequest) gateway.RPCResponse {
		return gateway.RPCResponse{Error: &gateway.RPCError{Code: gateway.InvalidParams, Message: "Invalid params"}}
	})
	path, _ := writeTestConfig(t, gw.useGateway)

	_, err := execute(t, "--config", path, "disconnect")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid params")
}
