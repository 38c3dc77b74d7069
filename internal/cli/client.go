package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/harun/walletlink/internal/config"
	"github.com/harun/walletlink/pkg/gateway"
)

// gatewayClient sends single-shot JSON-RPC requests to the daemon gateway.
type gatewayClient struct {
	endpoint string
	secret   string
	http     *http.Client
}

func newGatewayClient(cfg *config.Config) (*gatewayClient, error) {
	if !cfg.Gateway.Enabled {
		return nil, errors.New("gateway is disabled in config")
	}

	host := cfg.Gateway.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	// Connect waits for the user to answer the wallet prompt
	timeout := time.Duration(cfg.Wallet.PromptTimeout+cfg.Wallet.RequestTimeout)*time.Second + 10*time.Second

	return &gatewayClient{
		endpoint: "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Gateway.Port)) + "/rpc",
		secret:   cfg.Gateway.SharedSecret,
		http:     &http.Client{Timeout: timeout},
	}, nil
}

// call invokes method and decodes the result into out.
func (c *gatewayClient) call(ctx context.Context, method string, params map[string]interface{}, out interface{}) error {
	if ctx == nil {
		ctx = context.Background()
	}

	body, err := json.Marshal(gateway.RPCRequest{
		ID:      uuid.NewString(),
		Method:  method,
		Params:  params,
		JSONRPC: "2.0",
	})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		req.Header.Set(gateway.SecretHeader, c.secret)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return errors.New("gateway rejected the shared secret")
	}

	var rpcResp struct {
		Result json.RawMessage   `json:"result"`
		Error  *gateway.RPCError `json:"error"`
	}
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return fmt.Errorf("invalid gateway response (status %d): %w", resp.StatusCode, err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if out == nil || len(rpcResp.Result) == 0 {
		return nil
	}
	return json.Unmarshal(rpcResp.Result, out)
}
