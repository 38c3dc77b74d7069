package gateway

import (
	"context"
	"fmt"

	"github.com/harun/walletlink/pkg/wallet"
)

// Wallet RPC methods and the broadcast event.
const (
	MethodSession     = "wallet.session"
	MethodConnect     = "wallet.connect"
	MethodDisconnect  = "wallet.disconnect"
	MethodSwitchChain = "wallet.switchChain"
	MethodAddToken    = "wallet.addToken"
	MethodChains      = "wallet.chains"

	EventSession = "wallet.session"
)

// Wallet is the wallet surface the gateway exposes.
type Wallet interface {
	Snapshot() wallet.Session
	Subscribe(fn wallet.Subscriber) func()
	Connect(ctx context.Context)
	Disconnect(ctx context.Context)
	SwitchChain(ctx context.Context, chainID string)
	AddToken(ctx context.Context, token wallet.Token)
	ChainName(chainID string) string
	Chains() wallet.ChainNames
}

// SessionView is a session snapshot with display fields.
type SessionView struct {
	wallet.Session
	ChainName    string `json:"chainName,omitempty"`
	ShortAccount string `json:"shortAccount,omitempty"`
}

func newSessionView(w Wallet, s wallet.Session) SessionView {
	view := SessionView{Session: s, ShortAccount: wallet.ShortAddress(s.Account)}
	if s.ChainID != "" {
		view.ChainName = w.ChainName(s.ChainID)
	}
	return view
}

var emptyParamsSchema = map[string]interface{}{
	"type":                 "object",
	"additionalProperties": false,
}

var switchChainSchema = map[string]interface{}{
	"type":                 "object",
	"additionalProperties": false,
	"required":             []string{"chainId"},
	"properties": map[string]interface{}{
		"chainId": map[string]interface{}{"type": "string", "minLength": 1},
	},
}

var addTokenSchema = map[string]interface{}{
	"type":                 "object",
	"additionalProperties": false,
	"required":             []string{"address", "symbol", "decimals"},
	"properties": map[string]interface{}{
		"address":  map[string]interface{}{"type": "string"},
		"symbol":   map[string]interface{}{"type": "string"},
		"decimals": map[string]interface{}{"type": "integer", "minimum": 0, "maximum": 255},
		"image":    map[string]interface{}{"type": "string"},
	},
}

// registerWalletMethods wires the wallet RPC methods into the router.
func (s *Server) registerWalletMethods() error {
	w := s.wallet

	methods := []struct {
		name    string
		schema  map[string]interface{}
		handler RequestHandler
	}{
		{MethodSession, emptyParamsSchema, func(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
			return newSessionView(w, w.Snapshot()), nil
		}},
		{MethodConnect, emptyParamsSchema, func(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
			w.Connect(ctx)
			return newSessionView(w, w.Snapshot()), nil
		}},
		{MethodDisconnect, emptyParamsSchema, func(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
			w.Disconnect(ctx)
			return newSessionView(w, w.Snapshot()), nil
		}},
		{MethodSwitchChain, switchChainSchema, func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			chainID, _ := params["chainId"].(string)
			w.SwitchChain(ctx, chainID)
			return newSessionView(w, w.Snapshot()), nil
		}},
		{MethodAddToken, addTokenSchema, func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			token, err := tokenFromParams(params)
			if err != nil {
				return nil, err
			}
			w.AddToken(ctx, token)
			return newSessionView(w, w.Snapshot()), nil
		}},
		{MethodChains, emptyParamsSchema, func(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
			return map[string]interface{}{"chains": w.Chains()}, nil
		}},
	}

	for _, m := range methods {
		if err := s.router.RegisterMethodWithSchema(m.name, m.schema, m.handler); err != nil {
			return err
		}
	}
	return nil
}

func tokenFromParams(params map[string]interface{}) (wallet.Token, error) {
	token := wallet.Token{}
	token.Address, _ = params["address"].(string)
	token.Symbol, _ = params["symbol"].(string)
	token.Image, _ = params["image"].(string)

	switch v := params["decimals"].(type) {
	case float64:
		token.Decimals = int(v)
	case int:
		token.Decimals = v
	default:
		return token, &RPCError{Code: InvalidParams, Message: fmt.Sprintf("Invalid decimals: %v", params["decimals"])}
	}
	return token, nil
}
