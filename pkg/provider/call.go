package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Result is the tagged outcome of one provider request: exactly one of
// Value or Err is meaningful.
type Result struct {
	Value json.RawMessage
	Err   *Error
}

// OK reports whether the request succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Call issues a request and decodes any failure.
func Call(ctx context.Context, p Provider, method string, params interface{}) Result {
	value, err := p.Request(ctx, method, params)
	if err != nil {
		if ctx.Err() != nil {
			return Result{Err: Decode(ctx.Err())}
		}
		return Result{Err: Decode(err)}
	}
	return Result{Value: value}
}

// Accounts issues eth_requestAccounts (prompt=true) or eth_accounts.
func Accounts(ctx context.Context, p Provider, prompt bool) ([]string, *Error) {
	method := MethodAccounts
	if prompt {
		method = MethodRequestAccounts
	}

	res := Call(ctx, p, method, nil)
	if !res.OK() {
		return nil, res.Err
	}

	var accounts []string
	if len(res.Value) == 0 || string(res.Value) == "null" {
		return accounts, nil
	}
	if err := json.Unmarshal(res.Value, &accounts); err != nil {
		return nil, &Error{Kind: KindProviderFailure, Message: fmt.Sprintf("invalid %s result: %v", method, err)}
	}
	return accounts, nil
}

// ChainID issues eth_chainId and normalises the result to 0x-hex.
func ChainID(ctx context.Context, p Provider) (string, *Error) {
	res := Call(ctx, p, MethodChainID, nil)
	if !res.OK() {
		return "", res.Err
	}

	chainID, err := DecodeChainID(res.Value)
	if err != nil {
		return "", &Error{Kind: KindProviderFailure, Message: err.Error()}
	}
	return chainID, nil
}

// DecodeChainID accepts a JSON string or number chain identifier and
// returns it as lower-case 0x-hex.
func DecodeChainID(raw json.RawMessage) (string, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return NormalizeChainID(asString)
	}

	var asNumber json.Number
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return NormalizeChainID(asNumber.String())
	}

	return "", fmt.Errorf("invalid chain id: %s", string(raw))
}

// NormalizeChainID converts a hex ("0x89") or decimal ("137") chain id to
// canonical 0x-hex.
func NormalizeChainID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("chain id cannot be empty")
	}

	if strings.HasPrefix(id, "0x") || strings.HasPrefix(id, "0X") {
		// hexutil rejects leading zeros, so strip them first.
		digits := strings.TrimLeft(strings.ToLower(id[2:]), "0")
		if digits == "" {
			return "", fmt.Errorf("invalid chain id: %s", id)
		}
		n, err := hexutil.DecodeBig("0x" + digits)
		if err != nil {
			return "", fmt.Errorf("invalid chain id: %s", id)
		}
		return hexutil.EncodeBig(n), nil
	}

	n, ok := new(big.Int).SetString(id, 10)
	if !ok || n.Sign() <= 0 {
		return "", fmt.Errorf("invalid chain id: %s", id)
	}
	return hexutil.EncodeBig(n), nil
}
