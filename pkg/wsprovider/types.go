package wsprovider

import (
	"encoding/json"

	"github.com/harun/walletlink/pkg/provider"
)

// EventMethod is the notification method a wallet endpoint uses to push
// provider events.
const EventMethod = "wallet_event"

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// rpcMessage is any frame received from the endpoint: a response when ID is
// set, a notification when Method is set.
type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *provider.Error `json:"error,omitempty"`
}

// EventParams is the payload of a wallet_event notification.
type EventParams struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type response struct {
	result json.RawMessage
	err    error
}
