package gateway

import (
	"context"

	"github.com/harun/walletlink/internal/tracing"
)

// requestContext tags ctx with a fresh request id, the calling client and
// the RPC method. An existing trace id is kept.
func requestContext(ctx context.Context, clientID, method string) context.Context {
	ctx = tracing.NewRequestContext(ctx)
	ctx = tracing.WithClientID(ctx, clientID)
	return tracing.WithOperation(ctx, method)
}

func clientIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	return tracing.GetClientID(ctx)
}
