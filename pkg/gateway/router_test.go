package gateway

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constHandler(v interface{}) RequestHandler {
	return func(context.Context, map[string]interface{}) (interface{}, error) { return v, nil }
}

func TestRPCRouter_Register(t *testing.T) {
	router := NewRPCRouter()

	require.NoError(t, router.RegisterMethod("wallet.b", constHandler(1)))
	require.NoError(t, router.RegisterMethod("wallet.a", constHandler(2)))
	require.NoError(t, router.RegisterMethod("wallet.a", constHandler(3)))

	assert.True(t, router.HasMethod("wallet.a"))
	assert.False(t, router.HasMethod("wallet.c"))
	assert.Equal(t, []string{"wallet.a", "wallet.b"}, router.Methods())

	resp := router.RouteRequest(context.Background(), &RPCRequest{ID: "1", Method: "wallet.a"})
	assert.Equal(t, 3, resp.Result)

	err := router.RegisterMethod("wallet.nil", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler cannot be nil")

	err = router.RegisterMethodWithSchema("wallet.bad", map[string]interface{}{"type": 12}, constHandler(nil))
	assert.Error(t, err)
}

func TestRPCRouter_ParseRequest(t *testing.T) {
	router := NewRPCRouter()

	req, err := router.ParseRequest([]byte(`{"id":"1","method":"wallet.switchChain","params":{"chainId":"0x89"}}`))
	require.NoError(t, err)
	assert.Equal(t, "1", req.ID)
	assert.Equal(t, MethodSwitchChain, req.Method)
	assert.Equal(t, "0x89", req.Params["chainId"])
	assert.Equal(t, "2.0", req.JSONRPC)

	tests := []struct {
		name    string
		frame   string
		code    int
		message string
	}{
		{"malformed", `{invalid json}`, ParseError, "Parse error"},
		{"missing id", `{"method":"wallet.connect"}`, InvalidRequest, "missing id"},
		{"missing method", `{"id":"1"}`, InvalidRequest, "missing method"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := router.ParseRequest([]byte(tt.frame))
			require.Error(t, err)
			rpcErr, ok := err.(*RPCError)
			require.True(t, ok)
			assert.Equal(t, tt.code, rpcErr.Code)
			assert.Contains(t, rpcErr.Message, tt.message)
		})
	}
}

func TestRPCRouter_RouteRequest(t *testing.T) {
	router := NewRPCRouter()
	require.NoError(t, router.RegisterMethod("test.echo", func(_ context.Context, params map[string]interface{}) (interface{}, error) {
		return params["input"], nil
	}))
	require.NoError(t, router.RegisterMethod("test.fail", func(context.Context, map[string]interface{}) (interface{}, error) {
		return nil, fmt.Errorf("provider went away")
	}))
	require.NoError(t, router.RegisterMethod("test.invalid", func(context.Context, map[string]interface{}) (interface{}, error) {
		return nil, &RPCError{Code: InvalidParams, Message: "bad"}
	}))

	resp := router.RouteRequest(context.Background(), &RPCRequest{ID: "echo-1", Method: "test.echo", Params: map[string]interface{}{"input": "hello"}})
	assert.Equal(t, "echo-1", resp.ID)
	assert.Nil(t, resp.Error)
	assert.Equal(t, "hello", resp.Result)

	resp = router.RouteRequest(context.Background(), &RPCRequest{ID: "2", Method: "unknown.method"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, "2", resp.ID)
	assert.Equal(t, MethodNotFound, resp.Error.Code)

	resp = router.RouteRequest(context.Background(), &RPCRequest{ID: "3", Method: "test.fail"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, InternalError, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "provider went away")

	resp = router.RouteRequest(context.Background(), &RPCRequest{ID: "4", Method: "test.invalid"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, InvalidParams, resp.Error.Code)

	resp = router.RouteRequest(context.Background(), nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, InvalidRequest, resp.Error.Code)
}

func TestRPCRouter_ValidatesSchema(t *testing.T) {
	router := NewRPCRouter()
	called := false
	require.NoError(t, router.RegisterMethodWithSchema(MethodSwitchChain, switchChainSchema, func(_ context.Context, params map[string]interface{}) (interface{}, error) {
		called = true
		return params["chainId"], nil
	}))

	resp := router.RouteRequest(context.Background(), &RPCRequest{ID: "1", Method: MethodSwitchChain})
	require.NotNil(t, resp.Error)
	assert.Equal(t, InvalidParams, resp.Error.Code)
	assert.False(t, called)

	resp = router.RouteRequest(context.Background(), &RPCRequest{
		ID:     "2",
		Method: MethodSwitchChain,
		Params: map[string]interface{}{"chainId": "0x1", "extra": true},
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, InvalidParams, resp.Error.Code)
	assert.NotEmpty(t, resp.Error.Data)

	resp = router.RouteRequest(context.Background(), &RPCRequest{
		ID:     "3",
		Method: MethodSwitchChain,
		Params: map[string]interface{}{"chainId": "0x89"},
	})
	require.Nil(t, resp.Error)
	assert.Equal(t, "0x89", resp.Result)
	assert.True(t, called)
}

func TestRPCRouter_IdempotencyKeyReplaysResponse(t *testing.T) {
	router := NewRPCRouter()
	calls := 0
	require.NoError(t, router.RegisterMethod(MethodConnect, func(context.Context, map[string]interface{}) (interface{}, error) {
		calls++
		return calls, nil
	}))

	first := router.RouteRequest(context.Background(), &RPCRequest{ID: "1", Method: MethodConnect, IdempotencyKey: "k"})
	second := router.RouteRequest(context.Background(), &RPCRequest{ID: "2", Method: MethodConnect, IdempotencyKey: "k"})
	other := router.RouteRequest(context.Background(), &RPCRequest{ID: "3", Method: MethodConnect, IdempotencyKey: "k2"})

	assert.Equal(t, 2, calls)
	assert.Equal(t, first.Result, second.Result)
	assert.Equal(t, "1", first.ID)
	assert.Equal(t, "2", second.ID)
	assert.Equal(t, 2, other.Result)
}

func TestRPCRouter_IdempotentRepliesExpire(t *testing.T) {
	router := NewRPCRouter()
	now := time.Unix(1_700_000_000, 0)
	router.replies.now = func() time.Time { return now }

	calls := 0
	require.NoError(t, router.RegisterMethod(MethodAddToken, func(context.Context, map[string]interface{}) (interface{}, error) {
		calls++
		return nil, &RPCError{Code: InternalError, Message: "wallet unavailable"}
	}))

	req := &RPCRequest{ID: "1", Method: MethodAddToken, IdempotencyKey: "usdc"}
	first := router.RouteRequest(context.Background(), req)
	first.Error.Message = "mutated"

	again := router.RouteRequest(context.Background(), req)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "wallet unavailable", again.Error.Message)

	now = now.Add(replayWindow)
	router.RouteRequest(context.Background(), req)
	assert.Equal(t, 2, calls)
}

func TestRPCRouter_ConcurrentRetriesShareOneCall(t *testing.T) {
	router := NewRPCRouter()
	var calls atomic.Int32
	release := make(chan struct{})
	require.NoError(t, router.RegisterMethod(MethodConnect, func(context.Context, map[string]interface{}) (interface{}, error) {
		calls.Add(1)
		<-release
		return "connected", nil
	}))

	var wg sync.WaitGroup
	results := make([]*RPCResponse, 3)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = router.RouteRequest(context.Background(), &RPCRequest{ID: fmt.Sprint(i), Method: MethodConnect, IdempotencyKey: "same"})
		}(i)
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i, resp := range results {
		assert.Equal(t, fmt.Sprint(i), resp.ID)
		assert.Equal(t, "connected", resp.Result)
	}
}
