package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// replayWindow is how long an idempotent reply is served again.
const replayWindow = 5 * time.Minute

type route struct {
	handler RequestHandler
	schema  *gojsonschema.Schema
}

// RPCRouter dispatches requests to registered methods. Requests carrying an
// idempotency key run once per window: retries get the first reply, and a
// retry that arrives while the first call is still waiting on the wallet
// shares its outcome instead of opening a second prompt.
type RPCRouter struct {
	mu      sync.RWMutex
	routes  map[string]route
	replies *replyCache
}

// NewRPCRouter creates an empty router.
func NewRPCRouter() *RPCRouter {
	return &RPCRouter{
		routes:  make(map[string]route),
		replies: newReplyCache(replayWindow),
	}
}

// RegisterMethod registers or replaces a method with no params schema.
func (r *RPCRouter) RegisterMethod(name string, handler RequestHandler) error {
	return r.register(name, nil, handler)
}

// RegisterMethodWithSchema registers a method whose params must satisfy
// schema before the handler runs.
func (r *RPCRouter) RegisterMethodWithSchema(name string, schema map[string]interface{}, handler RequestHandler) error {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return fmt.Errorf("compile schema for %s: %w", name, err)
	}
	return r.register(name, compiled, handler)
}

func (r *RPCRouter) register(name string, schema *gojsonschema.Schema, handler RequestHandler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}
	r.mu.Lock()
	r.routes[name] = route{handler: handler, schema: schema}
	r.mu.Unlock()
	return nil
}

// HasMethod reports whether name is registered.
func (r *RPCRouter) HasMethod(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.routes[name]
	return ok
}

// Methods returns the registered method names in order.
func (r *RPCRouter) Methods() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.routes))
	for name := range r.routes {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// ParseRequest decodes a request frame. Both id and method are required.
func (r *RPCRouter) ParseRequest(data []byte) (*RPCRequest, error) {
	var req RPCRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, &RPCError{Code: ParseError, Message: "Parse error", Data: err.Error()}
	}
	switch {
	case req.ID == "":
		return nil, &RPCError{Code: InvalidRequest, Message: "Invalid request: missing id field"}
	case req.Method == "":
		return nil, &RPCError{Code: InvalidRequest, Message: "Invalid request: missing method field"}
	}
	if req.JSONRPC == "" {
		req.JSONRPC = "2.0"
	}
	return &req, nil
}

// RouteRequest runs req and always returns a response carrying req's id.
func (r *RPCRouter) RouteRequest(ctx context.Context, req *RPCRequest) *RPCResponse {
	if req == nil {
		return failure("", &RPCError{Code: InvalidRequest, Message: "invalid request"})
	}

	if req.IdempotencyKey == "" {
		return r.dispatch(ctx, req)
	}

	resp := r.replies.do(req.Method+":"+req.IdempotencyKey, func() RPCResponse {
		return *r.dispatch(ctx, req)
	})
	resp.ID = req.ID
	return &resp
}

func (r *RPCRouter) dispatch(ctx context.Context, req *RPCRequest) *RPCResponse {
	r.mu.RLock()
	rt, ok := r.routes[req.Method]
	r.mu.RUnlock()
	if !ok {
		return failure(req.ID, &RPCError{Code: MethodNotFound, Message: fmt.Sprintf("Method not found: %s", req.Method)})
	}

	params := req.Params
	if params == nil {
		params = map[string]interface{}{}
	}
	if rpcErr := checkParams(rt.schema, params); rpcErr != nil {
		return failure(req.ID, rpcErr)
	}

	result, err := rt.handler(ctx, params)
	if err != nil {
		var rpcErr *RPCError
		if !errors.As(err, &rpcErr) {
			rpcErr = &RPCError{Code: InternalError, Message: err.Error()}
		}
		return failure(req.ID, rpcErr)
	}
	return &RPCResponse{ID: req.ID, JSONRPC: "2.0", Result: result}
}

func failure(id string, err *RPCError) *RPCResponse {
	return &RPCResponse{ID: id, JSONRPC: "2.0", Error: err}
}

func checkParams(schema *gojsonschema.Schema, params map[string]interface{}) *RPCError {
	if schema == nil {
		return nil
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return &RPCError{Code: InvalidParams, Message: fmt.Sprintf("Invalid params: %v", err)}
	}
	if result.Valid() {
		return nil
	}
	details := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		details = append(details, e.String())
	}
	return &RPCError{Code: InvalidParams, Message: "Invalid params", Data: details}
}

// replyCache remembers replies by key for ttl and coalesces concurrent
// calls with the same key.
type replyCache struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	done     map[string]storedReply
	inflight map[string]*pendingReply
}

type storedReply struct {
	resp    RPCResponse
	expires time.Time
}

type pendingReply struct {
	finished chan struct{}
	resp     RPCResponse
}

func newReplyCache(ttl time.Duration) *replyCache {
	return &replyCache{
		ttl:      ttl,
		now:      time.Now,
		done:     make(map[string]storedReply),
		inflight: make(map[string]*pendingReply),
	}
}

func (c *replyCache) do(key string, call func() RPCResponse) RPCResponse {
	c.mu.Lock()
	now := c.now()
	for k, stored := range c.done {
		if !now.Before(stored.expires) {
			delete(c.done, k)
		}
	}
	if stored, ok := c.done[key]; ok {
		c.mu.Unlock()
		return copyReply(stored.resp)
	}
	if p, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		<-p.finished
		return copyReply(p.resp)
	}
	p := &pendingReply{finished: make(chan struct{})}
	c.inflight[key] = p
	c.mu.Unlock()

	p.resp = call()

	c.mu.Lock()
	delete(c.inflight, key)
	c.done[key] = storedReply{resp: copyReply(p.resp), expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
	close(p.finished)

	return copyReply(p.resp)
}

func copyReply(src RPCResponse) RPCResponse {
	out := src
	if src.Error != nil {
		e := *src.Error
		out.Error = &e
	}
	return out
}
