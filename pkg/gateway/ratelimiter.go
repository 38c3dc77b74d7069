package gateway

import (
	"sync"
	"time"
)

// RateLimits bounds how hard one caller may drive the wallet. Zero disables
// a limit.
type RateLimits struct {
	// PerMinute caps requests admitted in any sliding minute.
	PerMinute int
	// Concurrent caps requests in flight.
	Concurrent int
	// Prompts caps in-flight requests that open a wallet prompt. Wallets
	// answer a second prompt with -32002.
	Prompts int
}

// DefaultRateLimits returns the limits used when Config leaves them unset.
func DefaultRateLimits() RateLimits {
	return RateLimits{PerMinute: 60, Concurrent: 10, Prompts: 1}
}

// promptMethods open a wallet approval dialog.
var promptMethods = map[string]bool{
	MethodConnect:     true,
	MethodSwitchChain: true,
	MethodAddToken:    true,
}

// RateLimiter admits requests for one caller.
type RateLimiter struct {
	mu       sync.Mutex
	limits   RateLimits
	window   []time.Time // admission times, oldest first
	inFlight int
	prompts  int
	now      func() time.Time
}

// NewRateLimiter creates a limiter enforcing limits
func NewRateLimiter(limits RateLimits) *RateLimiter {
	return &RateLimiter{limits: limits, now: time.Now}
}

// Acquire admits a request for method. The returned release must be called
// when the request finishes; calling it more than once is harmless.
func (r *RateLimiter) Acquire(method string) (release func(), rpcErr *RPCError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.trim(now)
	prompt := promptMethods[method]

	switch {
	case r.limits.Concurrent > 0 && r.inFlight >= r.limits.Concurrent:
		return nil, &RPCError{Code: TooManyConcurrent, Message: "too many concurrent requests"}
	case prompt && r.limits.Prompts > 0 && r.prompts >= r.limits.Prompts:
		return nil, &RPCError{Code: PromptPending, Message: "a wallet prompt is already pending"}
	case r.limits.PerMinute > 0 && len(r.window) >= r.limits.PerMinute:
		return nil, &RPCError{Code: RateLimitExceeded, Message: "rate limit exceeded"}
	}

	r.window = append(r.window, now)
	r.inFlight++
	if prompt {
		r.prompts++
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.inFlight--
			if prompt {
				r.prompts--
			}
		})
	}, nil
}

// Stats reports admissions in the current window and requests in flight.
func (r *RateLimiter) Stats() (windowed, inFlight, prompts int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.trim(r.now())
	return len(r.window), r.inFlight, r.prompts
}

func (r *RateLimiter) trim(now time.Time) {
	cutoff := now.Add(-time.Minute)
	i := 0
	for i < len(r.window) && !r.window[i].After(cutoff) {
		i++
	}
	r.window = r.window[i:]
}
