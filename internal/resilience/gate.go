package resilience

import (
	"context"
	"errors"
	"net/http"
	"time"
)

var (
	// ErrCircuitOpen rejects a request while the circuit is open.
	ErrCircuitOpen = errors.New("circuit open: search endpoint is failing, retry later")

	// ErrRateLimited rejects a request when the bucket is empty or a
	// Retry-After window is active.
	ErrRateLimited = errors.New("rate limited: too many requests, retry later")
)

// DefaultRetryAfter is the block applied on a 429 without a Retry-After header.
const DefaultRetryAfter = 60 * time.Second

// Gate runs every endpoint call through the rate limiter and circuit
// breaker and feeds the outcome back into them.
type Gate struct {
	circuitBreaker *CircuitBreaker
	rateLimiter    *RateLimiter
}

// NewGate creates a Gate. Either primitive may be nil.
func NewGate(cb *CircuitBreaker, rl *RateLimiter) *Gate {
	return &Gate{circuitBreaker: cb, rateLimiter: rl}
}

// NewGateFromConfig builds both primitives over store.
func NewGateFromConfig(store *Store, cfg *Config) *Gate {
	return NewGate(NewCircuitBreaker(store, cfg.CircuitBreaker), NewRateLimiter(store, cfg.RateLimiter))
}

// Acquire decides whether a request may be sent.
//
// The rate limiter is consulted first because the circuit breaker
// reserves a half-open probe slot, which a later rejection would leak.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if g.rateLimiter != nil {
		if ok, _ := g.rateLimiter.Allow(); !ok {
			return ErrRateLimited
		}
	}
	if g.circuitBreaker != nil {
		if ok, _ := g.circuitBreaker.Allow(); !ok {
			return ErrCircuitOpen
		}
	}
	return nil
}

// Release records the outcome of a request that Acquire let through.
// status is the HTTP status, or 0 when no response was received.
func (g *Gate) Release(status int, retryAfter time.Duration, err error) {
	if g.circuitBreaker != nil {
		if err != nil && trips(status) {
			_ = g.circuitBreaker.RecordFailure()
		} else {
			_ = g.circuitBreaker.RecordSuccess()
		}
	}
	if g.rateLimiter == nil {
		return
	}
	switch {
	case retryAfter > 0:
		_ = g.rateLimiter.SetRetryAfterDuration(retryAfter)
	case status == http.StatusTooManyRequests:
		_ = g.rateLimiter.SetRetryAfterDuration(DefaultRetryAfter)
	}
}

// AllowBackground reports whether a speculative request fits in the
// budget. Unlike Acquire it never touches the circuit, so a skipped
// prefetch costs nothing.
func (g *Gate) AllowBackground() bool {
	if g.circuitBreaker != nil {
		if st, err := g.circuitBreaker.State(); err == nil && st == CircuitOpen {
			return false
		}
	}
	if g.rateLimiter == nil {
		return true
	}
	remaining, err := g.rateLimiter.RetryAfterRemaining()
	if err != nil {
		return true
	}
	if remaining > 0 {
		return false
	}
	tokens, err := g.rateLimiter.Tokens()
	if err != nil {
		return true
	}
	// Keep a reserve for the next user action.
	return tokens >= 2*g.rateLimiter.config.TokensPerRequest
}

// trips reports whether a failure counts against the circuit. Transport
// failures and server errors do. Any other response proves the endpoint
// is up and counts as a success.
func trips(status int) bool {
	return status == 0 || status >= 500
}
