package resilience

import (
	"time"
)

// StateVersion is the current state schema version.
const StateVersion = 2

// State is the resilience state shared by every opps process on the
// machine, so a failing endpoint trips the circuit for `list` and
// `browse` sessions alike.
type State struct {
	Version        int                 `json:"version"`
	CircuitBreaker CircuitBreakerState `json:"circuit_breaker"`
	RateLimiter    RateLimiterState    `json:"rate_limiter"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// CircuitBreakerState is the persisted circuit.
type CircuitBreakerState struct {
	// State is "closed", "open", or "half_open". Empty means closed.
	State string `json:"state"`

	// Failures counts consecutive failures while closed.
	Failures int `json:"failures"`

	// Successes counts consecutive successes while half-open.
	Successes int `json:"successes"`

	// HalfOpenAttempts is the number of probe requests currently reserved.
	HalfOpenAttempts int `json:"half_open_attempts,omitempty"`

	// HalfOpenLastAttemptAt is when the last probe was reserved. Probes
	// older than the open timeout are assumed abandoned.
	HalfOpenLastAttemptAt time.Time `json:"half_open_last_attempt_at"`

	LastFailureAt time.Time `json:"last_failure_at"`
	OpenedAt      time.Time `json:"opened_at"`
}

// Circuit breaker states.
const (
	CircuitClosed   = "closed"
	CircuitOpen     = "open"
	CircuitHalfOpen = "half_open"
)

func (c *CircuitBreakerState) IsClosed() bool   { return c.State == "" || c.State == CircuitClosed }
func (c *CircuitBreakerState) IsOpen() bool     { return c.State == CircuitOpen }
func (c *CircuitBreakerState) IsHalfOpen() bool { return c.State == CircuitHalfOpen }

// RateLimiterState is the persisted token bucket.
type RateLimiterState struct {
	Tokens       float64   `json:"tokens"`
	LastRefillAt time.Time `json:"last_refill_at"`

	// RetryAfterUntil blocks every request until it passes. Set from a
	// 429 or 503 response.
	RetryAfterUntil time.Time `json:"retry_after_until"`
}

// BlockedAt reports whether now falls inside a Retry-After window.
func (r *RateLimiterState) BlockedAt(now time.Time) bool {
	return !r.RetryAfterUntil.IsZero() && now.Before(r.RetryAfterUntil)
}

// BlockedFor returns how long the Retry-After window still has to run,
// or zero.
func (r *RateLimiterState) BlockedFor(now time.Time) time.Duration {
	if r.RetryAfterUntil.IsZero() {
		return 0
	}
	return max(r.RetryAfterUntil.Sub(now), 0)
}

// NewState returns an empty state. The rate limiter's LastRefillAt stays
// zero so the first refill fills the bucket.
func NewState() *State {
	return &State{
		Version:        StateVersion,
		CircuitBreaker: CircuitBreakerState{State: CircuitClosed},
		UpdatedAt:      time.Now(),
	}
}
