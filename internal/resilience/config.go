package resilience

import (
	"time"
)

// Config holds configuration for the resilience primitives.
type Config struct {
	CircuitBreaker CircuitBreakerConfig
	RateLimiter    RateLimiterConfig
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening.
	// Default: 5
	FailureThreshold int

	// SuccessThreshold is the number of consecutive half-open successes
	// needed to close again.
	// Default: 2
	SuccessThreshold int

	// OpenTimeout is how long the circuit stays open before probing.
	// Default: 30 seconds
	OpenTimeout time.Duration

	// HalfOpenMaxRequests caps concurrent probes while half-open.
	// Default: 1
	HalfOpenMaxRequests int
}

// RateLimiterConfig configures the token bucket.
type RateLimiterConfig struct {
	// MaxTokens is the bucket size.
	// Default: 30
	MaxTokens float64

	// RefillRate is tokens added per second.
	// Default: 5
	RefillRate float64

	// TokensPerRequest is the cost of one request.
	// Default: 1
	TokensPerRequest float64
}

// DefaultConfig returns defaults sized for an interactive list: a burst
// large enough for a page plus both neighbors on every keypress, refilled
// faster than a person can page.
func DefaultConfig() *Config {
	return &Config{
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold:    5,
			SuccessThreshold:    2,
			OpenTimeout:         30 * time.Second,
			HalfOpenMaxRequests: 1,
		},
		RateLimiter: RateLimiterConfig{
			MaxTokens:        30,
			RefillRate:       5,
			TokensPerRequest: 1,
		},
	}
}
