package resilience

import (
	"time"
)

// RateLimiter is a token bucket shared across processes through the Store.
type RateLimiter struct {
	config RateLimiterConfig
	store  *Store
	now    func() time.Time
}

// NewRateLimiter creates a rate limiter. Zero config fields take their
// defaults.
func NewRateLimiter(store *Store, config RateLimiterConfig) *RateLimiter {
	def := DefaultConfig().RateLimiter
	if config.MaxTokens <= 0 {
		config.MaxTokens = def.MaxTokens
	}
	if config.RefillRate <= 0 {
		config.RefillRate = def.RefillRate
	}
	if config.TokensPerRequest <= 0 {
		config.TokensPerRequest = def.TokensPerRequest
	}
	return &RateLimiter{config: config, store: store, now: time.Now}
}

// refill tops up the bucket for the time elapsed since the last refill.
// A never-touched bucket starts full.
func (rl *RateLimiter) refill(r *RateLimiterState, now time.Time) {
	if r.LastRefillAt.IsZero() {
		r.Tokens = rl.config.MaxTokens
		r.LastRefillAt = now
		return
	}
	r.Tokens = min(r.Tokens+now.Sub(r.LastRefillAt).Seconds()*rl.config.RefillRate, rl.config.MaxTokens)
	r.LastRefillAt = now
}

// Allow takes one request's worth of tokens if available. It refuses
// inside a Retry-After window. Store errors allow the request.
func (rl *RateLimiter) Allow() (bool, error) {
	var allowed bool
	err := rl.store.Update(func(s *State) error {
		now := rl.now()
		r := &s.RateLimiter
		if r.BlockedAt(now) {
			return nil
		}
		rl.refill(r, now)
		if r.Tokens >= rl.config.TokensPerRequest {
			r.Tokens -= rl.config.TokensPerRequest
			allowed = true
		}
		s.UpdatedAt = now
		return nil
	})
	if err != nil {
		return true, nil //nolint:nilerr
	}
	return allowed, nil
}

// SetRetryAfter blocks requests until the given time. An earlier time
// never shortens an existing block.
func (rl *RateLimiter) SetRetryAfter(until time.Time) error {
	return rl.store.Update(func(s *State) error {
		if until.After(s.RateLimiter.RetryAfterUntil) {
			s.RateLimiter.RetryAfterUntil = until
			s.UpdatedAt = rl.now()
		}
		return nil
	})
}

// SetRetryAfterDuration blocks requests for d.
func (rl *RateLimiter) SetRetryAfterDuration(d time.Duration) error {
	return rl.SetRetryAfter(rl.now().Add(d))
}

// Tokens returns the available tokens after a refill.
func (rl *RateLimiter) Tokens() (float64, error) {
	var tokens float64
	err := rl.store.Update(func(s *State) error {
		now := rl.now()
		rl.refill(&s.RateLimiter, now)
		tokens = s.RateLimiter.Tokens
		s.UpdatedAt = now
		return nil
	})
	return tokens, err
}

// RetryAfterRemaining returns what is left of the Retry-After block.
func (rl *RateLimiter) RetryAfterRemaining() (time.Duration, error) {
	state, err := rl.store.Load()
	if err != nil {
		return 0, err
	}
	return state.RateLimiter.BlockedFor(rl.now()), nil
}

// Reset refills the bucket and lifts any block.
func (rl *RateLimiter) Reset() error {
	return rl.store.Update(func(s *State) error {
		now := rl.now()
		s.RateLimiter = RateLimiterState{Tokens: rl.config.MaxTokens, LastRefillAt: now}
		s.UpdatedAt = now
		return nil
	})
}
