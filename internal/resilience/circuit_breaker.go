package resilience

import (
	"time"
)

// CircuitBreaker stops calling the endpoint after repeated failures and
// lets a limited number of probes through once OpenTimeout has passed.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	store  *Store
	now    func() time.Time
}

// NewCircuitBreaker creates a circuit breaker. Zero config fields take
// their defaults.
func NewCircuitBreaker(store *Store, config CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultConfig().CircuitBreaker
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = def.SuccessThreshold
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = def.OpenTimeout
	}
	return &CircuitBreaker{config: config, store: store, now: time.Now}
}

// Allow reports whether a request may proceed. While half-open it
// reserves a probe slot, released by RecordSuccess or RecordFailure.
// Store errors allow the request.
func (cb *CircuitBreaker) Allow() (bool, error) {
	state, err := cb.store.Load()
	if err != nil {
		return true, nil //nolint:nilerr
	}
	now := cb.now()
	c := &state.CircuitBreaker

	// Closed and still-open circuits need no write.
	if c.IsClosed() {
		return true, nil
	}
	if c.IsOpen() && now.Sub(c.OpenedAt) < cb.config.OpenTimeout {
		return false, nil
	}
	if c.IsHalfOpen() && cb.config.HalfOpenMaxRequests <= 0 {
		return true, nil
	}

	var allowed bool
	err = cb.store.Update(func(s *State) error {
		allowed = cb.reserve(s, now)
		return nil
	})
	if err != nil {
		return true, nil //nolint:nilerr
	}
	return allowed, nil
}

// reserve re-evaluates the circuit under the store lock, moving an
// expired open circuit to half-open and taking a probe slot.
func (cb *CircuitBreaker) reserve(s *State, now time.Time) bool {
	c := &s.CircuitBreaker
	switch {
	case c.IsClosed():
		return true
	case c.IsOpen():
		if now.Sub(c.OpenedAt) < cb.config.OpenTimeout {
			return false
		}
		c.State = CircuitHalfOpen
		c.Successes = 0
		c.Failures = 0
		c.HalfOpenAttempts = 0
	}

	if cb.staleProbes(c, now) {
		c.HalfOpenAttempts = 0
	}
	if cb.config.HalfOpenMaxRequests > 0 && c.HalfOpenAttempts >= cb.config.HalfOpenMaxRequests {
		return false
	}
	c.HalfOpenAttempts++
	c.HalfOpenLastAttemptAt = now
	s.UpdatedAt = now
	return true
}

// staleProbes reports whether every probe slot is taken by a reservation
// older than OpenTimeout, i.e. by a process that exited mid-request.
func (cb *CircuitBreaker) staleProbes(c *CircuitBreakerState, now time.Time) bool {
	if c.HalfOpenAttempts < cb.config.HalfOpenMaxRequests || c.HalfOpenLastAttemptAt.IsZero() {
		return false
	}
	return now.Sub(c.HalfOpenLastAttemptAt) >= cb.config.OpenTimeout
}

// RecordSuccess records a successful request.
func (cb *CircuitBreaker) RecordSuccess() error {
	return cb.store.Update(func(s *State) error {
		c := &s.CircuitBreaker
		switch {
		case c.IsHalfOpen():
			if c.HalfOpenAttempts > 0 {
				c.HalfOpenAttempts--
			}
			c.Successes++
			if c.Successes >= cb.config.SuccessThreshold {
				*c = CircuitBreakerState{State: CircuitClosed, LastFailureAt: c.LastFailureAt}
			}
		case c.IsClosed():
			c.Failures = 0
		}
		s.UpdatedAt = cb.now()
		return nil
	})
}

// RecordFailure records a failed request.
func (cb *CircuitBreaker) RecordFailure() error {
	return cb.store.Update(func(s *State) error {
		c := &s.CircuitBreaker
		now := cb.now()
		c.LastFailureAt = now

		switch {
		case c.IsClosed():
			c.Failures++
			if c.Failures >= cb.config.FailureThreshold {
				c.State = CircuitOpen
				c.OpenedAt = now
			}
		case c.IsHalfOpen():
			c.State = CircuitOpen
			c.OpenedAt = now
			c.Successes = 0
			c.HalfOpenAttempts = 0
			c.HalfOpenLastAttemptAt = time.Time{}
		}
		s.UpdatedAt = now
		return nil
	})
}

// State returns the effective circuit state. An open circuit past its
// timeout reports half-open.
func (cb *CircuitBreaker) State() (string, error) {
	state, err := cb.store.Load()
	if err != nil {
		return CircuitClosed, err
	}
	c := &state.CircuitBreaker
	switch {
	case c.IsOpen() && cb.now().Sub(c.OpenedAt) >= cb.config.OpenTimeout:
		return CircuitHalfOpen, nil
	case c.State == "":
		return CircuitClosed, nil
	default:
		return c.State, nil
	}
}

// Reset closes the circuit.
func (cb *CircuitBreaker) Reset() error {
	return cb.store.Update(func(s *State) error {
		s.CircuitBreaker = CircuitBreakerState{State: CircuitClosed}
		s.UpdatedAt = cb.now()
		return nil
	})
}
