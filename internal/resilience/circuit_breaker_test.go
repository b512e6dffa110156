package resilience

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(t *testing.T, cfg CircuitBreakerConfig) (*CircuitBreaker, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	cb := NewCircuitBreaker(NewStore(t.TempDir()), cfg)
	cb.now = clock.Now
	return cb, clock
}

func mustState(t *testing.T, cb *CircuitBreaker, want string) {
	t.Helper()
	got, err := cb.State()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("expected %s state, got %s", want, got)
	}
}

func mustAllow(t *testing.T, cb *CircuitBreaker, want bool) {
	t.Helper()
	allowed, err := cb.Allow()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed != want {
		t.Errorf("expected allowed=%v, got %v", want, allowed)
	}
}

func TestCircuitBreakerDefaultsClosed(t *testing.T) {
	cb, _ := newTestBreaker(t, CircuitBreakerConfig{})
	mustState(t, cb, CircuitClosed)
	mustAllow(t, cb, true)
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	cb, _ := newTestBreaker(t, CircuitBreakerConfig{FailureThreshold: 3})

	for range 3 {
		if err := cb.RecordFailure(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	mustState(t, cb, CircuitOpen)
	mustAllow(t, cb, false)
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(t, CircuitBreakerConfig{FailureThreshold: 3})

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()
	mustState(t, cb, CircuitClosed)

	cb.RecordFailure()
	mustState(t, cb, CircuitOpen)
}

func TestCircuitBreakerHalfOpenProbe(t *testing.T) {
	cb, clock := newTestBreaker(t, CircuitBreakerConfig{
		FailureThreshold:    2,
		SuccessThreshold:    2,
		OpenTimeout:         30 * time.Second,
		HalfOpenMaxRequests: 1,
	})

	cb.RecordFailure()
	cb.RecordFailure()
	clock.Advance(10 * time.Second)
	mustAllow(t, cb, false)

	clock.Advance(25 * time.Second)
	mustState(t, cb, CircuitHalfOpen)
	mustAllow(t, cb, true)
	// One probe at a time.
	mustAllow(t, cb, false)

	cb.RecordSuccess()
	mustState(t, cb, CircuitHalfOpen)
	mustAllow(t, cb, true)
	cb.RecordSuccess()
	mustState(t, cb, CircuitClosed)
}

func TestCircuitBreakerFailureInHalfOpenReopens(t *testing.T) {
	cb, clock := newTestBreaker(t, CircuitBreakerConfig{FailureThreshold: 1, OpenTimeout: time.Second})

	cb.RecordFailure()
	clock.Advance(2 * time.Second)
	mustAllow(t, cb, true)
	cb.RecordFailure()

	mustState(t, cb, CircuitOpen)
	mustAllow(t, cb, false)
}

func TestCircuitBreakerReclaimsAbandonedProbe(t *testing.T) {
	cb, clock := newTestBreaker(t, CircuitBreakerConfig{
		FailureThreshold:    1,
		OpenTimeout:         time.Second,
		HalfOpenMaxRequests: 1,
	})

	cb.RecordFailure()
	clock.Advance(2 * time.Second)
	mustAllow(t, cb, true) // probe never reports back
	mustAllow(t, cb, false)

	clock.Advance(2 * time.Second)
	mustAllow(t, cb, true)
}

func TestCircuitBreakerReset(t *testing.T) {
	cb, _ := newTestBreaker(t, CircuitBreakerConfig{FailureThreshold: 1})
	cb.RecordFailure()
	mustState(t, cb, CircuitOpen)

	if err := cb.Reset(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mustState(t, cb, CircuitClosed)
}

func TestCircuitBreakerSharedAcrossProcesses(t *testing.T) {
	dir := t.TempDir()
	cfg := CircuitBreakerConfig{FailureThreshold: 3, OpenTimeout: 30 * time.Second}

	first := NewCircuitBreaker(NewStore(dir), cfg)
	first.RecordFailure()
	first.RecordFailure()

	second := NewCircuitBreaker(NewStore(dir), cfg)
	second.RecordFailure()
	mustState(t, second, CircuitOpen)
	mustState(t, first, CircuitOpen)

	if _, err := os.Stat(filepath.Join(dir, StateFileName)); err != nil {
		t.Errorf("expected state file: %v", err)
	}
}
