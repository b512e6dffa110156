package resilience

import (
	"os"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, cfg RateLimiterConfig) (*RateLimiter, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	rl := NewRateLimiter(NewStore(t.TempDir()), cfg)
	rl.now = clock.Now
	return rl, clock
}

func TestRateLimiterStartsWithFullBucket(t *testing.T) {
	rl, _ := newTestLimiter(t, RateLimiterConfig{MaxTokens: 5, RefillRate: 10})

	tokens, err := rl.Tokens()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tokens != 5 {
		t.Errorf("expected 5 tokens, got %f", tokens)
	}
}

func TestRateLimiterExhaustsAndRefills(t *testing.T) {
	rl, clock := newTestLimiter(t, RateLimiterConfig{MaxTokens: 3, RefillRate: 2})

	for i := range 3 {
		if ok, _ := rl.Allow(); !ok {
			t.Fatalf("expected request %d to be allowed", i+1)
		}
	}
	if ok, _ := rl.Allow(); ok {
		t.Fatal("expected request to be rejected after tokens exhausted")
	}

	clock.Advance(500 * time.Millisecond) // +1 token
	if ok, _ := rl.Allow(); !ok {
		t.Error("expected request to be allowed after refill")
	}
	if ok, _ := rl.Allow(); ok {
		t.Error("expected the refilled token to be spent")
	}
}

func TestRateLimiterCapsAtMaxTokens(t *testing.T) {
	rl, clock := newTestLimiter(t, RateLimiterConfig{MaxTokens: 5, RefillRate: 1000})
	rl.Allow()
	clock.Advance(time.Hour)

	tokens, err := rl.Tokens()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tokens != 5 {
		t.Errorf("expected tokens capped at 5, got %f", tokens)
	}
}

func TestRateLimiterRetryAfter(t *testing.T) {
	rl, clock := newTestLimiter(t, RateLimiterConfig{MaxTokens: 5, RefillRate: 10})

	if err := rl.SetRetryAfterDuration(30 * time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok, _ := rl.Allow(); ok {
		t.Error("expected request to be blocked during Retry-After")
	}
	remaining, _ := rl.RetryAfterRemaining()
	if remaining != 30*time.Second {
		t.Errorf("expected 30s remaining, got %v", remaining)
	}

	// A shorter block does not shorten the existing one.
	rl.SetRetryAfterDuration(time.Second)
	remaining, _ = rl.RetryAfterRemaining()
	if remaining != 30*time.Second {
		t.Errorf("expected block to stay at 30s, got %v", remaining)
	}

	clock.Advance(31 * time.Second)
	if ok, _ := rl.Allow(); !ok {
		t.Error("expected request to be allowed after Retry-After expires")
	}
	if remaining, _ := rl.RetryAfterRemaining(); remaining != 0 {
		t.Errorf("expected no remaining block, got %v", remaining)
	}
}

func TestRateLimiterReset(t *testing.T) {
	rl, _ := newTestLimiter(t, RateLimiterConfig{MaxTokens: 2, RefillRate: 1})
	rl.Allow()
	rl.Allow()
	rl.SetRetryAfterDuration(time.Minute)

	if err := rl.Reset(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok, _ := rl.Allow(); !ok {
		t.Error("expected request to be allowed after reset")
	}
}

func TestRateLimiterTokensPerRequest(t *testing.T) {
	rl, _ := newTestLimiter(t, RateLimiterConfig{MaxTokens: 5, RefillRate: 1, TokensPerRequest: 2})

	rl.Allow()
	rl.Allow()
	if ok, _ := rl.Allow(); ok {
		t.Error("expected third request to be rejected with 1 token left")
	}
}

func TestStoreRecoversFromCorruptFile(t *testing.T) {
	store := NewStore(t.TempDir())
	if err := store.Save(NewState()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(store.Path()); err != nil {
		t.Fatal("expected state file to exist")
	}
	if err := writeFile(store.Path(), "{not json"); err != nil {
		t.Fatal(err)
	}

	st, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !st.CircuitBreaker.IsClosed() {
		t.Error("expected fresh state after corruption")
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(store.Path()); !os.IsNotExist(err) {
		t.Error("expected state file to be removed")
	}
}
