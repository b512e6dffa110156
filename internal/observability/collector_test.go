package observability

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/oppfinder/opps/internal/remote"
	"github.com/oppfinder/opps/internal/search"
)

func TestSessionCollector_RecordFetch(t *testing.T) {
	c := NewSessionCollector()

	c.RecordFetch(FetchMetrics{Key: "page=1", Items: 20, Duration: 50 * time.Millisecond})
	c.RecordFetch(FetchMetrics{Key: "page=2", Background: true, Items: 20})
	c.RecordFetch(FetchMetrics{Key: "page=3", Background: true, Err: search.RemoteError(503, "")})
	c.RecordFetch(FetchMetrics{Key: "page=4", Err: search.DecodeError(errors.New("bad json"))})

	summary := c.Summary()
	if summary.TotalFetches != 4 {
		t.Errorf("expected 4 fetches, got %d", summary.TotalFetches)
	}
	if summary.BackgroundFetches != 2 {
		t.Errorf("expected 2 background fetches, got %d", summary.BackgroundFetches)
	}
	if summary.FailedFetches != 2 {
		t.Errorf("expected 2 failed fetches, got %d", summary.FailedFetches)
	}
	if summary.FailuresByKind["remote"] != 1 || summary.FailuresByKind["decode"] != 1 {
		t.Errorf("unexpected failures by kind: %v", summary.FailuresByKind)
	}
}

func TestSessionCollector_RecordFetchResult(t *testing.T) {
	c := NewSessionCollector()

	info := search.FetchInfo{Key: "category=grant&page=2", Priority: search.PriorityBackground}
	c.RecordFetchResult(info, search.FetchResult{Items: 3, TotalCount: 43})

	summary := c.Summary()
	if summary.TotalFetches != 1 || summary.BackgroundFetches != 1 {
		t.Errorf("expected one background fetch, got %+v", summary)
	}
}

func TestSessionCollector_RecordRequest(t *testing.T) {
	c := NewSessionCollector()

	c.RecordRequestResult(
		remote.RequestInfo{Method: "GET", URL: "/api/opportunities?page=1&pageSize=20"},
		remote.RequestResult{StatusCode: 200, Duration: 45 * time.Millisecond},
	)
	c.RecordRequest(RequestMetrics{Method: "GET", StatusCode: 500, Error: errors.New("boom")})

	summary := c.Summary()
	if summary.TotalRequests != 2 {
		t.Errorf("expected 2 requests, got %d", summary.TotalRequests)
	}
	if summary.FailedRequests != 1 {
		t.Errorf("expected 1 failed request, got %d", summary.FailedRequests)
	}
	if summary.TotalLatency != 45*time.Millisecond {
		t.Errorf("expected 45ms latency, got %v", summary.TotalLatency)
	}
}

func TestSessionCollector_RecordLookup(t *testing.T) {
	c := NewSessionCollector()

	c.RecordLookup(true)
	c.RecordLookup(false)
	c.RecordLookup(true)

	summary := c.Summary()
	if summary.CacheHits != 2 {
		t.Errorf("expected 2 cache hits, got %d", summary.CacheHits)
	}
	if summary.CacheMisses != 1 {
		t.Errorf("expected 1 cache miss, got %d", summary.CacheMisses)
	}
}

func TestSessionCollector_SummaryIsACopy(t *testing.T) {
	c := NewSessionCollector()
	c.RecordFetch(FetchMetrics{Err: search.TransportError(errors.New("refused"))})

	summary := c.Summary()
	summary.FailuresByKind["transport"] = 99

	if got := c.Summary().FailuresByKind["transport"]; got != 1 {
		t.Errorf("expected collector to keep its own counts, got %d", got)
	}
}

func TestSessionCollector_Reset(t *testing.T) {
	c := NewSessionCollector()

	c.RecordFetch(FetchMetrics{Err: search.TransportError(errors.New("refused"))})
	c.RecordRequest(RequestMetrics{Method: "GET", URL: "/test"})
	c.RecordLookup(true)

	c.Reset()

	summary := c.Summary()
	if summary.TotalFetches != 0 || summary.TotalRequests != 0 || summary.CacheHits != 0 {
		t.Errorf("expected empty summary after reset, got %+v", summary)
	}
	if len(summary.FailuresByKind) != 0 {
		t.Errorf("expected no failures after reset, got %v", summary.FailuresByKind)
	}
}

func TestSessionCollector_Concurrent(t *testing.T) {
	c := NewSessionCollector()
	var wg sync.WaitGroup

	for range 100 {
		wg.Add(3)
		go func() {
			defer wg.Done()
			c.RecordRequest(RequestMetrics{Method: "GET", URL: "/test"})
		}()
		go func() {
			defer wg.Done()
			c.RecordFetch(FetchMetrics{Key: "page=1"})
		}()
		go func() {
			defer wg.Done()
			c.RecordLookup(false)
		}()
	}

	wg.Wait()

	summary := c.Summary()
	if summary.TotalRequests != 100 {
		t.Errorf("expected 100 requests, got %d", summary.TotalRequests)
	}
	if summary.TotalFetches != 100 {
		t.Errorf("expected 100 fetches, got %d", summary.TotalFetches)
	}
	if summary.CacheMisses != 100 {
		t.Errorf("expected 100 misses, got %d", summary.CacheMisses)
	}
}

func TestSessionMetrics_MapRoundTrip(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m := SessionMetrics{
		StartTime:         start,
		EndTime:           start.Add(1500 * time.Millisecond),
		TotalFetches:      4,
		BackgroundFetches: 2,
		FailedFetches:     1,
		FailuresByKind:    map[string]int{"remote": 1},
		TotalRequests:     4,
		CacheHits:         3,
		CacheMisses:       1,
		TotalLatency:      200 * time.Millisecond,
	}

	got := SessionMetricsFromMap(m.ToMap())
	if got.TotalFetches != 4 || got.BackgroundFetches != 2 || got.FailuresByKind["remote"] != 1 {
		t.Errorf("unexpected round trip: %+v", got)
	}
	if got.TotalLatency != 200*time.Millisecond {
		t.Errorf("expected 200ms latency, got %v", got.TotalLatency)
	}

	want := []string{"1500ms", "4 fetches (2 prefetch)", "4 requests", "3/4 cached", "1 failed (remote 1)"}
	parts := got.FormatParts()
	if len(parts) != len(want) {
		t.Fatalf("expected %v, got %v", want, parts)
	}
	for i := range want {
		if parts[i] != want[i] {
			t.Errorf("part %d: expected %q, got %q", i, want[i], parts[i])
		}
	}
}

func TestSessionMetrics_FormatPartsEmpty(t *testing.T) {
	if parts := (SessionMetrics{}).FormatParts(); len(parts) != 0 {
		t.Errorf("expected no parts, got %v", parts)
	}
}
