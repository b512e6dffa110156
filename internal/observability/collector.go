// Package observability provides metrics collection and tracing for fetches.
package observability

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oppfinder/opps/internal/remote"
	"github.com/oppfinder/opps/internal/search"
)

// FetchMetrics holds the outcome of a single orchestrated fetch.
type FetchMetrics struct {
	Key        search.QueryKey
	Background bool
	Items      int
	Duration   time.Duration
	Err        *search.FetchError
}

// RequestMetrics holds timing and status information for a single HTTP request.
type RequestMetrics struct {
	Method     string
	URL        string
	StatusCode int
	Duration   time.Duration
	Error      error
}

// SessionMetrics aggregates metrics for an entire CLI session.
type SessionMetrics struct {
	StartTime         time.Time
	EndTime           time.Time
	TotalFetches      int
	BackgroundFetches int
	FailedFetches     int
	FailuresByKind    map[string]int
	TotalRequests     int
	FailedRequests    int
	CacheHits         int
	CacheMisses       int
	TotalLatency      time.Duration
}

// SessionCollector accumulates metrics across a CLI session.
// It is safe for concurrent use and uses counters instead of unbounded slices.
type SessionCollector struct {
	mu sync.Mutex

	startTime         time.Time
	totalFetches      int
	backgroundFetches int
	failedFetches     int
	failuresByKind    map[string]int
	totalRequests     int
	failedRequests    int
	cacheHits         int
	cacheMisses       int
	totalLatency      time.Duration
}

// NewSessionCollector creates a new SessionCollector.
func NewSessionCollector() *SessionCollector {
	return &SessionCollector{
		startTime:      time.Now(),
		failuresByKind: make(map[string]int),
	}
}

// RecordFetch records the outcome of a fetch.
func (c *SessionCollector) RecordFetch(m FetchMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalFetches++
	if m.Background {
		c.backgroundFetches++
	}
	if m.Err != nil {
		c.failedFetches++
		c.failuresByKind[m.Err.Kind.String()]++
	}
}

// RecordFetchResult records metrics from search hook types.
func (c *SessionCollector) RecordFetchResult(info search.FetchInfo, result search.FetchResult) {
	c.RecordFetch(FetchMetrics{
		Key:        info.Key,
		Background: info.Priority == search.PriorityBackground,
		Items:      result.Items,
		Duration:   result.Duration,
		Err:        result.Err,
	})
}

// RecordRequest records metrics for an HTTP request.
func (c *SessionCollector) RecordRequest(m RequestMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
	c.totalLatency += m.Duration
	if m.Error != nil {
		c.failedRequests++
	}
}

// RecordRequestResult records metrics from remote hook types.
func (c *SessionCollector) RecordRequestResult(info remote.RequestInfo, result remote.RequestResult) {
	c.RecordRequest(RequestMetrics{
		Method:     info.Method,
		URL:        info.URL,
		StatusCode: result.StatusCode,
		Duration:   result.Duration,
		Error:      result.Err,
	})
}

// RecordLookup records whether a navigation found a cached page.
func (c *SessionCollector) RecordLookup(hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hit {
		c.cacheHits++
	} else {
		c.cacheMisses++
	}
}

// Summary returns aggregated metrics for the session.
func (c *SessionCollector) Summary() SessionMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	byKind := make(map[string]int, len(c.failuresByKind))
	for k, v := range c.failuresByKind {
		byKind[k] = v
	}

	return SessionMetrics{
		StartTime:         c.startTime,
		EndTime:           time.Now(),
		TotalFetches:      c.totalFetches,
		BackgroundFetches: c.backgroundFetches,
		FailedFetches:     c.failedFetches,
		FailuresByKind:    byKind,
		TotalRequests:     c.totalRequests,
		FailedRequests:    c.failedRequests,
		CacheHits:         c.cacheHits,
		CacheMisses:       c.cacheMisses,
		TotalLatency:      c.totalLatency,
	}
}

// Reset clears all collected metrics and resets the start time.
func (c *SessionCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.startTime = time.Now()
	c.totalFetches = 0
	c.backgroundFetches = 0
	c.failedFetches = 0
	c.failuresByKind = make(map[string]int)
	c.totalRequests = 0
	c.failedRequests = 0
	c.cacheHits = 0
	c.cacheMisses = 0
	c.totalLatency = 0
}

// ToMap converts metrics into the map stored under an envelope's
// meta["stats"] key.
func (m SessionMetrics) ToMap() map[string]any {
	failures := make(map[string]any, len(m.FailuresByKind))
	for k, v := range m.FailuresByKind {
		failures[k] = v
	}
	return map[string]any{
		"duration_ms":        m.EndTime.Sub(m.StartTime).Milliseconds(),
		"fetches":            m.TotalFetches,
		"background_fetches": m.BackgroundFetches,
		"failed_fetches":     m.FailedFetches,
		"failures_by_kind":   failures,
		"requests":           m.TotalRequests,
		"failed_requests":    m.FailedRequests,
		"cache_hits":         m.CacheHits,
		"cache_misses":       m.CacheMisses,
		"latency_ms":         m.TotalLatency.Milliseconds(),
	}
}

// SessionMetricsFromMap reverses ToMap. Numbers may arrive as float64
// after a JSON round trip.
func SessionMetricsFromMap(m map[string]any) SessionMetrics {
	num := func(key string) int {
		switch v := m[key].(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
		return 0
	}

	out := SessionMetrics{
		TotalFetches:      num("fetches"),
		BackgroundFetches: num("background_fetches"),
		FailedFetches:     num("failed_fetches"),
		TotalRequests:     num("requests"),
		FailedRequests:    num("failed_requests"),
		CacheHits:         num("cache_hits"),
		CacheMisses:       num("cache_misses"),
		TotalLatency:      time.Duration(num("latency_ms")) * time.Millisecond,
		FailuresByKind:    make(map[string]int),
	}
	out.EndTime = out.StartTime.Add(time.Duration(num("duration_ms")) * time.Millisecond)
	if failures, ok := m["failures_by_kind"].(map[string]any); ok {
		for k, v := range failures {
			switch n := v.(type) {
			case int:
				out.FailuresByKind[k] = n
			case float64:
				out.FailuresByKind[k] = int(n)
			}
		}
	}
	return out
}

// FormatParts returns the non-empty pieces of a one-line stats summary.
func (m SessionMetrics) FormatParts() []string {
	var parts []string
	if d := m.EndTime.Sub(m.StartTime); d > 0 {
		parts = append(parts, fmt.Sprintf("%dms", d.Milliseconds()))
	}
	if m.TotalFetches > 0 {
		fetches := fmt.Sprintf("%d fetches", m.TotalFetches)
		if m.BackgroundFetches > 0 {
			fetches += fmt.Sprintf(" (%d prefetch)", m.BackgroundFetches)
		}
		parts = append(parts, fetches)
	}
	if m.TotalRequests > 0 {
		parts = append(parts, fmt.Sprintf("%d requests", m.TotalRequests))
	}
	if m.CacheHits+m.CacheMisses > 0 {
		parts = append(parts, fmt.Sprintf("%d/%d cached", m.CacheHits, m.CacheHits+m.CacheMisses))
	}
	if m.FailedFetches > 0 {
		kinds := make([]string, 0, len(m.FailuresByKind))
		for k := range m.FailuresByKind {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		failed := fmt.Sprintf("%d failed", m.FailedFetches)
		for i, k := range kinds {
			sep := ", "
			if i == 0 {
				sep = " ("
			}
			failed += fmt.Sprintf("%s%s %d", sep, k, m.FailuresByKind[k])
		}
		if len(kinds) > 0 {
			failed += ")"
		}
		parts = append(parts, failed)
	}
	return parts
}
