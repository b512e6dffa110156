package observability

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/oppfinder/opps/internal/remote"
	"github.com/oppfinder/opps/internal/search"
)

// sensitiveParams are query parameter names scrubbed from trace output.
// Base URLs may carry credentials for self-hosted endpoints.
var sensitiveParams = map[string]bool{
	"access_token":  true,
	"refresh_token": true,
	"token":         true,
	"api_key":       true,
	"apikey":        true,
	"password":      true,
	"passwd":        true,
	"secret":        true,
	"client_secret": true,
	"private_key":   true,
}

// TraceWriter outputs human-readable trace information to stderr.
// It formats output with timestamps relative to session start.
type TraceWriter struct {
	mu        sync.Mutex
	writer    io.Writer
	startTime time.Time
}

// NewTraceWriter creates a new TraceWriter that writes to stderr.
func NewTraceWriter() *TraceWriter {
	return NewTraceWriterTo(os.Stderr)
}

// NewTraceWriterTo creates a new TraceWriter that writes to the given writer.
func NewTraceWriterTo(w io.Writer) *TraceWriter {
	return &TraceWriter{
		writer:    w,
		startTime: time.Now(),
	}
}

func (t *TraceWriter) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	elapsed := time.Since(t.startTime).Seconds()
	fmt.Fprintf(t.writer, "[%.3fs] "+format+"\n", append([]any{elapsed}, args...)...)
}

// WriteFetchStart writes a fetch start trace line.
// Format: [0.234s] Fetching category=grant&page=1 (user)
func (t *TraceWriter) WriteFetchStart(info search.FetchInfo) {
	t.printf("Fetching %s (%s)", info.Key, info.Priority)
}

// WriteFetchEnd writes a fetch completion trace line.
// Format: [0.234s] Fetched category=grant&page=1: 20 of 57 (234ms)
func (t *TraceWriter) WriteFetchEnd(info search.FetchInfo, result search.FetchResult) {
	if result.Err != nil {
		t.printf("Failed %s [%s]: %s", info.Key, result.Err.Kind, result.Err.Message)
		return
	}
	t.printf("Fetched %s: %d of %d (%dms)", info.Key, result.Items, result.TotalCount, result.Duration.Milliseconds())
}

// WriteRequestStart writes a request start trace line.
// Format: [0.234s]   -> GET /api/opportunities?page=1&pageSize=20
// Sensitive query parameters are redacted.
func (t *TraceWriter) WriteRequestStart(info remote.RequestInfo) {
	t.printf("  -> %s %s", info.Method, scrubURL(info.URL))
}

// WriteRequestEnd writes a request completion trace line.
// Format: [0.234s]   <- 200 (45ms)
func (t *TraceWriter) WriteRequestEnd(info remote.RequestInfo, result remote.RequestResult) {
	if result.Err != nil && result.StatusCode == 0 {
		t.printf("  <- ERROR: %v", result.Err)
		return
	}
	t.printf("  <- %d (%dms)", result.StatusCode, result.Duration.Milliseconds())
}

// Reset resets the start time for relative timestamps.
func (t *TraceWriter) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startTime = time.Now()
}

// scrubURL redacts sensitive query parameters from a URL for safe logging.
// Returns a safe placeholder if the URL cannot be parsed.
func scrubURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		// Don't leak potentially sensitive malformed URLs
		return "[unparseable URL]"
	}
	if u.User != nil {
		u.User = url.User("[REDACTED]")
	}

	query := u.Query()
	modified := u.User != nil
	for key := range query {
		if sensitiveParams[strings.ToLower(key)] {
			query.Set(key, "[REDACTED]")
			modified = true
		}
	}

	if !modified {
		return rawURL
	}

	u.RawQuery = query.Encode()
	return u.String()
}
