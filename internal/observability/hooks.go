package observability

import (
	"context"
	"sync"

	"github.com/oppfinder/opps/internal/remote"
	"github.com/oppfinder/opps/internal/search"
)

var (
	_ search.Hooks        = (*CLIHooks)(nil)
	_ remote.RequestHooks = (*CLIHooks)(nil)
)

// CLIHooks observes fetches and HTTP requests for the CLI.
// It supports configurable verbosity levels:
//   - 0: Silent (collect stats only, no output)
//   - 1: Fetches only
//   - 2: Fetches + HTTP requests
type CLIHooks struct {
	mu        sync.Mutex
	level     int
	collector *SessionCollector
	writer    *TraceWriter
}

// NewCLIHooks creates a new CLIHooks with the given verbosity level.
// If collector is nil, metrics are not collected.
// If writer is nil, no trace output is produced.
func NewCLIHooks(level int, collector *SessionCollector, writer *TraceWriter) *CLIHooks {
	return &CLIHooks{
		level:     level,
		collector: collector,
		writer:    writer,
	}
}

// SetLevel changes the verbosity level at runtime.
func (h *CLIHooks) SetLevel(level int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.level = level
}

// Level returns the current verbosity level.
func (h *CLIHooks) Level() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.level
}

func (h *CLIHooks) snapshot() (int, *SessionCollector, *TraceWriter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.level, h.collector, h.writer
}

// OnFetchStart is called when the orchestrator starts a fetch.
func (h *CLIHooks) OnFetchStart(ctx context.Context, info search.FetchInfo) context.Context {
	level, _, writer := h.snapshot()
	if level >= 1 && writer != nil {
		writer.WriteFetchStart(info)
	}
	return ctx
}

// OnFetchEnd is called when a fetch completes, successfully or not.
func (h *CLIHooks) OnFetchEnd(ctx context.Context, info search.FetchInfo, result search.FetchResult) {
	level, collector, writer := h.snapshot()
	if collector != nil {
		collector.RecordFetchResult(info, result)
	}
	if level >= 1 && writer != nil {
		writer.WriteFetchEnd(info, result)
	}
}

// OnRequestStart is called before an HTTP request is sent.
func (h *CLIHooks) OnRequestStart(ctx context.Context, info remote.RequestInfo) context.Context {
	level, _, writer := h.snapshot()
	if level >= 2 && writer != nil {
		writer.WriteRequestStart(info)
	}
	return ctx
}

// OnRequestEnd is called after an HTTP request completes.
func (h *CLIHooks) OnRequestEnd(ctx context.Context, info remote.RequestInfo, result remote.RequestResult) {
	level, collector, writer := h.snapshot()
	if collector != nil {
		collector.RecordRequestResult(info, result)
	}
	if level >= 2 && writer != nil {
		writer.WriteRequestEnd(info, result)
	}
}
