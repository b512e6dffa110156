package search

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// DefaultPrefetchDelay is how long the Prefetcher waits after a
// successful user-priority fetch before warming the neighbors.
const DefaultPrefetchDelay = 250 * time.Millisecond

// prefetchTickMsg fires when a scheduled prefetch is due. Ticks whose seq
// no longer matches the Prefetcher's are stale and ignored.
type prefetchTickMsg struct {
	seq uint64
}

type prefetchRequest struct {
	ctx        context.Context
	filter     FilterState
	totalPages int
}

// Prefetcher warms the cache with the pages adjacent to the one the user
// is looking at. Scheduling is debounced: only the most recent Schedule
// call fires, and any user navigation cancels a pending one.
type Prefetcher struct {
	mu      sync.Mutex
	store   *CacheStore
	orch    *Orchestrator
	delay   time.Duration
	seq     uint64
	pending *prefetchRequest
	allow   func() bool
}

// NewPrefetcher creates a Prefetcher. A negative delay uses DefaultPrefetchDelay.
func NewPrefetcher(store *CacheStore, orch *Orchestrator, delay time.Duration) *Prefetcher {
	if delay < 0 {
		delay = DefaultPrefetchDelay
	}
	return &Prefetcher{store: store, orch: orch, delay: delay}
}

// SetGate installs a predicate consulted before each background fetch.
// Returning false skips that neighbor.
func (p *Prefetcher) SetGate(allow func() bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allow = allow
}

// Schedule arms a prefetch of the neighbors of f. It supersedes any
// earlier schedule that has not fired yet.
func (p *Prefetcher) Schedule(ctx context.Context, f FilterState, totalPages int) tea.Cmd {
	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.pending = &prefetchRequest{ctx: ctx, filter: f, totalPages: totalPages}
	p.mu.Unlock()

	if p.delay == 0 {
		return func() tea.Msg { return prefetchTickMsg{seq: seq} }
	}
	return tea.Tick(p.delay, func(time.Time) tea.Msg {
		return prefetchTickMsg{seq: seq}
	})
}

// Cancel drops a pending schedule. Its tick is ignored when it fires.
func (p *Prefetcher) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	p.pending = nil
}

// Handle fires the prefetch armed by the matching Schedule call and
// returns the batched background fetches. Stale ticks return nil.
func (p *Prefetcher) Handle(msg prefetchTickMsg) tea.Cmd {
	p.mu.Lock()
	if msg.seq != p.seq || p.pending == nil {
		p.mu.Unlock()
		return nil
	}
	req := p.pending
	p.pending = nil
	allow := p.allow
	p.mu.Unlock()

	var cmds []tea.Cmd
	for _, nf := range Neighbors(req.filter, req.totalPages) {
		if p.store.Has(nf.Key()) {
			continue
		}
		if allow != nil && !allow() {
			continue
		}
		if cmd := p.orch.Request(req.ctx, nf, PriorityBackground); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return tea.Batch(cmds...)
}

// Neighbors returns the filters for the pages immediately before and
// after f that lie within [1, totalPages].
func Neighbors(f FilterState, totalPages int) []FilterState {
	var out []FilterState
	if f.Page > 1 && f.Page-1 <= totalPages {
		out = append(out, f.WithPage(f.Page-1))
	}
	if f.Page+1 <= totalPages {
		out = append(out, f.WithPage(f.Page+1))
	}
	return out
}
