package search

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// ControllerOptions wires a Controller to its collaborators.
type ControllerOptions struct {
	Store        *CacheStore
	Orchestrator *Orchestrator
	Prefetcher   *Prefetcher // optional
	URL          *URLSync    // optional
	Initial      FilterState // used by Load when there is no address bar
	Context      context.Context
	Logger       *slog.Logger

	// Lookup, when set, is told whether each navigation found an
	// authoritative cached page.
	Lookup func(key QueryKey, hit bool)
}

// ViewState is everything a renderer needs for one frame. Entry is shown
// whenever HasEntry is true, even while Pending or after a failure.
type ViewState struct {
	Filter   FilterState
	Key      QueryKey
	URL      string
	Entry    CacheEntry
	HasEntry bool
	Pending  bool
	Err      *FetchError // last failure for Key, if any
	Version  uint64      // cache version the state was read at

	// Skeleton is set when there is nothing to show yet.
	Skeleton bool
	// ShowError is set when the last fetch failed and there is no entry
	// to fall back to.
	ShowError bool
}

// Controller owns the current FilterState and turns user actions into
// address bar updates, optimistic projections, and fetches.
//
// Controller is driven from a Bubble Tea Update loop: setters return the
// Cmd to run, and Update consumes the resulting messages.
type Controller struct {
	mu        sync.Mutex
	store     *CacheStore
	orch      *Orchestrator
	prefetch  *Prefetcher
	url       *URLSync
	ctx       context.Context
	logger    *slog.Logger
	initial   FilterState
	filter    FilterState
	lookup    func(QueryKey, bool)
	observers []func(QueryKey, error)
}

// NewController creates a Controller. The current filter starts at
// opts.Initial; call Load to hydrate from the address bar and fetch.
func NewController(opts ControllerOptions) *Controller {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	initial := opts.Initial.Normalize()
	return &Controller{
		store:    opts.Store,
		orch:     opts.Orchestrator,
		prefetch: opts.Prefetcher,
		url:      opts.URL,
		ctx:      ctx,
		logger:   logger,
		initial:  initial,
		filter:   initial,
		lookup:   opts.Lookup,
	}
}

// Filter returns the current FilterState.
func (c *Controller) Filter() FilterState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// OnError registers fn to receive fetch failures for the current key and
// for user-priority fetches.
func (c *Controller) OnError(fn func(QueryKey, error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Load binds ctx to every later fetch, hydrates the filter from the
// address bar (falling back to the initial filter when the bar is empty),
// and requests it.
func (c *Controller) Load(ctx context.Context) tea.Cmd {
	if ctx != nil {
		c.mu.Lock()
		c.ctx = ctx
		c.mu.Unlock()
	}
	f := c.initial
	if c.url != nil && c.url.bar.Current() != "" {
		f = c.url.Hydrate()
	}
	return c.Navigate(f)
}

func (c *Controller) context() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

func (c *Controller) SetCategory(category string) tea.Cmd {
	return c.Navigate(c.Filter().WithCategory(category))
}

func (c *Controller) SetStatus(status string) tea.Cmd {
	return c.Navigate(c.Filter().WithStatus(status))
}

func (c *Controller) SetSearchText(text string) tea.Cmd {
	return c.Navigate(c.Filter().WithSearchText(text))
}

func (c *Controller) SetPage(n int) tea.Cmd {
	return c.Navigate(c.Filter().WithPage(n))
}

// NextPage moves forward one page when the cached page says there is one.
func (c *Controller) NextPage() tea.Cmd {
	v := c.View()
	// A projection's page count only covers the items already cached.
	if v.HasEntry && !v.Entry.Optimistic() && !v.Entry.Page.HasNext() {
		return nil
	}
	return c.SetPage(v.Filter.Page + 1)
}

// PrevPage moves back one page. No-op on the first page.
func (c *Controller) PrevPage() tea.Cmd {
	f := c.Filter()
	if f.Page <= 1 {
		return nil
	}
	return c.SetPage(f.Page - 1)
}

// Reset clears every filter and returns to the first page.
func (c *Controller) Reset() tea.Cmd {
	return c.Navigate(DefaultFilter())
}

// Retry re-requests the current key. The cached entry, if any, stays
// visible while the new fetch is in flight.
func (c *Controller) Retry() tea.Cmd {
	return c.orch.Request(c.context(), c.Filter(), PriorityUser)
}

// Refresh re-requests the current key even when it is cached.
func (c *Controller) Refresh() tea.Cmd {
	return c.Retry()
}

// Status returns the fetch registry record for key.
func (c *Controller) Status(key QueryKey) RequestStatus {
	return c.orch.Status(key)
}

// Navigate makes next the current filter. In order it syncs the address
// bar, projects a provisional page when the filter changed and nothing
// authoritative is cached for next, and requests next at user priority.
func (c *Controller) Navigate(next FilterState) tea.Cmd {
	next = next.Normalize()

	c.mu.Lock()
	prev := c.filter
	c.filter = next
	c.mu.Unlock()

	if c.prefetch != nil {
		c.prefetch.Cancel()
	}
	if c.url != nil {
		c.url.Sync(next)
	}
	if c.lookup != nil {
		entry, ok := c.store.Get(next.Key())
		c.lookup(next.Key(), ok && !entry.Optimistic())
	}
	c.project(prev, next)

	return c.orch.Request(c.context(), next, PriorityUser)
}

// project writes an optimistic entry for next derived from prev's page.
// Page-only moves are skipped: local items cannot stand in for another
// page of the same result set.
func (c *Controller) project(prev, next FilterState) {
	if prev.SameFilter(next) {
		return
	}
	src, ok := c.store.Get(prev.Key())
	if !ok {
		return
	}
	key := next.Key()
	if existing, ok := c.store.Get(key); ok && !existing.Optimistic() {
		return
	}
	if c.store.Put(key, Project(src.Page, next), OriginOptimistic) {
		c.logger.Debug("projected", "from", prev.Key(), "to", key)
	}
}

// Update consumes messages produced by the Cmds this package returns.
// Messages it does not recognize are ignored.
func (c *Controller) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case FetchedMsg:
		return c.handleFetched(msg)
	case prefetchTickMsg:
		if c.prefetch == nil {
			return nil
		}
		return c.prefetch.Handle(msg)
	}
	return nil
}

func (c *Controller) handleFetched(msg FetchedMsg) tea.Cmd {
	current := c.Filter()
	isCurrent := msg.Key == current.Key()

	if msg.Err != nil {
		if isCurrent || msg.Priority == PriorityUser {
			c.notify(msg.Key, msg.Err)
		}
		return nil
	}
	// Results for other keys are already in the cache; nothing to do.
	if !isCurrent || c.prefetch == nil {
		return nil
	}
	return c.prefetch.Schedule(c.context(), current, msg.Page.TotalPages)
}

func (c *Controller) notify(key QueryKey, err *FetchError) {
	c.mu.Lock()
	observers := slices.Clone(c.observers)
	c.mu.Unlock()

	c.logger.Debug("fetch error surfaced", "key", key, "error", err)
	for _, fn := range observers {
		fn(key, err)
	}
}

// View assembles the render state for the current filter.
func (c *Controller) View() ViewState {
	f := c.Filter()
	key := f.Key()
	st := c.orch.Status(key)
	version := c.store.Version()
	entry, ok := c.store.Get(key)

	v := ViewState{
		Version:  version,
		Filter:   f,
		Key:      key,
		Entry:    entry,
		HasEntry: ok,
		Pending:  st.State == StatePending,
		Err:      st.Err,
	}
	if c.url != nil {
		v.URL = c.url.ToURL(f)
	}
	if !ok {
		v.ShowError = st.State == StateFailed
		v.Skeleton = !v.ShowError
	}
	return v
}
