package search

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/oppfinder/opps/internal/search"

// Searcher is the remote search endpoint.
type Searcher interface {
	Search(ctx context.Context, f FilterState, pageSize int) (ResultPage, error)
}

// SearcherFunc adapts a function to Searcher.
type SearcherFunc func(ctx context.Context, f FilterState, pageSize int) (ResultPage, error)

// Search implements Searcher.
func (fn SearcherFunc) Search(ctx context.Context, f FilterState, pageSize int) (ResultPage, error) {
	return fn(ctx, f, pageSize)
}

// RequestState is the per-key fetch lifecycle.
type RequestState int

const (
	StateUnrequested RequestState = iota // never requested
	StatePending                         // a fetch is in flight
	StateFulfilled                       // last fetch succeeded
	StateFailed                          // last fetch failed
)

func (s RequestState) String() string {
	switch s {
	case StateUnrequested:
		return "unrequested"
	case StatePending:
		return "pending"
	case StateFulfilled:
		return "fulfilled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RequestStatus is the registry record for one key. Err is the most
// recent failure and survives a retry until a fetch succeeds.
type RequestStatus struct {
	State     RequestState
	Handle    uuid.UUID // identifies the in-flight or last fetch
	Err       *FetchError
	UpdatedAt time.Time
}

// FetchedMsg is emitted when a fetch completes, successfully or not.
type FetchedMsg struct {
	Key      QueryKey
	Filter   FilterState
	Priority Priority
	Handle   uuid.UUID
	Page     ResultPage
	Err      *FetchError
}

// OrchestratorOptions configures an Orchestrator.
type OrchestratorOptions struct {
	PageSize int           // page size sent to the endpoint
	Timeout  time.Duration // per-fetch deadline (0 = none)
	Hooks    Hooks
	Logger   *slog.Logger
}

// Orchestrator issues fetches, deduplicates in-flight requests per key,
// and writes successful results into the CacheStore.
//
// Results are always written under their own key. A slow response for a
// key the user has left lands in the cache for that key and is never
// visible through the current one, so no cancellation is needed.
type Orchestrator struct {
	mu       sync.Mutex
	store    *CacheStore
	searcher Searcher
	opts     OrchestratorOptions
	status   map[QueryKey]*RequestStatus
	tracer   trace.Tracer
}

// NewOrchestrator creates an Orchestrator writing into store.
func NewOrchestrator(store *CacheStore, searcher Searcher, opts OrchestratorOptions) *Orchestrator {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Hooks == nil {
		opts.Hooks = NoopHooks{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Orchestrator{
		store:    store,
		searcher: searcher,
		opts:     opts,
		status:   make(map[QueryKey]*RequestStatus),
		tracer:   otel.Tracer(tracerName),
	}
}

// PageSize returns the page size sent with every request.
func (o *Orchestrator) PageSize() int { return o.opts.PageSize }

// Request returns a Cmd that fetches f and emits a FetchedMsg.
// Returns nil if a fetch for the same key is already in flight; that
// fetch's completion will update the cache instead.
func (o *Orchestrator) Request(ctx context.Context, f FilterState, prio Priority) tea.Cmd {
	key := Encode(f)

	o.mu.Lock()
	st, ok := o.status[key]
	if ok && st.State == StatePending {
		o.mu.Unlock()
		o.opts.Logger.Debug("fetch deduplicated", "key", key, "priority", prio)
		return nil
	}
	if !ok {
		st = &RequestStatus{}
		o.status[key] = st
	}
	handle := uuid.New()
	st.State = StatePending
	st.Handle = handle
	st.UpdatedAt = time.Now()
	o.mu.Unlock()

	info := FetchInfo{Key: key, Filter: f, Priority: prio, Handle: handle}
	return func() tea.Msg {
		return o.fetch(ctx, info)
	}
}

func (o *Orchestrator) fetch(ctx context.Context, info FetchInfo) FetchedMsg {
	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}

	ctx, span := o.tracer.Start(ctx, "search.fetch", trace.WithAttributes(
		attribute.String("search.key", string(info.Key)),
		attribute.String("search.priority", info.Priority.String()),
		attribute.Int("search.page", info.Filter.Page),
	))
	defer span.End()

	ctx = o.opts.Hooks.OnFetchStart(ctx, info)
	start := time.Now()

	page, err := o.searcher.Search(ctx, info.Filter, o.opts.PageSize)
	var fetchErr *FetchError
	if err != nil {
		fetchErr = normalizeFetchError(err)
	} else {
		page = page.Normalized()
	}

	result := FetchResult{Duration: time.Since(start), Err: fetchErr}
	if fetchErr == nil {
		result.Items = len(page.Items)
		result.TotalCount = page.TotalCount
	}

	o.complete(info, page, fetchErr)
	o.opts.Hooks.OnFetchEnd(ctx, info, result)

	if fetchErr != nil {
		span.RecordError(fetchErr)
		span.SetStatus(codes.Error, fetchErr.Kind.String())
		o.opts.Logger.Debug("fetch failed", "key", info.Key, "kind", fetchErr.Kind, "error", fetchErr.Message)
	} else {
		span.SetAttributes(attribute.Int("search.total_count", page.TotalCount))
		o.opts.Logger.Debug("fetch complete", "key", info.Key, "items", len(page.Items), "duration", result.Duration)
	}

	return FetchedMsg{
		Key:      info.Key,
		Filter:   info.Filter,
		Priority: info.Priority,
		Handle:   info.Handle,
		Page:     page,
		Err:      fetchErr,
	}
}

// complete records the outcome. A failure leaves the cache untouched.
func (o *Orchestrator) complete(info FetchInfo, page ResultPage, fetchErr *FetchError) {
	if fetchErr == nil {
		o.store.Put(info.Key, page, OriginNetwork)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.status[info.Key]
	if st == nil || st.Handle != info.Handle {
		// Registry was reset while this fetch was in flight.
		return
	}
	st.UpdatedAt = time.Now()
	if fetchErr != nil {
		st.State = StateFailed
		st.Err = fetchErr
		return
	}
	st.State = StateFulfilled
	st.Err = nil
}

// Status returns the registry record for key. Unknown keys report
// StateUnrequested.
func (o *Orchestrator) Status(key QueryKey) RequestStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	if st, ok := o.status[key]; ok {
		return *st
	}
	return RequestStatus{}
}

// Pending reports whether a fetch for key is in flight.
func (o *Orchestrator) Pending(key QueryKey) bool {
	return o.Status(key).State == StatePending
}

// InFlight returns the keys with a fetch in flight, sorted.
func (o *Orchestrator) InFlight() []QueryKey {
	o.mu.Lock()
	keys := make([]QueryKey, 0)
	for k, st := range o.status {
		if st.State == StatePending {
			keys = append(keys, k)
		}
	}
	o.mu.Unlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Reset forgets every registry record. Fetches still in flight keep
// writing their results to the cache but no longer update the registry.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status = make(map[QueryKey]*RequestStatus)
}
