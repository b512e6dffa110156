package appctx

import (
	"context"

	"github.com/oppfinder/opps/internal/search"
)

// BrowsePath is the path part of every shareable list URL.
const BrowsePath = "/opportunities"

// Session is one list view: a cache, the fetch machinery around it, and
// the Controller that drives them.
type Session struct {
	Store        *search.CacheStore
	Orchestrator *search.Orchestrator
	Prefetcher   *search.Prefetcher
	URL          *search.URLSync
	Controller   *search.Controller
}

// NewSession wires a Controller to the search endpoint. bar may be nil,
// in which case Load starts from initial.
func (a *App) NewSession(ctx context.Context, bar search.AddressBar, initial search.FilterState) (*Session, error) {
	client, err := a.Remote()
	if err != nil {
		return nil, err
	}
	return a.newSession(ctx, client, bar, initial), nil
}

func (a *App) newSession(ctx context.Context, searcher search.Searcher, bar search.AddressBar, initial search.FilterState) *Session {
	store := search.NewCacheStore(a.Config.CacheMaxEntries)
	orch := search.NewOrchestrator(store, searcher, search.OrchestratorOptions{
		PageSize: a.Config.PageSize,
		Timeout:  a.Config.FetchTimeout,
		Hooks:    a.Hooks,
		Logger:   a.Logger,
	})
	prefetcher := search.NewPrefetcher(store, orch, a.Config.PrefetchDelay)
	if a.Gate != nil {
		prefetcher.SetGate(a.Gate.AllowBackground)
	}

	var urlSync *search.URLSync
	if bar != nil {
		urlSync = search.NewURLSync(bar, BrowsePath)
	}

	opts := search.ControllerOptions{
		Store:        store,
		Orchestrator: orch,
		Prefetcher:   prefetcher,
		URL:          urlSync,
		Initial:      initial,
		Context:      ctx,
		Logger:       a.Logger,
	}
	if a.Collector != nil {
		opts.Lookup = func(_ search.QueryKey, hit bool) { a.Collector.RecordLookup(hit) }
	}

	return &Session{
		Store:        store,
		Orchestrator: orch,
		Prefetcher:   prefetcher,
		URL:          urlSync,
		Controller:   search.NewController(opts),
	}
}
