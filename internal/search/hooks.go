package search

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Priority distinguishes user-driven fetches from speculative ones.
type Priority int

const (
	PriorityUser       Priority = iota // the user is waiting on this key
	PriorityBackground                 // prefetch; only warms the cache
)

func (p Priority) String() string {
	if p == PriorityBackground {
		return "background"
	}
	return "user"
}

// FetchInfo describes a fetch as it starts.
type FetchInfo struct {
	Key      QueryKey
	Filter   FilterState
	Priority Priority
	Handle   uuid.UUID
}

// FetchResult describes how a fetch ended.
type FetchResult struct {
	Duration   time.Duration
	Items      int
	TotalCount int
	Err        *FetchError
}

// Hooks observes the fetch lifecycle. Implementations must be safe for
// concurrent use; fetches run on their own goroutines.
type Hooks interface {
	OnFetchStart(ctx context.Context, info FetchInfo) context.Context
	OnFetchEnd(ctx context.Context, info FetchInfo, result FetchResult)
}

// NoopHooks ignores every event.
type NoopHooks struct{}

func (NoopHooks) OnFetchStart(ctx context.Context, _ FetchInfo) context.Context { return ctx }
func (NoopHooks) OnFetchEnd(context.Context, FetchInfo, FetchResult)            {}
