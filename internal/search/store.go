package search

import (
	"sort"
	"sync"
	"time"
)

// Origin records where a cache entry came from.
type Origin int

const (
	OriginNetwork    Origin = iota // authoritative response from the endpoint
	OriginOptimistic               // local projection, pending confirmation
)

func (o Origin) String() string {
	switch o {
	case OriginNetwork:
		return "network"
	case OriginOptimistic:
		return "optimistic"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Origin) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// CacheEntry is an immutable snapshot of one cached page.
type CacheEntry struct {
	Key       QueryKey   `json:"key"`
	Page      ResultPage `json:"page"`
	FetchedAt time.Time  `json:"fetchedAt"`
	Origin    Origin     `json:"origin"`

	seq uint64 // insertion order, breaks FetchedAt ties on eviction
}

// Age returns how long ago the entry was written.
func (e CacheEntry) Age() time.Duration {
	return time.Since(e.FetchedAt)
}

// Optimistic reports whether the entry is a local projection.
func (e CacheEntry) Optimistic() bool {
	return e.Origin == OriginOptimistic
}

// CacheStore maps query keys to result pages.
//
// Entries are copy-on-write: Put stores a private copy and Get returns a
// value, so a page a renderer is holding never changes underneath it.
// An optimistic write never replaces a network entry.
type CacheStore struct {
	mu         sync.RWMutex
	entries    map[QueryKey]*CacheEntry
	maxEntries int
	seq        uint64
	version    uint64 // incremented on every write
	now        func() time.Time
}

// NewCacheStore creates a store holding at most maxEntries pages.
// maxEntries <= 0 means unbounded.
func NewCacheStore(maxEntries int) *CacheStore {
	return &CacheStore{
		entries:    make(map[QueryKey]*CacheEntry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the entry for key, if any.
func (s *CacheStore) Get(key QueryKey) (CacheEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return CacheEntry{}, false
	}
	out := *e
	out.Page = e.Page.clone()
	return out, true
}

// Has reports whether an entry exists for key.
func (s *CacheStore) Has(key QueryKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[key]
	return ok
}

// Put replaces the entry for key. It returns false when the write was
// refused because an optimistic page would have replaced a network one.
func (s *CacheStore) Put(key QueryKey, page ResultPage, origin Origin) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[key]; ok && origin == OriginOptimistic && existing.Origin == OriginNetwork {
		return false
	}

	s.seq++
	s.entries[key] = &CacheEntry{
		Key:       key,
		Page:      page.clone(),
		FetchedAt: s.now(),
		Origin:    origin,
		seq:       s.seq,
	}
	s.version++
	s.evictLocked(key)
	return true
}

// evictLocked drops the oldest entries until the store fits its bound.
// The key just written is never evicted.
func (s *CacheStore) evictLocked(keep QueryKey) {
	if s.maxEntries <= 0 {
		return
	}
	for len(s.entries) > s.maxEntries {
		var victim *CacheEntry
		for k, e := range s.entries {
			if k == keep {
				continue
			}
			if victim == nil || olderThan(e, victim) {
				victim = e
			}
		}
		if victim == nil {
			return
		}
		delete(s.entries, victim.Key)
	}
}

func olderThan(a, b *CacheEntry) bool {
	if !a.FetchedAt.Equal(b.FetchedAt) {
		return a.FetchedAt.Before(b.FetchedAt)
	}
	return a.seq < b.seq
}

// Len returns the number of cached pages.
func (s *CacheStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Keys returns the cached keys in sorted order.
func (s *CacheStore) Keys() []QueryKey {
	s.mu.RLock()
	keys := make([]QueryKey, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Version returns a counter that changes on every successful Put.
func (s *CacheStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Clear removes all entries.
func (s *CacheStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[QueryKey]*CacheEntry)
	s.version++
}
