package search

import (
	"context"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// drain runs cmd and every command nested in a BatchMsg, returning the
// leaf messages in order.
func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, drain(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

// fakeSearcher serves pages from a fixed item set and records calls.
// A key listed in block waits on its channel before answering.
type fakeSearcher struct {
	mu    sync.Mutex
	items []Item
	calls []QueryKey
	fail  map[QueryKey]error
	block map[QueryKey]chan struct{}
}

func newFakeSearcher(items ...Item) *fakeSearcher {
	return &fakeSearcher{
		items: items,
		fail:  make(map[QueryKey]error),
		block: make(map[QueryKey]chan struct{}),
	}
}

func (s *fakeSearcher) Search(ctx context.Context, f FilterState, pageSize int) (ResultPage, error) {
	key := f.Key()
	s.mu.Lock()
	s.calls = append(s.calls, key)
	gate := s.block[key]
	err := s.fail[key]
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ResultPage{}, ctx.Err()
		}
	}
	if err != nil {
		return ResultPage{}, err
	}

	var matched []Item
	for _, it := range s.items {
		if Matches(it, f) {
			matched = append(matched, it)
		}
	}
	start := min((f.Page-1)*pageSize, len(matched))
	end := min(start+pageSize, len(matched))
	return NewResultPage(matched[start:end], len(matched), pageSize, f.Page), nil
}

func (s *fakeSearcher) Calls() []QueryKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]QueryKey(nil), s.calls...)
}

func (s *fakeSearcher) Block(key QueryKey) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	s.block[key] = ch
	return ch
}

func (s *fakeSearcher) Fail(key QueryKey, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[key] = err
}

func (s *fakeSearcher) Heal(key QueryKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.fail, key)
}

func item(id, category, status, title string) Item {
	return Item{ID: id, Title: title, Category: category, Status: status}
}

func numberedItems(n int) []Item {
	items := make([]Item, n)
	for i := range items {
		items[i] = item(fmt.Sprintf("opp-%03d", i+1), "grant", "open", fmt.Sprintf("Opportunity %d", i+1))
	}
	return items
}

func fetchedMsgs(msgs []tea.Msg) []FetchedMsg {
	var out []FetchedMsg
	for _, m := range msgs {
		if fm, ok := m.(FetchedMsg); ok {
			out = append(out, fm)
		}
	}
	return out
}
