package tui

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oppfinder/opps/internal/search"
)

// stubSearcher filters a fixed item set and can fail chosen keys.
type stubSearcher struct {
	mu    sync.Mutex
	items []search.Item
	fail  map[search.QueryKey]error
}

func (s *stubSearcher) Search(ctx context.Context, f search.FilterState, pageSize int) (search.ResultPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[f.Key()]; err != nil {
		return search.ResultPage{}, err
	}
	var matched []search.Item
	for _, it := range s.items {
		if search.Matches(it, f) {
			matched = append(matched, it)
		}
	}
	start := min((f.Page-1)*pageSize, len(matched))
	end := min(start+pageSize, len(matched))
	return search.NewResultPage(matched[start:end], len(matched), pageSize, f.Page), nil
}

func (s *stubSearcher) setFail(key search.QueryKey, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, key)
		return
	}
	s.fail[key] = err
}

func newTestBrowse(t *testing.T) (*Browse, *stubSearcher, *search.MemoryAddressBar) {
	t.Helper()
	stub := &stubSearcher{
		items: []search.Item{
			{ID: "opp-1", Title: "River cleanup", Category: "environment", Status: "open"},
			{ID: "opp-2", Title: "Food bank shift", Category: "community", Status: "open"},
			{ID: "opp-3", Title: "Tree planting", Category: "environment", Status: "closed"},
		},
		fail: make(map[search.QueryKey]error),
	}
	store := search.NewCacheStore(0)
	orch := search.NewOrchestrator(store, stub, search.OrchestratorOptions{PageSize: 2})
	bar := search.NewMemoryAddressBar("")
	ctrl := search.NewController(search.ControllerOptions{
		Store:        store,
		Orchestrator: orch,
		URL:          search.NewURLSync(bar, "/opportunities"),
	})
	return NewBrowse(context.Background(), ctrl, NewStylesWithTheme(NoColorTheme())), stub, bar
}

// settle runs cmd and feeds resulting messages back into b until idle.
// Spinner ticks are dropped so the animation never schedules timers.
func settle(b *Browse, cmd tea.Cmd) {
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		switch msg := next().(type) {
		case nil, spinner.TickMsg:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			_, c := b.Update(msg)
			queue = append(queue, c)
		}
	}
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// typeText sends each rune as a key press, discarding the returned
// commands (cursor blink and debounce timers).
func typeText(b *Browse, s string) {
	for _, r := range s {
		b.Update(keyRunes(string(r)))
	}
}

func press(b *Browse, msg tea.KeyMsg) tea.Cmd {
	_, cmd := b.Update(msg)
	return cmd
}

func TestBrowseInitialLoad(t *testing.T) {
	b, _, bar := newTestBrowse(t)

	// Nothing cached yet: skeleton
	assert.NotContains(t, b.View(), "River cleanup")

	settle(b, b.Init())

	view := b.View()
	assert.Contains(t, view, "River cleanup")
	assert.Contains(t, view, "Food bank shift")
	assert.Contains(t, view, "Page 1 of 2")
	assert.Contains(t, view, "3 results")
	assert.Contains(t, view, "search: any")
	assert.Equal(t, "/opportunities?page=1", bar.Current())
}

func TestBrowseCategoryEdit(t *testing.T) {
	b, _, bar := newTestBrowse(t)
	settle(b, b.Init())

	press(b, keyRunes("c"))
	assert.Contains(t, b.View(), "Category: ")
	typeText(b, "environment")

	cmd := press(b, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, "environment", b.ctrl.Filter().Category)
	assert.Equal(t, "/opportunities?category=environment&page=1", bar.Current())

	// Projected from the cached first page before the fetch lands
	view := b.View()
	assert.Contains(t, view, "Showing matches from the previous page")
	assert.Contains(t, view, "River cleanup")
	assert.NotContains(t, view, "Food bank shift")

	settle(b, cmd)
	view = b.View()
	assert.NotContains(t, view, "Showing matches from the previous page")
	assert.Contains(t, view, "Tree planting")
	assert.Contains(t, view, "category: environment")
}

func TestBrowseEditCancel(t *testing.T) {
	b, _, _ := newTestBrowse(t)
	settle(b, b.Init())

	press(b, keyRunes("s"))
	typeText(b, "closed")
	assert.Nil(t, press(b, tea.KeyMsg{Type: tea.KeyEsc}))
	assert.Equal(t, "", b.ctrl.Filter().Status)
	assert.Equal(t, editNone, b.editing)
}

func TestBrowseSearchDebounce(t *testing.T) {
	b, _, _ := newTestBrowse(t)
	settle(b, b.Init())

	press(b, keyRunes("/"))
	typeText(b, "tree")
	seq := b.debounceSeq

	// A superseded timer does nothing
	_, cmd := b.Update(searchDebounceMsg{text: "tre", seq: seq - 1})
	assert.Nil(t, cmd)
	assert.Equal(t, "", b.ctrl.Filter().SearchText)

	_, cmd = b.Update(searchDebounceMsg{text: "tree", seq: seq})
	require.NotNil(t, cmd)
	assert.Equal(t, "tree", b.ctrl.Filter().SearchText)
	assert.Equal(t, editSearch, b.editing, "still typing")

	settle(b, cmd)
	assert.Contains(t, b.View(), "Tree planting")
}

func TestBrowsePaging(t *testing.T) {
	b, _, bar := newTestBrowse(t)
	settle(b, b.Init())

	settle(b, press(b, keyRunes("n")))
	assert.Equal(t, 2, b.ctrl.Filter().Page)
	assert.Contains(t, b.View(), "Page 2 of 2")
	assert.Contains(t, b.View(), "Tree planting")

	assert.Nil(t, press(b, keyRunes("n")), "no page past the last")

	settle(b, press(b, keyRunes("p")))
	assert.Equal(t, 1, b.ctrl.Filter().Page)
	assert.Equal(t, "/opportunities?page=1", bar.Current())
}

func TestBrowseErrorAndRetry(t *testing.T) {
	b, stub, _ := newTestBrowse(t)
	stub.setFail("page=1", errors.New("connection refused"))

	settle(b, b.Init())
	view := b.View()
	assert.Contains(t, view, "Could not load results")
	assert.Contains(t, view, "Press r to retry")

	stub.setFail("page=1", nil)
	settle(b, press(b, keyRunes("r")))
	view = b.View()
	assert.NotContains(t, view, "Could not load results")
	assert.Contains(t, view, "River cleanup")
}

func TestBrowseFailureKeepsCachedPage(t *testing.T) {
	b, stub, _ := newTestBrowse(t)
	settle(b, b.Init())

	stub.setFail("page=1", errors.New("gateway error (502)"))
	settle(b, press(b, keyRunes("r")))

	view := b.View()
	assert.Contains(t, view, "River cleanup", "cached data stays visible")
	assert.Contains(t, view, "gateway error (502)")
	assert.NotContains(t, view, "Could not load results")
}

func TestBrowseResetAndQuit(t *testing.T) {
	b, _, _ := newTestBrowse(t)
	settle(b, b.Init())
	settle(b, press(b, keyRunes("n")))

	settle(b, press(b, keyRunes("x")))
	assert.Equal(t, search.DefaultFilter(), b.ctrl.Filter())

	cmd := press(b, keyRunes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, b.Quitting())
	assert.Empty(t, b.View())
}

func TestBrowseBodyFollowsCacheVersion(t *testing.T) {
	b, _, _ := newTestBrowse(t)
	settle(b, b.Init())
	b.View()
	first := b.bodyFrom

	b.View()
	assert.Equal(t, first, b.bodyFrom, "unchanged cache keeps the rendered body")

	settle(b, b.ctrl.Refresh())
	assert.Contains(t, b.View(), "River cleanup")
	assert.Greater(t, b.bodyFrom.version, first.version)
}

func TestBrowseWindowSize(t *testing.T) {
	b, _, _ := newTestBrowse(t)
	b.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, 120, b.width)
	assert.Equal(t, 104, b.input.Width)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}

func TestBrowseNoMatches(t *testing.T) {
	b, _, _ := newTestBrowse(t)
	settle(b, b.Init())

	press(b, keyRunes("/"))
	typeText(b, "volcano")
	settle(b, press(b, tea.KeyMsg{Type: tea.KeyEnter}))

	view := b.View()
	assert.Contains(t, view, "No opportunities match these filters.")
	assert.Contains(t, view, "Try a shorter search")
}
