package search

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLSyncToFromURL(t *testing.T) {
	u := NewURLSync(NewMemoryAddressBar(""), "/opportunities")
	f := FilterState{Category: "X", SearchText: "solar power", Page: 2}

	assert.Equal(t, "/opportunities?category=X&search=solar+power&page=2", u.ToURL(f))
	assert.Equal(t, f, u.FromURL(u.ToURL(f)))
	assert.Equal(t, f, u.FromURL("https://opps.example.com"+u.ToURL(f)))
	assert.Equal(t, DefaultFilter(), u.FromURL("/opportunities?search=%zz"))
	assert.Equal(t, FilterState{Category: "X", Page: 1}, u.FromURL("?category=+X+"))
}

func TestURLSyncReplacesOnlyOnChange(t *testing.T) {
	bar := NewMemoryAddressBar("/opportunities?page=1")
	u := NewURLSync(bar, "/opportunities")

	assert.False(t, u.Sync(DefaultFilter()))
	assert.True(t, u.Sync(DefaultFilter().WithCategory("X")))
	assert.False(t, u.Sync(DefaultFilter().WithCategory("X")))
	assert.True(t, u.Sync(DefaultFilter().WithCategory("X").WithPage(2)))

	assert.Equal(t, []string{
		"/opportunities?category=X&page=1",
		"/opportunities?category=X&page=2",
	}, bar.Replaces())
	assert.Equal(t, "/opportunities?category=X&page=2", bar.Current())
}

func TestURLSyncHydrate(t *testing.T) {
	u := NewURLSync(NewMemoryAddressBar("/opportunities?status=open&page=4"), "/opportunities")
	assert.Equal(t, FilterState{Status: "open", Page: 4}, u.Hydrate())
}

func TestFileAddressBar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "last_url")

	bar := NewFileAddressBar(path, "/opportunities?page=1")
	assert.Equal(t, "/opportunities?page=1", bar.Current())
	require.NoError(t, bar.Err())

	bar.Replace("/opportunities?category=X&page=1")
	require.NoError(t, bar.Err())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/opportunities?category=X&page=1\n", string(data))

	reopened := NewFileAddressBar(path, "/opportunities?page=1")
	assert.Equal(t, "/opportunities?category=X&page=1", reopened.Current())
}
