package search

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// AddressBar is the externally visible location that mirrors the current
// filter. Replace must overwrite the current location without adding a
// history entry.
type AddressBar interface {
	Current() string
	Replace(url string)
}

// URLSync keeps an AddressBar in step with the current FilterState.
type URLSync struct {
	bar      AddressBar
	basePath string
}

// NewURLSync binds bar to the listing at basePath (e.g. "/opportunities").
func NewURLSync(bar AddressBar, basePath string) *URLSync {
	return &URLSync{bar: bar, basePath: basePath}
}

// ToURL renders the location for f.
func (u *URLSync) ToURL(f FilterState) string {
	return u.basePath + "?" + string(Encode(f))
}

// FromURL hydrates a FilterState from a location. Anything that does not
// decode yields the default filter.
func (u *URLSync) FromURL(raw string) FilterState {
	f, err := Decode(raw)
	if err != nil {
		return DefaultFilter()
	}
	return f.Normalize()
}

// Sync replaces the address bar location with the one for f. It reports
// whether the location changed; an identical location is left alone.
func (u *URLSync) Sync(f FilterState) bool {
	next := u.ToURL(f)
	if u.bar.Current() == next {
		return false
	}
	u.bar.Replace(next)
	return true
}

// Hydrate reads the filter from the current location.
func (u *URLSync) Hydrate() FilterState {
	return u.FromURL(u.bar.Current())
}

// MemoryAddressBar is an in-process AddressBar. It records every Replace
// so callers can assert that no history was pushed.
type MemoryAddressBar struct {
	mu       sync.Mutex
	current  string
	replaces []string
}

// NewMemoryAddressBar creates a MemoryAddressBar positioned at initial.
func NewMemoryAddressBar(initial string) *MemoryAddressBar {
	return &MemoryAddressBar{current: initial}
}

func (b *MemoryAddressBar) Current() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

func (b *MemoryAddressBar) Replace(url string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = url
	b.replaces = append(b.replaces, url)
}

// Replaces returns every location passed to Replace, oldest first.
func (b *MemoryAddressBar) Replaces() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.replaces...)
}

// FileAddressBar persists the location in a single file so a later
// session can resume where the last one left off.
type FileAddressBar struct {
	mu      sync.Mutex
	path    string
	current string
	err     error
}

// NewFileAddressBar opens the location stored at path. A missing file
// starts at fallback.
func NewFileAddressBar(path, fallback string) *FileAddressBar {
	b := &FileAddressBar{path: path, current: fallback}
	data, err := os.ReadFile(path)
	if err == nil {
		if s := strings.TrimSpace(string(data)); s != "" {
			b.current = s
		}
	} else if !os.IsNotExist(err) {
		b.err = err
	}
	return b
}

func (b *FileAddressBar) Current() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Replace updates the location and writes it through to disk. Write
// failures are kept for Err; the in-memory location still changes.
func (b *FileAddressBar) Replace(url string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = url
	b.err = writeFileAtomic(b.path, []byte(url+"\n"))
}

// Err returns the last read or write failure.
func (b *FileAddressBar) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".last_url-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
