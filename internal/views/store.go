// Package views stores named filter combinations ("saved views") so a
// search can be reopened by name.
package views

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/sahilm/fuzzy"
	"gopkg.in/yaml.v3"

	"github.com/oppfinder/opps/internal/search"
)

// FileName is the views file inside the cache directory.
const FileName = "views.yaml"

// LockTimeout bounds how long a write waits for another process.
const LockTimeout = 2 * time.Second

var (
	// ErrNotFound is returned when no view matches a name.
	ErrNotFound = errors.New("view not found")
	// ErrInvalidName is returned by Save for blank or multi-line names.
	ErrInvalidName = errors.New("view name must be a single non-empty line")
)

// View is one saved filter combination.
type View struct {
	Name    string    `yaml:"name" json:"name"`
	Query   string    `yaml:"query" json:"query"`
	SavedAt time.Time `yaml:"saved_at" json:"saved_at"`
}

// Filter decodes the stored query.
func (v View) Filter() (search.FilterState, error) {
	return search.Decode(v.Query)
}

// AmbiguousError lists the candidates when a name fuzzily matches more
// than one view.
type AmbiguousError struct {
	Name    string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("%q matches %d views: %s", e.Name, len(e.Matches), strings.Join(e.Matches, ", "))
}

type file struct {
	Views []View `yaml:"views"`
}

// Store reads and writes the views file. Every call goes to disk, so two
// processes sharing a cache directory see each other's changes.
type Store struct {
	mu   sync.Mutex
	dir  string
	path string
	now  func() time.Time
}

// NewStore returns a store for <dir>/views.yaml. The directory is created
// on first write.
func NewStore(dir string) *Store {
	return &Store{
		dir:  dir,
		path: filepath.Join(dir, FileName),
		now:  time.Now,
	}
}

// Path returns the views file location.
func (s *Store) Path() string { return s.path }

// List returns all views sorted by name.
func (s *Store) List() ([]View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.read()
	if err != nil {
		return nil, err
	}
	sortViews(f.Views)
	return f.Views, nil
}

// Save stores fs under name, replacing a view with the same name.
func (s *Store) Save(name string, fs search.FilterState) (View, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, "\r\n") {
		return View{}, ErrInvalidName
	}

	v := View{
		Name:    name,
		Query:   fs.Key().String(),
		SavedAt: s.now().UTC().Truncate(time.Second),
	}
	err := s.update(func(f *file) error {
		f.Views = slices.DeleteFunc(f.Views, func(existing View) bool {
			return existing.Name == name
		})
		f.Views = append(f.Views, v)
		sortViews(f.Views)
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return v, nil
}

// Remove deletes the view with exactly this name.
func (s *Store) Remove(name string) error {
	return s.update(func(f *file) error {
		before := len(f.Views)
		f.Views = slices.DeleteFunc(f.Views, func(v View) bool {
			return v.Name == name
		})
		if len(f.Views) == before {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil
	})
}

// Lookup finds a view by exact name, then by case-insensitive name, then
// by a fuzzy match that must be unique.
func (s *Store) Lookup(name string) (View, error) {
	all, err := s.List()
	if err != nil {
		return View{}, err
	}
	return find(all, name)
}

func find(all []View, name string) (View, error) {
	for _, v := range all {
		if v.Name == name {
			return v, nil
		}
	}

	var folded []View
	for _, v := range all {
		if strings.EqualFold(v.Name, name) {
			folded = append(folded, v)
		}
	}
	if len(folded) == 1 {
		return folded[0], nil
	}

	names := make([]string, len(all))
	for i, v := range all {
		names[i] = v.Name
	}
	matches := fuzzy.Find(name, names)
	switch len(matches) {
	case 0:
		return View{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	case 1:
		return all[matches[0].Index], nil
	}

	candidates := make([]string, len(matches))
	for i, m := range matches {
		candidates[i] = m.Str
	}
	return View{}, &AmbiguousError{Name: name, Matches: candidates}
}

func sortViews(vs []View) {
	slices.SortFunc(vs, func(a, b View) int { return strings.Compare(a.Name, b.Name) })
}

// update runs a read-modify-write cycle under the process and file locks.
func (s *Store) update(fn func(*file) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return err
	}

	fl := flock.New(s.path + ".lock")
	ctx, cancel := context.WithTimeout(context.Background(), LockTimeout)
	defer cancel()
	locked, err := fl.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		return fmt.Errorf("locking %s: %w", s.path, err)
	}
	if !locked {
		return fmt.Errorf("locking %s: timed out", s.path)
	}
	defer func() { _ = fl.Unlock() }()

	f, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		return err
	}
	return s.write(f)
}

func (s *Store) read() (*file, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &file{}, nil
	}
	if err != nil {
		return nil, err
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.path, err)
	}
	return &f, nil
}

func (s *Store) write(f *file) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	tmp := fmt.Sprintf("%s.%d.tmp", s.path, os.Getpid())
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
