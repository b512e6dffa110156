// Package resilience guards the search endpoint with a circuit breaker
// and a token-bucket rate limiter. Their state lives in a small JSON file
// under the cache directory so concurrent opps processes share it.
package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/gofrs/flock"
)

const (
	// StateFileName is the state file inside the store directory.
	StateFileName = "state.json"

	// DefaultDirName is the store directory inside the cache dir.
	DefaultDirName = "resilience"
)

// LockTimeout bounds how long a store operation waits for the file lock.
// Past it the operation proceeds unlocked rather than stalling the UI.
const LockTimeout = 100 * time.Millisecond

// Store reads and writes State under an exclusive file lock.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. An empty dir uses
// <user cache dir>/opps/resilience.
func NewStore(dir string) *Store {
	if dir == "" {
		dir = DefaultDir()
	}
	return &Store{dir: dir}
}

// DefaultDir returns the platform cache location for resilience state.
func DefaultDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "opps", DefaultDirName)
	}
	if dir, err := os.UserCacheDir(); err == nil && dir != "" {
		return filepath.Join(dir, "opps", DefaultDirName)
	}
	return filepath.Join(os.TempDir(), "opps", DefaultDirName)
}

func (s *Store) Dir() string  { return s.dir }
func (s *Store) Path() string { return filepath.Join(s.dir, StateFileName) }

// withLock runs fn while holding the directory lock. When the lock is
// contended past LockTimeout fn still runs, unlocked.
func (s *Store) withLock(fn func() error) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}

	fl := flock.New(filepath.Join(s.dir, ".lock"))
	ctx, cancel := context.WithTimeout(context.Background(), LockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("locking %s: %w", s.dir, err)
	}
	if locked {
		defer func() { _ = fl.Unlock() }()
	}
	return fn()
}

// Load returns the persisted state, or a fresh one if the file is
// missing or unreadable JSON.
func (s *Store) Load() (*State, error) {
	var st *State
	err := s.withLock(func() error {
		var err error
		st, err = s.read()
		return err
	})
	return st, err
}

// Save writes state atomically.
func (s *Store) Save(state *State) error {
	return s.withLock(func() error { return s.write(state) })
}

// Update runs a read-modify-write cycle under one lock.
func (s *Store) Update(fn func(*State) error) error {
	return s.withLock(func() error {
		st, err := s.read()
		if err != nil {
			return err
		}
		if err := fn(st); err != nil {
			return err
		}
		return s.write(st)
	})
}

// Clear removes the state file.
func (s *Store) Clear() error {
	return s.withLock(func() error {
		if err := os.Remove(s.Path()); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	})
}

func (s *Store) read() (*State, error) {
	data, err := os.ReadFile(s.Path())
	if os.IsNotExist(err) {
		return NewState(), nil
	}
	if err != nil {
		return nil, err
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil || st.Version != StateVersion {
		// Corrupt or from an older schema: start over.
		return NewState(), nil //nolint:nilerr
	}
	return &st, nil
}

func (s *Store) write(state *State) error {
	state.Version = StateVersion
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	// Unique temp name: two unlocked writers must not share a temp file.
	tmp := fmt.Sprintf("%s.%d.%d.tmp", s.Path(), os.Getpid(), time.Now().UnixNano())
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if runtime.GOOS == "windows" {
		_ = os.Remove(s.Path())
	}
	if err := os.Rename(tmp, s.Path()); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
