package file

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/yol/pkg/domain"
	"github.com/aretw0/yol/pkg/ports"
	"github.com/google/uuid"
)

var _ ports.StateStore = (*Store)(nil)

const (
	stateExt = ".state"
	lockExt  = ".lock"
)

// Store implements ports.StateStore using the local filesystem.
// Each key is a file holding the raw state string.
// CompareAndSet holds an exclusive lock file next to the state file, so
// processes sharing the directory are serialized too.
type Store struct {
	BasePath string

	pollInterval time.Duration
	staleAfter   time.Duration
	mu           sync.Mutex
}

// Option configures the Store.
type Option func(*Store)

// WithStaleLockAge sets the age after which a lock file left behind by a
// crashed process is broken. Default: one minute.
func WithStaleLockAge(d time.Duration) Option {
	return func(s *Store) {
		s.staleAfter = d
	}
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".yol/state".
func New(basePath string, opts ...Option) *Store {
	if basePath == "" {
		basePath = filepath.Join(".yol", "state")
	}
	s := &Store{
		BasePath:     basePath,
		pollInterval: 20 * time.Millisecond,
		staleAfter:   time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) path(key string) string {
	return filepath.Join(s.BasePath, url.PathEscape(key)+stateExt)
}

// Get reads the state file of key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, domain.NewStoreError("get", key, errors.New("key cannot be empty"))
	}
	value, found, err := read(s.path(key))
	if err != nil {
		return "", false, domain.NewStoreError("get", key, err)
	}
	return value, found, nil
}

func read(path string) (string, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read state file: %w", err)
	}
	return string(data), true, nil
}

// CompareAndSet writes value if the file still holds expected.
func (s *Store) CompareAndSet(ctx context.Context, key, expected, value string) error {
	if key == "" {
		return domain.NewStoreError("set", key, errors.New("key cannot be empty"))
	}

	// Serialize goroutines of this process before competing for the lock file.
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.BasePath, 0o755); err != nil {
		return domain.NewStoreError("set", key, fmt.Errorf("failed to ensure state directory: %w", err))
	}

	destPath := s.path(key)
	unlock, err := s.lock(ctx, destPath+lockExt)
	if err != nil {
		return domain.NewStoreError("lock", key, err)
	}
	defer unlock()

	current, found, err := read(destPath)
	if err != nil {
		return domain.NewStoreError("set", key, err)
	}
	if !ports.Matches(current, found, expected) {
		return &domain.ConcurrencyError{Key: key, Expected: expected, Actual: current}
	}

	if err := writeAtomic(destPath, value); err != nil {
		return domain.NewStoreError("set", key, err)
	}
	return nil
}

// lock creates the lock file exclusively, polling until it is free or ctx is done.
func (s *Store) lock(ctx context.Context, lockPath string) (func(), error) {
	owner := uuid.NewString()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, werr := f.WriteString(owner)
			cerr := f.Close()
			if err := errors.Join(werr, cerr); err != nil {
				_ = os.Remove(lockPath)
				return nil, fmt.Errorf("failed to write lock file: %w", err)
			}
			return func() { s.release(lockPath, owner) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to create lock file: %w", err)
		}

		s.breakStale(lockPath)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Store) release(lockPath, owner string) {
	data, err := os.ReadFile(lockPath)
	if err != nil || strings.TrimSpace(string(data)) != owner {
		return
	}
	_ = os.Remove(lockPath)
}

// breakStale removes a lock file older than staleAfter. Breakers take turns
// through a second lock file and re-check the lock once they hold it, so a
// lock created after another breaker freed the stale one is never removed.
func (s *Store) breakStale(lockPath string) {
	if s.staleAfter <= 0 || !s.isStale(lockPath) {
		return
	}

	breakPath := lockPath + ".break"
	f, err := os.OpenFile(breakPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		// A breaker that crashed mid-way leaves its own lock behind.
		if os.IsExist(err) && s.isStale(breakPath) {
			_ = os.Remove(breakPath)
		}
		return
	}
	_ = f.Close()
	defer func() { _ = os.Remove(breakPath) }()

	info, err := os.Stat(lockPath)
	if err != nil || time.Since(info.ModTime()) <= s.staleAfter {
		return
	}

	// Move the lock aside and check it is still the file that was judged stale.
	aside := lockPath + "." + uuid.NewString()
	if err := os.Rename(lockPath, aside); err != nil {
		return
	}
	moved, err := os.Stat(aside)
	if err == nil && !os.SameFile(info, moved) {
		_ = os.Link(aside, lockPath)
	}
	_ = os.Remove(aside)
}

func (s *Store) isStale(path string) bool {
	info, err := os.Stat(path)
	return err == nil && time.Since(info.ModTime()) > s.staleAfter
}

// writeAtomic writes to a temporary file, syncs it, then renames it over path.
// Readers see either the old or the new content, never a partial write.
func writeAtomic(path, value string) error {
	dir := filepath.Dir(path)

	// Same directory as the destination: rename is only atomic within a filesystem.
	tmpFile, err := os.CreateTemp(dir, "tmp-*"+stateExt)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	if _, err := tmpFile.WriteString(value); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// ReadStateFile reads a raw state file such as the ones written by earlier
// deployments that kept their state outside the store.
// A missing file reads as the initial state.
func ReadStateFile(path string) (string, error) {
	value, _, err := read(path)
	if err != nil {
		return "", err
	}
	return domain.Normalize(value), nil
}
