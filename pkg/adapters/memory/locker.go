package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/yol/pkg/ports"
)

var _ ports.DistributedLocker = (*Locker)(nil)

// lockEntry holds the lock of one key and the number of holders and waiters.
type lockEntry struct {
	ch   chan struct{}
	refs int
}

// Locker implements ports.DistributedLocker inside one process.
// Locks are released by their UnlockFunc only; the ttl is ignored.
// Entries are reference counted and dropped once nobody holds or waits on them.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

// NewLocker creates an in-process locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*lockEntry)}
}

// Lock blocks until key is free or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string, _ time.Duration) (ports.UnlockFunc, error) {
	entry := l.acquire(key)

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			<-entry.ch
			l.release(key)
		})
		return nil
	}, nil
}

func (l *Locker) acquire(key string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.locks[key]
	if !ok {
		entry = &lockEntry{ch: make(chan struct{}, 1)}
		l.locks[key] = entry
	}
	entry.refs++
	return entry
}

func (l *Locker) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.locks[key]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(l.locks, key)
	}
}

// Held returns the number of keys currently locked or waited on.
func (l *Locker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
