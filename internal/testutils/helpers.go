package testutils

import (
	"context"
	"sync"
	"testing"

	"github.com/aretw0/yol/pkg/domain"
	"github.com/aretw0/yol/pkg/graph"
	"github.com/aretw0/yol/pkg/ports"
	"github.com/stretchr/testify/require"
)

// Recorder records which actions ran, in order. It is safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	calls []string
}

// Action returns an action that records name and succeeds.
func (r *Recorder) Action(name string) domain.Action {
	return func(context.Context) (bool, error) {
		r.record(name)
		return true, nil
	}
}

// Failing returns an action that records name and reports failure.
func (r *Recorder) Failing(name string) domain.Action {
	return func(context.Context) (bool, error) {
		r.record(name)
		return false, nil
	}
}

func (r *Recorder) record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
}

// Calls returns a copy of the recorded names.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Reset forgets every recorded call.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// Chain builds a validated graph "" -> states[0] -> states[1] -> ...
// whose actions are recorded under their target name.
func Chain(t *testing.T, rec *Recorder, states ...string) *graph.Graph {
	t.Helper()

	g := graph.New()
	source := domain.InitialState
	for _, target := range states {
		require.NoError(t, g.Define(source, target, rec.Action(target)))
		source = target
	}
	require.NoError(t, g.Validate())
	return g
}

// Barrier blocks callers of Wait until n of them arrived.
type Barrier struct {
	wg   sync.WaitGroup
	done chan struct{}
	once sync.Once
}

// NewBarrier creates a barrier for n parties.
func NewBarrier(n int) *Barrier {
	b := &Barrier{done: make(chan struct{})}
	b.wg.Add(n)
	go func() {
		b.wg.Wait()
		b.once.Do(func() { close(b.done) })
	}()
	return b
}

// Wait marks the caller as arrived and blocks until all parties arrived or ctx is done.
func (b *Barrier) Wait(ctx context.Context) error {
	b.wg.Done()
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FaultyStore wraps a StateStore and returns the configured errors instead of calling it.
type FaultyStore struct {
	ports.StateStore
	GetErr error
	SetErr error
}

// Get implements ports.StateStore.
func (s *FaultyStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.GetErr != nil {
		return "", false, s.GetErr
	}
	return s.StateStore.Get(ctx, key)
}

// CompareAndSet implements ports.StateStore.
func (s *FaultyStore) CompareAndSet(ctx context.Context, key, expected, value string) error {
	if s.SetErr != nil {
		return s.SetErr
	}
	return s.StateStore.CompareAndSet(ctx, key, expected, value)
}
