package host

import (
	"context"

	"go.uber.org/atomic"
)

// Once runs a function for the first caller only. Later callers return at once,
// without waiting for the first one to finish.
type Once struct {
	started atomic.Bool
	done    atomic.Bool
}

// Do runs fn if no caller ran it before and reports whether it did.
func (o *Once) Do(ctx context.Context, fn func(context.Context) error) (bool, error) {
	if !o.started.CompareAndSwap(false, true) {
		return false, nil
	}
	defer o.done.Store(true)
	return true, fn(ctx)
}

// Started reports whether a caller claimed the run.
func (o *Once) Started() bool { return o.started.Load() }

// Done reports whether the run returned.
func (o *Once) Done() bool { return o.done.Load() }
