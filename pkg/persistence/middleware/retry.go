package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/amp-labs/amp-common/retry"
	"github.com/aretw0/yol/pkg/domain"
	"github.com/aretw0/yol/pkg/ports"
)

// maxRetryBackoff caps the pause between two reads.
const maxRetryBackoff = 5 * time.Second

// RetryConfig controls how reads are retried.
type RetryConfig struct {
	// Attempts is the total number of tries, at least 1.
	Attempts int
	// Backoff is the pause before the second try. It doubles after each failure.
	Backoff time.Duration
}

type lookup struct {
	value string
	found bool
}

type retryMiddleware struct {
	next   ports.StateStore
	runner retry.ValueRunner[lookup]
}

// NewRetryMiddleware retries Get when the medium fails.
//
// CompareAndSet is never retried: a write whose reply was lost cannot be told
// apart from a write that did not happen, and the retry would report a
// conflict with itself.
func NewRetryMiddleware(config RetryConfig) Middleware {
	if config.Attempts < 1 {
		config.Attempts = 1
	}
	runner := retry.NewValueRunner[lookup](
		retry.WithAttempts(retry.Attempts(config.Attempts)),
		retry.WithBackoff(retry.ExpBackoff{
			Base:   config.Backoff,
			Max:    max(config.Backoff, maxRetryBackoff),
			Factor: 2,
		}),
		retry.WithJitter(retry.EqualJitter),
	)
	return func(next ports.StateStore) ports.StateStore {
		return &retryMiddleware{next: next, runner: runner}
	}
}

func (m *retryMiddleware) Get(ctx context.Context, key string) (string, bool, error) {
	res, err := m.runner.Do(ctx, func(ctx context.Context) (lookup, error) {
		value, found, err := m.next.Get(ctx, key)
		if err != nil && !retryable(err) {
			return lookup{}, retry.Abort(err)
		}
		return lookup{value: value, found: found}, err
	})
	if err != nil {
		return "", false, err
	}
	return res.value, res.found, nil
}

func (m *retryMiddleware) CompareAndSet(ctx context.Context, key, expected, value string) error {
	return m.next.CompareAndSet(ctx, key, expected, value)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !errors.Is(err, domain.ErrConcurrency)
}
