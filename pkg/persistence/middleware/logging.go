package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/yol/pkg/ports"
)

type loggingMiddleware struct {
	next   ports.StateStore
	logger *slog.Logger
}

// NewLoggingMiddleware logs every store call at debug level.
func NewLoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next ports.StateStore) ports.StateStore {
		return &loggingMiddleware{next: next, logger: logger}
	}
}

func (m *loggingMiddleware) Get(ctx context.Context, key string) (string, bool, error) {
	start := time.Now()
	value, found, err := m.next.Get(ctx, key)
	m.logger.Debug("Store get",
		"key", key,
		"value", value,
		"found", found,
		"duration", time.Since(start),
		"err", err,
	)
	return value, found, err
}

func (m *loggingMiddleware) CompareAndSet(ctx context.Context, key, expected, value string) error {
	start := time.Now()
	err := m.next.CompareAndSet(ctx, key, expected, value)
	m.logger.Debug("Store compare-and-set",
		"key", key,
		"expected", expected,
		"value", value,
		"duration", time.Since(start),
		"err", err,
	)
	return err
}
