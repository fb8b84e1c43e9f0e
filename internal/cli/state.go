package cli

import (
	"context"

	"github.com/aretw0/yol/pkg/domain"
	"github.com/aretw0/yol/pkg/ports"
)

// ReadState returns the persisted state of runner and whether one was stored.
func ReadState(ctx context.Context, store ports.StateStore, runner string) (string, bool, error) {
	key := domain.StateKey(runner)
	value, found, err := store.Get(ctx, key)
	if err != nil {
		return "", false, domain.NewStoreError("get", key, err)
	}
	return domain.Normalize(value), found, nil
}

// WriteState moves the persisted state of runner to value.
// When expected is nil the current value is read first; the write still fails
// with a concurrency error if another process changes it in between.
func WriteState(ctx context.Context, store ports.StateStore, runner string, expected *string, value string) (string, error) {
	key := domain.StateKey(runner)

	var previous string
	if expected != nil {
		previous = *expected
	} else {
		raw, _, err := store.Get(ctx, key)
		if err != nil {
			return "", domain.NewStoreError("get", key, err)
		}
		previous = raw
	}

	if err := store.CompareAndSet(ctx, key, previous, domain.Normalize(value)); err != nil {
		return "", err
	}
	return domain.Normalize(previous), nil
}
