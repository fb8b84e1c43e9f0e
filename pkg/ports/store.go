package ports

import (
	"context"
	"strings"
)

// StateStore persists the current state of each runner under a key.
// Implementations must make CompareAndSet atomic against concurrent writers,
// including writers in other processes sharing the medium.
type StateStore interface {
	// Get returns the last committed value for key.
	// found is false when the key was never set.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// CompareAndSet stores value only if the current value equals expected.
	// An absent or blank value matches an empty expected.
	// It returns a *domain.ConcurrencyError on mismatch and a *domain.StoreError
	// when the medium fails; in both cases nothing was written.
	CompareAndSet(ctx context.Context, key, expected, value string) error
}

// Matches reports whether current satisfies expected under the store contract.
// Adapters use it so they all agree on the blank-value rule.
func Matches(current string, found bool, expected string) bool {
	if isBlank(expected) {
		return !found || isBlank(current)
	}
	return found && current == expected
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
