package ports

import (
	"context"
)

// ImpersonationToken is whatever an Impersonator needs to restore the previous identity.
type ImpersonationToken any

// Impersonator runs the transitions of a runner under a given identity.
// The runner calls Begin once before the first action and End once after the
// last, even when the run fails.
type Impersonator interface {
	// Begin switches to identity. The returned context is handed to the actions.
	Begin(ctx context.Context, identity string) (context.Context, ImpersonationToken, error)

	// End restores what Begin replaced.
	End(ctx context.Context, token ImpersonationToken) error
}
