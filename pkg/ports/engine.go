package ports

import "context"

// Executor advances one or more state machines to their terminal state.
// Both a single runner and a registry of runners satisfy it; host
// integrations (middleware, CLI) only depend on this.
type Executor interface {
	Execute(ctx context.Context) error
}
