/*
Package yol runs one-shot, linear upgrade chains.

An application declares an ordered chain of named states and the idempotent
actions moving from one state to the next. A Runner reads the persisted state,
runs every action between it and the terminal state, and persists each new
state with a compare-and-set, so that each step runs at most once even when
several processes start together.

# Usage

	registry := yol.NewRegistry(
		yol.WithStore(store),
		yol.WithLogger(logger),
	)

	site, err := registry.Register("Site", "admin")
	if err != nil {
		return err
	}
	site.
		Define("", "schema", installSchema).
		Define("schema", "content", seedContent)

	// At startup, once.
	if err := registry.ExecuteAll(ctx); err != nil {
		return err
	}

States are compared case-insensitively after trimming. The empty string is
the initial state: a store holding nothing (or a blank value) is there.

# Failures

A run stops at the first failure and nothing is retried. The persisted state is
left at the last successful transition, so the next run resumes from there.
Errors match the categories of pkg/domain with errors.Is:

  - domain.ErrDefinition and domain.ErrGraph for a malformed chain.
  - domain.ErrUnknownState when the persisted state is not in the chain.
  - domain.ErrTransitionFailed when an action returns false, an error, or panics.
  - domain.ErrConcurrency when another process moved the state first.
  - domain.ErrStore when the store cannot be read or written.

# Hosts

The pkg/host package triggers a Registry on the first HTTP request only, and
exposes the runners' status and graphs. The yol command inspects and repairs
persisted states.
*/
package yol
