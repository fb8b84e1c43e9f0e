/*
Package ports defines the driven ports (interfaces) of the yol engine.

These interfaces decouple the runner from external implementations, allowing
it to work with various storage backends, locking services and identity
providers.

# Key Interfaces

  - StateStore: reads and compare-and-sets the current state of a runner.
  - DistributedLocker: optional cross-process serialization of runs.
  - Impersonator: scoped identity switch around the actions of a run.
  - Executor: what a host triggers (a runner or a whole registry).

RunStateStoreContract is a reusable test suite every StateStore adapter runs.
*/
package ports
