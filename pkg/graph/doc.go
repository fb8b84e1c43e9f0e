/*
Package graph holds the transition graph of a runner.

A graph is built incrementally with Define, in any order: a transition may
name a target that only later becomes a source. Every target not (yet) used as
a source is recorded as a pending step, which is how the terminal state is
discovered. Validate checks the structure before a run:

  - exactly one state has nothing leaving it (the terminal state);
  - no forward walk revisits a state (no cycles).

At most one transition may leave a state; a second Define for the same source
fails immediately.

Define is not safe for concurrent use. Once validated, a graph is only read
and may be shared by concurrent runs.
*/
package graph
