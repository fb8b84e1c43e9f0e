/*
Package domain contains the core models of the yol state machine.

It defines states, transitions, the tagged Step variant that the graph stores
per state, lifecycle events, and the error taxonomy shared by the graph, the
engine and the store adapters. The package has no I/O.

# Key Entities

  - State: a trimmed, case-insensitive name. "" is the initial state.
  - Transition: an immutable edge (source, target, action).
  - Step: Pending (a known target with nothing leaving it) or Defined (an outgoing transition).
  - RunReport: what a single execution observed and committed.
*/
package domain
