// Package runtime contains the execution loop shared by every runner:
// read the persisted state, look it up, run the action, compare-and-set
// the target, and repeat until the terminal state. Validation, locking and
// impersonation belong to the caller.
package runtime
