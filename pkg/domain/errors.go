package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Categories. Every typed error below matches exactly one of them with errors.Is.
var (
	// ErrDefinition is returned when a transition definition is malformed.
	ErrDefinition = errors.New("invalid transition definition")

	// ErrGraph is returned when the transition graph fails validation.
	ErrGraph = errors.New("invalid transition graph")

	// ErrUnknownState is returned when the persisted state matches no node of the graph.
	ErrUnknownState = errors.New("unknown state")

	// ErrTransitionFailed is returned when an action reports failure.
	ErrTransitionFailed = errors.New("transition failed")

	// ErrConcurrency is returned when a compare-and-set lost a race.
	ErrConcurrency = errors.New("state has changed in store")

	// ErrStore is returned when the persistence medium fails.
	ErrStore = errors.New("state store failure")
)

// Definition reasons.
var (
	ErrEmptyState          = errors.New("target state cannot be empty")
	ErrSelfTransition      = errors.New("source state and target state must be different")
	ErrNilAction           = errors.New("action cannot be nil")
	ErrDuplicateTransition = errors.New("a transition from this state has already been defined")
)

// Graph reasons.
var (
	ErrMultipleTerminalStates = errors.New("multiple terminal states")
	ErrCycleDetected          = errors.New("cycle detected")
	ErrNoTerminalState        = errors.New("no terminal state")
)

// Registry errors.
var (
	// ErrRunnerExists is returned when a runner name is registered twice.
	ErrRunnerExists = errors.New("runner already registered")

	// ErrRunnerNotFound is returned by lookups of unknown runners.
	ErrRunnerNotFound = errors.New("runner not found")

	// ErrInvalidName is returned for blank runner names.
	ErrInvalidName = errors.New("runner name cannot be empty")

	// ErrNameTooLong is returned when a runner's state key would exceed MaxKeyLength.
	ErrNameTooLong = fmt.Errorf("runner state key cannot be longer than %d chars", MaxKeyLength)
)

// DefinitionError reports a rejected Define call.
type DefinitionError struct {
	Source string
	Target string
	Reason error
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("define %q -> %q: %v", e.Source, e.Target, e.Reason)
}

func (e *DefinitionError) Unwrap() error { return e.Reason }

func (e *DefinitionError) Is(target error) bool { return target == ErrDefinition }

// GraphError reports a structural problem found by validation.
type GraphError struct {
	Reason error
	// States involved: the terminal candidates, or the walk that closed the cycle.
	States []string
}

func (e *GraphError) Error() string {
	if len(e.States) == 0 {
		return e.Reason.Error()
	}
	quoted := make([]string, len(e.States))
	for i, s := range e.States {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v: %s", e.Reason, strings.Join(quoted, ", "))
}

func (e *GraphError) Unwrap() error { return e.Reason }

func (e *GraphError) Is(target error) bool { return target == ErrGraph }

// UnknownStateError reports a persisted state with no matching node,
// typically left behind by a definition that was removed.
type UnknownStateError struct {
	State string
}

func (e *UnknownStateError) Error() string {
	return fmt.Sprintf("unknown state %q", e.State)
}

func (e *UnknownStateError) Is(target error) bool { return target == ErrUnknownState }

// TransitionFailedError reports an action that returned false, an error, or panicked.
// Nothing was persisted for this transition.
type TransitionFailedError struct {
	Source string
	Target string
	Err    error
}

func (e *TransitionFailedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("transition %q -> %q failed", e.Source, e.Target)
	}
	return fmt.Sprintf("transition %q -> %q failed: %v", e.Source, e.Target, e.Err)
}

func (e *TransitionFailedError) Unwrap() error { return e.Err }

func (e *TransitionFailedError) Is(target error) bool { return target == ErrTransitionFailed }

// ConcurrencyError reports a compare-and-set whose expected value no longer matched.
type ConcurrencyError struct {
	Key      string
	Expected string
	Actual   string
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("could not save state of %q: expected %q, found %q", e.Key, e.Expected, e.Actual)
}

func (e *ConcurrencyError) Is(target error) bool { return target == ErrConcurrency }

// StoreError wraps a failure of the persistence medium.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStore }

// NewStoreError wraps err unless it is nil or already a store or concurrency error.
func NewStoreError(op, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStore) || errors.Is(err, ErrConcurrency) {
		return err
	}
	return &StoreError{Op: op, Key: key, Err: err}
}
