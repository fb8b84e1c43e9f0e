package domain

import "context"

// Action is the side effect attached to a transition.
// It reports false (or an error) when the step could not be applied.
// The context carries whatever the host bundles for the run: deadlines,
// the impersonated principal, tracing spans.
type Action func(ctx context.Context) (bool, error)

// Func adapts a plain predicate into an Action.
func Func(fn func() bool) Action {
	if fn == nil {
		return nil
	}
	return func(context.Context) (bool, error) {
		return fn(), nil
	}
}

// Transition is an immutable edge of the graph.
type Transition struct {
	Source string
	Target string
	Action Action
}

// StepKind tags the content of a Step.
type StepKind int

const (
	// StepPending marks a state known only as a target: nothing leaves it (yet).
	StepPending StepKind = iota
	// StepDefined marks a state with an outgoing transition.
	StepDefined
)

func (k StepKind) String() string {
	switch k {
	case StepPending:
		return "pending"
	case StepDefined:
		return "defined"
	default:
		return "unknown"
	}
}

// Step is what the graph knows about a state.
// Use Pending and Defined to build one; the zero value is a pending step for the initial state.
type Step struct {
	kind       StepKind
	state      string
	transition Transition
}

// Pending returns the step of a state that has no outgoing transition.
func Pending(state string) Step {
	return Step{kind: StepPending, state: Normalize(state)}
}

// Defined returns the step of a state leaving through t.
func Defined(t Transition) Step {
	return Step{kind: StepDefined, state: t.Source, transition: t}
}

// Kind returns the tag of the step.
func (s Step) Kind() StepKind { return s.kind }

// State returns the state name as it was first seen.
func (s Step) State() string { return s.state }

// IsTerminal reports whether nothing leaves this state.
func (s Step) IsTerminal() bool { return s.kind == StepPending }

// Transition returns the outgoing transition. ok is false for a pending step.
func (s Step) Transition() (t Transition, ok bool) {
	if s.kind != StepDefined {
		return Transition{}, false
	}
	return s.transition, true
}
