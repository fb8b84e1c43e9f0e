package graph

import (
	"github.com/aretw0/yol/pkg/domain"
)

// Graph maps each known state to its Step.
type Graph struct {
	steps map[string]domain.Step
	order []string // folded states, first seen first
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		steps: make(map[string]domain.Step),
	}
}

// Define registers the transition source -> target.
// Both names are trimmed; comparisons are case-insensitive.
func (g *Graph) Define(source, target string, action domain.Action) error {
	source = domain.Normalize(source)
	target = domain.Normalize(target)

	fail := func(reason error) error {
		return &domain.DefinitionError{Source: source, Target: target, Reason: reason}
	}

	if target == "" {
		return fail(domain.ErrEmptyState)
	}
	if domain.SameState(source, target) {
		return fail(domain.ErrSelfTransition)
	}
	if action == nil {
		return fail(domain.ErrNilAction)
	}

	key := domain.Fold(source)
	if step, ok := g.steps[key]; ok && !step.IsTerminal() {
		return fail(domain.ErrDuplicateTransition)
	}

	g.put(key, domain.Defined(domain.Transition{
		Source: source,
		Target: target,
		Action: action,
	}))

	// Register the target if we don't know it yet. It stays pending unless a
	// later Define uses it as a source; the one left pending is the terminal state.
	if targetKey := domain.Fold(target); !g.has(targetKey) {
		g.put(targetKey, domain.Pending(target))
	}

	return nil
}

func (g *Graph) has(key string) bool {
	_, ok := g.steps[key]
	return ok
}

func (g *Graph) put(key string, step domain.Step) {
	if !g.has(key) {
		g.order = append(g.order, key)
	}
	g.steps[key] = step
}

// Lookup returns the step of state.
func (g *Graph) Lookup(state string) (domain.Step, bool) {
	step, ok := g.steps[domain.Fold(state)]
	return step, ok
}

// Len returns the number of known states.
func (g *Graph) Len() int {
	return len(g.order)
}

// States returns every known state, in the order they were first seen.
func (g *Graph) States() []string {
	states := make([]string, 0, len(g.order))
	for _, key := range g.order {
		states = append(states, g.steps[key].State())
	}
	return states
}

// Transitions returns the defined transitions in definition order of their source.
func (g *Graph) Transitions() []domain.Transition {
	transitions := make([]domain.Transition, 0, len(g.order))
	for _, key := range g.order {
		if t, ok := g.steps[key].Transition(); ok {
			transitions = append(transitions, t)
		}
	}
	return transitions
}

// Terminal returns the pending state when there is exactly one.
func (g *Graph) Terminal() (string, bool) {
	terminals := g.terminals()
	if len(terminals) != 1 {
		return "", false
	}
	return terminals[0], true
}

func (g *Graph) terminals() []string {
	var terminals []string
	for _, key := range g.order {
		if step := g.steps[key]; step.IsTerminal() {
			terminals = append(terminals, step.State())
		}
	}
	return terminals
}

// Path returns the transitions a run starting at from would apply, in order.
// The graph should be valid; a cycle is reported rather than walked forever.
func (g *Graph) Path(from string) ([]domain.Transition, error) {
	var path []domain.Transition
	seen := make(map[string]bool)

	current := from
	for {
		key := domain.Fold(current)
		step, ok := g.steps[key]
		if !ok {
			return nil, &domain.UnknownStateError{State: current}
		}
		t, ok := step.Transition()
		if !ok {
			return path, nil
		}
		if seen[key] {
			return nil, &domain.GraphError{Reason: domain.ErrCycleDetected, States: []string{step.State()}}
		}
		seen[key] = true
		path = append(path, t)
		current = t.Target
	}
}
