package graph

import (
	"github.com/aretw0/yol/pkg/domain"
)

// Validate checks that the graph is a single chain ending in a single terminal state.
// It does not modify the graph, and must be called before every run.
// Links merging into one state are accepted; only the ends and loops are checked.
func (g *Graph) Validate() error {
	// Quick check for dead ends: every target never used as a source is pending,
	// so more than one pending state means more than one chain end.
	terminals := g.terminals()
	if len(terminals) > 1 {
		return &domain.GraphError{Reason: domain.ErrMultipleTerminalStates, States: terminals}
	}

	// Loops. Walks stop as soon as they reach a state already proven to lead to
	// the end, so each state is walked once overall.
	verified := make(map[string]bool, len(g.order))
	for _, key := range g.order {
		t, ok := g.steps[key].Transition()
		if !ok || verified[key] {
			continue
		}

		visited := []string{key}
		inWalk := map[string]bool{key: true}

		next := domain.Fold(t.Target)
		for {
			step := g.steps[next]
			nt, ok := step.Transition()
			if !ok || verified[next] {
				break
			}
			if inWalk[next] {
				return &domain.GraphError{Reason: domain.ErrCycleDetected, States: g.names(append(visited, next))}
			}
			visited = append(visited, next)
			inWalk[next] = true
			next = domain.Fold(nt.Target)
		}

		for _, v := range visited {
			verified[v] = true
		}
	}

	if len(terminals) == 0 {
		return &domain.GraphError{Reason: domain.ErrNoTerminalState}
	}

	return nil
}

func (g *Graph) names(keys []string) []string {
	names := make([]string, len(keys))
	for i, key := range keys {
		names[i] = g.steps[key].State()
	}
	return names
}
