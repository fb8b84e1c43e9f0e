package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/yol/pkg/domain"
)

// GraphOverlay contains the persisted progress to visualize on the graph.
type GraphOverlay struct {
	// VisitedStates are the states already passed through.
	VisitedStates []string
	// CurrentState is the persisted state. Empty means the initial state.
	CurrentState string
}

// GenerateMermaid produces a Mermaid flowchart of a chain of transitions.
// It applies semantic styling:
// - Initial state: ((Circle))
// - Terminal state: (((Double circle)))
// - Default: [Rectangle]
// It also applies overlay styles (Visited/Current) if provided.
func GenerateMermaid(transitions []domain.Transition, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	sources := make(map[string]bool, len(transitions))
	for _, t := range transitions {
		sources[domain.Fold(t.Source)] = true
	}

	declared := make(map[string]bool)
	declare := func(state string) {
		key := domain.Fold(state)
		if declared[key] {
			return
		}
		declared[key] = true

		safeID := sanitizeMermaidID(state)
		label := strings.ReplaceAll(state, "\"", "'")
		opener, closer := "[", "]"

		switch {
		case domain.IsInitial(state):
			opener, closer = "((", "))"
			label = "(initial)"
		case !sources[key]:
			opener, closer = "(((", ")))"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, label, closer))
	}

	for _, t := range transitions {
		declare(t.Source)
		declare(t.Target)
	}

	for _, t := range transitions {
		sb.WriteString(fmt.Sprintf("    %s --> %s\n", sanitizeMermaidID(t.Source), sanitizeMermaidID(t.Target)))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, state := range overlay.VisitedStates {
			safeID := sanitizeMermaidID(state)
			if !visitedSet[safeID] {
				visitedSet[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s visited;\n", safeID))
			}
		}

		sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.CurrentState)))
	}

	return sb.String()
}

// sanitizeMermaidID maps a state to a node id. The prefix keeps ids clear of
// Mermaid keywords such as "end".
func sanitizeMermaidID(state string) string {
	key := domain.Fold(state)
	if key == "" {
		return "initial"
	}
	var sb strings.Builder
	sb.WriteString("s_")
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteString(fmt.Sprintf("_%x", r))
		}
	}
	return sb.String()
}
