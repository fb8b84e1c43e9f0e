package domain

import (
	"strings"

	"golang.org/x/text/cases"
)

// InitialState is the state of a machine that has never run.
// A store that holds no value (or a blank one) is at the initial state.
const InitialState = ""

var folder = cases.Fold()

// Normalize trims surrounding whitespace from a state name.
// This is the form in which states are stored.
func Normalize(state string) string {
	return strings.TrimSpace(state)
}

// Fold returns the comparison key of a state: trimmed and case folded.
// Two states are the same node of the graph if their folded forms are equal.
func Fold(state string) string {
	return folder.String(Normalize(state))
}

// SameState reports whether a and b name the same state.
func SameState(a, b string) bool {
	return Fold(a) == Fold(b)
}

// IsInitial reports whether state denotes the initial state.
func IsInitial(state string) bool {
	return Normalize(state) == InitialState
}

// RunStatus is the lifecycle of a single run of a runner.
type RunStatus string

const (
	StatusIdle      RunStatus = "idle"      // Never executed in this process
	StatusRunning   RunStatus = "running"   // Walking transitions
	StatusCompleted RunStatus = "completed" // Terminal state reached
	StatusFailed    RunStatus = "failed"    // Aborted, see the run error
)

// RunReport summarizes one execution.
type RunReport struct {
	Runner string `json:"runner"`

	// From is the persisted state observed when the run began.
	From string `json:"from"`

	// To is the last state this run committed (or From when nothing was committed).
	To string `json:"to"`

	// Applied lists the targets of the transitions committed by this run, in order.
	Applied []string `json:"applied,omitempty"`

	Status RunStatus `json:"status"`
	Err    error     `json:"-"`
}
