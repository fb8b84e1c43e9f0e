package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventRunStart        EventType = "run_start"
	EventRunEnd          EventType = "run_end"
	EventTransitionStart EventType = "transition_start"
	EventTransitionEnd   EventType = "transition_end"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Runner    string    `json:"runner"`
}

// RunEvent is emitted when a run begins and ends.
type RunEvent struct {
	EventBase
	State    string        `json:"state"`
	Status   RunStatus     `json:"status,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// TransitionEvent is emitted around each action.
type TransitionEvent struct {
	EventBase
	Source   string        `json:"source"`
	Target   string        `json:"target"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
// Any field may be nil.
type LifecycleHooks struct {
	OnRunStart        func(context.Context, *RunEvent)
	OnRunEnd          func(context.Context, *RunEvent)
	OnTransitionStart func(context.Context, *TransitionEvent)
	OnTransitionEnd   func(context.Context, *TransitionEvent)
}

// MergeHooks returns hooks calling each of the given hooks in order.
func MergeHooks(all ...LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnRunStart: func(ctx context.Context, e *RunEvent) {
			for _, h := range all {
				if h.OnRunStart != nil {
					h.OnRunStart(ctx, e)
				}
			}
		},
		OnRunEnd: func(ctx context.Context, e *RunEvent) {
			for _, h := range all {
				if h.OnRunEnd != nil {
					h.OnRunEnd(ctx, e)
				}
			}
		},
		OnTransitionStart: func(ctx context.Context, e *TransitionEvent) {
			for _, h := range all {
				if h.OnTransitionStart != nil {
					h.OnTransitionStart(ctx, e)
				}
			}
		},
		OnTransitionEnd: func(ctx context.Context, e *TransitionEvent) {
			for _, h := range all {
				if h.OnTransitionEnd != nil {
					h.OnTransitionEnd(ctx, e)
				}
			}
		},
	}
}
