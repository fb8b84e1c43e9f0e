package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/yol/internal/logging"
	"github.com/aretw0/yol/pkg/domain"
	"github.com/aretw0/yol/pkg/graph"
	"github.com/aretw0/yol/pkg/ports"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Engine walks a validated graph from the persisted state to the terminal state.
// It holds no mutable state of its own; concurrent Run calls only contend on the store.
type Engine struct {
	name   string
	key    string
	graph  *graph.Graph
	store  ports.StateStore
	logger *slog.Logger
	hooks  domain.LifecycleHooks
	tracer trace.Tracer
	now    func() time.Time
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger. Default: no-op.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithTracerProvider enables spans for runs and transitions.
func WithTracerProvider(tp trace.TracerProvider) EngineOption {
	return func(e *Engine) {
		if tp != nil {
			e.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewEngine creates an engine for the runner name, persisting under key.
// The graph must have been validated; the engine does not check it again.
func NewEngine(name, key string, g *graph.Graph, store ports.StateStore, opts ...EngineOption) *Engine {
	e := &Engine{
		name:   name,
		key:    key,
		graph:  g,
		store:  store,
		logger: logging.NewNop(),
		tracer: noop.NewTracerProvider().Tracer(tracerName),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes every transition between the persisted state and the terminal state.
// It stops at the first failure; the report always describes what was committed.
func (e *Engine) Run(ctx context.Context) (report *domain.RunReport, err error) {
	started := e.now()
	report = &domain.RunReport{Runner: e.name, Status: domain.StatusRunning}

	ctx, span := e.startRun(ctx)
	defer func() {
		report.Err = err
		if err != nil {
			report.Status = domain.StatusFailed
		} else {
			report.Status = domain.StatusCompleted
		}
		e.endRun(ctx, span, report, e.now().Sub(started))
	}()

	e.logger.Info("Starting", "runner", e.name)

	raw, err := e.read(ctx)
	if err != nil {
		return report, err
	}
	current := domain.Normalize(raw)
	report.From, report.To = current, current

	e.emitRunStart(ctx, current)
	e.logger.Info("At state", "runner", e.name, "state", current)

	for {
		step, ok := e.graph.Lookup(current)
		if !ok {
			return report, &domain.UnknownStateError{State: current}
		}

		t, ok := step.Transition()
		if !ok {
			break
		}

		if err := e.apply(ctx, t); err != nil {
			return report, err
		}

		if err := e.store.CompareAndSet(ctx, e.key, raw, t.Target); err != nil {
			e.logger.Error("Could not save state", "runner", e.name, "state", current, "target", t.Target, "err", err)
			return report, err
		}

		raw, current = t.Target, t.Target
		report.To = current
		report.Applied = append(report.Applied, current)
		e.logger.Info("At state", "runner", e.name, "state", current)
	}

	e.logger.Info("Done", "runner", e.name, "state", current, "applied", len(report.Applied))
	return report, nil
}

func (e *Engine) read(ctx context.Context) (string, error) {
	value, found, err := e.store.Get(ctx, e.key)
	if err != nil {
		return "", domain.NewStoreError("get", e.key, err)
	}
	if !found {
		return domain.InitialState, nil
	}
	return value, nil
}

// apply runs the action of t, turning false, errors and panics into a TransitionFailedError.
func (e *Engine) apply(ctx context.Context, t domain.Transition) (err error) {
	started := e.now()
	ctx, span := e.startTransition(ctx, t)
	e.emitTransitionStart(ctx, t)
	defer func() {
		e.endTransition(ctx, span, t, err, e.now().Sub(started))
	}()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Transition panicked", "runner", e.name, "state", t.Source, "target", t.Target, "panic", r)
			err = &domain.TransitionFailedError{Source: t.Source, Target: t.Target, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	ok, actionErr := t.Action(ctx)
	if actionErr != nil || !ok {
		e.logger.Error("Transition failed", "runner", e.name, "state", t.Source, "target", t.Target, "err", actionErr)
		return &domain.TransitionFailedError{Source: t.Source, Target: t.Target, Err: actionErr}
	}
	return nil
}

func (e *Engine) emitRunStart(ctx context.Context, state string) {
	if e.hooks.OnRunStart == nil {
		return
	}
	e.hooks.OnRunStart(ctx, &domain.RunEvent{
		EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventRunStart, Runner: e.name},
		State:     state,
		Status:    domain.StatusRunning,
	})
}

func (e *Engine) emitRunEnd(ctx context.Context, report *domain.RunReport, d time.Duration) {
	if e.hooks.OnRunEnd == nil {
		return
	}
	e.hooks.OnRunEnd(ctx, &domain.RunEvent{
		EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventRunEnd, Runner: e.name},
		State:     report.To,
		Status:    report.Status,
		Duration:  d,
		Err:       report.Err,
	})
}

func (e *Engine) emitTransitionStart(ctx context.Context, t domain.Transition) {
	if e.hooks.OnTransitionStart == nil {
		return
	}
	e.hooks.OnTransitionStart(ctx, &domain.TransitionEvent{
		EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventTransitionStart, Runner: e.name},
		Source:    t.Source,
		Target:    t.Target,
	})
}

func (e *Engine) emitTransitionEnd(ctx context.Context, t domain.Transition, err error, d time.Duration) {
	if e.hooks.OnTransitionEnd == nil {
		return
	}
	e.hooks.OnTransitionEnd(ctx, &domain.TransitionEvent{
		EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventTransitionEnd, Runner: e.name},
		Source:    t.Source,
		Target:    t.Target,
		Duration:  d,
		Err:       err,
	})
}
