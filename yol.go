package yol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/yol/internal/logging"
	presentation "github.com/aretw0/yol/internal/presentation/graph"
	"github.com/aretw0/yol/internal/runtime"
	"github.com/aretw0/yol/pkg/adapters/memory"
	"github.com/aretw0/yol/pkg/domain"
	"github.com/aretw0/yol/pkg/graph"
	"github.com/aretw0/yol/pkg/ports"
	"go.opentelemetry.io/otel/trace"
)

var _ ports.Executor = (*Runner)(nil)

// Runner owns one chain of transitions and advances its persisted state.
type Runner struct {
	name           string
	key            string
	identity       string
	identityLookup func(string) (string, bool)

	store          ports.StateStore
	logger         *slog.Logger
	hooks          []domain.LifecycleHooks
	tracerProvider trace.TracerProvider
	impersonator   ports.Impersonator
	locker         ports.DistributedLocker
	lockTTL        time.Duration
	legacyFile     string

	mu     sync.RWMutex
	graph  *graph.Graph
	defErr error
	status domain.RunStatus
	last   *domain.RunReport
}

// New creates a runner. An empty name creates an anonymous runner,
// meant for tests and one-off tools.
func New(name string, opts ...Option) *Runner {
	r := &Runner{
		name:    domain.Normalize(name),
		key:     domain.StateKey(name),
		graph:   graph.New(),
		status:  domain.StatusIdle,
		lockTTL: DefaultLockTTL,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = logging.NewNop()
	}
	if r.store == nil {
		r.store = memory.NewStore()
	}

	return r
}

// Name returns the runner name.
func (r *Runner) Name() string { return r.name }

// Key returns the store key of the runner.
func (r *Runner) Key() string { return r.key }

// Store returns the store the runner persists to.
func (r *Runner) Store() ports.StateStore { return r.store }

// Define registers the transition source -> target and returns the runner for chaining.
// The first rejected definition is kept and reported by Err, Validate and Execute;
// later definitions are ignored.
func (r *Runner) Define(source, target string, action domain.Action) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.defErr != nil {
		return r
	}
	if err := r.graph.Define(source, target, action); err != nil {
		r.defErr = err
		r.logger.Error("Invalid transition", "runner", r.name, "state", source, "target", target, "err", err)
	}
	return r
}

// DefineFunc is Define for actions that only report success.
func (r *Runner) DefineFunc(source, target string, action func() bool) *Runner {
	return r.Define(source, target, domain.Func(action))
}

// Err returns the first definition error, if any.
func (r *Runner) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defErr
}

// Validate checks the definitions and the shape of the graph.
func (r *Runner) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.defErr != nil {
		return r.defErr
	}
	return r.graph.Validate()
}

// Terminal returns the state every run ends at.
func (r *Runner) Terminal() (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, _ := r.graph.Terminal()
	return state, nil
}

// Execute runs every pending transition. Running a completed runner again does nothing.
func (r *Runner) Execute(ctx context.Context) error {
	_, err := r.Run(ctx)
	return err
}

// Run is Execute returning the report of the run.
func (r *Runner) Run(ctx context.Context) (report *domain.RunReport, err error) {
	report = &domain.RunReport{Runner: r.name, Status: domain.StatusFailed}
	defer func() {
		if report.Err == nil {
			report.Err = err
		}
		r.finish(report)
	}()

	if err := r.Validate(); err != nil {
		r.logger.Error("Invalid graph", "runner", r.name, "err", err)
		return report, err
	}

	r.setStatus(domain.StatusRunning)

	if r.locker != nil {
		unlock, err := r.locker.Lock(ctx, r.key, r.lockTTL)
		if err != nil {
			return report, fmt.Errorf("acquire lock for %q: %w", r.name, err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				r.logger.Warn("Could not release lock", "runner", r.name, "err", err)
			}
		}()
	}

	if _, err := r.ImportLegacyState(ctx); err != nil {
		return report, err
	}

	if identity := r.resolveIdentity(); identity != "" && r.impersonator != nil {
		impCtx, token, err := r.impersonator.Begin(ctx, identity)
		if err != nil {
			return report, fmt.Errorf("impersonate %q: %w", identity, err)
		}
		defer func() {
			if endErr := r.impersonator.End(context.WithoutCancel(ctx), token); endErr != nil {
				r.logger.Error("Could not restore identity", "runner", r.name, "err", endErr)
				err = errors.Join(err, endErr)
				report.Err = err
			}
		}()
		ctx = impCtx
	}

	return r.engine().Run(ctx)
}

func (r *Runner) engine() *runtime.Engine {
	opts := []runtime.EngineOption{
		runtime.WithLogger(r.logger),
		runtime.WithLifecycleHooks(domain.MergeHooks(r.hooks...)),
	}
	if r.tracerProvider != nil {
		opts = append(opts, runtime.WithTracerProvider(r.tracerProvider))
	}
	return runtime.NewEngine(r.name, r.key, r.graph, r.store, opts...)
}

func (r *Runner) resolveIdentity() string {
	if identity := domain.Normalize(r.identity); identity != "" {
		return identity
	}
	if r.identityLookup != nil {
		if identity, ok := r.identityLookup(r.name); ok {
			return domain.Normalize(identity)
		}
	}
	return ""
}

func (r *Runner) setStatus(status domain.RunStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
}

func (r *Runner) finish(report *domain.RunReport) {
	if report.Err != nil {
		report.Status = domain.StatusFailed
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = report.Status
	r.last = report
}

// Status returns the lifecycle status of the last run in this process.
func (r *Runner) Status() domain.RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// LastReport returns the report of the last run in this process.
func (r *Runner) LastReport() (domain.RunReport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return domain.RunReport{}, false
	}
	return *r.last, true
}

// CurrentState reads the persisted state. It is the initial state when nothing was stored.
func (r *Runner) CurrentState(ctx context.Context) (string, error) {
	value, found, err := r.store.Get(ctx, r.key)
	if err != nil {
		return "", domain.NewStoreError("get", r.key, err)
	}
	if !found {
		return domain.InitialState, nil
	}
	return domain.Normalize(value), nil
}

// Mermaid renders the graph as a Mermaid flowchart, highlighting the persisted state.
func (r *Runner) Mermaid(ctx context.Context) (string, error) {
	current, err := r.CurrentState(ctx)
	if err != nil {
		return "", err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	overlay := &presentation.GraphOverlay{CurrentState: current}
	if path, err := r.graph.Path(domain.InitialState); err == nil {
		for _, t := range path {
			if domain.SameState(t.Source, current) {
				break
			}
			overlay.VisitedStates = append(overlay.VisitedStates, t.Source)
		}
		if len(overlay.VisitedStates) == len(path) && !domain.SameState(lastTarget(path), current) {
			// The current state is not on the chain.
			overlay.VisitedStates = nil
		}
	}

	return presentation.GenerateMermaid(r.graph.Transitions(), overlay), nil
}

func lastTarget(path []domain.Transition) string {
	if len(path) == 0 {
		return domain.InitialState
	}
	return path[len(path)-1].Target
}
