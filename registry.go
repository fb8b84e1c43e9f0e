package yol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/yol/internal/logging"
	"github.com/aretw0/yol/pkg/domain"
	"github.com/aretw0/yol/pkg/ports"
)

var _ ports.Executor = (*Registry)(nil)

// Registry holds the named runners of a host. The host creates one at startup
// and executes it once; nothing is registered globally.
type Registry struct {
	mu       sync.RWMutex
	runners  map[string]*Runner
	keys     map[string]string
	order    []string
	defaults []Option
	logger   *slog.Logger
}

// NewRegistry creates an empty registry. The options are applied to every
// runner it registers, before the runner's own options.
func NewRegistry(defaults ...Option) *Registry {
	probe := &Runner{}
	for _, opt := range defaults {
		opt(probe)
	}
	logger := probe.logger
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Registry{
		runners:  make(map[string]*Runner),
		keys:     make(map[string]string),
		defaults: defaults,
		logger:   logger,
	}
}

// Register creates and registers the runner name acting as identity.
// Names are case-insensitive and must be unique, and so must the store keys
// derived from them.
func (g *Registry) Register(name, identity string, opts ...Option) (*Runner, error) {
	name = domain.Normalize(name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	stateKey := domain.StateKey(name)
	if len(stateKey) > domain.MaxKeyLength {
		return nil, fmt.Errorf("%w: %q", domain.ErrNameTooLong, name)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	key := domain.Fold(name)
	if _, exists := g.runners[key]; exists {
		return nil, fmt.Errorf("%w: %q", domain.ErrRunnerExists, name)
	}
	if owner, taken := g.keys[stateKey]; taken {
		return nil, fmt.Errorf("%w: %q shares state key %q with %q", domain.ErrRunnerExists, name, stateKey, owner)
	}

	all := make([]Option, 0, len(g.defaults)+len(opts)+1)
	all = append(all, g.defaults...)
	all = append(all, WithIdentity(identity))
	all = append(all, opts...)

	r := New(name, all...)
	g.runners[key] = r
	g.keys[stateKey] = name
	g.order = append(g.order, key)

	g.logger.Debug("Registered runner", "runner", name, "key", r.Key())
	return r, nil
}

// RegisterDefault registers the runner named domain.DefaultRunnerName.
func (g *Registry) RegisterDefault(identity string, opts ...Option) (*Runner, error) {
	return g.Register(domain.DefaultRunnerName, identity, opts...)
}

// Lookup returns the runner registered under name.
func (g *Registry) Lookup(name string) (*Runner, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.runners[domain.Fold(name)]
	return r, ok
}

// Runners returns the registered runners in registration order.
func (g *Registry) Runners() []*Runner {
	g.mu.RLock()
	defer g.mu.RUnlock()

	runners := make([]*Runner, 0, len(g.order))
	for _, key := range g.order {
		runners = append(runners, g.runners[key])
	}
	return runners
}

// ExecuteAll executes every runner in registration order. A failing runner
// does not stop the others; all failures are returned joined.
func (g *Registry) ExecuteAll(ctx context.Context) error {
	var errs []error
	for _, r := range g.Runners() {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := r.Execute(ctx); err != nil {
			g.logger.Error("Runner failed", "runner", r.Name(), "err", err)
			errs = append(errs, fmt.Errorf("runner %q: %w", r.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Execute implements ports.Executor.
func (g *Registry) Execute(ctx context.Context) error {
	return g.ExecuteAll(ctx)
}
