package yol

import (
	"log/slog"
	"time"

	"github.com/aretw0/yol/pkg/domain"
	"github.com/aretw0/yol/pkg/ports"
	"go.opentelemetry.io/otel/trace"
)

// DefaultLockTTL bounds how long a crashed process can keep the entry lock.
const DefaultLockTTL = 30 * time.Second

// Option defines a functional option for configuring a Runner.
// The same options configure the defaults of a Registry.
type Option func(*Runner)

// WithStore sets where the current state is persisted.
// Default: an in-process memory store, which forgets everything on exit.
func WithStore(store ports.StateStore) Option {
	return func(r *Runner) {
		r.store = store
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
// It may be given several times; every set of hooks is called.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(r *Runner) {
		r.hooks = append(r.hooks, hooks)
	}
}

// WithTracerProvider enables OpenTelemetry spans for runs and transitions.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Runner) {
		r.tracerProvider = tp
	}
}

// WithImpersonator sets how the runner switches to its identity.
// Without one, the identity is ignored.
func WithImpersonator(imp ports.Impersonator) Option {
	return func(r *Runner) {
		r.impersonator = imp
	}
}

// WithIdentity sets the identity the actions run as.
func WithIdentity(identity string) Option {
	return func(r *Runner) {
		r.identity = identity
	}
}

// WithIdentityLookup resolves the identity of runners registered without one,
// typically from configuration.
func WithIdentityLookup(lookup func(runner string) (string, bool)) Option {
	return func(r *Runner) {
		r.identityLookup = lookup
	}
}

// WithLocker serializes runs of the same runner across processes.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(r *Runner) {
		r.locker = locker
	}
}

// WithLockTTL sets the expiry of the entry lock. Default: DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(r *Runner) {
		r.lockTTL = ttl
	}
}

// WithLegacyStateFile imports the state kept in a plain text file by older
// deployments. The file is only read when the store holds no state yet.
func WithLegacyStateFile(path string) Option {
	return func(r *Runner) {
		r.legacyFile = path
	}
}
