package cli

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/aretw0/yol"
	"github.com/aretw0/yol/internal/config"
	"github.com/aretw0/yol/pkg/adapters/process"
	"github.com/aretw0/yol/pkg/identity"
)

// BuildRegistry registers every configured runner that declares steps.
// Each step becomes a transition running its command. Runners are registered
// in name order so yol run executes them deterministically.
func BuildRegistry(cfg *config.Config, stores *Stores, logger *slog.Logger, extra ...yol.Option) (*yol.Registry, error) {
	defaults := []yol.Option{
		yol.WithStore(stores.State),
		yol.WithLogger(logger),
		yol.WithImpersonator(identity.NewContextImpersonator(identity.WithLogger(logger))),
		yol.WithIdentityLookup(cfg.IdentityFor),
	}
	if stores.Locker != nil {
		defaults = append(defaults, yol.WithLocker(stores.Locker))
	}
	defaults = append(defaults, extra...)

	registry := yol.NewRegistry(defaults...)
	procs := process.NewRunner(process.WithLogger(logger))

	names := make([]string, 0, len(cfg.Runners))
	for name, rc := range cfg.Runners {
		if len(rc.Steps) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		rc := cfg.Runners[name]

		var opts []yol.Option
		if rc.LegacyStateFile != "" {
			opts = append(opts, yol.WithLegacyStateFile(rc.LegacyStateFile))
		}
		runner, err := registry.Register(name, "", opts...)
		if err != nil {
			return nil, err
		}

		for _, step := range rc.Steps {
			runner.Define(step.From, step.To, procs.ActionFor(name, step.To, process.Command{
				Command: step.Command,
				Args:    step.Args,
				Env:     step.Env,
				Dir:     step.Dir,
			}))
		}
		if err := runner.Validate(); err != nil {
			return nil, fmt.Errorf("runner %q: %w", name, err)
		}
	}

	return registry, nil
}
