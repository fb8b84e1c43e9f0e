package yol

import (
	"context"
	"errors"

	"github.com/aretw0/yol/pkg/adapters/file"
	"github.com/aretw0/yol/pkg/domain"
)

// ImportLegacyState copies the state of the legacy state file into the store,
// unless the store already holds a state. Execute calls it before every run;
// an unreadable file counts as empty.
func (r *Runner) ImportLegacyState(ctx context.Context) (bool, error) {
	if r.legacyFile == "" {
		return false, nil
	}

	current, found, err := r.store.Get(ctx, r.key)
	if err != nil {
		return false, domain.NewStoreError("get", r.key, err)
	}
	if found && !domain.IsInitial(current) {
		return false, nil
	}

	legacy, err := file.ReadStateFile(r.legacyFile)
	if err != nil {
		r.logger.Warn("Could not read legacy state file", "runner", r.name, "path", r.legacyFile, "err", err)
		return false, nil
	}
	if domain.IsInitial(legacy) {
		return false, nil
	}

	err = r.store.CompareAndSet(ctx, r.key, current, legacy)
	if errors.Is(err, domain.ErrConcurrency) {
		// Another process initialized the store first.
		return false, nil
	}
	if err != nil {
		return false, err
	}

	r.logger.Info("Imported legacy state", "runner", r.name, "path", r.legacyFile, "state", legacy)
	return true, nil
}
