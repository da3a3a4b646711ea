package app

import (
	"context"
	"errors"
	"fmt"

	"vacancyline/internal/config"
	"vacancyline/internal/repo"
)

// ResolveConfig returns the workspace config stored in the DB, seeding it from
// vacancyline.yml (or the built-in default when no file exists) on first use.
func ResolveConfig(ctx context.Context, workspace string, r repo.Repo) (*config.Config, error) {
	cfg, err := r.GetWorkspaceConfig(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	seed, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if seed == nil {
		seed = config.Default("default")
	}
	if err := r.UpsertWorkspaceConfig(ctx, seed); err != nil {
		return nil, fmt.Errorf("seed workspace config: %w", err)
	}
	return seed, nil
}
