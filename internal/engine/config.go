package engine

import (
	"context"
	"errors"

	"vacancyline/internal/config"
	"vacancyline/internal/domain"
	"vacancyline/internal/events"
	"vacancyline/internal/repo"
)

// UpdateConfig replaces the stored workspace config and records a config.updated event.
// The running engine keeps its config; callers rebuild it to pick up the change.
func (e Engine) UpdateConfig(ctx context.Context, cfg *config.Config, actorID string) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertWorkspaceConfigTx(ctx, tx, cfg); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, events.ConfigUpdated, "workspace", cfg.Workspace.ID, actorID, events.EventPayload{
		"blueprint_version": cfg.Blueprint.Version,
		"webhooks":          len(cfg.Alerts.Webhooks),
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// ListEvents pages the audit log backwards from cursor (0 = newest).
func (e Engine) ListEvents(ctx context.Context, limit int, cursor int64, f repo.EventFilters) ([]domain.Event, error) {
	return e.Repo.LatestEventsFrom(ctx, limit, cursor, f)
}
