package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"vacancyline/internal/domain"
	"vacancyline/internal/events"
	"vacancyline/internal/importer"
	"vacancyline/internal/lifecycle"
	"vacancyline/internal/workflow"
)

type ImportOptions struct {
	VacancyID string
	Source    string
	Reader    io.Reader
	ActorID   string
}

type ImportOutcome struct {
	Run       domain.ImportRun         `json:"run"`
	Import    importer.Result          `json:"import"`
	Hydration workflow.HydrationResult `json:"hydration"`
	Advanced  *lifecycle.Edge          `json:"lifecycle_advanced,omitempty"`
}

// ImportCSV hydrates a stored vacancy from an external export. Rejected patches and
// diagnostics are recorded on the import run; only a malformed file fails the call.
func (e Engine) ImportCSV(ctx context.Context, opts ImportOptions) (ImportOutcome, error) {
	if opts.Reader == nil {
		return ImportOutcome{}, &domain.ValidationError{Field: "csv", Message: "csv content is required"}
	}
	mapping, err := e.Mapping()
	if err != nil {
		return ImportOutcome{}, err
	}
	source := opts.Source
	if source == "" && e.Config != nil {
		source = e.Config.Import.Source
	}

	unlock := e.lock(opts.VacancyID)
	defer unlock()

	v, inst, err := e.LoadInstance(ctx, opts.VacancyID)
	if err != nil {
		return ImportOutcome{}, err
	}
	res, hyd, err := importer.New(mapping).Hydrate(inst, opts.Reader)
	if err != nil {
		return ImportOutcome{}, err
	}
	diagnostics, err := json.Marshal(res.Diagnostics)
	if err != nil {
		return ImportOutcome{}, fmt.Errorf("encode diagnostics: %w", err)
	}
	now := e.stamp()
	run := domain.ImportRun{
		ID:              uuid.NewString(),
		VacancyID:       v.ID,
		Source:          source,
		RowsRead:        res.RowsRead,
		RowsMapped:      res.RowsMapped,
		PatchesApplied:  len(hyd.Applied),
		PatchesRejected: len(hyd.Rejected),
		DiagnosticsJSON: string(diagnostics),
		CreatedBy:       opts.ActorID,
		CreatedAt:       now,
	}

	snap := inst.Snapshot()
	applied := make(map[string]bool, len(hyd.Applied))
	for _, id := range hyd.Applied {
		applied[id] = true
	}
	var changed []domain.TaskState
	for _, st := range snap.States(v.ID) {
		if applied[st.TaskID] {
			st.UpdatedAt = now
			changed = append(changed, st)
		}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return ImportOutcome{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertTaskStatesTx(ctx, tx, changed); err != nil {
		return ImportOutcome{}, err
	}
	if err := e.Repo.InsertImportRunTx(ctx, tx, run); err != nil {
		return ImportOutcome{}, fmt.Errorf("insert import run: %w", err)
	}
	if err := e.Events.Append(ctx, tx, events.ImportCompleted, "vacancy", v.ID, opts.ActorID, events.EventPayload{
		"import_id":        run.ID,
		"source":           run.Source,
		"rows_read":        run.RowsRead,
		"rows_mapped":      run.RowsMapped,
		"patches_applied":  run.PatchesApplied,
		"patches_rejected": run.PatchesRejected,
	}); err != nil {
		return ImportOutcome{}, err
	}
	edge, err := e.advanceIfHandedOff(ctx, tx, &v, snap, opts.ActorID)
	if err != nil {
		return ImportOutcome{}, err
	}
	if err := tx.Commit(); err != nil {
		return ImportOutcome{}, err
	}
	e.logger().WithFields(logrus.Fields{
		"vacancy_id": v.ID,
		"rows":       run.RowsRead,
		"applied":    run.PatchesApplied,
		"rejected":   run.PatchesRejected,
	}).Info("import completed")
	return ImportOutcome{Run: run, Import: res, Hydration: hyd, Advanced: edge}, nil
}

func (e Engine) ListImportRuns(ctx context.Context, vacancyID string) ([]domain.ImportRun, error) {
	if _, err := e.Repo.GetVacancy(ctx, vacancyID); err != nil {
		return nil, err
	}
	return e.Repo.ListImportRuns(ctx, vacancyID)
}
