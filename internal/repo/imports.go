package repo

import (
	"context"
	"database/sql"

	"vacancyline/internal/domain"
)

func (r Repo) InsertImportRunTx(ctx context.Context, tx *sql.Tx, run domain.ImportRun) error {
	diagnostics := run.DiagnosticsJSON
	if diagnostics == "" {
		diagnostics = "[]"
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO import_runs(id,vacancy_id,source,rows_read,rows_mapped,patches_applied,patches_rejected,diagnostics_json,created_by,created_at)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		run.ID, run.VacancyID, run.Source, run.RowsRead, run.RowsMapped, run.PatchesApplied, run.PatchesRejected, diagnostics, run.CreatedBy, run.CreatedAt)
	return err
}

func (r Repo) GetImportRun(ctx context.Context, id string) (domain.ImportRun, error) {
	var run domain.ImportRun
	err := r.DB.QueryRowContext(ctx, `SELECT id,vacancy_id,source,rows_read,rows_mapped,patches_applied,patches_rejected,diagnostics_json,created_by,created_at FROM import_runs WHERE id=?`, id).
		Scan(&run.ID, &run.VacancyID, &run.Source, &run.RowsRead, &run.RowsMapped, &run.PatchesApplied, &run.PatchesRejected, &run.DiagnosticsJSON, &run.CreatedBy, &run.CreatedAt)
	if err == sql.ErrNoRows {
		return domain.ImportRun{}, ErrNotFound
	}
	return run, err
}

// ListImportRuns returns the runs for a vacancy, newest first.
func (r Repo) ListImportRuns(ctx context.Context, vacancyID string) ([]domain.ImportRun, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,vacancy_id,source,rows_read,rows_mapped,patches_applied,patches_rejected,diagnostics_json,created_by,created_at
FROM import_runs WHERE vacancy_id=? ORDER BY created_at DESC, id DESC`, vacancyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.ImportRun{}
	for rows.Next() {
		var run domain.ImportRun
		if err := rows.Scan(&run.ID, &run.VacancyID, &run.Source, &run.RowsRead, &run.RowsMapped, &run.PatchesApplied, &run.PatchesRejected, &run.DiagnosticsJSON, &run.CreatedBy, &run.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, run)
	}
	return res, rows.Err()
}
