package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"vacancyline/internal/config"
	"vacancyline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func (r Repo) UpsertWorkspaceConfig(ctx context.Context, cfg *config.Config) error {
	return upsertWorkspaceConfig(ctx, r.DB, nil, cfg)
}

func (r Repo) UpsertWorkspaceConfigTx(ctx context.Context, tx *sql.Tx, cfg *config.Config) error {
	return upsertWorkspaceConfig(ctx, nil, tx, cfg)
}

func upsertWorkspaceConfig(ctx context.Context, db *sql.DB, tx *sql.Tx, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	exec := func(query string, args ...any) (sql.Result, error) {
		if tx != nil {
			return tx.ExecContext(ctx, query, args...)
		}
		return db.ExecContext(ctx, query, args...)
	}
	// A workspace database holds a single config row.
	if _, err := exec(`DELETE FROM workspace_config WHERE workspace_id<>?`, cfg.Workspace.ID); err != nil {
		return err
	}
	_, err = exec(`INSERT INTO workspace_config(workspace_id,config_json,created_at,updated_at) VALUES (?,?,?,?)
ON CONFLICT(workspace_id) DO UPDATE SET config_json=excluded.config_json, updated_at=excluded.updated_at`, cfg.Workspace.ID, string(payload), now, now)
	return err
}

func (r Repo) GetWorkspaceConfig(ctx context.Context) (*config.Config, error) {
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT config_json FROM workspace_config LIMIT 1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return nil, err
	}
	return &cfg, cfg.Validate()
}

func (r Repo) InsertVacancyTx(ctx context.Context, tx *sql.Tx, v domain.Vacancy) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO vacancies(id,unit_id,vacancy_start,target_move_in,blueprint_version,workflow,created_at) VALUES (?,?,?,?,?,?,?)`,
		v.ID, v.UnitID, v.VacancyStart, v.TargetMoveIn, v.BlueprintVersion, v.Workflow, v.CreatedAt)
	return err
}

const vacancyColumns = `id,unit_id,vacancy_start,target_move_in,blueprint_version,workflow,created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanVacancy(row scanner) (domain.Vacancy, error) {
	var v domain.Vacancy
	err := row.Scan(&v.ID, &v.UnitID, &v.VacancyStart, &v.TargetMoveIn, &v.BlueprintVersion, &v.Workflow, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return v, ErrNotFound
	}
	return v, err
}

func (r Repo) GetVacancy(ctx context.Context, id string) (domain.Vacancy, error) {
	return scanVacancy(r.DB.QueryRowContext(ctx, `SELECT `+vacancyColumns+` FROM vacancies WHERE id=?`, id))
}

func (r Repo) GetVacancyTx(ctx context.Context, tx *sql.Tx, id string) (domain.Vacancy, error) {
	return scanVacancy(tx.QueryRowContext(ctx, `SELECT `+vacancyColumns+` FROM vacancies WHERE id=?`, id))
}

func (r Repo) UpdateVacancyWorkflowTx(ctx context.Context, tx *sql.Tx, id, workflow string) error {
	res, err := tx.ExecContext(ctx, `UPDATE vacancies SET workflow=? WHERE id=?`, workflow, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type VacancyFilters struct {
	UnitID   string
	Workflow string
	Limit    int
	// Cursor is the created_at/id pair of the last row of the previous page.
	CursorCreatedAt string
	CursorID        string
}

// ListVacancies returns the newest vacancies first.
func (r Repo) ListVacancies(ctx context.Context, f VacancyFilters) ([]domain.Vacancy, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.UnitID != "" {
		clauses = append(clauses, "unit_id=?")
		args = append(args, f.UnitID)
	}
	if f.Workflow != "" {
		clauses = append(clauses, "workflow=?")
		args = append(args, f.Workflow)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	query := fmt.Sprintf(`SELECT %s FROM vacancies WHERE %s ORDER BY created_at DESC, id DESC`, vacancyColumns, strings.Join(clauses, " AND "))
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Vacancy{}
	for rows.Next() {
		v, err := scanVacancy(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

// UpsertTaskStatesTx stores the given states, replacing earlier rows per task.
func (r Repo) UpsertTaskStatesTx(ctx context.Context, tx *sql.Tx, states []domain.TaskState) error {
	for _, s := range states {
		_, err := tx.ExecContext(ctx, `INSERT INTO vacancy_tasks(vacancy_id,task_id,status,completed_on,updated_at) VALUES (?,?,?,?,?)
ON CONFLICT(vacancy_id,task_id) DO UPDATE SET status=excluded.status, completed_on=excluded.completed_on, updated_at=excluded.updated_at`,
			s.VacancyID, s.TaskID, s.Status, nullableStringPtr(s.CompletedOn), s.UpdatedAt)
		if err != nil {
			return fmt.Errorf("upsert task %s: %w", s.TaskID, err)
		}
	}
	return nil
}

func (r Repo) ListTaskStates(ctx context.Context, vacancyID string) ([]domain.TaskState, error) {
	return listTaskStates(ctx, r.DB, vacancyID)
}

func (r Repo) ListTaskStatesTx(ctx context.Context, tx *sql.Tx, vacancyID string) ([]domain.TaskState, error) {
	return listTaskStates(ctx, tx, vacancyID)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listTaskStates(ctx context.Context, q querier, vacancyID string) ([]domain.TaskState, error) {
	rows, err := q.QueryContext(ctx, `SELECT vacancy_id,task_id,status,completed_on,updated_at FROM vacancy_tasks WHERE vacancy_id=? ORDER BY task_id`, vacancyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.TaskState{}
	for rows.Next() {
		var s domain.TaskState
		var completed sql.NullString
		if err := rows.Scan(&s.VacancyID, &s.TaskID, &s.Status, &completed, &s.UpdatedAt); err != nil {
			return nil, err
		}
		if completed.Valid {
			v := completed.String
			s.CompletedOn = &v
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
