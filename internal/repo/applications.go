package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"vacancyline/internal/applications"
)

// ApplicationStore persists application records in SQLite.
type ApplicationStore struct {
	DB *sql.DB
}

func (r Repo) Applications() ApplicationStore {
	return ApplicationStore{DB: r.DB}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type applicationRow struct {
	application string
	components  string
	decision    any
	evaluatedAt any
}

func encodeApplication(rec applications.Record) (applicationRow, error) {
	var row applicationRow
	app, err := json.Marshal(rec.Application)
	if err != nil {
		return row, errors.Wrap(err, "encode application")
	}
	components := rec.Components
	if components == nil {
		components = []applications.ScoreComponent{}
	}
	comps, err := json.Marshal(components)
	if err != nil {
		return row, errors.Wrap(err, "encode score components")
	}
	row.application = string(app)
	row.components = string(comps)
	if rec.Decision != nil {
		d, err := json.Marshal(rec.Decision)
		if err != nil {
			return row, errors.Wrap(err, "encode decision")
		}
		row.decision = string(d)
	}
	if rec.EvaluatedAt != nil {
		row.evaluatedAt = rec.EvaluatedAt.UTC().Format(time.RFC3339Nano)
	}
	return row, nil
}

func (s ApplicationStore) Create(ctx context.Context, rec applications.Record) error {
	row, err := encodeApplication(rec)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `INSERT INTO applications(id,applicant_id,unit_id,status,application_json,components_json,decision_json,submitted_at,evaluated_at)
VALUES (?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.Application.ApplicantID, rec.Application.UnitID, string(rec.Status), row.application, row.components, row.decision,
		rec.SubmittedAt.UTC().Format(time.RFC3339Nano), row.evaluatedAt)
	if isUniqueViolation(err) {
		return applications.ErrConflict
	}
	return errors.Wrap(err, "insert application")
}

func (s ApplicationStore) Update(ctx context.Context, rec applications.Record) error {
	row, err := encodeApplication(rec)
	if err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE applications SET status=?, application_json=?, components_json=?, decision_json=?, evaluated_at=? WHERE id=?`,
		string(rec.Status), row.application, row.components, row.decision, row.evaluatedAt, rec.ID)
	if err != nil {
		return errors.Wrap(err, "update application")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return applications.ErrNotFound
	}
	return nil
}

const applicationColumns = `id,status,application_json,components_json,decision_json,submitted_at,evaluated_at`

func scanApplication(row scanner) (applications.Record, error) {
	var (
		rec         applications.Record
		status      string
		app, comps  string
		decision    sql.NullString
		submitted   string
		evaluatedAt sql.NullString
	)
	if err := row.Scan(&rec.ID, &status, &app, &comps, &decision, &submitted, &evaluatedAt); err != nil {
		if err == sql.ErrNoRows {
			return rec, applications.ErrNotFound
		}
		return rec, err
	}
	rec.Status = applications.Status(status)
	if err := json.Unmarshal([]byte(app), &rec.Application); err != nil {
		return rec, errors.Wrapf(err, "decode application %s", rec.ID)
	}
	if err := json.Unmarshal([]byte(comps), &rec.Components); err != nil {
		return rec, errors.Wrapf(err, "decode components %s", rec.ID)
	}
	if decision.Valid {
		var d applications.Decision
		if err := json.Unmarshal([]byte(decision.String), &d); err != nil {
			return rec, errors.Wrapf(err, "decode decision %s", rec.ID)
		}
		rec.Decision = &d
	}
	ts, err := time.Parse(time.RFC3339Nano, submitted)
	if err != nil {
		return rec, errors.Wrapf(err, "parse submitted_at %s", rec.ID)
	}
	rec.SubmittedAt = ts
	if evaluatedAt.Valid {
		ts, err := time.Parse(time.RFC3339Nano, evaluatedAt.String)
		if err != nil {
			return rec, errors.Wrapf(err, "parse evaluated_at %s", rec.ID)
		}
		rec.EvaluatedAt = &ts
	}
	return rec, nil
}

func (s ApplicationStore) Get(ctx context.Context, id string) (applications.Record, error) {
	return scanApplication(s.DB.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id=?`, id))
}

func (s ApplicationStore) ListByStatus(ctx context.Context, status applications.Status, limit int) ([]applications.Record, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE status=? ORDER BY submitted_at ASC, id ASC`
	args := []any{string(status)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list applications")
	}
	defer rows.Close()
	res := []applications.Record{}
	for rows.Next() {
		rec, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}
