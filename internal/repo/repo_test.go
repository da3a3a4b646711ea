package repo

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vacancyline/internal/applications"
	"vacancyline/internal/config"
	"vacancyline/internal/db"
	"vacancyline/internal/domain"
	"vacancyline/internal/migrate"
)

func newRepo(t *testing.T) Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return Repo{DB: conn}
}

func TestVacancyAndTaskStates(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	v := domain.Vacancy{
		ID: "vac-1", UnitID: "unit-4b", VacancyStart: "2025-09-24", TargetMoveIn: "2025-10-08",
		BlueprintVersion: "1.0.0", Workflow: "vacancy", CreatedAt: "2025-09-24T10:00:00Z",
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, r.InsertVacancyTx(ctx, tx, v))
	done := "2025-09-25"
	require.NoError(t, r.UpsertTaskStatesTx(ctx, tx, []domain.TaskState{
		{VacancyID: "vac-1", TaskID: "marketing_publish_listing", Status: "complete", CompletedOn: &done, UpdatedAt: "2025-09-25T09:00:00Z"},
		{VacancyID: "vac-1", TaskID: "leasing_collect_funds", Status: "pending", UpdatedAt: "2025-09-25T09:00:00Z"},
	}))
	require.NoError(t, r.UpsertTaskStatesTx(ctx, tx, []domain.TaskState{
		{VacancyID: "vac-1", TaskID: "leasing_collect_funds", Status: "in_progress", UpdatedAt: "2025-09-26T09:00:00Z"},
	}))
	require.NoError(t, tx.Commit())

	got, err := r.GetVacancy(ctx, "vac-1")
	require.NoError(t, err)
	assert.Equal(t, v, got)
	_, err = r.GetVacancy(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	states, err := r.ListTaskStates(ctx, "vac-1")
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "leasing_collect_funds", states[0].TaskID)
	assert.Equal(t, "in_progress", states[0].Status)
	require.NotNil(t, states[1].CompletedOn)
	assert.Equal(t, "2025-09-25", *states[1].CompletedOn)

	list, err := r.ListVacancies(ctx, VacancyFilters{UnitID: "unit-4b"})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	list, err = r.ListVacancies(ctx, VacancyFilters{UnitID: "unit-9"})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestWorkspaceConfigRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	_, err := r.GetWorkspaceConfig(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	cfg := config.Default("north-side")
	cfg.Report.MaxBlockers = 3
	require.NoError(t, r.UpsertWorkspaceConfig(ctx, cfg))
	got, err := r.GetWorkspaceConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	renamed := config.Default("south-side")
	require.NoError(t, r.UpsertWorkspaceConfig(ctx, renamed))
	got, err = r.GetWorkspaceConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "south-side", got.Workspace.ID)
}

func TestApplicationStore(t *testing.T) {
	ctx := context.Background()
	store := newRepo(t).Applications()
	submitted := time.Date(2025, 9, 30, 15, 0, 0, 0, time.UTC)
	rec := applications.Record{
		ID:          "app-1",
		Application: applications.Application{ApplicantID: "a", UnitID: "u", MonthlyIncome: 5000, RequestedRent: 1200},
		Status:      applications.StatusSubmitted,
		SubmittedAt: submitted,
	}
	require.NoError(t, store.Create(ctx, rec))
	assert.ErrorIs(t, store.Create(ctx, rec), applications.ErrConflict)

	dup := rec
	dup.ID = "app-2"
	assert.ErrorIs(t, store.Create(ctx, dup), applications.ErrConflict, "applicant and unit are unique")

	evaluated := submitted.Add(time.Hour)
	rec.Status = applications.StatusApproved
	rec.Components = []applications.ScoreComponent{{Factor: applications.FactorRentToIncome, Points: 30, Justification: "ok"}}
	rec.Decision = &applications.Decision{Outcome: applications.OutcomeApproved, Rationale: "fine", TotalScore: 30}
	rec.EvaluatedAt = &evaluated
	require.NoError(t, store.Update(ctx, rec))

	got, err := store.Get(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, rec.Decision, got.Decision)
	assert.True(t, got.EvaluatedAt.Equal(evaluated))
	assert.Equal(t, rec.Components, got.Components)

	approved, err := store.ListByStatus(ctx, applications.StatusApproved, 0)
	require.NoError(t, err)
	assert.Len(t, approved, 1)

	_, err = store.Get(ctx, "nope")
	assert.ErrorIs(t, err, applications.ErrNotFound)
	missing := rec
	missing.ID = "nope"
	assert.ErrorIs(t, store.Update(ctx, missing), applications.ErrNotFound)
}

func TestEventsPaging(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	for i, typ := range []string{"vacancy.created", "alert.applicant_approved", "task.status_changed", "alert.applicant_denied"} {
		_, err := r.DB.ExecContext(ctx, `INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
			"2025-09-24T10:00:00Z", typ, "vacancy", nil, "tester", `{"n":`+string(rune('0'+i))+`}`)
		require.NoError(t, err)
	}
	alerts, err := r.EventsAfter(ctx, 10, 0, EventFilters{TypePrefix: "alert."})
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "alert.applicant_approved", alerts[0].Type)
	assert.Equal(t, "", alerts[0].EntityID)

	latest, err := r.LatestEventsFrom(ctx, 2, 4, EventFilters{})
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, int64(3), latest[0].ID)

	latestID, err := r.LatestEventID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), latestID)

	_, err = r.AlertCursor(ctx, "appfolio")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, r.SetAlertCursor(ctx, "appfolio", 2))
	require.NoError(t, r.SetAlertCursor(ctx, "appfolio", 4))
	cur, err := r.AlertCursor(ctx, "appfolio")
	require.NoError(t, err)
	assert.Equal(t, int64(4), cur)
}

func TestStorageFailuresPropagate(t *testing.T) {
	ctx := context.Background()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()
	r := Repo{DB: conn}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT config_json FROM workspace_config`)).
		WillReturnRows(sqlmock.NewRows([]string{"config_json"}))
	_, err = r.GetWorkspaceConfig(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	boom := errors.New("disk I/O error")
	mock.ExpectQuery(regexp.QuoteMeta(`FROM vacancy_tasks WHERE vacancy_id=?`)).
		WithArgs("vac-1").
		WillReturnError(boom)
	_, err = r.ListTaskStates(ctx, "vac-1")
	assert.ErrorIs(t, err, boom)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO applications`)).
		WillReturnError(errors.New("UNIQUE constraint failed: applications.applicant_id, applications.unit_id"))
	err = r.Applications().Create(ctx, applications.Record{ID: "x", SubmittedAt: time.Now()})
	assert.ErrorIs(t, err, applications.ErrConflict)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO applications`)).WillReturnError(boom)
	err = r.Applications().Create(ctx, applications.Record{ID: "y", SubmittedAt: time.Now()})
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "insert application")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE vacancies SET workflow=?`)).
		WithArgs("new_resident", "vac-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	tx, err := conn.BeginTx(ctx, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, r.UpdateVacancyWorkflowTx(ctx, tx, "vac-1", "new_resident"), ErrNotFound)
	require.NoError(t, tx.Rollback())

	assert.NoError(t, mock.ExpectationsWereMet())
}
