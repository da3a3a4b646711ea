package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"vacancyline/internal/alerts"
	"vacancyline/internal/applications"
	"vacancyline/internal/blueprint"
	"vacancyline/internal/config"
	"vacancyline/internal/domain"
	"vacancyline/internal/events"
	"vacancyline/internal/importer"
	"vacancyline/internal/lifecycle"
	"vacancyline/internal/log"
	"vacancyline/internal/repo"
	"vacancyline/internal/syncutil"
	"vacancyline/internal/workflow"
)

type Engine struct {
	DB        *sql.DB
	Repo      repo.Repo
	Events    events.Writer
	Config    *config.Config
	Blueprint *blueprint.Blueprint
	Apps      *applications.Service
	Now       func() time.Time
	Log       *logrus.Logger

	locks *syncutil.KeyedMutex
}

func New(db *sql.DB, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default("default")
	}
	r := repo.Repo{DB: db}
	ev := events.Writer{DB: db}
	return Engine{
		DB:        db,
		Repo:      r,
		Events:    ev,
		Config:    cfg,
		Blueprint: blueprint.Standard(),
		Apps:      applications.NewService(r.Applications(), alerts.Outbox{Events: ev}, cfg.Applications),
		Now:       time.Now,
		Log:       log.GetLogger(),
		locks:     &syncutil.KeyedMutex{},
	}
}

// WithClock returns a copy of the engine whose timestamps come from now.
func (e Engine) WithClock(now func() time.Time) Engine {
	e.Now = now
	e.Events.Now = now
	if e.Apps != nil {
		svc := applications.NewService(e.Apps.Repo, alerts.Outbox{Events: e.Events}, e.Apps.Config)
		svc.Now = now
		e.Apps = svc
	}
	return e
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

// Today is the current calendar day in the workspace timezone.
func (e Engine) Today() time.Time {
	loc := time.UTC
	if e.Config != nil {
		loc = e.Config.Location()
	}
	y, m, d := e.now().In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (e Engine) logger() *logrus.Logger {
	if e.Log != nil {
		return e.Log
	}
	return log.GetLogger()
}

func (e Engine) lock(key string) func() {
	if e.locks == nil {
		return func() {}
	}
	return e.locks.Lock(key)
}

// Mapping builds the name normalization table with configured aliases.
func (e Engine) Mapping() (*importer.NormalizationMap, error) {
	m, err := importer.StandardMapping(e.Blueprint)
	if err != nil {
		return nil, err
	}
	if e.Config == nil || len(e.Config.Import.Aliases) == 0 {
		return m, nil
	}
	return m.WithAliases(e.Config.Import.MappingEntries())
}

// checkBlueprint rejects stored vacancies whose blueprint version falls outside the
// configured constraint.
func (e Engine) checkBlueprint(version string) error {
	if e.Config == nil || e.Config.Blueprint.Constraint == "" {
		return nil
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("stored blueprint version %q: %w", version, err)
	}
	c, err := semver.NewConstraint(e.Config.Blueprint.Constraint)
	if err != nil {
		return fmt.Errorf("blueprint constraint: %w", err)
	}
	if !c.Check(v) {
		return fmt.Errorf("blueprint %s does not satisfy workspace constraint %s", version, e.Config.Blueprint.Constraint)
	}
	return nil
}

type VacancyCreateOptions struct {
	UnitID       string
	VacancyStart string
	TargetMoveIn string
	ActorID      string
}

// VacancyDetail is a stored vacancy with its persisted task states.
type VacancyDetail struct {
	Vacancy domain.Vacancy     `json:"vacancy"`
	Tasks   []domain.TaskState `json:"tasks"`
}

func parseWindow(start, moveIn string) (domain.VacancyWindow, error) {
	s, err := domain.ParseDate("vacancy_start", start)
	if err != nil {
		return domain.VacancyWindow{}, err
	}
	m, err := domain.ParseDate("target_move_in", moveIn)
	if err != nil {
		return domain.VacancyWindow{}, err
	}
	return domain.NewVacancyWindow(s, m)
}

func (e Engine) CreateVacancy(ctx context.Context, opts VacancyCreateOptions) (VacancyDetail, error) {
	if opts.UnitID == "" {
		return VacancyDetail{}, &domain.ValidationError{Field: "unit_id", Message: "unit_id is required"}
	}
	window, err := parseWindow(opts.VacancyStart, opts.TargetMoveIn)
	if err != nil {
		return VacancyDetail{}, err
	}
	if err := e.checkBlueprint(e.Blueprint.Version()); err != nil {
		return VacancyDetail{}, err
	}
	inst, err := workflow.New(e.Blueprint, window)
	if err != nil {
		return VacancyDetail{}, err
	}
	now := e.stamp()
	v := domain.Vacancy{
		ID:               uuid.NewString(),
		UnitID:           opts.UnitID,
		VacancyStart:     domain.FormatDate(window.VacancyStart),
		TargetMoveIn:     domain.FormatDate(window.TargetMoveIn),
		BlueprintVersion: e.Blueprint.Version(),
		Workflow:         string(lifecycle.Vacancy),
		CreatedAt:        now,
	}
	states := stamped(inst.Snapshot().States(v.ID), now)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return VacancyDetail{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertVacancyTx(ctx, tx, v); err != nil {
		return VacancyDetail{}, fmt.Errorf("insert vacancy: %w", err)
	}
	if err := e.Repo.UpsertTaskStatesTx(ctx, tx, states); err != nil {
		return VacancyDetail{}, err
	}
	if err := e.Events.Append(ctx, tx, events.VacancyCreated, "vacancy", v.ID, opts.ActorID, events.EventPayload{
		"unit_id":           v.UnitID,
		"vacancy_start":     v.VacancyStart,
		"target_move_in":    v.TargetMoveIn,
		"blueprint_version": v.BlueprintVersion,
	}); err != nil {
		return VacancyDetail{}, err
	}
	if err := tx.Commit(); err != nil {
		return VacancyDetail{}, err
	}
	return VacancyDetail{Vacancy: v, Tasks: states}, nil
}

func stamped(states []domain.TaskState, ts string) []domain.TaskState {
	for i := range states {
		states[i].UpdatedAt = ts
	}
	return states
}

func (e Engine) GetVacancy(ctx context.Context, id string) (VacancyDetail, error) {
	v, err := e.Repo.GetVacancy(ctx, id)
	if err != nil {
		return VacancyDetail{}, err
	}
	states, err := e.Repo.ListTaskStates(ctx, id)
	if err != nil {
		return VacancyDetail{}, err
	}
	return VacancyDetail{Vacancy: v, Tasks: states}, nil
}

func (e Engine) ListVacancies(ctx context.Context, f repo.VacancyFilters) ([]domain.Vacancy, error) {
	return e.Repo.ListVacancies(ctx, f)
}

// LoadInstance rebuilds the workflow instance of a stored vacancy.
func (e Engine) LoadInstance(ctx context.Context, id string) (domain.Vacancy, *workflow.Instance, error) {
	v, err := e.Repo.GetVacancy(ctx, id)
	if err != nil {
		return domain.Vacancy{}, nil, err
	}
	inst, err := e.restore(ctx, v, e.Repo.ListTaskStates)
	return v, inst, err
}

func (e Engine) restore(ctx context.Context, v domain.Vacancy, list func(context.Context, string) ([]domain.TaskState, error)) (*workflow.Instance, error) {
	if err := e.checkBlueprint(v.BlueprintVersion); err != nil {
		return nil, err
	}
	window, err := parseWindow(v.VacancyStart, v.TargetMoveIn)
	if err != nil {
		return nil, err
	}
	inst, err := workflow.New(e.Blueprint, window)
	if err != nil {
		return nil, err
	}
	states, err := list(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	if err := inst.Restore(states); err != nil {
		return nil, fmt.Errorf("vacancy %s: %w", v.ID, err)
	}
	return inst, nil
}

type TaskStatusOptions struct {
	VacancyID string
	TaskID    string
	Status    string
	// CompletedOn defaults to today when Status is complete.
	CompletedOn string
	ActorID     string
}

type TaskUpdateResult struct {
	Vacancy  domain.Vacancy   `json:"vacancy"`
	Task     domain.TaskState `json:"task"`
	Advanced *lifecycle.Edge  `json:"lifecycle_advanced,omitempty"`
}

// SetTaskStatus applies one status change to a stored vacancy. Updates to the same
// vacancy are serialized.
func (e Engine) SetTaskStatus(ctx context.Context, opts TaskStatusOptions) (TaskUpdateResult, error) {
	status, err := domain.ParseTaskStatus(opts.Status)
	if err != nil {
		return TaskUpdateResult{}, err
	}
	var completedOn *time.Time
	switch {
	case opts.CompletedOn != "":
		d, err := domain.ParseDate("completed_on", opts.CompletedOn)
		if err != nil {
			return TaskUpdateResult{}, err
		}
		completedOn = &d
	case status == domain.StatusComplete:
		d := e.Today()
		completedOn = &d
	}

	unlock := e.lock(opts.VacancyID)
	defer unlock()

	v, inst, err := e.LoadInstance(ctx, opts.VacancyID)
	if err != nil {
		return TaskUpdateResult{}, err
	}
	before, err := inst.Task(opts.TaskID)
	if err != nil {
		return TaskUpdateResult{}, err
	}
	if err := inst.ApplyStatus(opts.TaskID, status, completedOn); err != nil {
		return TaskUpdateResult{}, err
	}
	snap := inst.Snapshot()
	now := e.stamp()
	state := pick(snap.States(v.ID), opts.TaskID)
	state.UpdatedAt = now

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return TaskUpdateResult{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertTaskStatesTx(ctx, tx, []domain.TaskState{state}); err != nil {
		return TaskUpdateResult{}, err
	}
	payload := events.EventPayload{"task_id": opts.TaskID, "from": string(before.Status), "to": string(status)}
	if state.CompletedOn != nil {
		payload["completed_on"] = *state.CompletedOn
	}
	if err := e.Events.Append(ctx, tx, events.TaskStatusChanged, "vacancy", v.ID, opts.ActorID, payload); err != nil {
		return TaskUpdateResult{}, err
	}
	edge, err := e.advanceIfHandedOff(ctx, tx, &v, snap, opts.ActorID)
	if err != nil {
		return TaskUpdateResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return TaskUpdateResult{}, err
	}
	return TaskUpdateResult{Vacancy: v, Task: state, Advanced: edge}, nil
}

func pick(states []domain.TaskState, taskID string) domain.TaskState {
	for _, s := range states {
		if s.TaskID == taskID {
			return s
		}
	}
	return domain.TaskState{TaskID: taskID}
}

// advanceIfHandedOff fires move_in_complete once every handoff task is complete.
func (e Engine) advanceIfHandedOff(ctx context.Context, tx *sql.Tx, v *domain.Vacancy, snap workflow.Snapshot, actorID string) (*lifecycle.Edge, error) {
	if lifecycle.WorkflowType(v.Workflow) != lifecycle.Vacancy {
		return nil, nil
	}
	handoff := 0
	for _, t := range snap.Tasks {
		if t.Template.Stage != domain.StageHandoff {
			continue
		}
		if t.Status != domain.StatusComplete {
			return nil, nil
		}
		handoff++
	}
	if handoff == 0 {
		return nil, nil
	}
	return e.advanceTx(ctx, tx, v, lifecycle.MoveInComplete, actorID)
}

func (e Engine) advanceTx(ctx context.Context, tx *sql.Tx, v *domain.Vacancy, trigger lifecycle.Trigger, actorID string) (*lifecycle.Edge, error) {
	from := lifecycle.WorkflowType(v.Workflow)
	to, err := lifecycle.Next(from, trigger)
	if err != nil {
		return nil, err
	}
	if err := e.Repo.UpdateVacancyWorkflowTx(ctx, tx, v.ID, string(to)); err != nil {
		return nil, err
	}
	if err := e.Events.Append(ctx, tx, events.LifecycleAdvanced, "vacancy", v.ID, actorID, events.EventPayload{
		"from": string(from), "trigger": string(trigger), "to": string(to),
	}); err != nil {
		return nil, err
	}
	v.Workflow = string(to)
	e.logger().WithFields(logrus.Fields{"vacancy_id": v.ID, "from": from, "to": to, "trigger": trigger}).Info("workflow advanced")
	return &lifecycle.Edge{From: from, Trigger: trigger, To: to}, nil
}

// AdvanceWorkflow fires a lifecycle trigger on a stored vacancy.
func (e Engine) AdvanceWorkflow(ctx context.Context, vacancyID string, trigger lifecycle.Trigger, actorID string) (domain.Vacancy, lifecycle.Edge, error) {
	unlock := e.lock(vacancyID)
	defer unlock()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Vacancy{}, lifecycle.Edge{}, err
	}
	defer tx.Rollback()
	v, err := e.Repo.GetVacancyTx(ctx, tx, vacancyID)
	if err != nil {
		return domain.Vacancy{}, lifecycle.Edge{}, err
	}
	edge, err := e.advanceTx(ctx, tx, &v, trigger, actorID)
	if err != nil {
		return domain.Vacancy{}, lifecycle.Edge{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Vacancy{}, lifecycle.Edge{}, err
	}
	return v, *edge, nil
}

// IsNotFound reports whether err means a missing vacancy, task or application.
func IsNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound) || errors.Is(err, applications.ErrNotFound) || errors.Is(err, domain.ErrUnknownTask)
}
