package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"vacancyline/internal/applications"
	"vacancyline/internal/config"
	"vacancyline/internal/db"
	"vacancyline/internal/domain"
	"vacancyline/internal/engine"
	"vacancyline/internal/events"
	"vacancyline/internal/lifecycle"
	"vacancyline/internal/marketing"
	"vacancyline/internal/migrate"
	"vacancyline/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("ws-1")
	eng := engine.New(conn, cfg).WithClock(func() time.Time { return time.Date(2025, 9, 28, 14, 0, 0, 0, time.UTC) })
	ctx := context.Background()
	if err := eng.Repo.UpsertWorkspaceConfig(ctx, cfg); err != nil {
		t.Fatalf("seed config: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func (env testEnv) createVacancy(t *testing.T) engine.VacancyDetail {
	t.Helper()
	v, err := env.Engine.CreateVacancy(env.Ctx, engine.VacancyCreateOptions{
		UnitID: "unit-4b", VacancyStart: "2025-09-24", TargetMoveIn: "2025-10-08", ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("create vacancy: %v", err)
	}
	return v
}

const apolloExport = "Name,Completed At,Created At,Last Modified\n" +
	"Create and Publish Listing – Leasing Agent,2025-09-24,2025-09-20T10:00:00Z,2025-09-24T16:00:00Z\n" +
	"Update Vacancy in AppFolio - Leasing Agent,2025-09-24T18:30:00Z,2025-09-20T10:00:00Z,2025-09-24T18:30:00Z\n" +
	"Manage Inquiries & Schedule Showings - Leasing Agent,2025-09-27,2025-09-20T10:00:00Z,2025-09-27T09:00:00Z\n" +
	"Process Rental Applications,,2025-09-20T10:00:00Z,2025-09-29T12:00:00Z\n" +
	"Collect Funds - Property Manager / Accounting,,2025-09-20T10:00:00Z,2025-09-20T10:00:00Z\n" +
	"Water the office plants,2025-09-22,2025-09-20T10:00:00Z,2025-09-22T10:00:00Z\n"

func TestCreateVacancyPersistsPendingTasks(t *testing.T) {
	env := newTestEnv(t)
	v := env.createVacancy(t)
	if v.Vacancy.Workflow != string(lifecycle.Vacancy) || v.Vacancy.BlueprintVersion != "1.0.0" {
		t.Fatalf("unexpected vacancy: %+v", v.Vacancy)
	}
	got, err := env.Engine.GetVacancy(env.Ctx, v.Vacancy.ID)
	if err != nil {
		t.Fatalf("get vacancy: %v", err)
	}
	if len(got.Tasks) != 10 {
		t.Fatalf("expected 10 task states, got %d", len(got.Tasks))
	}
	for _, st := range got.Tasks {
		if st.Status != string(domain.StatusPending) || st.CompletedOn != nil {
			t.Fatalf("expected pending task, got %+v", st)
		}
	}
	evts, err := env.Engine.ListEvents(env.Ctx, 10, 0, repo.EventFilters{Type: events.VacancyCreated})
	if err != nil || len(evts) != 1 || evts[0].EntityID != v.Vacancy.ID {
		t.Fatalf("expected vacancy.created event, got %+v (%v)", evts, err)
	}
}

func TestCreateVacancyRejectsBadWindow(t *testing.T) {
	env := newTestEnv(t)
	var verr *domain.ValidationError
	_, err := env.Engine.CreateVacancy(env.Ctx, engine.VacancyCreateOptions{UnitID: "u", VacancyStart: "2025-10-08", TargetMoveIn: "2025-09-24"})
	if !errors.As(err, &verr) || verr.Field != "target_move_in" {
		t.Fatalf("expected window validation error, got %v", err)
	}
	_, err = env.Engine.CreateVacancy(env.Ctx, engine.VacancyCreateOptions{VacancyStart: "2025-09-24", TargetMoveIn: "2025-10-08"})
	if !errors.As(err, &verr) || verr.Field != "unit_id" {
		t.Fatalf("expected unit_id validation error, got %v", err)
	}
	_, err = env.Engine.CreateVacancy(env.Ctx, engine.VacancyCreateOptions{UnitID: "u", VacancyStart: "09/24/2025", TargetMoveIn: "2025-10-08"})
	if !errors.As(err, &verr) {
		t.Fatalf("expected date validation error, got %v", err)
	}
	list, _ := env.Engine.ListVacancies(env.Ctx, repo.VacancyFilters{})
	if len(list) != 0 {
		t.Fatalf("rejected vacancies must not be stored")
	}
}

func TestSetTaskStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	v := env.createVacancy(t)
	id := v.Vacancy.ID

	res, err := env.Engine.SetTaskStatus(env.Ctx, engine.TaskStatusOptions{VacancyID: id, TaskID: "leasing_prepare_agreement", Status: "in_progress"})
	if err != nil || res.Task.Status != "in_progress" {
		t.Fatalf("to in_progress: %+v %v", res, err)
	}
	res, err = env.Engine.SetTaskStatus(env.Ctx, engine.TaskStatusOptions{VacancyID: id, TaskID: "leasing_prepare_agreement", Status: "complete"})
	if err != nil {
		t.Fatalf("to complete: %v", err)
	}
	if res.Task.CompletedOn == nil || *res.Task.CompletedOn != "2025-09-28" {
		t.Fatalf("completed_on should default to today, got %+v", res.Task)
	}
	if res.Advanced != nil {
		t.Fatalf("lifecycle must not advance before handoff")
	}

	_, err = env.Engine.SetTaskStatus(env.Ctx, engine.TaskStatusOptions{VacancyID: id, TaskID: "leasing_prepare_agreement", Status: "pending"})
	var terr *domain.InvalidTransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	_, err = env.Engine.SetTaskStatus(env.Ctx, engine.TaskStatusOptions{VacancyID: id, TaskID: "marketing_publish_listing", Status: "in_progress", CompletedOn: "2025-09-25"})
	if !errors.As(err, &terr) {
		t.Fatalf("completed_on on a non-complete status must be rejected, got %v", err)
	}
	_, err = env.Engine.SetTaskStatus(env.Ctx, engine.TaskStatusOptions{VacancyID: id, TaskID: "paint_the_fence", Status: "complete"})
	if !errors.Is(err, domain.ErrUnknownTask) || !engine.IsNotFound(err) {
		t.Fatalf("expected unknown task, got %v", err)
	}
	_, err = env.Engine.SetTaskStatus(env.Ctx, engine.TaskStatusOptions{VacancyID: "missing", TaskID: "leasing_prepare_agreement", Status: "complete"})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	got, err := env.Engine.GetVacancy(env.Ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	for _, st := range got.Tasks {
		if st.TaskID == "leasing_prepare_agreement" && st.Status != "complete" {
			t.Fatalf("rejected updates must keep the stored state, got %+v", st)
		}
	}
}

func TestHandoffAdvancesLifecycle(t *testing.T) {
	env := newTestEnv(t)
	v := env.createVacancy(t)
	res, err := env.Engine.SetTaskStatus(env.Ctx, engine.TaskStatusOptions{
		VacancyID: v.Vacancy.ID, TaskID: "handoff_start_new_resident_workflow", Status: "complete", CompletedOn: "2025-10-08", ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("complete handoff: %v", err)
	}
	if res.Advanced == nil || res.Advanced.To != lifecycle.NewResident || res.Advanced.Trigger != lifecycle.MoveInComplete {
		t.Fatalf("expected move_in_complete edge, got %+v", res.Advanced)
	}
	stored, err := env.Engine.Repo.GetVacancy(env.Ctx, v.Vacancy.ID)
	if err != nil || stored.Workflow != string(lifecycle.NewResident) {
		t.Fatalf("workflow not persisted: %+v %v", stored, err)
	}
	evts, _ := env.Engine.ListEvents(env.Ctx, 10, 0, repo.EventFilters{Type: events.LifecycleAdvanced})
	if len(evts) != 1 {
		t.Fatalf("expected one lifecycle event, got %d", len(evts))
	}

	_, edge, err := env.Engine.AdvanceWorkflow(env.Ctx, v.Vacancy.ID, lifecycle.LeaseTermEnding, "tester")
	if err != nil || edge.To != lifecycle.Renewal {
		t.Fatalf("advance to renewal: %+v %v", edge, err)
	}
	_, _, err = env.Engine.AdvanceWorkflow(env.Ctx, v.Vacancy.ID, lifecycle.MakeReadyComplete, "tester")
	var uerr *lifecycle.UnknownTransitionError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected unknown transition, got %v", err)
	}
}

func TestImportCSVHydratesAndRecordsRun(t *testing.T) {
	env := newTestEnv(t)
	v := env.createVacancy(t)
	out, err := env.Engine.ImportCSV(env.Ctx, engine.ImportOptions{VacancyID: v.Vacancy.ID, Reader: strings.NewReader(apolloExport), ActorID: "tester"})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if out.Run.PatchesApplied != 4 || out.Run.PatchesRejected != 0 || out.Run.RowsRead != 6 {
		t.Fatalf("unexpected run: %+v", out.Run)
	}
	if out.Run.Source != "apollo" {
		t.Fatalf("source should default from config, got %q", out.Run.Source)
	}
	if !strings.Contains(out.Run.DiagnosticsJSON, "unmapped_row") {
		t.Fatalf("expected unmapped diagnostic, got %s", out.Run.DiagnosticsJSON)
	}

	rep, err := env.Engine.VacancyReport(env.Ctx, v.Vacancy.ID, "2025-10-02", false)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if rep.CompletedTasks != 3 || rep.Insights.ReadinessScore != 30 {
		t.Fatalf("unexpected report: %d complete, score %d", rep.CompletedTasks, rep.Insights.ReadinessScore)
	}
	for _, o := range rep.OverdueTasks {
		if o.Status == domain.StatusComplete {
			t.Fatalf("completed task reported overdue: %+v", o)
		}
	}

	again, err := env.Engine.ImportCSV(env.Ctx, engine.ImportOptions{VacancyID: v.Vacancy.ID, Source: "apollo-rerun", Reader: strings.NewReader(apolloExport)})
	if err != nil || again.Run.PatchesRejected != 0 {
		t.Fatalf("re-import should be idempotent: %+v %v", again.Run, err)
	}
	runs, err := env.Engine.ListImportRuns(env.Ctx, v.Vacancy.ID)
	if err != nil || len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d (%v)", len(runs), err)
	}
}

func TestImportCSVRejectsMissingNameColumn(t *testing.T) {
	env := newTestEnv(t)
	v := env.createVacancy(t)
	_, err := env.Engine.ImportCSV(env.Ctx, engine.ImportOptions{VacancyID: v.Vacancy.ID, Reader: strings.NewReader("Status,Completed At\ncomplete,2025-09-24\n")})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	runs, _ := env.Engine.ListImportRuns(env.Ctx, v.Vacancy.ID)
	if len(runs) != 0 {
		t.Fatalf("failed import must not record a run")
	}
}

func TestVacancyReportUntouched(t *testing.T) {
	env := newTestEnv(t)
	v := env.createVacancy(t)
	rep, err := env.Engine.VacancyReport(env.Ctx, v.Vacancy.ID, "", false)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if rep.AsOf != "2025-09-28" || rep.TotalTasks != 10 || rep.CompletedTasks != 0 {
		t.Fatalf("unexpected totals: %+v", rep)
	}
	if rep.Insights.ReadinessLevel != "at_risk" || rep.Tasks != nil {
		t.Fatalf("unexpected insights: %+v", rep.Insights)
	}
	if len(rep.OverdueTasks) != 5 {
		t.Fatalf("expected 5 overdue tasks, got %d", len(rep.OverdueTasks))
	}
	withTasks, err := env.Engine.VacancyReport(env.Ctx, v.Vacancy.ID, "2025-09-28", true)
	if err != nil || len(withTasks.Tasks) != 10 {
		t.Fatalf("expected task breakdown: %v", err)
	}
}

func TestBuildReportStateless(t *testing.T) {
	env := newTestEnv(t)
	out, err := env.Engine.BuildReport(engine.ReportRequest{VacancyStart: "2025-09-24", TargetMoveIn: "2025-10-08", Today: "2025-09-28"})
	if err != nil || out.DataSource != engine.DataSourceStandard || out.Import != nil {
		t.Fatalf("standard report: %+v %v", out, err)
	}
	out, err = env.Engine.BuildReport(engine.ReportRequest{VacancyStart: "2025-09-24", TargetMoveIn: "2025-10-08", Today: "2025-10-02", ApolloCSV: apolloExport, IncludeTasks: true})
	if err != nil {
		t.Fatalf("apollo report: %v", err)
	}
	if out.DataSource != engine.DataSourceApollo || out.Import == nil || out.Report.CompletedTasks != 3 || len(out.Report.Tasks) != 10 {
		t.Fatalf("unexpected apollo report: %+v", out)
	}
	_, err = env.Engine.BuildReport(engine.ReportRequest{VacancyStart: "2025-09-24", TargetMoveIn: "2025-10-08", Today: "tomorrow"})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	list, _ := env.Engine.ListVacancies(env.Ctx, repo.VacancyFilters{})
	if len(list) != 0 {
		t.Fatalf("stateless report must not store vacancies")
	}
}

func intPtr(v int) *int { return &v }

func application() applications.Application {
	return applications.Application{
		ApplicantID:   "applicant-17",
		UnitID:        "unit-4b",
		ApplicantName: "Jordan Rivers",
		Email:         "jordan@example.com",
		Household:     applications.Household{Adults: 1},
		MonthlyIncome: 5000,
		CreditScore:   intPtr(720),
		RequestedRent: 1200,
		DepositAmount: 1200,
		Jurisdiction:  "IA",

		VerifiedIncomeSources: []string{"paystub"},
	}
}

func TestApplicationLifecycleWritesOutbox(t *testing.T) {
	env := newTestEnv(t)
	rec, err := env.Engine.SubmitApplication(env.Ctx, application(), "tester")
	if err != nil || rec.Status != applications.StatusSubmitted {
		t.Fatalf("submit: %+v %v", rec, err)
	}
	dupRec, err := env.Engine.SubmitApplication(env.Ctx, application(), "tester")
	if dup, ok := engine.IsDuplicate(err); !ok || dup.Existing.ID != rec.ID || dupRec.ID != rec.ID {
		t.Fatalf("expected duplicate, got %v", err)
	}

	decided, err := env.Engine.EvaluateApplication(env.Ctx, rec.ID, "tester")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if decided.Status != applications.StatusApproved || decided.Decision == nil || decided.Decision.TotalScore != 65 {
		t.Fatalf("unexpected decision: %+v", decided)
	}
	again, err := env.Engine.EvaluateApplication(env.Ctx, rec.ID, "tester")
	if err != nil || again.Decision.TotalScore != 65 {
		t.Fatalf("re-evaluate must return stored record: %v", err)
	}

	alertsOut, err := env.Engine.Repo.EventsAfter(env.Ctx, 10, 0, repo.EventFilters{TypePrefix: events.AlertPrefix})
	if err != nil || len(alertsOut) != 1 {
		t.Fatalf("expected exactly one alert, got %d (%v)", len(alertsOut), err)
	}
	if alertsOut[0].Type != "alert.applicant_approved" || strings.Contains(alertsOut[0].Payload, "Jordan") {
		t.Fatalf("unexpected alert: %+v", alertsOut[0])
	}
	decidedEvents, _ := env.Engine.ListEvents(env.Ctx, 10, 0, repo.EventFilters{Type: events.ApplicationDecided})
	if len(decidedEvents) != 1 {
		t.Fatalf("expected one decision event, got %d", len(decidedEvents))
	}

	approved, err := env.Engine.ListApplications(env.Ctx, applications.StatusApproved, 10)
	if err != nil || len(approved) != 1 {
		t.Fatalf("list approved: %d %v", len(approved), err)
	}
	if _, err := env.Engine.GetApplication(env.Ctx, "nope"); !engine.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSubmitApplicationGuard(t *testing.T) {
	env := newTestEnv(t)
	app := application()
	app.Screening = map[string]string{"Marital Status": "single"}
	_, err := env.Engine.SubmitApplication(env.Ctx, app, "tester")
	var cerr *applications.ComplianceViolationError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected compliance violation, got %v", err)
	}
	app = application()
	app.MonthlyIncome = 0
	_, err = env.Engine.SubmitApplication(env.Ctx, app, "tester")
	var ierr *applications.IncompleteApplicationError
	if !errors.As(err, &ierr) {
		t.Fatalf("expected incomplete application, got %v", err)
	}
}

func TestWithClockLeavesBaseServiceUntouched(t *testing.T) {
	base := engine.New(nil, config.Default("ws-1"))
	fixed := time.Date(2025, 9, 28, 14, 0, 0, 0, time.UTC)
	clocked := base.WithClock(func() time.Time { return fixed })

	if clocked.Apps == base.Apps {
		t.Fatalf("expected a separate application service")
	}
	if base.Apps.Now != nil {
		t.Fatalf("base service clock was replaced")
	}
	if got := clocked.Apps.Now(); !got.Equal(fixed) {
		t.Fatalf("clocked service now = %v", got)
	}
	if clocked.Apps.Config.MaxRentToIncome != base.Apps.Config.MaxRentToIncome {
		t.Fatalf("screening config not carried over")
	}
}

func TestPrepareListingRecordsDraft(t *testing.T) {
	env := newTestEnv(t)
	prospect := application()
	prospect.ApplicantID = ""
	prospect.UnitID = ""
	plan, err := env.Engine.PrepareListing(env.Ctx, marketing.Input{
		Listing: marketing.ListingContext{
			UnitID: "unit-4b", PropertyName: "Maple Court", Address: "120 Maple St",
			Bedrooms: 1, Bathrooms: 1, SquareFeet: 640, Rent: 1200, Deposit: 1200,
			MediaFolderID: "folder-4b", AvailableOn: "2025-10-08",
		},
		Prospects: []marketing.Prospect{{Name: "Jordan Rivers", Application: prospect}},
	}, []marketing.Media{{FileID: "1", Name: "kitchen.jpg", MimeType: "image/jpeg"}}, "tester")
	if err != nil {
		t.Fatalf("prepare listing: %v", err)
	}
	if plan.MissingPhotos || len(plan.ProspectOutcomes) != 1 || plan.ProspectOutcomes[0].Outcome != applications.OutcomeApproved {
		t.Fatalf("unexpected plan: %+v", plan)
	}

	evts, err := env.Engine.ListEvents(env.Ctx, 10, 0, repo.EventFilters{Type: events.ListingDrafted})
	if err != nil || len(evts) != 1 || evts[0].EntityID != plan.DocumentID {
		t.Fatalf("expected one listing draft event, got %+v (%v)", evts, err)
	}
	if !strings.Contains(evts[0].Payload, "kitchen.jpg") {
		t.Fatalf("draft html missing photo: %s", evts[0].Payload)
	}

	recs, _ := env.Engine.ListApplications(env.Ctx, applications.StatusSubmitted, 10)
	if len(recs) != 0 {
		t.Fatalf("sample prospects must not be stored as applications")
	}
}
