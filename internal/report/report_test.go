package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vacancyline/internal/blueprint"
	"vacancyline/internal/domain"
	"vacancyline/internal/importer"
	"vacancyline/internal/workflow"
)

func day(m time.Month, d int) time.Time {
	return time.Date(2025, m, d, 0, 0, 0, 0, time.UTC)
}

func newInstance(t *testing.T) *workflow.Instance {
	t.Helper()
	w, err := domain.NewVacancyWindow(day(9, 24), day(10, 8))
	require.NoError(t, err)
	inst, err := workflow.New(blueprint.Standard(), w)
	require.NoError(t, err)
	return inst
}

func TestGenerateUntouchedVacancy(t *testing.T) {
	rep, err := Generate(newInstance(t).Snapshot(), day(9, 28), DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, "2025-09-28", rep.AsOf)
	assert.Equal(t, 10, rep.TotalTasks)
	assert.Equal(t, 0, rep.CompletedTasks)
	assert.Equal(t, 0, rep.Insights.ReadinessScore)
	assert.Equal(t, LevelAtRisk, rep.Insights.ReadinessLevel)
	assert.InDelta(t, 4.0/14.0, rep.Insights.ExpectedCompletionPct, 1e-9)
	assert.Equal(t, 4, rep.Insights.DaysSinceVacancy)
	assert.Equal(t, 10, rep.Insights.DaysUntilMoveIn)

	require.NotNil(t, rep.Insights.FocusStage)
	assert.Equal(t, "Lease Signing & Move-In", *rep.Insights.FocusStage)
	assert.Equal(t, 0.0, *rep.Insights.FocusStageCompletion)

	overdue := []string{}
	for _, v := range rep.OverdueTasks {
		overdue = append(overdue, v.ID)
	}
	assert.Equal(t, []string{
		"marketing_publish_listing",
		"marketing_update_appfolio",
		"screening_manage_inquiries",
		"screening_process_applications",
		"screening_notify_applicants",
	}, overdue)

	assert.Equal(t, []string{
		"Create and Publish Listing (Leasing Agent), overdue since 2025-09-24",
		"Update Vacancy Status in AppFolio (Leasing Agent), overdue since 2025-09-24",
		"Manage Inquiries and Schedule Showings (Leasing Agent), overdue since 2025-09-24",
		"Process Rental Applications (Leasing Agent), overdue since 2025-09-26",
		"Notify Applicants of Status (Leasing Agent), overdue since 2025-09-26",
	}, rep.Insights.Blockers)

	assert.Equal(t, []string{
		"0 of 10 tasks complete (0% readiness)",
		"5 task(s) overdue (0 compliance-critical)",
		"Progress is 29% below expected pace for this vacancy window",
	}, rep.Insights.AIObservations)

	assert.Equal(t, []string{
		"Concentrate automation on Lease Signing & Move-In (4 open item(s))",
		"Bundle lease packet tasks and push DocuSign reminders automatically",
		"Escalate compliance checklist to coordinator with documented follow-up",
	}, rep.Insights.RecommendedActions)

	assert.Equal(t, []string{
		"Auto-remind Marketing & Advertising owners of 2 remaining task(s)",
		"Auto-remind Screening & Application owners of 3 remaining task(s)",
		"Auto-remind Lease Signing & Move-In owners of 4 remaining task(s)",
		"Auto-remind Handoff owners of 1 remaining task(s)",
		"Dispatch compliance alerts to AppFolio task queues for overdue work",
	}, rep.Insights.AutomationTriggers)

	require.Len(t, rep.ComplianceAlerts, 10)
	blocking := 0
	for _, a := range rep.ComplianceAlerts {
		if a.Severity == SeverityBlocking {
			blocking++
		}
	}
	assert.Equal(t, 2, blocking)

	require.Len(t, rep.StageProgress, 4)
	assert.Equal(t, domain.StageMarketing, rep.StageProgress[0].Stage)
	require.Len(t, rep.Tasks, 10)
	assert.Equal(t, "2025-09-24", rep.Tasks[0].DueDate)
	assert.Equal(t, "2025-10-08", rep.Tasks[9].DueDate)
}

func TestFocusBlockersRenderAsPending(t *testing.T) {
	rep, err := Generate(newInstance(t).Snapshot(), day(9, 24), DefaultPolicy())
	require.NoError(t, err)

	require.Empty(t, rep.OverdueTasks)
	require.NotEmpty(t, rep.Insights.Blockers)
	assert.Contains(t, rep.Insights.Blockers, "Prepare Lease Agreement (Leasing Agent), pending")
	for _, b := range rep.Insights.Blockers {
		assert.True(t, strings.HasSuffix(b, ", pending"), b)
	}
}

func TestGenerateAfterApolloImport(t *testing.T) {
	export := "Name,Completed At,Created At,Last Modified\n" +
		"Create and Publish Listing – Leasing Agent,2025-09-24,2025-09-20T10:00:00Z,2025-09-24T16:00:00Z\n" +
		"Update Vacancy in AppFolio - Leasing Agent,2025-09-24T18:30:00Z,2025-09-20T10:00:00Z,2025-09-24T18:30:00Z\n" +
		"Manage Inquiries & Schedule Showings - Leasing Agent,2025-09-27,2025-09-20T10:00:00Z,2025-09-27T09:00:00Z\n" +
		"Process Rental Applications,,2025-09-20T10:00:00Z,2025-09-29T12:00:00Z\n"
	m, err := importer.StandardMapping(blueprint.Standard())
	require.NoError(t, err)
	inst := newInstance(t)
	_, hyd, err := importer.New(m).Hydrate(inst, strings.NewReader(export))
	require.NoError(t, err)
	require.Len(t, hyd.Applied, 4)

	rep, err := Generate(inst.Snapshot(), day(10, 2), DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, 3, rep.CompletedTasks)
	assert.Equal(t, 30, rep.Insights.ReadinessScore)
	assert.Equal(t, LevelAtRisk, rep.Insights.ReadinessLevel)

	overdue := []string{}
	for _, v := range rep.OverdueTasks {
		overdue = append(overdue, v.ID)
	}
	assert.Equal(t, []string{
		"screening_process_applications",
		"screening_notify_applicants",
		"leasing_prepare_agreement",
	}, overdue)
	assert.Contains(t, rep.Insights.AIObservations, "6 day(s) until target move-in; prioritize move-in readiness")
	assert.Contains(t, rep.Insights.Blockers, "Process Rental Applications (Leasing Agent), overdue since 2025-09-26")
	assert.Contains(t, rep.Insights.Blockers, "Collect Move-In Funds (Property Manager (Accounting)), pending")
}

func TestGenerateCompletedVacancy(t *testing.T) {
	inst := newInstance(t)
	done := day(10, 1)
	for _, tmpl := range blueprint.Standard().Tasks() {
		require.NoError(t, inst.ApplyStatus(tmpl.ID, domain.StatusComplete, &done))
	}
	rep, err := Generate(inst.Snapshot(), day(10, 20), DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, 100, rep.Insights.ReadinessScore)
	assert.Equal(t, LevelOnTrack, rep.Insights.ReadinessLevel)
	assert.Nil(t, rep.Insights.FocusStage)
	assert.Empty(t, rep.Insights.Blockers)
	assert.Empty(t, rep.OverdueTasks)
	assert.Equal(t, []string{"All vacancy tasks complete; start the new resident workflow"}, rep.Insights.RecommendedActions)
	assert.Empty(t, rep.Insights.AutomationTriggers)
	assert.Equal(t, 1.0, rep.Insights.ExpectedCompletionPct)
	assert.Contains(t, rep.Insights.AIObservations, "0 day(s) until target move-in; prioritize move-in readiness")
}

func TestGenerateRejectsEmptyBlueprint(t *testing.T) {
	bp, err := blueprint.New("1.0.0", nil)
	require.NoError(t, err)
	w, err := domain.NewVacancyWindow(day(9, 24), day(10, 8))
	require.NoError(t, err)
	inst, err := workflow.New(bp, w)
	require.NoError(t, err)

	_, err = Generate(inst.Snapshot(), day(9, 28), DefaultPolicy())
	assert.ErrorIs(t, err, domain.ErrDegenerateBlueprint)
}

func TestAsOfOnlyMovesTimeDependentFields(t *testing.T) {
	snap := newInstance(t).Snapshot()
	early, err := Generate(snap, day(9, 20), DefaultPolicy())
	require.NoError(t, err)
	late, err := Generate(snap, day(10, 20), DefaultPolicy())
	require.NoError(t, err)

	assert.Empty(t, early.OverdueTasks)
	assert.Len(t, late.OverdueTasks, 10)
	assert.Equal(t, 0.0, early.Insights.ExpectedCompletionPct)
	assert.Equal(t, early.Insights.ReadinessScore, late.Insights.ReadinessScore)
	assert.Equal(t, early.StageProgress, late.StageProgress)
	assert.Equal(t, early.ComplianceAlerts, late.ComplianceAlerts)
}

func TestFocusRules(t *testing.T) {
	snap := newInstance(t).Snapshot()
	p := DefaultPolicy()
	p.Focus = FocusEarliestOpen
	rep, err := Generate(snap, day(9, 28), p)
	require.NoError(t, err)
	assert.Equal(t, "Marketing & Advertising", *rep.Insights.FocusStage)

	p.MaxBlockers = 2
	rep, err = Generate(snap, day(9, 28), p)
	require.NoError(t, err)
	assert.Len(t, rep.Insights.Blockers, 2)
}

func TestPolicyLevels(t *testing.T) {
	p := DefaultPolicy()
	require.NoError(t, p.Validate())
	assert.Equal(t, LevelOnTrack, p.Level(70))
	assert.Equal(t, LevelMonitor, p.Level(69))
	assert.Equal(t, LevelMonitor, p.Level(40))
	assert.Equal(t, LevelAtRisk, p.Level(39))

	p.MonitorMin = 80
	assert.Error(t, p.Validate())
	p = DefaultPolicy()
	p.Focus = "random"
	assert.Error(t, p.Validate())
}

func TestWithoutTasks(t *testing.T) {
	rep, err := Generate(newInstance(t).Snapshot(), day(9, 28), DefaultPolicy())
	require.NoError(t, err)
	assert.Nil(t, rep.WithoutTasks().Tasks)
	assert.Len(t, rep.Tasks, 10)
}
