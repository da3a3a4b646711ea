package blueprint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vacancyline/internal/domain"
)

func TestStandardBlueprintShape(t *testing.T) {
	bp := Standard()
	require.Equal(t, 10, bp.Len())
	assert.Equal(t, "1.0.0", bp.Version())

	counts := map[domain.Stage]int{}
	for _, tmpl := range bp.Tasks() {
		counts[tmpl.Stage]++
		assert.NotEmpty(t, tmpl.Deliverables, tmpl.ID)
		assert.NotEmpty(t, tmpl.Compliance, tmpl.ID)
	}
	assert.Equal(t, 2, counts[domain.StageMarketing])
	assert.Equal(t, 3, counts[domain.StageScreening])
	assert.Equal(t, 4, counts[domain.StageLeasing])
	assert.Equal(t, 1, counts[domain.StageHandoff])

	funds, ok := bp.Task("leasing_collect_funds")
	require.True(t, ok)
	assert.True(t, funds.Critical)
	assert.Equal(t, domain.RolePropertyManagerAccounting, funds.Role)
	assert.Equal(t, 6, bp.Position("leasing_collect_funds"))
	assert.Equal(t, -1, bp.Position("nope"))
}

func TestStandardDueDates(t *testing.T) {
	bp := Standard()
	w, err := domain.NewVacancyWindow(
		time.Date(2025, 9, 24, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 10, 8, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	want := map[string]string{
		"marketing_publish_listing":           "2025-09-24",
		"screening_process_applications":      "2025-09-26",
		"leasing_prepare_agreement":           "2025-09-29",
		"leasing_collect_funds":               "2025-10-03",
		"leasing_lihtc_certification":         "2025-10-05",
		"leasing_conduct_move_in_inspection":  "2025-10-08",
		"handoff_start_new_resident_workflow": "2025-10-08",
	}
	for id, date := range want {
		tmpl, ok := bp.Task(id)
		require.True(t, ok, id)
		assert.Equal(t, date, domain.FormatDate(tmpl.Due.Resolve(w)), id)
	}
}

func TestTasksAreCopies(t *testing.T) {
	bp := Standard()
	tasks := bp.Tasks()
	tasks[0].Name = "changed"
	tasks[0].Deliverables[0] = "changed"
	again, _ := bp.Task(tasks[0].ID)
	assert.Equal(t, "Create and Publish Listing", again.Name)
	assert.NotEqual(t, "changed", again.Deliverables[0])
}

func TestNewRejectsInvalidTemplates(t *testing.T) {
	valid := domain.TaskTemplate{ID: "a", Name: "A", Stage: domain.StageMarketing, Role: domain.RoleLeasingAgent, Due: domain.DaysFromVacancy(0)}

	_, err := New("not-a-version", []domain.TaskTemplate{valid})
	assert.Error(t, err)

	_, err = New("1.0.0", []domain.TaskTemplate{valid, valid})
	assert.ErrorContains(t, err, "duplicate template id a")

	bad := valid
	bad.ID = "b"
	bad.Stage = "cleanup"
	_, err = New("1.0.0", []domain.TaskTemplate{bad})
	assert.ErrorContains(t, err, "unknown stage")

	empty, err := New("2.1.0", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
}

func TestCompatible(t *testing.T) {
	bp := Standard()
	ok, err := bp.Compatible("^1.0")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = bp.Compatible(">=2.0.0")
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = bp.Compatible("abc")
	assert.Error(t, err)
}
