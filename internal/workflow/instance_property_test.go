package workflow

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"vacancyline/internal/blueprint"
	"vacancyline/internal/domain"
)

var statusByIndex = []domain.TaskStatus{
	domain.StatusPending,
	domain.StatusInProgress,
	domain.StatusSkipped,
	domain.StatusComplete,
}

// Property: no sequence of updates lowers a task's status rank.
func TestStatusNeverRegresses(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("status rank is monotonic", prop.ForAll(
		func(taskIdx int, updates []int) bool {
			inst, err := New(blueprint.Standard(), domain.VacancyWindow{
				VacancyStart: day(2025, 9, 24),
				TargetMoveIn: day(2025, 10, 8),
			})
			if err != nil {
				return false
			}
			id := inst.Blueprint().Tasks()[taskIdx].ID
			prev := domain.StatusPending
			for _, u := range updates {
				status := statusByIndex[u]
				var completed *time.Time
				if status == domain.StatusComplete {
					d := day(2025, 10, 1)
					completed = &d
				}
				_ = inst.ApplyStatus(id, status, completed)
				task, err := inst.Task(id)
				if err != nil {
					return false
				}
				if task.Status.Rank() < prev.Rank() {
					return false
				}
				if (task.Status == domain.StatusComplete) != (task.CompletedOn != nil) {
					return false
				}
				prev = task.Status
			}
			return true
		},
		gen.IntRange(0, 9),
		gen.SliceOf(gen.IntRange(0, len(statusByIndex)-1)),
	))

	properties.TestingRun(t)
}
