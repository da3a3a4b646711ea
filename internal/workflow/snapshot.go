package workflow

import (
	"vacancyline/internal/domain"
)

// Snapshot is a read-only copy of an instance. Mutating it never affects the instance.
type Snapshot struct {
	BlueprintVersion string
	Window           domain.VacancyWindow
	Tasks            []domain.TaskInstance
}

func (i *Instance) Snapshot() Snapshot {
	i.mu.RLock()
	defer i.mu.RUnlock()
	tasks := make([]domain.TaskInstance, len(i.tasks))
	for idx, t := range i.tasks {
		tasks[idx] = cloneTask(t)
	}
	return Snapshot{
		BlueprintVersion: i.blueprint.Version(),
		Window:           i.window,
		Tasks:            tasks,
	}
}

// Completed counts tasks in the complete status.
func (s Snapshot) Completed() int {
	n := 0
	for _, t := range s.Tasks {
		if t.Status == domain.StatusComplete {
			n++
		}
	}
	return n
}

// States converts the snapshot into persistable task states.
func (s Snapshot) States(vacancyID string) []domain.TaskState {
	out := make([]domain.TaskState, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		st := domain.TaskState{VacancyID: vacancyID, TaskID: t.Template.ID, Status: string(t.Status)}
		if t.CompletedOn != nil {
			d := domain.FormatDate(*t.CompletedOn)
			st.CompletedOn = &d
		}
		out = append(out, st)
	}
	return out
}
