// Package workflow materializes a blueprint into a dated, mutable task list for one vacancy.
package workflow

import (
	"fmt"
	"sync"
	"time"

	"vacancyline/internal/blueprint"
	"vacancyline/internal/domain"
)

// Instance owns the task states of a single vacancy window. Writers are serialized;
// readers always observe a fully applied transition.
type Instance struct {
	mu        sync.RWMutex
	blueprint *blueprint.Blueprint
	window    domain.VacancyWindow
	tasks     []domain.TaskInstance
}

// New creates one pending task per template with due dates resolved against the window.
func New(bp *blueprint.Blueprint, window domain.VacancyWindow) (*Instance, error) {
	if bp == nil {
		return nil, fmt.Errorf("blueprint is required")
	}
	window = domain.VacancyWindow{
		VacancyStart: domain.Midnight(window.VacancyStart),
		TargetMoveIn: domain.Midnight(window.TargetMoveIn),
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}
	templates := bp.Tasks()
	tasks := make([]domain.TaskInstance, len(templates))
	for i, tmpl := range templates {
		tasks[i] = domain.TaskInstance{
			Template: tmpl,
			Status:   domain.StatusPending,
			DueDate:  tmpl.Due.Resolve(window),
		}
	}
	return &Instance{blueprint: bp, window: window, tasks: tasks}, nil
}

func (i *Instance) Window() domain.VacancyWindow { return i.window }

func (i *Instance) Blueprint() *blueprint.Blueprint { return i.blueprint }

// ApplyStatus moves one task forward. On error the task keeps its prior state.
func (i *Instance) ApplyStatus(taskID string, status domain.TaskStatus, completedOn *time.Time) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.apply(taskID, status, completedOn, false)
}

// Task returns the current state of one task.
func (i *Instance) Task(taskID string) (domain.TaskInstance, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	idx := i.blueprint.Position(taskID)
	if idx < 0 {
		return domain.TaskInstance{}, fmt.Errorf("%w: %s", domain.ErrUnknownTask, taskID)
	}
	return cloneTask(i.tasks[idx]), nil
}

func (i *Instance) apply(taskID string, status domain.TaskStatus, completedOn *time.Time, dateUnknown bool) error {
	idx := i.blueprint.Position(taskID)
	if idx < 0 {
		return fmt.Errorf("%w: %s", domain.ErrUnknownTask, taskID)
	}
	current := i.tasks[idx]
	if err := ensureTransition(taskID, current.Status, status, completedOn, dateUnknown); err != nil {
		return err
	}
	next := current
	next.Status = status
	next.CompletedOn = nil
	if completedOn != nil {
		d := domain.Midnight(*completedOn)
		next.CompletedOn = &d
	}
	i.tasks[idx] = next
	return nil
}

// ensureTransition enforces the monotonic pending -> in_progress -> complete ordering
// and the completed-on invariant.
func ensureTransition(taskID string, from, to domain.TaskStatus, completedOn *time.Time, dateUnknown bool) error {
	reject := func(reason string) error {
		return &domain.InvalidTransitionError{TaskID: taskID, From: from, To: to, Reason: reason}
	}
	if !to.Valid() {
		return reject("unknown status")
	}
	if to.Rank() < from.Rank() {
		return reject("status cannot move backward")
	}
	if to == domain.StatusComplete {
		if completedOn == nil && !dateUnknown {
			return reject("completed_on is required when status is complete")
		}
		return nil
	}
	if completedOn != nil {
		return reject("completed_on is only allowed when status is complete")
	}
	return nil
}

// Restore loads persisted task states into a freshly created instance. Each state goes
// through the same transition checks as a live update.
func (i *Instance) Restore(states []domain.TaskState) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, st := range states {
		status, err := domain.ParseTaskStatus(st.Status)
		if err != nil {
			return err
		}
		var completed *time.Time
		if st.CompletedOn != nil {
			d, err := domain.ParseDate("completed_on", *st.CompletedOn)
			if err != nil {
				return err
			}
			completed = &d
		}
		if err := i.apply(st.TaskID, status, completed, status == domain.StatusComplete && completed == nil); err != nil {
			return fmt.Errorf("restore %s: %w", st.TaskID, err)
		}
	}
	return nil
}

func cloneTask(t domain.TaskInstance) domain.TaskInstance {
	t.Template.Deliverables = append([]string(nil), t.Template.Deliverables...)
	t.Template.Compliance = append([]domain.ComplianceNote(nil), t.Template.Compliance...)
	if t.CompletedOn != nil {
		d := *t.CompletedOn
		t.CompletedOn = &d
	}
	return t
}
