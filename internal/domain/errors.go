package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownTask is returned when a task id is not part of the blueprint.
	ErrUnknownTask = errors.New("unknown task")
	// ErrDegenerateBlueprint is returned when a report is requested for a workflow without tasks.
	ErrDegenerateBlueprint = errors.New("blueprint has no tasks")
)

// ValidationError reports malformed input such as an inverted window or bad date.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// InvalidTransitionError reports a rejected task status change. The task keeps its prior state.
type InvalidTransitionError struct {
	TaskID string
	From   TaskStatus
	To     TaskStatus
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid task status transition %s -> %s for %s: %s", e.From, e.To, e.TaskID, e.Reason)
}
