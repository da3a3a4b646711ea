// Package report derives readiness metrics and templated guidance from a workflow snapshot.
// Generation is pure: the same snapshot, as-of date and policy always yield the same report.
package report

import (
	"sort"
	"strings"
	"time"

	"vacancyline/internal/domain"
	"vacancyline/internal/workflow"
)

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityBlocking Severity = "blocking"
)

type StageProgress struct {
	Stage      domain.Stage `json:"stage"`
	Label      string       `json:"label"`
	Completed  int          `json:"completed"`
	Total      int          `json:"total"`
	Completion float64      `json:"completion"`
}

type RoleLoad struct {
	Role    domain.Role `json:"role"`
	Label   string      `json:"label"`
	Open    int         `json:"open"`
	Overdue int         `json:"overdue"`
}

type TaskView struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Stage        domain.Stage      `json:"stage"`
	StageLabel   string            `json:"stage_label"`
	Role         domain.Role       `json:"role"`
	RoleLabel    string            `json:"role_label"`
	Status       domain.TaskStatus `json:"status"`
	DueDate      string            `json:"due_date" format:"date"`
	CompletedOn  *string           `json:"completed_on,omitempty" format:"date"`
	Overdue      bool              `json:"overdue"`
	Deliverables []string          `json:"deliverables,omitempty"`
}

type ComplianceAlert struct {
	TaskID   string   `json:"task_id"`
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	Detail   string   `json:"detail"`
}

type Insights struct {
	ReadinessScore        int            `json:"readiness_score"`
	ReadinessLevel        ReadinessLevel `json:"readiness_level"`
	ExpectedCompletionPct float64        `json:"expected_completion_pct"`
	DaysSinceVacancy      int            `json:"days_since_vacancy"`
	DaysUntilMoveIn       int            `json:"days_until_move_in"`
	FocusStage            *string        `json:"focus_stage,omitempty"`
	FocusStageCompletion  *float64       `json:"focus_stage_completion,omitempty"`
	Blockers              []string       `json:"blockers"`
	AIObservations        []string       `json:"ai_observations"`
	RecommendedActions    []string       `json:"recommended_actions"`
	AutomationTriggers    []string       `json:"automation_triggers"`
}

type Report struct {
	AsOf             string            `json:"as_of" format:"date"`
	VacancyStart     string            `json:"vacancy_start" format:"date"`
	TargetMoveIn     string            `json:"target_move_in" format:"date"`
	BlueprintVersion string            `json:"blueprint_version"`
	TotalTasks       int               `json:"total_tasks"`
	CompletedTasks   int               `json:"completed_tasks"`
	StageProgress    []StageProgress   `json:"stage_progress"`
	RoleLoad         []RoleLoad        `json:"role_load"`
	OverdueTasks     []TaskView        `json:"overdue_tasks"`
	ComplianceAlerts []ComplianceAlert `json:"compliance_alerts"`
	Insights         Insights          `json:"insights"`
	Tasks            []TaskView        `json:"tasks,omitempty"`
}

// WithoutTasks drops the per-task breakdown.
func (r Report) WithoutTasks() Report {
	r.Tasks = nil
	return r
}

// Generate builds the report for snap as seen on asOf. It only fails for a snapshot
// without tasks.
func Generate(snap workflow.Snapshot, asOf time.Time, policy Policy) (Report, error) {
	if len(snap.Tasks) == 0 {
		return Report{}, domain.ErrDegenerateBlueprint
	}
	asOf = domain.Midnight(asOf)
	m := measure(snap, asOf, policy)

	rep := Report{
		AsOf:             domain.FormatDate(asOf),
		VacancyStart:     domain.FormatDate(snap.Window.VacancyStart),
		TargetMoveIn:     domain.FormatDate(snap.Window.TargetMoveIn),
		BlueprintVersion: snap.BlueprintVersion,
		TotalTasks:       m.total,
		CompletedTasks:   m.completed,
		StageProgress:    stageProgress(m),
		RoleLoad:         roleLoad(snap, asOf),
		OverdueTasks:     make([]TaskView, 0, len(m.overdue)),
		ComplianceAlerts: complianceAlerts(snap),
		Insights:         insights(m, policy),
		Tasks:            taskBreakdown(snap, asOf),
	}
	for _, t := range m.overdue {
		rep.OverdueTasks = append(rep.OverdueTasks, taskView(t, asOf))
	}
	return rep, nil
}

// metrics are the shared numbers every section of the report renders from.
type metrics struct {
	snap            workflow.Snapshot
	asOf            time.Time
	total           int
	completed       int
	score           int
	expected        float64
	daysSince       int
	daysUntil       int
	overdue         []domain.TaskInstance
	stages          []domain.Stage
	stageTotal      map[domain.Stage]int
	stageDone       map[domain.Stage]int
	focus           *domain.Stage
	criticalOpen    bool
	criticalOverdue int
}

func measure(snap workflow.Snapshot, asOf time.Time, policy Policy) metrics {
	m := metrics{
		snap:       snap,
		asOf:       asOf,
		total:      len(snap.Tasks),
		stageTotal: map[domain.Stage]int{},
		stageDone:  map[domain.Stage]int{},
		daysSince:  domain.DaysBetween(snap.Window.VacancyStart, asOf),
		daysUntil:  domain.DaysBetween(asOf, snap.Window.TargetMoveIn),
	}
	for _, t := range snap.Tasks {
		m.stageTotal[t.Template.Stage]++
		if t.Status == domain.StatusComplete {
			m.completed++
			m.stageDone[t.Template.Stage]++
		} else if t.Template.Critical {
			m.criticalOpen = true
		}
		if t.Overdue(asOf) {
			m.overdue = append(m.overdue, t)
			if t.Template.Critical {
				m.criticalOverdue++
			}
		}
	}
	for _, st := range domain.Stages() {
		if m.stageTotal[st] > 0 {
			m.stages = append(m.stages, st)
		}
	}
	sortOverdue(m.overdue)
	m.score = readinessScore(m.completed, m.total)
	m.expected = expectedCompletion(snap.Window, asOf)
	m.focus = focusStage(m, policy.Focus)
	return m
}

// readinessScore rounds 100*completed/total half up without floating point.
func readinessScore(completed, total int) int {
	if total == 0 {
		return 0
	}
	return (200*completed + total) / (2 * total)
}

func expectedCompletion(w domain.VacancyWindow, asOf time.Time) float64 {
	span := w.Days()
	elapsed := domain.DaysBetween(w.VacancyStart, asOf)
	if span <= 0 {
		if elapsed >= 0 {
			return 1
		}
		return 0
	}
	ratio := float64(elapsed) / float64(span)
	switch {
	case ratio < 0:
		return 0
	case ratio > 1:
		return 1
	}
	return ratio
}

func focusStage(m metrics, rule FocusRule) *domain.Stage {
	var (
		best     *domain.Stage
		bestOpen int
	)
	for _, st := range m.stages {
		open := m.stageTotal[st] - m.stageDone[st]
		if open == 0 {
			continue
		}
		if rule == FocusEarliestOpen {
			s := st
			return &s
		}
		if open > bestOpen {
			s := st
			best, bestOpen = &s, open
		}
	}
	return best
}

func sortOverdue(tasks []domain.TaskInstance) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		return a.Template.Stage.Order() < b.Template.Stage.Order()
	})
}

func stageProgress(m metrics) []StageProgress {
	out := make([]StageProgress, 0, len(m.stages))
	for _, st := range m.stages {
		out = append(out, StageProgress{
			Stage:      st,
			Label:      st.Label(),
			Completed:  m.stageDone[st],
			Total:      m.stageTotal[st],
			Completion: float64(m.stageDone[st]) / float64(m.stageTotal[st]),
		})
	}
	return out
}

func roleLoad(snap workflow.Snapshot, asOf time.Time) []RoleLoad {
	loads := map[domain.Role]*RoleLoad{}
	for _, t := range snap.Tasks {
		l, ok := loads[t.Template.Role]
		if !ok {
			l = &RoleLoad{Role: t.Template.Role, Label: t.Template.Role.Label()}
			loads[t.Template.Role] = l
		}
		if t.Open() {
			l.Open++
		}
		if t.Overdue(asOf) {
			l.Overdue++
		}
	}
	out := make([]RoleLoad, 0, len(loads))
	for _, r := range domain.Roles() {
		if l, ok := loads[r]; ok {
			out = append(out, *l)
		}
	}
	return out
}

// complianceAlerts emits one standing alert per template that carries compliance notes.
func complianceAlerts(snap workflow.Snapshot) []ComplianceAlert {
	out := []ComplianceAlert{}
	for _, t := range snap.Tasks {
		if len(t.Template.Compliance) == 0 {
			continue
		}
		topics := make([]string, 0, len(t.Template.Compliance))
		details := make([]string, 0, len(t.Template.Compliance))
		for _, n := range t.Template.Compliance {
			topics = append(topics, n.Topic)
			details = append(details, n.Detail)
		}
		sev := SeverityWarning
		if t.Template.Critical {
			sev = SeverityBlocking
		}
		out = append(out, ComplianceAlert{
			TaskID:   t.Template.ID,
			Severity: sev,
			Title:    strings.Join(topics, "; "),
			Detail:   strings.Join(details, " "),
		})
	}
	return out
}

func taskBreakdown(snap workflow.Snapshot, asOf time.Time) []TaskView {
	tasks := append([]domain.TaskInstance(nil), snap.Tasks...)
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].DueDate.Before(tasks[j].DueDate) })
	out := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		v := taskView(t, asOf)
		v.Deliverables = append([]string(nil), t.Template.Deliverables...)
		out = append(out, v)
	}
	return out
}

func taskView(t domain.TaskInstance, asOf time.Time) TaskView {
	v := TaskView{
		ID:         t.Template.ID,
		Name:       t.Template.Name,
		Stage:      t.Template.Stage,
		StageLabel: t.Template.Stage.Label(),
		Role:       t.Template.Role,
		RoleLabel:  t.Template.Role.Label(),
		Status:     t.Status,
		DueDate:    domain.FormatDate(t.DueDate),
		Overdue:    t.Overdue(asOf),
	}
	if t.CompletedOn != nil {
		d := domain.FormatDate(*t.CompletedOn)
		v.CompletedOn = &d
	}
	return v
}
