package domain

import (
	"fmt"
	"time"
)

// Stage groups vacancy tasks into the ordered phases of a turnover.
type Stage string

const (
	StageMarketing Stage = "marketing_and_advertising"
	StageScreening Stage = "screening_and_application"
	StageLeasing   Stage = "lease_signing_and_move_in"
	StageHandoff   Stage = "handoff"
)

var stageOrder = []Stage{StageMarketing, StageScreening, StageLeasing, StageHandoff}

var stageLabels = map[Stage]string{
	StageMarketing: "Marketing & Advertising",
	StageScreening: "Screening & Application",
	StageLeasing:   "Lease Signing & Move-In",
	StageHandoff:   "Handoff",
}

// Stages returns every stage in workflow order.
func Stages() []Stage {
	return append([]Stage(nil), stageOrder...)
}

func (s Stage) Label() string {
	if l, ok := stageLabels[s]; ok {
		return l
	}
	return string(s)
}

// Order is the zero-based position of the stage, or -1 for unknown stages.
func (s Stage) Order() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

func (s Stage) Valid() bool { return s.Order() >= 0 }

// Role is the team role accountable for a task.
type Role string

const (
	RoleLeasingAgent              Role = "leasing_agent"
	RoleComplianceCoordinator     Role = "compliance_coordinator"
	RolePropertyManager           Role = "property_manager"
	RolePropertyManagerAccounting Role = "property_manager_accounting"
)

var roleOrder = []Role{RoleLeasingAgent, RoleComplianceCoordinator, RolePropertyManager, RolePropertyManagerAccounting}

var roleLabels = map[Role]string{
	RoleLeasingAgent:              "Leasing Agent",
	RoleComplianceCoordinator:     "Compliance Coordinator",
	RolePropertyManager:           "Property Manager",
	RolePropertyManagerAccounting: "Property Manager (Accounting)",
}

func Roles() []Role {
	return append([]Role(nil), roleOrder...)
}

func (r Role) Label() string {
	if l, ok := roleLabels[r]; ok {
		return l
	}
	return string(r)
}

func (r Role) Order() int {
	for i, rr := range roleOrder {
		if rr == r {
			return i
		}
	}
	return -1
}

func (r Role) Valid() bool { return r.Order() >= 0 }

// TaskStatus is the lifecycle state of a single task instance.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusSkipped    TaskStatus = "skipped"
	StatusComplete   TaskStatus = "complete"
)

// Rank orders statuses so that a valid update never decreases it.
func (s TaskStatus) Rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusInProgress:
		return 1
	case StatusSkipped:
		return 2
	case StatusComplete:
		return 3
	default:
		return -1
	}
}

func (s TaskStatus) Valid() bool { return s.Rank() >= 0 }

// ParseTaskStatus accepts the canonical status names.
func ParseTaskStatus(v string) (TaskStatus, error) {
	s := TaskStatus(v)
	if !s.Valid() {
		return "", &ValidationError{Field: "status", Message: fmt.Sprintf("unknown task status %q", v)}
	}
	return s, nil
}

// DueAnchor names the window boundary a due-date rule is measured from.
type DueAnchor string

const (
	AnchorVacancyStart DueAnchor = "vacancy_start"
	AnchorTargetMoveIn DueAnchor = "target_move_in"
)

// DueDateRule resolves a task due date as an offset from one window boundary.
type DueDateRule struct {
	Anchor     DueAnchor `json:"anchor" yaml:"anchor"`
	OffsetDays int       `json:"offset_days" yaml:"offset_days"`
}

func DaysFromVacancy(n int) DueDateRule {
	return DueDateRule{Anchor: AnchorVacancyStart, OffsetDays: n}
}

func DaysBeforeMoveIn(n int) DueDateRule {
	return DueDateRule{Anchor: AnchorTargetMoveIn, OffsetDays: -n}
}

func OnMoveIn() DueDateRule {
	return DueDateRule{Anchor: AnchorTargetMoveIn}
}

func (r DueDateRule) Resolve(w VacancyWindow) time.Time {
	base := w.VacancyStart
	if r.Anchor == AnchorTargetMoveIn {
		base = w.TargetMoveIn
	}
	return base.AddDate(0, 0, r.OffsetDays)
}

func (r DueDateRule) String() string {
	switch {
	case r.Anchor == AnchorTargetMoveIn && r.OffsetDays == 0:
		return "on move-in"
	case r.Anchor == AnchorTargetMoveIn && r.OffsetDays < 0:
		return fmt.Sprintf("%d day(s) before move-in", -r.OffsetDays)
	case r.Anchor == AnchorTargetMoveIn:
		return fmt.Sprintf("%d day(s) after move-in", r.OffsetDays)
	default:
		return fmt.Sprintf("vacancy start +%d day(s)", r.OffsetDays)
	}
}

type ComplianceNote struct {
	Topic  string `json:"topic"`
	Detail string `json:"detail"`
}

// TaskTemplate is the immutable definition of a blueprint task.
type TaskTemplate struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Stage        Stage            `json:"stage"`
	Role         Role             `json:"role"`
	Due          DueDateRule      `json:"due"`
	Deliverables []string         `json:"deliverables,omitempty"`
	Compliance   []ComplianceNote `json:"compliance,omitempty"`
	Critical     bool             `json:"critical,omitempty"`
}

// TaskInstance is the runtime state of one template inside a vacancy.
type TaskInstance struct {
	Template    TaskTemplate
	Status      TaskStatus
	DueDate     time.Time
	CompletedOn *time.Time
}

// Overdue is derived from the as-of date and never stored.
func (t TaskInstance) Overdue(asOf time.Time) bool {
	return t.Status != StatusComplete && t.DueDate.Before(Midnight(asOf))
}

func (t TaskInstance) Open() bool { return t.Status != StatusComplete }

// VacancyWindow spans from the unit going vacant to the target move-in.
type VacancyWindow struct {
	VacancyStart time.Time
	TargetMoveIn time.Time
}

// NewVacancyWindow validates and normalizes the boundaries to calendar days.
func NewVacancyWindow(start, moveIn time.Time) (VacancyWindow, error) {
	w := VacancyWindow{VacancyStart: Midnight(start), TargetMoveIn: Midnight(moveIn)}
	if err := w.Validate(); err != nil {
		return VacancyWindow{}, err
	}
	return w, nil
}

func (w VacancyWindow) Validate() error {
	if w.VacancyStart.IsZero() {
		return &ValidationError{Field: "vacancy_start", Message: "vacancy_start is required"}
	}
	if w.TargetMoveIn.IsZero() {
		return &ValidationError{Field: "target_move_in", Message: "target_move_in is required"}
	}
	if w.TargetMoveIn.Before(w.VacancyStart) {
		return &ValidationError{
			Field:   "target_move_in",
			Message: fmt.Sprintf("target_move_in %s is before vacancy_start %s", FormatDate(w.TargetMoveIn), FormatDate(w.VacancyStart)),
		}
	}
	return nil
}

// Days is the length of the window in calendar days.
func (w VacancyWindow) Days() int {
	return DaysBetween(w.VacancyStart, w.TargetMoveIn)
}

// Vacancy is the stored record for a unit turnover.
type Vacancy struct {
	ID               string `json:"id"`
	UnitID           string `json:"unit_id"`
	VacancyStart     string `json:"vacancy_start" format:"date"`
	TargetMoveIn     string `json:"target_move_in" format:"date"`
	BlueprintVersion string `json:"blueprint_version"`
	Workflow         string `json:"workflow"`
	CreatedAt        string `json:"created_at" format:"date-time"`
}

// TaskState is the persisted status of one vacancy task.
type TaskState struct {
	VacancyID   string  `json:"vacancy_id"`
	TaskID      string  `json:"task_id"`
	Status      string  `json:"status" enum:"pending,in_progress,skipped,complete"`
	CompletedOn *string `json:"completed_on,omitempty" format:"date"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

// ImportRun records one CSV hydration against a vacancy.
type ImportRun struct {
	ID              string `json:"id"`
	VacancyID       string `json:"vacancy_id"`
	Source          string `json:"source"`
	RowsRead        int    `json:"rows_read"`
	RowsMapped      int    `json:"rows_mapped"`
	PatchesApplied  int    `json:"patches_applied"`
	PatchesRejected int    `json:"patches_rejected"`
	DiagnosticsJSON string `json:"diagnostics_json"`
	CreatedBy       string `json:"created_by"`
	CreatedAt       string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload"`
}
