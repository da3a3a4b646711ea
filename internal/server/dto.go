package server

import (
	"encoding/json"

	"vacancyline/internal/applications"
	"vacancyline/internal/blueprint"
	"vacancyline/internal/domain"
	"vacancyline/internal/engine"
	"vacancyline/internal/importer"
	"vacancyline/internal/lifecycle"
	"vacancyline/internal/marketing"
	"vacancyline/internal/report"
	"vacancyline/internal/workflow"
)

// Request payloads

type VacancyReportRequest struct {
	VacancyStart string `json:"vacancy_start" format:"date"`
	TargetMoveIn string `json:"target_move_in" format:"date"`
	Today        string `json:"today,omitempty" format:"date"`
	ApolloCSV    string `json:"apollo_csv,omitempty"`
	IncludeTasks bool   `json:"include_tasks,omitempty"`
}

// ListingProspect is a sample applicant for a listing plan. Unit, rent, deposit and
// jurisdiction come from the listing.
type ListingProspect struct {
	Name                  string                        `json:"name"`
	Household             applications.Household        `json:"household"`
	MonthlyIncome         int                           `json:"monthly_income"`
	VerifiedIncomeSources []string                      `json:"verified_income_sources,omitempty"`
	CreditScore           *int                          `json:"credit_score,omitempty"`
	RentalHistory         applications.RentalHistory    `json:"rental_history,omitempty"`
	CriminalHistory       []applications.CriminalRecord `json:"criminal_history,omitempty"`
	VoucherMonthly        int                           `json:"voucher_monthly,omitempty"`
}

type ListingPlanRequest struct {
	Listing   marketing.ListingContext `json:"listing"`
	Media     []marketing.Media        `json:"media,omitempty"`
	Prospects []ListingProspect        `json:"prospects,omitempty"`
}

type CreateVacancyRequest struct {
	UnitID       string `json:"unit_id"`
	VacancyStart string `json:"vacancy_start" format:"date"`
	TargetMoveIn string `json:"target_move_in" format:"date"`
}

type UpdateTaskRequest struct {
	Status      string `json:"status" enum:"pending,in_progress,skipped,complete"`
	CompletedOn string `json:"completed_on,omitempty" format:"date"`
}

type ImportRequest struct {
	CSV    string `json:"csv"`
	Source string `json:"source,omitempty"`
}

type LifecycleNextRequest struct {
	From    string `json:"from" enum:"turnover,vacancy,new_resident,maintenance,renewal,delinquent_rent"`
	Trigger string `json:"trigger"`
}

type AdvanceVacancyRequest struct {
	Trigger string `json:"trigger"`
}

// Responses

type ImportSummary struct {
	RowsRead    int                       `json:"rows_read"`
	RowsMapped  int                       `json:"rows_mapped"`
	Applied     []string                  `json:"applied"`
	Rejected    []workflow.PatchRejection `json:"rejected"`
	Diagnostics []importer.Diagnostic     `json:"diagnostics"`
}

type VacancyReportResponse struct {
	DataSource string `json:"data_source" enum:"standard,apollo"`
	report.Report
	Import *ImportSummary `json:"import,omitempty"`
}

type BlueprintTaskResponse struct {
	ID           string                  `json:"id"`
	Name         string                  `json:"name"`
	Stage        domain.Stage            `json:"stage"`
	StageLabel   string                  `json:"stage_label"`
	Role         domain.Role             `json:"role"`
	RoleLabel    string                  `json:"role_label"`
	Due          string                  `json:"due"`
	Critical     bool                    `json:"critical"`
	Deliverables []string                `json:"deliverables"`
	Compliance   []domain.ComplianceNote `json:"compliance"`
}

type BlueprintResponse struct {
	Version string                  `json:"version"`
	Tasks   []BlueprintTaskResponse `json:"tasks"`
}

type TaskStateResponse struct {
	TaskID      string  `json:"task_id"`
	Status      string  `json:"status" enum:"pending,in_progress,skipped,complete"`
	CompletedOn *string `json:"completed_on,omitempty" format:"date"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

type VacancyResponse struct {
	domain.Vacancy
	Tasks []TaskStateResponse `json:"tasks,omitempty"`
}

type paginatedVacancies struct {
	Items      []VacancyResponse `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

type TaskUpdateResponse struct {
	Vacancy  domain.Vacancy    `json:"vacancy"`
	Task     TaskStateResponse `json:"task"`
	Advanced *lifecycle.Edge   `json:"lifecycle_advanced,omitempty"`
}

type ImportRunResponse struct {
	ID              string                `json:"id"`
	VacancyID       string                `json:"vacancy_id"`
	Source          string                `json:"source"`
	RowsRead        int                   `json:"rows_read"`
	RowsMapped      int                   `json:"rows_mapped"`
	PatchesApplied  int                   `json:"patches_applied"`
	PatchesRejected int                   `json:"patches_rejected"`
	Diagnostics     []importer.Diagnostic `json:"diagnostics"`
	CreatedBy       string                `json:"created_by"`
	CreatedAt       string                `json:"created_at" format:"date-time"`
}

type ImportResponse struct {
	Run      ImportRunResponse         `json:"run"`
	Applied  []string                  `json:"applied"`
	Rejected []workflow.PatchRejection `json:"rejected"`
	Advanced *lifecycle.Edge           `json:"lifecycle_advanced,omitempty"`
}

type LifecycleResponse struct {
	Types []lifecycle.WorkflowType `json:"types"`
	Edges []lifecycle.Edge         `json:"edges"`
}

type paginatedApplications struct {
	Items []applications.PublicView `json:"items"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Conversion helpers

func (r ListingPlanRequest) input() marketing.Input {
	in := marketing.Input{Listing: r.Listing}
	for _, p := range r.Prospects {
		in.Prospects = append(in.Prospects, marketing.Prospect{Name: p.Name, Application: applications.Application{
			Household:             p.Household,
			MonthlyIncome:         p.MonthlyIncome,
			VerifiedIncomeSources: p.VerifiedIncomeSources,
			CreditScore:           p.CreditScore,
			RentalHistory:         p.RentalHistory,
			CriminalHistory:       p.CriminalHistory,
			VoucherMonthly:        p.VoucherMonthly,
		}})
	}
	return in
}

func blueprintResponse(bp *blueprint.Blueprint) BlueprintResponse {
	resp := BlueprintResponse{Version: bp.Version(), Tasks: []BlueprintTaskResponse{}}
	for _, t := range bp.Tasks() {
		deliverables := t.Deliverables
		if deliverables == nil {
			deliverables = []string{}
		}
		compliance := t.Compliance
		if compliance == nil {
			compliance = []domain.ComplianceNote{}
		}
		resp.Tasks = append(resp.Tasks, BlueprintTaskResponse{
			ID:           t.ID,
			Name:         t.Name,
			Stage:        t.Stage,
			StageLabel:   t.Stage.Label(),
			Role:         t.Role,
			RoleLabel:    t.Role.Label(),
			Due:          t.Due.String(),
			Critical:     t.Critical,
			Deliverables: deliverables,
			Compliance:   compliance,
		})
	}
	return resp
}

func taskStateResponse(s domain.TaskState) TaskStateResponse {
	return TaskStateResponse{TaskID: s.TaskID, Status: s.Status, CompletedOn: s.CompletedOn, UpdatedAt: s.UpdatedAt}
}

func vacancyResponse(d engine.VacancyDetail) VacancyResponse {
	resp := VacancyResponse{Vacancy: d.Vacancy, Tasks: []TaskStateResponse{}}
	for _, s := range d.Tasks {
		resp.Tasks = append(resp.Tasks, taskStateResponse(s))
	}
	return resp
}

func importSummary(res *importer.Result, hyd *workflow.HydrationResult) *ImportSummary {
	if res == nil {
		return nil
	}
	s := &ImportSummary{
		RowsRead:    res.RowsRead,
		RowsMapped:  res.RowsMapped,
		Diagnostics: res.Diagnostics,
		Applied:     []string{},
		Rejected:    []workflow.PatchRejection{},
	}
	if hyd != nil {
		s.Applied = hyd.Applied
		s.Rejected = hyd.Rejected
	}
	return s
}

func importRunResponse(run domain.ImportRun) ImportRunResponse {
	diags := []importer.Diagnostic{}
	if run.DiagnosticsJSON != "" {
		_ = json.Unmarshal([]byte(run.DiagnosticsJSON), &diags)
	}
	return ImportRunResponse{
		ID:              run.ID,
		VacancyID:       run.VacancyID,
		Source:          run.Source,
		RowsRead:        run.RowsRead,
		RowsMapped:      run.RowsMapped,
		PatchesApplied:  run.PatchesApplied,
		PatchesRejected: run.PatchesRejected,
		Diagnostics:     diags,
		CreatedBy:       run.CreatedBy,
		CreatedAt:       run.CreatedAt,
	}
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func decodeJSONMap(raw string) map[string]any {
	out := map[string]any{}
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]any{"raw": raw}
	}
	return out
}
