package vacancylinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Vacancyline HTTP API client.
type Client struct {
	BaseURL    string
	BasePath   string
	ActorID    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, actorID string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "v0",
		ActorID:  actorID,
		Timeout:  10 * time.Second,
	}
}

// Vacancy represents a stored vacancy (partial).
type Vacancy struct {
	ID               string      `json:"id"`
	UnitID           string      `json:"unit_id"`
	VacancyStart     string      `json:"vacancy_start"`
	TargetMoveIn     string      `json:"target_move_in"`
	BlueprintVersion string      `json:"blueprint_version"`
	Workflow         string      `json:"workflow"`
	CreatedAt        string      `json:"created_at"`
	Tasks            []TaskState `json:"tasks,omitempty"`
}

type TaskState struct {
	TaskID      string  `json:"task_id"`
	Status      string  `json:"status"`
	CompletedOn *string `json:"completed_on,omitempty"`
	UpdatedAt   string  `json:"updated_at"`
}

// Transition is a lifecycle edge.
type Transition struct {
	From    string `json:"from"`
	Trigger string `json:"trigger"`
	To      string `json:"to"`
}

type TaskUpdate struct {
	Vacancy  Vacancy     `json:"vacancy"`
	Task     TaskState   `json:"task"`
	Advanced *Transition `json:"lifecycle_advanced,omitempty"`
}

// ReportRequest describes an ad-hoc vacancy window.
type ReportRequest struct {
	VacancyStart string `json:"vacancy_start"`
	TargetMoveIn string `json:"target_move_in"`
	Today        string `json:"today,omitempty"`
	ApolloCSV    string `json:"apollo_csv,omitempty"`
	IncludeTasks bool   `json:"include_tasks,omitempty"`
}

// Report is the readiness report (partial).
type Report struct {
	DataSource     string `json:"data_source"`
	AsOf           string `json:"as_of"`
	TotalTasks     int    `json:"total_tasks"`
	CompletedTasks int    `json:"completed_tasks"`
	OverdueTasks   []struct {
		ID      string `json:"id"`
		DueDate string `json:"due_date"`
	} `json:"overdue_tasks"`
	Insights struct {
		ReadinessScore     int      `json:"readiness_score"`
		ReadinessLevel     string   `json:"readiness_level"`
		Blockers           []string `json:"blockers"`
		RecommendedActions []string `json:"recommended_actions"`
	} `json:"insights"`
}

type ImportResult struct {
	Run struct {
		ID         string `json:"id"`
		RowsRead   int    `json:"rows_read"`
		RowsMapped int    `json:"rows_mapped"`
	} `json:"run"`
	Applied  []string `json:"applied"`
	Rejected []struct {
		TaskID string `json:"task_id"`
		Reason string `json:"reason"`
	} `json:"rejected"`
	Advanced *Transition `json:"lifecycle_advanced,omitempty"`
}

// ApplicationStatus is the applicant-facing view of an application.
type ApplicationStatus struct {
	ApplicationID     string `json:"application_id"`
	Status            string `json:"status"`
	DecisionRationale string `json:"decision_rationale"`
	TotalScore        int    `json:"total_score"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Report builds a stateless readiness report.
func (c *Client) Report(ctx context.Context, req ReportRequest) (Report, error) {
	var resp Report
	_, err := c.do(ctx, http.MethodPost, "vacancy/report", req, &resp)
	return resp, err
}

// CreateVacancy opens a vacancy for a unit.
func (c *Client) CreateVacancy(ctx context.Context, unitID, vacancyStart, targetMoveIn string) (Vacancy, error) {
	body := map[string]any{
		"unit_id":        unitID,
		"vacancy_start":  vacancyStart,
		"target_move_in": targetMoveIn,
	}
	var resp Vacancy
	_, err := c.do(ctx, http.MethodPost, "vacancies", body, &resp)
	return resp, err
}

func (c *Client) GetVacancy(ctx context.Context, id string) (Vacancy, error) {
	var resp Vacancy
	_, err := c.do(ctx, http.MethodGet, "vacancies/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// SetTaskStatus moves a task. completedOn may be empty.
func (c *Client) SetTaskStatus(ctx context.Context, vacancyID, taskID, status, completedOn string) (TaskUpdate, error) {
	body := map[string]any{"status": status}
	if completedOn != "" {
		body["completed_on"] = completedOn
	}
	var resp TaskUpdate
	endpoint := fmt.Sprintf("vacancies/%s/tasks/%s", url.PathEscape(vacancyID), url.PathEscape(taskID))
	_, err := c.do(ctx, http.MethodPatch, endpoint, body, &resp)
	return resp, err
}

// ImportCSV hydrates a vacancy from an Apollo export.
func (c *Client) ImportCSV(ctx context.Context, vacancyID, csv string) (ImportResult, error) {
	var resp ImportResult
	endpoint := fmt.Sprintf("vacancies/%s/import", url.PathEscape(vacancyID))
	_, err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"csv": csv}, &resp)
	return resp, err
}

// VacancyReport returns the stored vacancy's report as of today (empty for server today).
func (c *Client) VacancyReport(ctx context.Context, vacancyID, today string) (Report, error) {
	endpoint := fmt.Sprintf("vacancies/%s/report", url.PathEscape(vacancyID))
	if today != "" {
		endpoint += "?today=" + url.QueryEscape(today)
	}
	var resp Report
	_, err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// SubmitApplication submits an application. duplicate is true when the server
// already had one for the applicant and unit.
func (c *Client) SubmitApplication(ctx context.Context, application any) (status ApplicationStatus, duplicate bool, err error) {
	code, err := c.do(ctx, http.MethodPost, "applications", application, &status)
	return status, code == http.StatusOK, err
}

func (c *Client) EvaluateApplication(ctx context.Context, id string) (ApplicationStatus, error) {
	var resp ApplicationStatus
	_, err := c.do(ctx, http.MethodPost, fmt.Sprintf("applications/%s/evaluate", url.PathEscape(id)), nil, &resp)
	return resp, err
}

func (c *Client) Application(ctx context.Context, id string) (ApplicationStatus, error) {
	var resp ApplicationStatus
	_, err := c.do(ctx, http.MethodGet, "applications/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ListingPlan is the prepared listing (partial).
type ListingPlan struct {
	Description       string `json:"description"`
	DocumentID        string `json:"document_id"`
	MissingPhotos     bool   `json:"missing_photos"`
	ComplianceSummary string `json:"compliance_summary"`
	ProspectOutcomes  []struct {
		Name        string `json:"name"`
		ApplicantID string `json:"applicant_id"`
		Outcome     string `json:"outcome"`
		Summary     string `json:"summary"`
		TotalScore  int    `json:"total_score"`
	} `json:"prospect_outcomes"`
}

// PrepareListing drafts a listing plan. req carries listing, media and prospects.
func (c *Client) PrepareListing(ctx context.Context, req any) (ListingPlan, error) {
	var resp ListingPlan
	_, err := c.do(ctx, http.MethodPost, "marketing/listing", req, &resp)
	return resp, err
}

// NextWorkflow resolves a lifecycle trigger.
func (c *Client) NextWorkflow(ctx context.Context, from, trigger string) (Transition, error) {
	var resp Transition
	_, err := c.do(ctx, http.MethodPost, "lifecycle/next", map[string]any{"from": from, "trigger": trigger}, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	_, err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) (int, error) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.ActorID != "" {
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return resp.StatusCode, apiErr
	}
	if out != nil {
		return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode, nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
