package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"reflect"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"vacancyline/internal/applications"
	"vacancyline/internal/domain"
	"vacancyline/internal/engine"
	"vacancyline/internal/lifecycle"
	"vacancyline/internal/marketing"
	"vacancyline/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_transition"`
	Message string         `json:"message" example:"invalid task status transition complete -> pending"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"task_id\":\"leasing_collect_funds\"}"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the vacancyline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors are 400 bad_request.
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(cfg.Engine.Log))
	router.Use(actorMiddleware)
	hcfg := huma.DefaultConfig("Vacancyline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerReports(group, cfg.Engine)
	registerBlueprint(group, cfg.Engine)
	registerVacancies(group, cfg.Engine)
	registerApplications(group, cfg.Engine)
	registerMarketing(group, cfg.Engine)
	registerLifecycle(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"field": ve.Field})
	}
	var te *domain.InvalidTransitionError
	if errors.As(err, &te) {
		return newAPIError(http.StatusConflict, "invalid_transition", err.Error(), map[string]any{
			"task_id": te.TaskID, "from": string(te.From), "to": string(te.To),
		})
	}
	var le *lifecycle.UnknownTransitionError
	if errors.As(err, &le) {
		return newAPIError(http.StatusConflict, "invalid_transition", err.Error(), map[string]any{
			"from": string(le.From), "trigger": string(le.Trigger),
		})
	}
	var ie *applications.IncompleteApplicationError
	if errors.As(err, &ie) {
		return newAPIError(http.StatusUnprocessableEntity, "incomplete_application", err.Error(), map[string]any{"missing": ie.Missing})
	}
	var ce *applications.ComplianceViolationError
	if errors.As(err, &ce) {
		return newAPIError(http.StatusUnprocessableEntity, "compliance_violation", err.Error(), map[string]any{"rule": ce.Rule})
	}
	switch {
	case errors.Is(err, domain.ErrUnknownTask):
		return newAPIError(http.StatusNotFound, "unknown_task", err.Error(), nil)
	case errors.Is(err, repo.ErrNotFound), errors.Is(err, applications.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, domain.ErrDegenerateBlueprint):
		return newAPIError(http.StatusUnprocessableEntity, "degenerate_blueprint", err.Error(), nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var doc []byte
	docPath := path.Join(basePath, "openapi.json")
	r.Get(docPath, func(w http.ResponseWriter, r *http.Request) {
		if doc == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			doc, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(doc)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	ref := "#/components/schemas/ApiError"
	if oas.Components != nil && oas.Components.Schemas != nil {
		if s := oas.Components.Schemas.Schema(reflect.TypeOf(apiError{}), true, "ApiError"); s != nil && s.Ref != "" {
			ref = s.Ref
		}
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: ref},
					},
				},
			}
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Vacancyline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerReports(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "vacancy-report",
		Method:      http.MethodPost,
		Path:        "/vacancy/report",
		Summary:     "Report on an ad-hoc vacancy window",
		Description: "Builds the standard workflow for the window, optionally hydrated from an Apollo CSV export, and returns readiness metrics and insights. Nothing is stored.",
		Errors:      []int{http.StatusBadRequest, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body VacancyReportRequest `json:"body"`
	}) (*struct {
		Body VacancyReportResponse `json:"body"`
	}, error) {
		out, err := e.BuildReport(engine.ReportRequest{
			VacancyStart: input.Body.VacancyStart,
			TargetMoveIn: input.Body.TargetMoveIn,
			Today:        input.Body.Today,
			ApolloCSV:    input.Body.ApolloCSV,
			IncludeTasks: input.Body.IncludeTasks,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body VacancyReportResponse `json:"body"`
		}{Body: VacancyReportResponse{
			DataSource: out.DataSource,
			Report:     out.Report,
			Import:     importSummary(out.Import, out.Hydration),
		}}, nil
	})
}

func registerBlueprint(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-blueprint",
		Method:      http.MethodGet,
		Path:        "/blueprint",
		Summary:     "Standard turnover blueprint",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body BlueprintResponse `json:"body"`
	}, error) {
		return &struct {
			Body BlueprintResponse `json:"body"`
		}{Body: blueprintResponse(e.Blueprint)}, nil
	})
}

func registerVacancies(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-vacancy",
		Method:        http.MethodPost,
		Path:          "/vacancies",
		Summary:       "Create vacancy",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body CreateVacancyRequest `json:"body"`
	}) (*struct {
		Body VacancyResponse `json:"body"`
	}, error) {
		v, err := e.CreateVacancy(ctx, engine.VacancyCreateOptions{
			UnitID:       input.Body.UnitID,
			VacancyStart: input.Body.VacancyStart,
			TargetMoveIn: input.Body.TargetMoveIn,
			ActorID:      actorFromContext(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body VacancyResponse `json:"body"`
		}{Body: vacancyResponse(v)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-vacancies",
		Method:      http.MethodGet,
		Path:        "/vacancies",
		Summary:     "List vacancies, newest first",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		UnitID   string `query:"unit_id"`
		Workflow string `query:"workflow"`
		Limit    int    `query:"limit" default:"50"`
		Cursor   string `query:"cursor"`
	}) (*struct {
		Body paginatedVacancies `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		cursorTS, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		items, err := e.ListVacancies(ctx, repo.VacancyFilters{
			UnitID: input.UnitID, Workflow: input.Workflow, Limit: limit + 1,
			CursorCreatedAt: cursorTS, CursorID: cursorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedVacancies{Items: []VacancyResponse{}}
		if len(items) > limit {
			last := items[limit-1]
			resp.NextCursor = composeCursor(last.CreatedAt, last.ID)
			items = items[:limit]
		}
		for _, v := range items {
			resp.Items = append(resp.Items, VacancyResponse{Vacancy: v})
		}
		return &struct {
			Body paginatedVacancies `json:"body"`
		}{Body: resp}, nil
	})

	type vacancyPath struct {
		ID string `path:"id"`
	}

	huma.Register(api, huma.Operation{
		OperationID: "get-vacancy",
		Method:      http.MethodGet,
		Path:        "/vacancies/{id}",
		Summary:     "Get vacancy with task states",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *vacancyPath) (*struct {
		Body VacancyResponse `json:"body"`
	}, error) {
		v, err := e.GetVacancy(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body VacancyResponse `json:"body"`
		}{Body: vacancyResponse(v)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-vacancy-task",
		Method:      http.MethodPatch,
		Path:        "/vacancies/{id}/tasks/{task_id}",
		Summary:     "Move a task forward",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID     string            `path:"id"`
		TaskID string            `path:"task_id"`
		Body   UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body TaskUpdateResponse `json:"body"`
	}, error) {
		res, err := e.SetTaskStatus(ctx, engine.TaskStatusOptions{
			VacancyID:   input.ID,
			TaskID:      input.TaskID,
			Status:      input.Body.Status,
			CompletedOn: input.Body.CompletedOn,
			ActorID:     actorFromContext(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskUpdateResponse `json:"body"`
		}{Body: TaskUpdateResponse{Vacancy: res.Vacancy, Task: taskStateResponse(res.Task), Advanced: res.Advanced}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "import-vacancy-csv",
		Method:      http.MethodPost,
		Path:        "/vacancies/{id}/import",
		Summary:     "Hydrate task status from an Apollo CSV export",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string        `path:"id"`
		Body ImportRequest `json:"body"`
	}) (*struct {
		Body ImportResponse `json:"body"`
	}, error) {
		if strings.TrimSpace(input.Body.CSV) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "csv is required", map[string]any{"field": "csv"})
		}
		out, err := e.ImportCSV(ctx, engine.ImportOptions{
			VacancyID: input.ID,
			Source:    input.Body.Source,
			Reader:    strings.NewReader(input.Body.CSV),
			ActorID:   actorFromContext(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ImportResponse `json:"body"`
		}{Body: ImportResponse{
			Run:      importRunResponse(out.Run),
			Applied:  out.Hydration.Applied,
			Rejected: out.Hydration.Rejected,
			Advanced: out.Advanced,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-vacancy-imports",
		Method:      http.MethodGet,
		Path:        "/vacancies/{id}/imports",
		Summary:     "List import runs",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *vacancyPath) (*struct {
		Body []ImportRunResponse `json:"body"`
	}, error) {
		runs, err := e.ListImportRuns(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]ImportRunResponse, 0, len(runs))
		for _, run := range runs {
			out = append(out, importRunResponse(run))
		}
		return &struct {
			Body []ImportRunResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-vacancy-report",
		Method:      http.MethodGet,
		Path:        "/vacancies/{id}/report",
		Summary:     "Readiness report for a stored vacancy",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ID           string `path:"id"`
		Today        string `query:"today" format:"date"`
		IncludeTasks bool   `query:"include_tasks"`
	}) (*struct {
		Body VacancyReportResponse `json:"body"`
	}, error) {
		rep, err := e.VacancyReport(ctx, input.ID, input.Today, input.IncludeTasks)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body VacancyReportResponse `json:"body"`
		}{Body: VacancyReportResponse{DataSource: engine.DataSourceStandard, Report: rep}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "advance-vacancy-workflow",
		Method:      http.MethodPost,
		Path:        "/vacancies/{id}/lifecycle",
		Summary:     "Fire a lifecycle trigger on a vacancy",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string                `path:"id"`
		Body AdvanceVacancyRequest `json:"body"`
	}) (*struct {
		Body TaskUpdateResponse `json:"body"`
	}, error) {
		v, edge, err := e.AdvanceWorkflow(ctx, input.ID, lifecycle.Trigger(input.Body.Trigger), actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskUpdateResponse `json:"body"`
		}{Body: TaskUpdateResponse{Vacancy: v, Advanced: &edge}}, nil
	})
}

func registerApplications(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "submit-application",
		Method:        http.MethodPost,
		Path:          "/applications",
		Summary:       "Submit a rental application",
		Description:   "Returns 202 for a new submission and 200 with the stored record when the applicant already applied for the unit.",
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{http.StatusBadRequest, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body applications.Application `json:"body"`
	}) (*struct {
		Status int
		Body   applications.PublicView `json:"body"`
	}, error) {
		rec, err := e.SubmitApplication(ctx, input.Body, actorFromContext(ctx))
		if dup, ok := engine.IsDuplicate(err); ok {
			return &struct {
				Status int
				Body   applications.PublicView `json:"body"`
			}{Status: http.StatusOK, Body: dup.Existing.Public()}, nil
		}
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Status int
			Body   applications.PublicView `json:"body"`
		}{Status: http.StatusAccepted, Body: rec.Public()}, nil
	})

	type applicationPath struct {
		ID string `path:"id"`
	}

	huma.Register(api, huma.Operation{
		OperationID: "evaluate-application",
		Method:      http.MethodPost,
		Path:        "/applications/{id}/evaluate",
		Summary:     "Score an application and record the decision",
		Errors:      []int{http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *applicationPath) (*struct {
		Body applications.PublicView `json:"body"`
	}, error) {
		rec, err := e.EvaluateApplication(ctx, input.ID, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body applications.PublicView `json:"body"`
		}{Body: rec.Public()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-application",
		Method:      http.MethodGet,
		Path:        "/applications/{id}",
		Summary:     "Application status",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *applicationPath) (*struct {
		Body applications.PublicView `json:"body"`
	}, error) {
		rec, err := e.GetApplication(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body applications.PublicView `json:"body"`
		}{Body: rec.Public()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-application-record",
		Method:      http.MethodGet,
		Path:        "/applications/{id}/record",
		Summary:     "Scored application record with contact details masked",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *applicationPath) (*struct {
		Body applications.Record `json:"body"`
	}, error) {
		rec, err := e.GetApplication(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body applications.Record `json:"body"`
		}{Body: rec.Redacted()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-applications",
		Method:      http.MethodGet,
		Path:        "/applications",
		Summary:     "List applications by status",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" default:"submitted" enum:"submitted,evaluating,approved,denied,pending_review"`
		Limit  int    `query:"limit" default:"50"`
	}) (*struct {
		Body paginatedApplications `json:"body"`
	}, error) {
		recs, err := e.ListApplications(ctx, applications.Status(input.Status), normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedApplications{Items: []applications.PublicView{}}
		for _, rec := range recs {
			resp.Items = append(resp.Items, rec.Public())
		}
		return &struct {
			Body paginatedApplications `json:"body"`
		}{Body: resp}, nil
	})
}

func registerMarketing(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "prepare-listing",
		Method:      http.MethodPost,
		Path:        "/marketing/listing",
		Summary:     "Prepare a listing plan",
		Description: "Builds listing copy and a compliance summary, selects photos from the supplied media and screens sample prospects. The rendered draft is stored as a marketing.listing_drafted event.",
		Errors:      []int{http.StatusBadRequest, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body ListingPlanRequest `json:"body"`
	}) (*struct {
		Body marketing.Plan `json:"body"`
	}, error) {
		plan, err := e.PrepareListing(ctx, input.Body.input(), input.Body.Media, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body marketing.Plan `json:"body"`
		}{Body: plan}, nil
	})
}

func registerLifecycle(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-lifecycle",
		Method:      http.MethodGet,
		Path:        "/lifecycle",
		Summary:     "Workflow types and transitions",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body LifecycleResponse `json:"body"`
	}, error) {
		return &struct {
			Body LifecycleResponse `json:"body"`
		}{Body: LifecycleResponse{Types: lifecycle.Types(), Edges: lifecycle.Edges()}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "lifecycle-next",
		Method:      http.MethodPost,
		Path:        "/lifecycle/next",
		Summary:     "Resolve the workflow a trigger leads to",
		Errors:      []int{http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body LifecycleNextRequest `json:"body"`
	}) (*struct {
		Body lifecycle.Edge `json:"body"`
	}, error) {
		from := lifecycle.WorkflowType(input.Body.From)
		trigger := lifecycle.Trigger(input.Body.Trigger)
		to, err := lifecycle.Next(from, trigger)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body lifecycle.Edge `json:"body"`
		}{Body: lifecycle.Edge{From: from, Trigger: trigger, To: to}}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		TypePrefix string `query:"type_prefix"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := e.ListEvents(ctx, limit+1, cursorID, repo.EventFilters{
			Type: input.Type, TypePrefix: input.TypePrefix, EntityKind: input.EntityKind, EntityID: input.EntityID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit-1].ID)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}

func parseCompositeCursor(cursor string) (string, string, error) {
	if cursor == "" {
		return "", "", nil
	}
	parts := strings.SplitN(cursor, "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid cursor")
	}
	return parts[0], parts[1], nil
}

func composeCursor(ts, id string) string {
	if ts == "" || id == "" {
		return ""
	}
	return ts + "|" + id
}
