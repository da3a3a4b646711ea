package engine

import (
	"context"
	"strings"
	"time"

	"vacancyline/internal/domain"
	"vacancyline/internal/importer"
	"vacancyline/internal/report"
	"vacancyline/internal/workflow"
)

const (
	DataSourceStandard = "standard"
	DataSourceApollo   = "apollo"
)

func (e Engine) policy() report.Policy {
	if e.Config == nil {
		return report.DefaultPolicy()
	}
	return e.Config.Report.Policy()
}

func (e Engine) asOf(today string) (time.Time, error) {
	if strings.TrimSpace(today) == "" {
		return e.Today(), nil
	}
	return domain.ParseDate("today", today)
}

// VacancyReport reports on a stored vacancy. An empty today means the current day
// in the workspace timezone.
func (e Engine) VacancyReport(ctx context.Context, id, today string, includeTasks bool) (report.Report, error) {
	asOf, err := e.asOf(today)
	if err != nil {
		return report.Report{}, err
	}
	_, inst, err := e.LoadInstance(ctx, id)
	if err != nil {
		return report.Report{}, err
	}
	rep, err := report.Generate(inst.Snapshot(), asOf, e.policy())
	if err != nil {
		return report.Report{}, err
	}
	if !includeTasks {
		rep = rep.WithoutTasks()
	}
	return rep, nil
}

type ReportRequest struct {
	VacancyStart string
	TargetMoveIn string
	Today        string
	ApolloCSV    string
	IncludeTasks bool
}

type ReportOutcome struct {
	DataSource string                    `json:"data_source"`
	Report     report.Report             `json:"report"`
	Import     *importer.Result          `json:"import,omitempty"`
	Hydration  *workflow.HydrationResult `json:"hydration,omitempty"`
}

// BuildReport reports on an ad-hoc window without touching storage, optionally
// hydrated from an Apollo export.
func (e Engine) BuildReport(req ReportRequest) (ReportOutcome, error) {
	window, err := parseWindow(req.VacancyStart, req.TargetMoveIn)
	if err != nil {
		return ReportOutcome{}, err
	}
	asOf, err := e.asOf(req.Today)
	if err != nil {
		return ReportOutcome{}, err
	}
	inst, err := workflow.New(e.Blueprint, window)
	if err != nil {
		return ReportOutcome{}, err
	}
	out := ReportOutcome{DataSource: DataSourceStandard}
	if strings.TrimSpace(req.ApolloCSV) != "" {
		mapping, err := e.Mapping()
		if err != nil {
			return ReportOutcome{}, err
		}
		res, hyd, err := importer.New(mapping).Hydrate(inst, strings.NewReader(req.ApolloCSV))
		if err != nil {
			return ReportOutcome{}, err
		}
		out.DataSource = DataSourceApollo
		out.Import = &res
		out.Hydration = &hyd
	}
	rep, err := report.Generate(inst.Snapshot(), asOf, e.policy())
	if err != nil {
		return ReportOutcome{}, err
	}
	if !req.IncludeTasks {
		rep = rep.WithoutTasks()
	}
	out.Report = rep
	return out, nil
}
