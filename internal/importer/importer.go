package importer

import (
	"fmt"
	"io"
	"sort"
	"time"

	"vacancyline/internal/domain"
	"vacancyline/internal/workflow"
)

type DiagnosticKind string

const (
	DiagUnmappedRow    DiagnosticKind = "unmapped_row"
	DiagBlankName      DiagnosticKind = "blank_name"
	DiagUnparsableDate DiagnosticKind = "unparsable_completion_date"
	DiagMissingDate    DiagnosticKind = "missing_completion_date"
	DiagUnknownStatus  DiagnosticKind = "unknown_status_marker"
	DiagSupersededRow  DiagnosticKind = "superseded_row"
)

// Diagnostic is a non-fatal import problem tied to one source line.
type Diagnostic struct {
	Row      int            `json:"row"`
	Kind     DiagnosticKind `json:"kind"`
	TaskName string         `json:"task_name,omitempty"`
	TaskID   string         `json:"task_id,omitempty"`
	Detail   string         `json:"detail"`
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("row %d: %s: %s", d.Row, d.Kind, d.Detail)
}

// Result is the outcome of parsing an export. Patches are ordered by blueprint
// declaration so applying them is deterministic.
type Result struct {
	Patches     []workflow.HydrationPatch `json:"patches"`
	Diagnostics []Diagnostic              `json:"diagnostics"`
	RowsRead    int                       `json:"rows_read"`
	RowsMapped  int                       `json:"rows_mapped"`
}

type Importer struct {
	Mapping *NormalizationMap
}

func New(mapping *NormalizationMap) *Importer {
	return &Importer{Mapping: mapping}
}

type derived struct {
	row         Row
	status      domain.TaskStatus
	completedOn *time.Time
	dateUnknown bool
}

// Parse reads an export and turns mapped rows into hydration patches. When several
// rows name the same task the last one in file order wins. Rows that resolve to
// pending produce no patch.
func (im *Importer) Parse(r io.Reader) (Result, error) {
	rows, err := ReadRows(r)
	if err != nil {
		return Result{}, err
	}
	res := Result{Patches: []workflow.HydrationPatch{}, Diagnostics: []Diagnostic{}, RowsRead: len(rows)}
	latest := map[string]derived{}
	for _, row := range rows {
		if Normalize(row.Name) == "" {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{Row: row.Line, Kind: DiagBlankName, Detail: "row has no task name"})
			continue
		}
		taskID, ok := im.Mapping.Lookup(row.Name)
		if !ok {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Row: row.Line, Kind: DiagUnmappedRow, TaskName: row.Name,
				Detail: fmt.Sprintf("no blueprint task matches %q", row.Name),
			})
			continue
		}
		res.RowsMapped++
		d, diags := derive(row, taskID)
		res.Diagnostics = append(res.Diagnostics, diags...)
		if prev, seen := latest[taskID]; seen {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Row: prev.row.Line, Kind: DiagSupersededRow, TaskName: prev.row.Name, TaskID: taskID,
				Detail: fmt.Sprintf("overridden by row %d", row.Line),
			})
		}
		latest[taskID] = d
	}

	bp := im.Mapping.Blueprint()
	ids := make([]string, 0, len(latest))
	for id := range latest {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return bp.Position(ids[i]) < bp.Position(ids[j]) })
	for _, id := range ids {
		d := latest[id]
		if d.status == domain.StatusPending {
			continue
		}
		res.Patches = append(res.Patches, workflow.HydrationPatch{
			TaskID:      id,
			Status:      d.status,
			CompletedOn: d.completedOn,
			DateUnknown: d.dateUnknown,
			SourceRow:   d.row.Line,
		})
	}
	sort.SliceStable(res.Diagnostics, func(i, j int) bool { return res.Diagnostics[i].Row < res.Diagnostics[j].Row })
	return res, nil
}

// Hydrate parses the export and applies its patches to the instance.
func (im *Importer) Hydrate(inst *workflow.Instance, r io.Reader) (Result, workflow.HydrationResult, error) {
	res, err := im.Parse(r)
	if err != nil {
		return Result{}, workflow.HydrationResult{}, err
	}
	return res, inst.ApplyHydrationPatch(res.Patches), nil
}

func derive(row Row, taskID string) (derived, []Diagnostic) {
	d := derived{row: row, status: domain.StatusPending}
	var diags []Diagnostic
	diag := func(kind DiagnosticKind, detail string) {
		diags = append(diags, Diagnostic{Row: row.Line, Kind: kind, TaskName: row.Name, TaskID: taskID, Detail: detail})
	}

	switch m := parseMarker(row.Status); m {
	case markerComplete:
		d.status = domain.StatusComplete
		d.completedOn, d.dateUnknown = completionDate(row, diag)
		return d, diags
	case markerInProgress:
		d.status = domain.StatusInProgress
		return d, diags
	case markerSkipped:
		d.status = domain.StatusSkipped
		return d, diags
	case markerPending:
		return d, diags
	case markerUnknown:
		diag(DiagUnknownStatus, fmt.Sprintf("unrecognized status %q; deriving from dates", row.Status))
	}

	if row.CompletedAt != "" {
		d.status = domain.StatusComplete
		d.completedOn, d.dateUnknown = completionDate(row, diag)
		return d, diags
	}
	if touched(row) {
		d.status = domain.StatusInProgress
	}
	return d, diags
}

// completionDate degrades an unreadable date to "complete, date unknown".
func completionDate(row Row, diag func(DiagnosticKind, string)) (*time.Time, bool) {
	if row.CompletedAt == "" {
		diag(DiagMissingDate, "marked complete without a completion date")
		return nil, true
	}
	t, ok := parseTimestamp(row.CompletedAt)
	if !ok {
		diag(DiagUnparsableDate, fmt.Sprintf("cannot parse completion date %q", row.CompletedAt))
		return nil, true
	}
	d := domain.Midnight(t)
	return &d, false
}

// touched reports a row modified after creation, which signals work has started.
func touched(row Row) bool {
	created, ok := parseTimestamp(row.CreatedAt)
	if !ok {
		return false
	}
	modified, ok := parseTimestamp(row.LastModified)
	if !ok {
		return false
	}
	return modified.After(created)
}
