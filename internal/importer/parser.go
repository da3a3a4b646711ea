package importer

import (
	"encoding/csv"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"

	"vacancyline/internal/domain"
)

// Row is one data line of an export, keyed by recognized column.
type Row struct {
	Line         int
	Name         string
	Status       string
	CompletedAt  string
	CreatedAt    string
	LastModified string
	Stage        string
	Assignee     string
}

type column int

const (
	colName column = iota
	colStatus
	colCompletedAt
	colCreatedAt
	colLastModified
	colStage
	colAssignee
)

// headerAliases are matched against normalized header cells.
var headerAliases = map[string]column{
	"name":            colName,
	"task":            colName,
	"task name":       colName,
	"title":           colName,
	"status":          colStatus,
	"state":           colStatus,
	"completed":       colStatus,
	"complete":        colStatus,
	"completion":      colStatus,
	"completed at":    colCompletedAt,
	"completed on":    colCompletedAt,
	"completion date": colCompletedAt,
	"completed date":  colCompletedAt,
	"date completed":  colCompletedAt,
	"created at":      colCreatedAt,
	"created":         colCreatedAt,
	"created on":      colCreatedAt,
	"last modified":   colLastModified,
	"modified at":     colLastModified,
	"updated at":      colLastModified,
	"stage":           colStage,
	"section":         colStage,
	"assignee":        colAssignee,
	"assigned to":     colAssignee,
	"owner":           colAssignee,
}

// ReadRows parses CSV input. Unknown columns are ignored; a missing name column or
// malformed CSV is fatal.
func ReadRows(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &domain.ValidationError{Field: "csv", Message: "csv input is empty"}
	}
	if err != nil {
		return nil, errors.Wrap(err, "read csv header")
	}
	positions := map[column]int{}
	for i, cell := range header {
		col, ok := headerAliases[Normalize(cell)]
		if !ok {
			continue
		}
		if _, seen := positions[col]; !seen {
			positions[col] = i
		}
	}
	if _, ok := positions[colName]; !ok {
		return nil, &domain.ValidationError{Field: "csv", Message: "csv header has no task name column"}
	}

	var rows []Row
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read csv row")
		}
		if blankRecord(record) {
			continue
		}
		line, _ := cr.FieldPos(0)
		get := func(c column) string {
			i, ok := positions[c]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		rows = append(rows, Row{
			Line:         line,
			Name:         get(colName),
			Status:       get(colStatus),
			CompletedAt:  get(colCompletedAt),
			CreatedAt:    get(colCreatedAt),
			LastModified: get(colLastModified),
			Stage:        get(colStage),
			Assignee:     get(colAssignee),
		})
	}
	return rows, nil
}

func blankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	domain.DateLayout,
	"1/2/2006 15:04",
	"1/2/2006",
}

// parseTimestamp accepts the date and datetime shapes seen in task-manager exports.
func parseTimestamp(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

type marker int

const (
	markerNone marker = iota
	markerPending
	markerInProgress
	markerSkipped
	markerComplete
	markerUnknown
)

var statusMarkers = map[string]marker{
	"complete":       markerComplete,
	"completed":      markerComplete,
	"done":           markerComplete,
	"closed":         markerComplete,
	"yes":            markerComplete,
	"y":              markerComplete,
	"true":           markerComplete,
	"x":              markerComplete,
	"1":              markerComplete,
	"in progress":    markerInProgress,
	"started":        markerInProgress,
	"doing":          markerInProgress,
	"active":         markerInProgress,
	"skipped":        markerSkipped,
	"skip":           markerSkipped,
	"n a":            markerSkipped,
	"na":             markerSkipped,
	"not applicable": markerSkipped,
	"pending":        markerPending,
	"not started":    markerPending,
	"open":           markerPending,
	"todo":           markerPending,
	"to do":          markerPending,
	"no":             markerPending,
	"n":              markerPending,
	"false":          markerPending,
	"0":              markerPending,
}

func parseMarker(v string) marker {
	key := Normalize(v)
	if key == "" {
		return markerNone
	}
	if m, ok := statusMarkers[key]; ok {
		return m
	}
	return markerUnknown
}
