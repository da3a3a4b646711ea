package workflow

import (
	"time"

	"vacancyline/internal/domain"
)

// HydrationPatch sets a task status from an external source. A complete patch needs
// CompletedOn unless DateUnknown marks a completion whose date could not be read.
type HydrationPatch struct {
	TaskID      string            `json:"task_id"`
	Status      domain.TaskStatus `json:"status"`
	CompletedOn *time.Time        `json:"completed_on,omitempty"`
	DateUnknown bool              `json:"date_unknown,omitempty"`
	SourceRow   int               `json:"source_row,omitempty"`
}

// PatchRejection explains why one patch was not applied.
type PatchRejection struct {
	TaskID string `json:"task_id"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

type HydrationResult struct {
	Applied  []string         `json:"applied"`
	Rejected []PatchRejection `json:"rejected"`
}

// ApplyHydrationPatch validates each patch on its own. Valid patches are applied even
// when others in the same batch are rejected.
func (i *Instance) ApplyHydrationPatch(patches []HydrationPatch) HydrationResult {
	i.mu.Lock()
	defer i.mu.Unlock()
	res := HydrationResult{Applied: []string{}, Rejected: []PatchRejection{}}
	for _, p := range patches {
		if err := i.apply(p.TaskID, p.Status, p.CompletedOn, p.DateUnknown); err != nil {
			res.Rejected = append(res.Rejected, PatchRejection{TaskID: p.TaskID, Reason: err.Error(), Err: err})
			continue
		}
		res.Applied = append(res.Applied, p.TaskID)
	}
	return res
}
