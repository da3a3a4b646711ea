package importer

import (
	"fmt"
	"sort"

	"vacancyline/internal/blueprint"
)

// MappingEntry binds an external task name to a blueprint task id.
type MappingEntry struct {
	Name   string `json:"name" yaml:"name"`
	TaskID string `json:"task_id" yaml:"task_id"`
}

// NormalizationMap resolves normalized external names to blueprint task ids. It only
// ever yields ids present in its blueprint.
type NormalizationMap struct {
	bp      *blueprint.Blueprint
	entries map[string]string
}

// NewNormalizationMap registers every template's id, name and "name - role" form,
// then the supplied aliases. Unknown targets and keys bound to two different tasks
// are rejected.
func NewNormalizationMap(bp *blueprint.Blueprint, aliases []MappingEntry) (*NormalizationMap, error) {
	if bp == nil {
		return nil, fmt.Errorf("blueprint is required")
	}
	m := &NormalizationMap{bp: bp, entries: map[string]string{}}
	for _, tmpl := range bp.Tasks() {
		for _, name := range []string{tmpl.ID, tmpl.Name, tmpl.Name + " - " + tmpl.Role.Label()} {
			if err := m.add(name, tmpl.ID); err != nil {
				return nil, err
			}
		}
	}
	for _, a := range aliases {
		if err := m.add(a.Name, a.TaskID); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// StandardMapping is the blueprint-derived map plus the known AppFolio/Apollo aliases.
func StandardMapping(bp *blueprint.Blueprint) (*NormalizationMap, error) {
	return NewNormalizationMap(bp, standardAliases)
}

// WithAliases returns a copy of the map extended with extra aliases.
func (m *NormalizationMap) WithAliases(aliases []MappingEntry) (*NormalizationMap, error) {
	out := &NormalizationMap{bp: m.bp, entries: make(map[string]string, len(m.entries)+len(aliases))}
	for k, v := range m.entries {
		out.entries[k] = v
	}
	for _, a := range aliases {
		if err := out.add(a.Name, a.TaskID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (m *NormalizationMap) add(name, taskID string) error {
	if _, ok := m.bp.Task(taskID); !ok {
		return fmt.Errorf("mapping %q targets unknown task %s", name, taskID)
	}
	key := Normalize(name)
	if key == "" {
		return fmt.Errorf("mapping for task %s has an empty name", taskID)
	}
	if existing, ok := m.entries[key]; ok && existing != taskID {
		return fmt.Errorf("mapping %q is ambiguous: %s and %s", name, existing, taskID)
	}
	m.entries[key] = taskID
	return nil
}

// Lookup normalizes name and returns the matching task id.
func (m *NormalizationMap) Lookup(name string) (string, bool) {
	id, ok := m.entries[Normalize(name)]
	return id, ok
}

func (m *NormalizationMap) Len() int { return len(m.entries) }

func (m *NormalizationMap) Blueprint() *blueprint.Blueprint { return m.bp }

// Entries lists normalized keys and targets sorted by key.
func (m *NormalizationMap) Entries() []MappingEntry {
	out := make([]MappingEntry, 0, len(m.entries))
	for k, v := range m.entries {
		out = append(out, MappingEntry{Name: k, TaskID: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

var standardAliases = []MappingEntry{
	{Name: "Update Vacancy in AppFolio", TaskID: "marketing_update_appfolio"},
	{Name: "Update Vacancy in AppFolio - Leasing Agent", TaskID: "marketing_update_appfolio"},

	{Name: "Complete Lease Agreement and Collect Financials", TaskID: "leasing_prepare_agreement"},
	{Name: "Complete Lease Agreement and Collect Financials - Leasing Agent", TaskID: "leasing_prepare_agreement"},
	{Name: "Send the lease to the new tenant for e-signature via AppFolio.", TaskID: "leasing_prepare_agreement"},
	{Name: "Send the new lease agreement to the tenant for signature. Iowa law (Iowa Code § 562A.13) requires written notice of any rent increase at least 30 days before the effective date.", TaskID: "leasing_prepare_agreement"},
	{Name: "Sign new leases", TaskID: "leasing_prepare_agreement"},

	{Name: "Collect Funds", TaskID: "leasing_collect_funds"},
	{Name: "Collect Funds - Property Manager/Accounting", TaskID: "leasing_collect_funds"},
	{Name: "Collect Funds - PM/Accounting", TaskID: "leasing_collect_funds"},
	{Name: "Collect Move-In Funds - Property Manager/Accounting", TaskID: "leasing_collect_funds"},
	{Name: "Collect first month's rent and the security deposit.", TaskID: "leasing_collect_funds"},

	{Name: "Conduct Move-In Walk-Through & Orientation", TaskID: "leasing_conduct_move_in_inspection"},
	{Name: "Conduct Move-In Walk-Through & Orientation - Property Manager", TaskID: "leasing_conduct_move_in_inspection"},

	{Name: "Finalize TIC", TaskID: "leasing_lihtc_certification"},

	{Name: "Start New Resident Workflow", TaskID: "handoff_start_new_resident_workflow"},
	{Name: "Start the New Resident Workflow", TaskID: "handoff_start_new_resident_workflow"},
	{Name: "Hand Over Keys & Welcome Tenant", TaskID: "handoff_start_new_resident_workflow"},
	{Name: "Hand Over Keys & Welcome Tenant - Leasing Agent", TaskID: "handoff_start_new_resident_workflow"},
	{Name: `Update the unit's status in AppFolio from "Vacant" to "Occupied."`, TaskID: "handoff_start_new_resident_workflow"},
}
