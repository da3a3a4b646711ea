// Package blueprint holds the versioned catalog of vacancy task templates.
package blueprint

import (
	"fmt"

	"github.com/Masterminds/semver/v3"

	"vacancyline/internal/domain"
)

// StandardVersion is the version of the built-in turnover blueprint.
const StandardVersion = "1.0.0"

// Blueprint is an immutable, ordered set of task templates. It has no mutation API;
// accessors hand out copies.
type Blueprint struct {
	version *semver.Version
	tasks   []domain.TaskTemplate
	index   map[string]int
}

// New validates templates and builds a blueprint. Declaration order is preserved.
func New(version string, templates []domain.TaskTemplate) (*Blueprint, error) {
	v, err := semver.StrictNewVersion(version)
	if err != nil {
		return nil, fmt.Errorf("invalid blueprint version %q: %w", version, err)
	}
	bp := &Blueprint{
		version: v,
		tasks:   make([]domain.TaskTemplate, 0, len(templates)),
		index:   make(map[string]int, len(templates)),
	}
	for _, t := range templates {
		if t.ID == "" {
			return nil, fmt.Errorf("template %q has empty id", t.Name)
		}
		if _, dup := bp.index[t.ID]; dup {
			return nil, fmt.Errorf("duplicate template id %s", t.ID)
		}
		if !t.Stage.Valid() {
			return nil, fmt.Errorf("template %s has unknown stage %q", t.ID, t.Stage)
		}
		if !t.Role.Valid() {
			return nil, fmt.Errorf("template %s has unknown role %q", t.ID, t.Role)
		}
		if t.Due.Anchor != domain.AnchorVacancyStart && t.Due.Anchor != domain.AnchorTargetMoveIn {
			return nil, fmt.Errorf("template %s has unknown due anchor %q", t.ID, t.Due.Anchor)
		}
		bp.index[t.ID] = len(bp.tasks)
		bp.tasks = append(bp.tasks, cloneTemplate(t))
	}
	return bp, nil
}

func (b *Blueprint) Version() string { return b.version.String() }

// Compatible reports whether the blueprint satisfies a semver constraint such as "^1.0".
func (b *Blueprint) Compatible(constraint string) (bool, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("invalid blueprint constraint %q: %w", constraint, err)
	}
	return c.Check(b.version), nil
}

func (b *Blueprint) Len() int { return len(b.tasks) }

// Tasks returns the templates in declaration order.
func (b *Blueprint) Tasks() []domain.TaskTemplate {
	out := make([]domain.TaskTemplate, len(b.tasks))
	for i, t := range b.tasks {
		out[i] = cloneTemplate(t)
	}
	return out
}

func (b *Blueprint) Task(id string) (domain.TaskTemplate, bool) {
	i, ok := b.index[id]
	if !ok {
		return domain.TaskTemplate{}, false
	}
	return cloneTemplate(b.tasks[i]), true
}

// Position returns the declaration index of a template, or -1.
func (b *Blueprint) Position(id string) int {
	if i, ok := b.index[id]; ok {
		return i
	}
	return -1
}

func (b *Blueprint) TasksForStage(stage domain.Stage) []domain.TaskTemplate {
	var out []domain.TaskTemplate
	for _, t := range b.tasks {
		if t.Stage == stage {
			out = append(out, cloneTemplate(t))
		}
	}
	return out
}

func cloneTemplate(t domain.TaskTemplate) domain.TaskTemplate {
	t.Deliverables = append([]string(nil), t.Deliverables...)
	t.Compliance = append([]domain.ComplianceNote(nil), t.Compliance...)
	return t
}
