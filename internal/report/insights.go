package report

import (
	"fmt"
	"math"

	"vacancyline/internal/domain"
)

var stagePlaybook = map[domain.Stage]string{
	domain.StageMarketing: "Refresh listing creative and auto-respond to new leads via SMS & email",
	domain.StageScreening: "Trigger AI-driven applicant nudges and status updates across channels",
	domain.StageLeasing:   "Bundle lease packet tasks and push DocuSign reminders automatically",
	domain.StageHandoff:   "Send welcome workflow kickoff with onboarding checklist",
}

func insights(m metrics, p Policy) Insights {
	in := Insights{
		ReadinessScore:        m.score,
		ReadinessLevel:        p.Level(m.score),
		ExpectedCompletionPct: m.expected,
		DaysSinceVacancy:      m.daysSince,
		DaysUntilMoveIn:       m.daysUntil,
		Blockers:              blockers(m, p.MaxBlockers),
		AIObservations:        observations(m, p),
		RecommendedActions:    actions(m, p),
		AutomationTriggers:    triggers(m),
	}
	if m.focus != nil {
		label := m.focus.Label()
		completion := float64(m.stageDone[*m.focus]) / float64(m.stageTotal[*m.focus])
		in.FocusStage = &label
		in.FocusStageCompletion = &completion
	}
	return in
}

// blockers ranks overdue work first, then the remaining open work of the focus stage.
func blockers(m metrics, limit int) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, t := range m.overdue {
		out = append(out, fmt.Sprintf("%s (%s), overdue since %s", t.Template.Name, t.Template.Role.Label(), domain.FormatDate(t.DueDate)))
		seen[t.Template.ID] = true
	}
	if m.focus != nil {
		for _, t := range m.snap.Tasks {
			if t.Template.Stage != *m.focus || !t.Open() || seen[t.Template.ID] {
				continue
			}
			out = append(out, fmt.Sprintf("%s (%s), pending", t.Template.Name, t.Template.Role.Label()))
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func observations(m metrics, p Policy) []string {
	out := []string{
		fmt.Sprintf("%d of %d tasks complete (%d%% readiness)", m.completed, m.total, m.score),
	}
	if n := len(m.overdue); n > 0 {
		out = append(out, fmt.Sprintf("%d task(s) overdue (%d compliance-critical)", n, m.criticalOverdue))
	}
	expectedPct := m.expected * 100
	if float64(m.score+p.PaceTolerancePct) < expectedPct {
		gap := int(math.Round(expectedPct - float64(m.score)))
		out = append(out, fmt.Sprintf("Progress is %d%% below expected pace for this vacancy window", gap))
	}
	if m.daysUntil <= p.MoveInWarningDays {
		days := m.daysUntil
		if days < 0 {
			days = 0
		}
		out = append(out, fmt.Sprintf("%d day(s) until target move-in; prioritize move-in readiness", days))
	}
	return out
}

func actions(m metrics, p Policy) []string {
	out := []string{}
	open := m.total - m.completed
	if m.focus != nil {
		st := *m.focus
		out = append(out, fmt.Sprintf("Concentrate automation on %s (%d open item(s))", st.Label(), m.stageTotal[st]-m.stageDone[st]))
		if line, ok := stagePlaybook[st]; ok {
			out = append(out, line)
		}
	}
	if m.criticalOpen {
		out = append(out, "Escalate compliance checklist to coordinator with documented follow-up")
	}
	if open > 0 && m.daysUntil <= p.StandupWindowDays {
		out = append(out, "Schedule daily readiness standups until move-in blockers are cleared")
	}
	if open == 0 {
		out = append(out, "All vacancy tasks complete; start the new resident workflow")
	}
	return out
}

func triggers(m metrics) []string {
	out := []string{}
	for _, st := range m.stages {
		if open := m.stageTotal[st] - m.stageDone[st]; open > 0 {
			out = append(out, fmt.Sprintf("Auto-remind %s owners of %d remaining task(s)", st.Label(), open))
		}
	}
	if len(m.overdue) > 0 {
		out = append(out, "Dispatch compliance alerts to AppFolio task queues for overdue work")
	}
	return out
}
