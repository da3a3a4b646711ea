package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/viper"

	"vacancyline/internal/engine"
)

func printReport(out engine.ReportOutcome) error {
	if viper.GetBool("json") {
		return printJSON(out)
	}
	rep := out.Report
	ins := rep.Insights
	fmt.Printf("Vacancy %s -> %s as of %s (%s data, blueprint %s)\n", rep.VacancyStart, rep.TargetMoveIn, rep.AsOf, out.DataSource, rep.BlueprintVersion)
	fmt.Printf("Readiness: %d (%s), %d/%d tasks complete, expected %.0f%%\n",
		ins.ReadinessScore, ins.ReadinessLevel, rep.CompletedTasks, rep.TotalTasks, ins.ExpectedCompletionPct)
	fmt.Printf("Day %d of vacancy, %d day(s) until move-in\n", ins.DaysSinceVacancy, ins.DaysUntilMoveIn)
	if ins.FocusStage != nil {
		fmt.Printf("Focus: %s\n", *ins.FocusStage)
	}

	stages := table.NewWriter()
	stages.SetOutputMirror(os.Stdout)
	stages.AppendHeader(table.Row{"Stage", "Done", "Total", "Completion"})
	for _, s := range rep.StageProgress {
		stages.AppendRow(table.Row{s.Label, s.Completed, s.Total, fmt.Sprintf("%.0f%%", s.Completion*100)})
	}
	stages.Render()

	if len(rep.OverdueTasks) > 0 {
		overdue := table.NewWriter()
		overdue.SetOutputMirror(os.Stdout)
		overdue.SetTitle("Overdue")
		overdue.AppendHeader(table.Row{"Task", "Role", "Due", "Status"})
		for _, t := range rep.OverdueTasks {
			overdue.AppendRow(table.Row{t.Name, t.RoleLabel, t.DueDate, t.Status})
		}
		overdue.Render()
	}
	for _, a := range rep.ComplianceAlerts {
		fmt.Printf("[%s] %s: %s\n", a.Severity, a.Title, a.Detail)
	}
	printList("Blockers", ins.Blockers)
	printList("Observations", ins.AIObservations)
	printList("Recommended actions", ins.RecommendedActions)
	printList("Automation triggers", ins.AutomationTriggers)

	if len(rep.Tasks) > 0 {
		tasks := table.NewWriter()
		tasks.SetOutputMirror(os.Stdout)
		tasks.SetTitle("Tasks")
		tasks.AppendHeader(table.Row{"ID", "Stage", "Role", "Due", "Status", "Completed"})
		for _, t := range rep.Tasks {
			completed := ""
			if t.CompletedOn != nil {
				completed = *t.CompletedOn
			}
			tasks.AppendRow(table.Row{t.ID, t.StageLabel, t.RoleLabel, t.DueDate, t.Status, completed})
		}
		tasks.Render()
	}
	if out.Import != nil {
		fmt.Printf("Import: %d row(s) read, %d mapped\n", out.Import.RowsRead, out.Import.RowsMapped)
		for _, d := range out.Import.Diagnostics {
			fmt.Printf("  %s\n", d.Error())
		}
	}
	if out.Hydration != nil {
		for _, rej := range out.Hydration.Rejected {
			fmt.Printf("  rejected %s: %s\n", rej.TaskID, rej.Reason)
		}
	}
	return nil
}

func printList(title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Println(title + ":")
	for _, it := range items {
		fmt.Printf("  - %s\n", it)
	}
}
