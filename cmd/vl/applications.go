package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"vacancyline/internal/applications"
	"vacancyline/internal/engine"
)

func applicationCmd() *cobra.Command {
	app := &cobra.Command{
		Use:   "application",
		Short: "Screen and decide rental applications",
	}
	app.AddCommand(applicationSubmitCmd())
	app.AddCommand(applicationEvaluateCmd())
	app.AddCommand(applicationShowCmd())
	app.AddCommand(applicationListCmd())
	return app
}

func applicationSubmitCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit an application from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}
			var in applications.Application
			if err := json.Unmarshal(data, &in); err != nil {
				return fmt.Errorf("invalid application json: %w", err)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rec, err := e.SubmitApplication(ctx, in, viper.GetString("actor-id"))
				if dup, ok := engine.IsDuplicate(err); ok {
					if !viper.GetBool("json") {
						fmt.Println("Application already on file; returning stored record")
					}
					return printJSONOrTable(dup.Existing.Public())
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(rec.Public())
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to application JSON")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func applicationEvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate <application-id>",
		Short: "Score an application and record the decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rec, err := e.EvaluateApplication(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rec.Redacted())
				}
				fmt.Printf("%s: %s (score %d)\n", rec.ID, rec.Status, rec.Public().TotalScore)
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Factor", "Points", "Hard fail", "Justification"})
				for _, c := range rec.Components {
					tw.AppendRow(table.Row{c.Factor, c.Points, c.HardFail, c.Justification})
				}
				tw.Render()
				fmt.Println(rec.Public().DecisionRationale)
				return nil
			})
		},
	}
	return cmd
}

func applicationShowCmd() *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "show <application-id>",
		Short: "Show application status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rec, err := e.GetApplication(ctx, args[0])
				if err != nil {
					return err
				}
				if full {
					return printJSONOrTable(rec.Redacted())
				}
				return printJSONOrTable(rec.Public())
			})
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "show the scored record with contact details masked")
	return cmd
}

func applicationListCmd() *cobra.Command {
	var status string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List applications by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				recs, err := e.ListApplications(ctx, applications.Status(status), limit)
				if err != nil {
					return err
				}
				views := make([]applications.PublicView, 0, len(recs))
				for _, r := range recs {
					views = append(views, r.Public())
				}
				if viper.GetBool("json") {
					return printJSON(views)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Status", "Score"})
				for _, v := range views {
					tw.AppendRow(table.Row{v.ApplicationID, v.Status, v.TotalScore})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", string(applications.StatusSubmitted), "status filter: submitted, evaluating, approved, denied or pending_review")
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows")
	return cmd
}
