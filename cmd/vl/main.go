package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"vacancyline/internal/alerts"
	"vacancyline/internal/app"
	"vacancyline/internal/db"
	"vacancyline/internal/engine"
	"vacancyline/internal/log"
	"vacancyline/internal/migrate"
	"vacancyline/internal/repo"
	"vacancyline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "vl",
	Short: "Vacancyline CLI",
	Long: `Vacancyline runs the unit turnover playbook from vacancy to move-in.
Core concepts:
- Workspace: a directory holding .vacancyline/ with the SQLite database. vacancyline.yml seeds the stored config on first use.
- Blueprint: the ten standard turnover tasks, each owned by a role with a due date relative to the vacancy window.
- Vacancy: one unit's window (vacancy start to target move-in) with a status per blueprint task.
- Import: Apollo CSV exports hydrate task status by task name; unmatched rows are reported, never guessed.
- Report: readiness score, overdue work, compliance alerts and recommended next actions as of a date.
- Applications: rental applications are screened, scored and decided; approvals, denials and manual-review holds raise alerts.
- Listing: 'vl vacancy listing' drafts listing copy from the screening criteria and screens sample prospects.
- Lifecycle: vacancy -> new_resident -> renewal/maintenance/delinquent_rent -> turnover.
- Event log: every change, view with 'vl events tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if err := godotenv.Load(filepath.Join(workspace, ".env")); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load .env: %w", err)
		}
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("VACANCYLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(vacancyCmd())
	rootCmd.AddCommand(blueprintCmd())
	rootCmd.AddCommand(applicationCmd())
	rootCmd.AddCommand(lifecycleCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(eventsCmd())
	rootCmd.AddCommand(alertsCmd())
	rootCmd.AddCommand(serveCmd())
}

func vacancyCmd() *cobra.Command {
	vac := &cobra.Command{Use: "vacancy", Short: "Run unit turnovers"}
	vac.AddCommand(vacancyReportCmd())
	vac.AddCommand(vacancyCreateCmd())
	vac.AddCommand(vacancyListCmd())
	vac.AddCommand(vacancyShowCmd())
	vac.AddCommand(vacancyTaskCmd())
	vac.AddCommand(vacancyImportCmd())
	vac.AddCommand(vacancyImportsCmd())
	vac.AddCommand(vacancyAdvanceCmd())
	vac.AddCommand(vacancyListingCmd())
	return vac
}

func vacancyReportCmd() *cobra.Command {
	var start, moveIn, today, apolloPath string
	var includeTasks bool
	cmd := &cobra.Command{
		Use:   "report [vacancy-id]",
		Short: "Readiness report for a stored vacancy or an ad-hoc window",
		Long:  "With a vacancy id the stored task states are used. Without one, --start and --move-in describe a window and --apollo optionally hydrates it from a CSV export; nothing is stored.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if len(args) == 1 {
					rep, err := e.VacancyReport(ctx, args[0], today, includeTasks)
					if err != nil {
						return err
					}
					return printReport(engine.ReportOutcome{DataSource: engine.DataSourceStandard, Report: rep})
				}
				req := engine.ReportRequest{VacancyStart: start, TargetMoveIn: moveIn, Today: today, IncludeTasks: includeTasks}
				if apolloPath != "" {
					data, err := os.ReadFile(apolloPath)
					if err != nil {
						return err
					}
					req.ApolloCSV = string(data)
				}
				out, err := e.BuildReport(req)
				if err != nil {
					return err
				}
				return printReport(out)
			})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "vacancy start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&moveIn, "move-in", "", "target move-in date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&today, "today", "", "report date (defaults to today in the workspace timezone)")
	cmd.Flags().StringVar(&apolloPath, "apollo", "", "path to an Apollo CSV export")
	cmd.Flags().BoolVar(&includeTasks, "include-tasks", false, "include per-task breakdown")
	return cmd
}

func vacancyCreateCmd() *cobra.Command {
	var opts engine.VacancyCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a vacancy for a unit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts.ActorID = viper.GetString("actor-id")
				v, err := e.CreateVacancy(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(v)
			})
		},
	}
	cmd.Flags().StringVar(&opts.UnitID, "unit", "", "unit id")
	cmd.Flags().StringVar(&opts.VacancyStart, "start", "", "vacancy start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.TargetMoveIn, "move-in", "", "target move-in date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("unit")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("move-in")
	return cmd
}

func vacancyListCmd() *cobra.Command {
	var f repo.VacancyFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List vacancies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListVacancies(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Unit", "Vacancy start", "Target move-in", "Workflow"})
				for _, v := range items {
					tw.AppendRow(table.Row{v.ID, v.UnitID, v.VacancyStart, v.TargetMoveIn, v.Workflow})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.UnitID, "unit", "", "unit filter")
	cmd.Flags().StringVar(&f.Workflow, "workflow", "", "workflow filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "max rows")
	return cmd
}

func vacancyShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <vacancy-id>",
		Short: "Show a vacancy with its task states",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				v, err := e.GetVacancy(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(v)
				}
				fmt.Printf("Vacancy %s (unit %s, %s -> %s, workflow %s)\n", v.Vacancy.ID, v.Vacancy.UnitID, v.Vacancy.VacancyStart, v.Vacancy.TargetMoveIn, v.Vacancy.Workflow)
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Task", "Status", "Completed on", "Updated"})
				for _, s := range v.Tasks {
					completed := ""
					if s.CompletedOn != nil {
						completed = *s.CompletedOn
					}
					tw.AppendRow(table.Row{s.TaskID, s.Status, completed, s.UpdatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func vacancyTaskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Update vacancy tasks"}
	var completedOn string
	set := &cobra.Command{
		Use:   "set <vacancy-id> <task-id> <status>",
		Short: "Move a task to pending, in_progress, skipped or complete",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.SetTaskStatus(ctx, engine.TaskStatusOptions{
					VacancyID:   args[0],
					TaskID:      args[1],
					Status:      args[2],
					CompletedOn: completedOn,
					ActorID:     viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				if res.Advanced != nil && !viper.GetBool("json") {
					fmt.Printf("Lifecycle advanced: %s -> %s (%s)\n", res.Advanced.From, res.Advanced.To, res.Advanced.Trigger)
				}
				return printJSONOrTable(res)
			})
		},
	}
	set.Flags().StringVar(&completedOn, "completed-on", "", "completion date (defaults to today)")
	task.AddCommand(set)
	return task
}

func vacancyImportCmd() *cobra.Command {
	var filePath, source string
	cmd := &cobra.Command{
		Use:   "import <vacancy-id>",
		Short: "Hydrate task status from an Apollo CSV export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(filePath)
			if err != nil {
				return err
			}
			defer f.Close()
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				out, err := e.ImportCSV(ctx, engine.ImportOptions{
					VacancyID: args[0],
					Source:    source,
					Reader:    f,
					ActorID:   viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Printf("Rows read: %d, mapped: %d, applied: %d, rejected: %d\n",
					out.Import.RowsRead, out.Import.RowsMapped, len(out.Hydration.Applied), len(out.Hydration.Rejected))
				for _, rej := range out.Hydration.Rejected {
					fmt.Printf("  rejected %s: %s\n", rej.TaskID, rej.Reason)
				}
				for _, d := range out.Import.Diagnostics {
					fmt.Printf("  %s\n", d.Error())
				}
				if out.Advanced != nil {
					fmt.Printf("Lifecycle advanced: %s -> %s\n", out.Advanced.From, out.Advanced.To)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to CSV export")
	cmd.Flags().StringVar(&source, "source", "", "import source label (defaults to config)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func vacancyImportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imports <vacancy-id>",
		Short: "List import runs for a vacancy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				runs, err := e.ListImportRuns(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(runs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Source", "Rows", "Mapped", "Applied", "Rejected", "By", "At"})
				for _, r := range runs {
					tw.AppendRow(table.Row{r.ID, r.Source, r.RowsRead, r.RowsMapped, r.PatchesApplied, r.PatchesRejected, r.CreatedBy, r.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func vacancyAdvanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "advance <vacancy-id> <trigger>",
		Short: "Fire a lifecycle trigger on a vacancy",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				v, edge, err := e.AdvanceWorkflow(ctx, args[0], lifecycleTrigger(args[1]), viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"vacancy": v, "transition": edge})
			})
		},
	}
	return cmd
}

func blueprintCmd() *cobra.Command {
	bp := &cobra.Command{Use: "blueprint", Short: "Inspect the turnover blueprint"}
	bp.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show blueprint tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tasks := e.Blueprint.Tasks()
				if viper.GetBool("json") {
					return printJSON(map[string]any{"version": e.Blueprint.Version(), "tasks": tasks})
				}
				fmt.Printf("Blueprint %s\n", e.Blueprint.Version())
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Stage", "Role", "Due", "Critical"})
				for _, t := range tasks {
					tw.AppendRow(table.Row{t.ID, t.Name, t.Stage.Label(), t.Role.Label(), t.Due.String(), t.Critical})
				}
				tw.Render()
				return nil
			})
		},
	})
	return bp
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var noAlerts bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.UseJSON()
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				handler, err := server.New(server.Config{Engine: e, BasePath: basePath})
				if err != nil {
					return err
				}
				if !noAlerts {
					d := alerts.NewDispatcher(e.Repo, e.Config.Alerts)
					d.Log = e.Log
					go d.Run(ctx)
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				e.Log.WithField("addr", addr).Infof("serving Vacancyline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)", addr, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&noAlerts, "no-alerts", false, "do not deliver webhook alerts")
	return cmd
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	cfg, err := app.ResolveConfig(ctx, workspace, r)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
