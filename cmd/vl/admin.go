package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"vacancyline/internal/alerts"
	"vacancyline/internal/config"
	"vacancyline/internal/engine"
	"vacancyline/internal/lifecycle"
	"vacancyline/internal/repo"
)

func lifecycleTrigger(s string) lifecycle.Trigger { return lifecycle.Trigger(s) }

func lifecycleCmd() *cobra.Command {
	lc := &cobra.Command{
		Use:   "lifecycle",
		Short: "Inspect the unit lifecycle graph",
	}
	lc.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "List workflow transitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			edges := lifecycle.Edges()
			if viper.GetBool("json") {
				return printJSON(map[string]any{"types": lifecycle.Types(), "edges": edges})
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"From", "Trigger", "To"})
			for _, e := range edges {
				tw.AppendRow(table.Row{e.From, e.Trigger, e.To})
			}
			tw.Render()
			return nil
		},
	})
	lc.AddCommand(&cobra.Command{
		Use:   "next <from> <trigger>",
		Short: "Resolve the workflow a trigger leads to",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from := lifecycle.WorkflowType(args[0])
			to, err := lifecycle.Next(from, lifecycleTrigger(args[1]))
			if err != nil {
				if !viper.GetBool("json") {
					fmt.Printf("Triggers from %s: %v\n", from, lifecycle.Triggers(from))
				}
				return err
			}
			return printJSONOrTable(lifecycle.Edge{From: from, Trigger: lifecycleTrigger(args[1]), To: to})
		},
	})
	return lc
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "Config is stored in the DB: workspace timezone, blueprint constraint, report thresholds, import aliases, screening criteria and alert webhooks. vacancyline.yml seeds it on first use; later edits go through 'vl config import'.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	cfg.AddCommand(configImportCmd())
	cfg.AddCommand(configInitCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	var yamlOut bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show stored config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				masked := maskSecrets(e.Config)
				if yamlOut {
					data, err := masked.YAML()
					if err != nil {
						return err
					}
					fmt.Print(string(data))
					return nil
				}
				return printJSONOrTable(masked)
			})
		},
	}
	cmd.Flags().BoolVar(&yamlOut, "yaml", false, "print YAML")
	return cmd
}

func configValidateCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate stored config or a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if filePath != "" {
				_, err = config.FromFile(filePath)
			} else {
				err = withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
					return e.Config.Validate()
				})
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML config")
	return cmd
}

func configImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import config from YAML into the DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromFile(filePath)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.UpdateConfig(ctx, cfg, viper.GetString("actor-id")); err != nil {
					return err
				}
				return printJSONOrTable(maskSecrets(cfg))
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML config")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func configInitCmd() *cobra.Command {
	var id string
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default vacancyline.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(id)), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "default", "workspace id")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

// maskSecrets copies cfg with webhook secrets hidden.
func maskSecrets(cfg *config.Config) *config.Config {
	out := *cfg
	out.Alerts.Webhooks = make([]config.Webhook, len(cfg.Alerts.Webhooks))
	for i, h := range cfg.Alerts.Webhooks {
		if h.Secret != "" {
			h.Secret = "***"
		}
		out.Alerts.Webhooks[i] = h
	}
	return &out
}

func eventsCmd() *cobra.Command {
	ev := &cobra.Command{Use: "events", Short: "Read the event log"}
	var n int
	var f repo.EventFilters
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListEvents(ctx, n, 0, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Actor", "Payload"})
				for _, evt := range items {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.EntityKind + ":" + evt.EntityID, evt.ActorID, evt.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().IntVar(&n, "n", 20, "number of events")
	tail.Flags().StringVar(&f.Type, "type", "", "event type filter")
	tail.Flags().StringVar(&f.TypePrefix, "type-prefix", "", "event type prefix filter")
	tail.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	tail.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	ev.AddCommand(tail)
	return ev
}

func alertsCmd() *cobra.Command {
	al := &cobra.Command{Use: "alerts", Short: "Deliver applicant alerts to webhooks"}
	al.AddCommand(&cobra.Command{
		Use:   "dispatch",
		Short: "Deliver pending alerts once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d := alerts.NewDispatcher(e.Repo, e.Config.Alerts)
				d.Log = e.Log
				delivered := d.DispatchOnce(ctx)
				return printJSONOrTable(map[string]any{"webhooks": len(e.Config.Alerts.Webhooks), "delivered": delivered})
			})
		},
	})
	return al
}
