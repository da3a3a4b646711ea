package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"vacancyline/internal/engine"
	"vacancyline/internal/marketing"
)

// listingFile is the JSON accepted by 'vl vacancy listing'.
type listingFile struct {
	marketing.Input
	Media []marketing.Media `json:"media"`
}

func vacancyListingCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "listing",
		Short: "Draft listing copy and screen sample prospects",
		Long:  "Reads a JSON file with listing, media and prospects. Prints the listing plan and stores the rendered draft as a marketing.listing_drafted event.",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}
			var in listingFile
			if err := json.Unmarshal(data, &in); err != nil {
				return fmt.Errorf("invalid listing json: %w", err)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				plan, err := e.PrepareListing(ctx, in.Input, in.Media, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(plan)
				}
				fmt.Print(plan.Description)
				fmt.Println()
				fmt.Println(plan.ComplianceSummary)
				if plan.MissingPhotos {
					fmt.Println("No photos in the media folder; request a new shoot.")
				} else {
					fmt.Printf("%d photo(s) selected\n", len(plan.SelectedPhotos))
				}
				fmt.Printf("Draft document: %s\n", plan.DocumentID)
				if len(plan.ProspectOutcomes) == 0 {
					return nil
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Prospect", "Outcome", "Score", "Summary"})
				for _, o := range plan.ProspectOutcomes {
					tw.AppendRow(table.Row{o.Name, o.Outcome, o.TotalScore, o.Summary})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to listing JSON")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
