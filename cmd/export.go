package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/planwise/planwise-cli/internal/export"
	"github.com/planwise/planwise-cli/internal/model"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a plan-design comparison workbook",
	Long: `Builds an XLSX workbook comparing plan designs side by side, one
column per client. Clients whose records cannot be fetched get empty columns
and a warning, not a failed export.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		out, _ := cmd.Flags().GetString("out")
		targets, _ := cmd.Flags().GetStringSlice("clients")

		clients, err := env.listClients(ctx)
		if err != nil {
			return eris.Wrap(err, "export")
		}
		if len(targets) > 0 {
			want := make(map[string]bool, len(targets))
			for _, id := range targets {
				want[id] = true
			}
			filtered := clients[:0]
			for _, c := range clients {
				if want[c.ClientID] {
					filtered = append(filtered, c)
				}
			}
			clients = filtered
		}
		if len(clients) == 0 {
			return eris.New("export: no clients to export")
		}

		records := make(map[string]*model.PlanRecord, len(clients))
		for _, c := range clients {
			rec, err := env.hydrate(ctx, c.ClientID)
			if err != nil {
				zap.L().Warn("skipping client in export",
					zap.String("client_id", c.ClientID),
					zap.Error(err),
				)
				continue
			}
			records[c.ClientID] = rec
		}

		if err := export.WritePlanMatrix(out, env.Registry, export.PlanMatrix{
			Clients: clients,
			Records: records,
		}); err != nil {
			return err
		}

		fmt.Printf("Wrote %s (%d clients)\n", out, len(clients))
		return nil
	},
}

func init() {
	exportCmd.Flags().String("out", "plan-comparison.xlsx", "output workbook path")
	exportCmd.Flags().StringSlice("clients", nil, "limit export to these client ids")
	rootCmd.AddCommand(exportCmd)
}
