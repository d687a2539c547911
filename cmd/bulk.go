package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var bulkCmd = &cobra.Command{
	Use:   "bulk <field-id> <value>",
	Short: "Apply one field edit across many clients",
	Long: `Applies the same edit to every targeted client as independent writes.
Each client commits or rolls back on its own; a failure for one never undoes
the others. Failed edits are parked for review.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("edit"); err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		fieldID, value := args[0], args[1]
		reason, _ := cmd.Flags().GetString("reason")
		targets, _ := cmd.Flags().GetStringSlice("clients")
		all, _ := cmd.Flags().GetBool("all")

		if all {
			clients, err := env.listClients(ctx)
			if err != nil {
				return eris.Wrap(err, "bulk")
			}
			targets = targets[:0]
			for _, c := range clients {
				targets = append(targets, c.ClientID)
			}
		}
		if len(targets) == 0 {
			return eris.New("bulk: no target clients; pass --clients or --all")
		}

		// Hydrate up front so dependency gating runs against live values.
		// A client we cannot hydrate is reported, not edited.
		hydrated := make([]string, 0, len(targets))
		failed := make(map[string]error)
		for _, clientID := range targets {
			if _, err := env.Coord.Hydrate(ctx, clientID); err != nil {
				failed[clientID] = err
				continue
			}
			hydrated = append(hydrated, clientID)
		}

		res := env.Coord.BulkEdit(ctx, hydrated, fieldID, value, reason, cfg.Edit.BulkConcurrency)
		for clientID, err := range res.Failed {
			failed[clientID] = err
		}

		zap.L().Info("bulk edit finished",
			zap.String("field_id", fieldID),
			zap.Int("succeeded", len(res.Succeeded)),
			zap.Int("failed", len(failed)),
		)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CLIENT\tOUTCOME\tDETAIL")
		for _, clientID := range res.Succeeded {
			fmt.Fprintf(w, "%s\tcommitted\t\n", clientID)
		}
		failedIDs := make([]string, 0, len(failed))
		for clientID := range failed {
			failedIDs = append(failedIDs, clientID)
		}
		sort.Strings(failedIDs)
		for _, clientID := range failedIDs {
			fmt.Fprintf(w, "%s\tfailed\t%s\n", clientID, eris.Cause(failed[clientID]).Error())
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if len(failed) > 0 {
			return eris.Errorf("bulk: %d of %d clients failed", len(failed), len(targets))
		}
		return nil
	},
}

func init() {
	bulkCmd.Flags().StringSlice("clients", nil, "target client ids (comma-separated)")
	bulkCmd.Flags().Bool("all", false, "target every known client")
	bulkCmd.Flags().String("reason", "bulk_update", "audit reason recorded with each change")
	rootCmd.AddCommand(bulkCmd)
}
