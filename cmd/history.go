package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history <client-id> <field-id>",
	Short: "Show the change history for one plan field",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		clientID, fieldID := args[0], args[1]
		limit, _ := cmd.Flags().GetInt("limit")

		def := env.Registry.Lookup(fieldID)
		if def.BackendName == "" {
			return eris.Errorf("history: field %s has no backend counterpart", fieldID)
		}

		hist, err := env.Backend.GetFieldHistory(ctx, clientID, def.BackendName, limit)
		if err != nil {
			return eris.Wrap(err, "history")
		}

		current := "(unset)"
		if hist.CurrentValue != nil {
			current = *hist.CurrentValue
		}
		fmt.Printf("%s / %s — current value %s\n\n", clientID, def.Label, current)

		if len(hist.Changes) == 0 {
			fmt.Fprintln(os.Stderr, "No changes recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIMESTAMP\tOLD\tNEW\tBY\tREASON")
		for _, ch := range hist.Changes {
			old := "(unset)"
			if ch.OldValue != nil {
				old = *ch.OldValue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", ch.Timestamp, old, ch.NewValue, ch.UpdatedBy, ch.Reason)
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of changes to show")
	rootCmd.AddCommand(historyCmd)
}
