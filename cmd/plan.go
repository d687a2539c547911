package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/planwise/planwise-cli/internal/model"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Inspect a client's plan design",
}

var planShowCmd = &cobra.Command{
	Use:   "show <client-id>",
	Short: "Show a client's current plan design",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		rec, err := env.hydrate(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "plan show")
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		var lastCategory model.Category
		for _, def := range env.Registry.Fields {
			if def.Category != lastCategory {
				fmt.Fprintf(w, "%s\t\t\n", def.Category)
				lastCategory = def.Category
			}

			value := ""
			if v, ok := rec.Get(def.ID); ok {
				value = v.String()
				if def.Type == model.TypePercent && value != "" {
					value += "%"
				}
			}

			note := ""
			if !env.Registry.IsEnabled(def.ID, rec) {
				note = "(disabled)"
			}
			fmt.Fprintf(w, "  %s\t%s\t%s\n", def.Label, value, note)
		}
		return w.Flush()
	},
}

func init() {
	planShowCmd.Flags().Bool("json", false, "emit the record as JSON")
	planCmd.AddCommand(planShowCmd)
	rootCmd.AddCommand(planCmd)
}
