package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/planwise/planwise-cli/internal/assess"
)

var assessCmd = &cobra.Command{
	Use:   "assess <client-id>",
	Short: "Score a client's plan design against benchmarks",
	Long: `Evaluates the plan against common design benchmarks (auto-enrollment,
default rate, match cap, vesting, eligibility) and prints a scorecard. With
--narrative, a plain-language summary for the plan sponsor is generated too.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		clientID := args[0]

		narrative, _ := cmd.Flags().GetBool("narrative")
		if narrative {
			if err := cfg.Validate("assess"); err != nil {
				return err
			}
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		rec, err := env.hydrate(ctx, clientID)
		if err != nil {
			return eris.Wrap(err, "assess")
		}

		sc := assess.Evaluate(clientID, rec)

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(sc)
		}

		fmt.Printf("Plan design score for %s: %d/%d\n\n", clientID, sc.Score, sc.MaxScore)
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, f := range sc.Findings {
			fmt.Fprintf(w, "  [%s]\t%s\n", f.Severity, f.Message)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if !narrative {
			return nil
		}

		clientName := clientID
		if clients, err := env.listClients(ctx); err == nil {
			for _, c := range clients {
				if c.ClientID == clientID {
					clientName = c.ClientName
					break
				}
			}
		}

		narrator := assess.NewClaudeNarrator(cfg.Anthropic.Key, cfg.Anthropic.Model)
		text, err := narrator.Narrate(ctx, clientName, sc)
		if err != nil {
			return eris.Wrap(err, "assess narrative")
		}
		fmt.Printf("\n%s\n", text)
		return nil
	},
}

func init() {
	assessCmd.Flags().Bool("json", false, "emit the scorecard as JSON")
	assessCmd.Flags().Bool("narrative", false, "generate a sponsor-facing narrative summary")
	rootCmd.AddCommand(assessCmd)
}
