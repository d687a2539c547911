package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/planwise/planwise-cli/internal/store"
)

var failedCmd = &cobra.Command{
	Use:   "failed",
	Short: "Review edits that were rolled back",
}

var failedListCmd = &cobra.Command{
	Use:   "list",
	Short: "List parked failed edits",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		clientID, _ := cmd.Flags().GetString("client")
		all, _ := cmd.Flags().GetBool("all")
		limit, _ := cmd.Flags().GetInt("limit")

		edits, err := env.Store.ListFailedEdits(ctx, store.FailedEditFilter{
			ClientID:        clientID,
			IncludeResolved: all,
			Limit:           limit,
		})
		if err != nil {
			return eris.Wrap(err, "failed list")
		}
		if len(edits) == 0 {
			fmt.Fprintln(os.Stderr, "No failed edits.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCLIENT\tFIELD\tVALUE\tERROR\tFAILED AT\tSTATUS")
		for _, fe := range edits {
			status := "open"
			if fe.Resolved {
				status = "resolved"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				fe.ID, fe.ClientID, fe.FieldID, fe.Value, fe.Error,
				fe.FailedAt.Format("2006-01-02 15:04"), status)
		}
		return w.Flush()
	},
}

var failedResolveCmd = &cobra.Command{
	Use:   "resolve <id>",
	Short: "Mark a failed edit as handled",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.ResolveFailedEdit(ctx, args[0]); err != nil {
			return eris.Wrap(err, "failed resolve")
		}
		fmt.Printf("Resolved failed edit %s\n", args[0])
		return nil
	},
}

func init() {
	failedListCmd.Flags().String("client", "", "filter by client id")
	failedListCmd.Flags().Bool("all", false, "include resolved edits")
	failedListCmd.Flags().Int("limit", 50, "maximum rows to show")

	failedCmd.AddCommand(failedListCmd)
	failedCmd.AddCommand(failedResolveCmd)
	rootCmd.AddCommand(failedCmd)
}
