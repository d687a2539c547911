package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show the backend's global change log",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		entries, err := env.Backend.GetAuditLog(ctx)
		if err != nil {
			cached, cacheErr := env.Store.GetAuditLog(ctx)
			if cacheErr != nil || len(cached) == 0 {
				return eris.Wrap(err, "audit")
			}
			zap.L().Warn("backend unreachable, showing mirrored audit log", zap.Error(err))
			entries = cached
		} else if err := env.Store.SaveAuditLog(ctx, entries); err != nil {
			zap.L().Warn("audit log mirror write failed", zap.Error(err))
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No audit entries.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIMESTAMP\tCLIENT\tFIELD\tNEW VALUE\tBY\tREASON")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				e.Timestamp, e.ClientID, e.FieldName, e.NewValue, e.UpdatedBy, e.Reason)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
}
