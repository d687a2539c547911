package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/planwise/planwise-cli/internal/adapter"
	"github.com/planwise/planwise-cli/internal/coordinator"
)

var editCmd = &cobra.Command{
	Use:   "edit <client-id> <field-id> <value>",
	Short: "Edit one plan field",
	Long: `Writes a single field correction through the extraction backend.
Percent fields take whole-percent input: "edit c1 matchCap 5" sets a 5% cap,
and a literal "5%" is accepted too. The local record updates immediately and
rolls back if the backend rejects the write.`,
	Args: cobra.ExactArgs(3),
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

		clientID, fieldID, value := args[0], args[1], args[2]
		reason, _ := cmd.Flags().GetString("reason")

		// Hydrate first so dependency gating sees live values.
		if _, err := env.Coord.Hydrate(ctx, clientID); err != nil {
			return eris.Wrap(err, "edit")
		}

		err = env.Coord.ApplyEdit(ctx, clientID, fieldID, value, reason)
		switch {
		case err == nil:
			fmt.Printf("Updated %s for %s\n", fieldID, clientID)
			return nil
		case adapter.IsValidation(err):
			var vErr *adapter.ValidationError
			eris.As(err, &vErr)
			return eris.Errorf("edit rejected: %s", vErr.Message)
		case adapter.IsMapping(err):
			return eris.Errorf("edit rejected: field %s cannot be written back", fieldID)
		case eris.Is(err, coordinator.ErrFieldDisabled):
			def := env.Registry.Lookup(fieldID)
			if def.Dependency != nil {
				parent := env.Registry.Lookup(def.Dependency.ParentID)
				return eris.Errorf("edit rejected: %s is disabled until %s allows it", def.Label, parent.Label)
			}
			return eris.Errorf("edit rejected: %s is disabled", fieldID)
		default:
			fmt.Printf("Edit failed and was rolled back: %s\n", strings.TrimSpace(eris.Cause(err).Error()))
			fmt.Println("The failed edit is parked; see 'planwise failed list'.")
			return err
		}
	},
}

func init() {
	editCmd.Flags().String("reason", "manual_update", "audit reason recorded with the change")
	rootCmd.AddCommand(editCmd)
}
