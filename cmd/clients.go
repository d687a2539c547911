package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/planwise/planwise-cli/internal/model"
	"github.com/planwise/planwise-cli/pkg/planapi"
)

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "Browse and manage client organizations",
}

// -- clients list --

var clientsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List client organizations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		refresh, _ := cmd.Flags().GetBool("refresh")
		if refresh {
			if err := env.Store.InvalidateClientList(ctx); err != nil {
				return eris.Wrap(err, "clients list")
			}
		}

		clients, err := env.listClients(ctx)
		if err != nil {
			return eris.Wrap(err, "clients list")
		}
		if len(clients) == 0 {
			fmt.Fprintln(os.Stderr, "No clients found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tINDUSTRY\tREGION\tSTATE\tEMPLOYEES")
		for _, c := range clients {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
				c.ClientID, c.ClientName, c.Industry, c.Region, c.State, c.EmployeeCount)
		}
		return w.Flush()
	},
}

// -- clients create --

var clientsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Register a new client organization",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		industry, _ := cmd.Flags().GetString("industry")
		region, _ := cmd.Flags().GetString("region")
		state, _ := cmd.Flags().GetString("state")

		created, err := env.Backend.CreateClient(ctx, planapi.CreateClientRequest{
			Name:     args[0],
			Industry: model.NormalizeIndustry(industry),
			Region:   model.ResolveRegion(region, state),
			State:    state,
		})
		if err != nil {
			return eris.Wrap(err, "clients create")
		}

		if err := env.Store.InvalidateClientList(ctx); err != nil {
			return eris.Wrap(err, "clients create")
		}

		fmt.Printf("Created client %s (%s, %s region)\n", created.ClientID, created.ClientName, created.Region)
		return nil
	},
}

func init() {
	clientsListCmd.Flags().Bool("refresh", false, "bypass the cached client list")
	clientsCreateCmd.Flags().String("industry", "", "industry label")
	clientsCreateCmd.Flags().String("region", "", "benchmarking region (derived from state when empty)")
	clientsCreateCmd.Flags().String("state", "", "two-letter US state code")

	clientsCmd.AddCommand(clientsListCmd)
	clientsCmd.AddCommand(clientsCreateCmd)
	rootCmd.AddCommand(clientsCmd)
}
