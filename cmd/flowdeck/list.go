package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved workflows",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _, _, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		workflows, err := app.API.ListWorkflows(cmd.Context())
		if err != nil {
			return fmt.Errorf("error listing workflows: %w", err)
		}
		if len(workflows) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No workflows.")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tUPDATED\tDESCRIPTION")
		for _, w := range workflows {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", w.ID, w.Name, w.UpdatedAt, w.Description)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
