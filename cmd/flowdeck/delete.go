package main

import (
	"fmt"

	"github.com/aretw0/flowdeck/pkg/domain"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <workflow-id>",
	Short: "Delete a saved workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseWorkflowID(args[0])
		if err != nil {
			return err
		}
		app, _, _, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		res, err := app.API.DeleteWorkflow(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("error deleting workflow %d: %w", id, err)
		}
		app.Editor.Sessions().Close(id)
		if err := app.Editor.Sessions().DiscardDraft(cmd.Context(), domain.DraftKey(id, "")); err != nil {
			return err
		}
		msg := res.Message
		if msg == "" {
			msg = fmt.Sprintf("Workflow %d deleted", id)
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
