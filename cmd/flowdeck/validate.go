package main

import (
	"fmt"
	"io"

	"github.com/aretw0/flowdeck/internal/validator"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <workflow-id>",
	Short: "Check a workflow for broken edges and missing inputs",
	Long: `Loads the workflow and reports edges to missing nodes, required inputs without a
connection, configs that do not match their node type and nodes no chat input reaches.
Exits with an error when any issue has error severity.`,
	Args: cobra.ExactArgs(1),
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

		ctx := cmd.Context()
		if _, err := app.Editor.LoadNodeTypes(ctx); err != nil {
			return err
		}
		s, err := app.Editor.Open(ctx, id)
		if err != nil {
			return fmt.Errorf("error loading workflow %d: %w", id, err)
		}

		report := validator.ValidateGraph(s.State().Graph, app.Editor.Registry())
		printIssues(cmd.OutOrStdout(), report)
		return report.Err()
	},
}

func printIssues(w io.Writer, r validator.Report) {
	if len(r.Issues) == 0 {
		fmt.Fprintln(w, "No issues found.")
		return
	}
	for _, i := range r.Issues {
		fmt.Fprintf(w, "  %s\n", i)
	}
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
