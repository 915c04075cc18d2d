package main

import (
	"fmt"

	"github.com/aretw0/flowdeck/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show <workflow-id>",
	Short: "Export a workflow as a Mermaid diagram",
	Long: `Loads the workflow into an edit session and outputs a Mermaid diagram (graph TD).
With --status the latest run status of each node is overlaid on the diagram.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseWorkflowID(args[0])
		if err != nil {
			return err
		}
		app, _, logger, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cmd.Context()
		if _, err := app.Editor.LoadNodeTypes(ctx); err != nil {
			// Ports and categories are missing, the graph still renders.
			logger.Warn("node types unavailable", "err", err)
		}
		s, err := app.Editor.Open(ctx, id)
		if err != nil {
			return fmt.Errorf("error loading workflow %d: %w", id, err)
		}

		var overlay *graph.RunOverlay
		if withStatus, _ := cmd.Flags().GetBool("status"); withStatus {
			st, err := app.API.Status(ctx, id)
			if err != nil {
				return fmt.Errorf("error fetching status: %w", err)
			}
			overlay = &graph.RunOverlay{Nodes: st.Nodes}
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(s.State().Graph, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().Bool("status", false, "Overlay the latest run status")
}
