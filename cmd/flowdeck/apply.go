package main

import (
	"fmt"
	"io"
	"os"

	"github.com/aretw0/flowdeck/internal/cli"
	"github.com/aretw0/flowdeck/internal/presentation/graph"
	"github.com/aretw0/flowdeck/internal/validator"
	"github.com/aretw0/flowdeck/pkg/domain"
	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply <script.yaml|->",
	Short: "Apply a YAML script of edit operations to a workflow",
	Long: `Opens the workflow named by the script (or starts a new one), applies its operations in
order and saves the result. If an operation fails nothing is saved; the partial edit is kept
as a draft when a draft store is configured. The result is checked like the validate command
does; with --strict a graph with errors is not saved.

Example script:

  workflow: 42
  ops:
    - add: {ref: llm, type: LLM_NODE, position: {x: 200, y: 80}}
    - connect: {source: 1, target: llm}
    - config: {node: llm, set: {provider: anthropic, model_name: claude-3-haiku}}`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		asDraft, _ := cmd.Flags().GetBool("draft")
		strict, _ := cmd.Flags().GetBool("strict")

		var in io.Reader = cmd.InOrStdin()
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		sc, err := cli.ParseScript(in)
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
			return err
		}
		s, err := app.SessionFor(ctx, sc)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if _, err := sc.Apply(ctx, s); err != nil {
			if !dryRun && app.Editor.Sessions().Drafts() != nil {
				if draftErr := app.Editor.Sessions().SaveDraft(ctx, s); draftErr != nil {
					logger.Warn("could not keep partial edit", "err", draftErr)
				} else {
					fmt.Fprintf(cmd.ErrOrStderr(), "Partial edit kept as draft %s\n", s.Key())
				}
			}
			return err
		}

		printDiff(out, s.State().Diff())
		report := validator.ValidateGraph(s.State().Graph, app.Editor.Registry())
		if len(report.Issues) > 0 {
			printIssues(cmd.ErrOrStderr(), report)
		}
		switch {
		case dryRun:
			fmt.Fprint(out, graph.GenerateMermaid(s.State().Graph, nil))
		case asDraft:
			if err := app.Editor.Sessions().SaveDraft(ctx, s); err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved draft %s\n", s.Key())
		default:
			if err := report.Err(); strict && err != nil {
				return fmt.Errorf("not saved: %w", err)
			}
			if _, err := app.Editor.Save(ctx, s); err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved workflow %d\n", s.State().WorkflowID)
		}
		return nil
	},
}

func printDiff(w io.Writer, d *domain.GraphDiff) {
	if d.IsEmpty() {
		fmt.Fprintln(w, "No changes.")
		return
	}
	fmt.Fprintf(w, "Nodes: +%d -%d ~%d  Edges: +%d -%d ~%d\n",
		len(d.AddedNodes), len(d.RemovedNodes), len(d.ChangedNodes),
		len(d.AddedEdges), len(d.RemovedEdges), len(d.ChangedEdges))
}

func init() {
	rootCmd.AddCommand(applyCmd)
	applyCmd.Flags().Bool("dry-run", false, "Print the resulting graph instead of saving")
	applyCmd.Flags().Bool("draft", false, "Keep the result as a local draft instead of saving")
	applyCmd.Flags().Bool("strict", false, "Refuse to save a graph that fails validation")
}
