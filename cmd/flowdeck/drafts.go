package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/aretw0/flowdeck/internal/presentation/graph"
	"github.com/spf13/cobra"
)

var draftsCmd = &cobra.Command{
	Use:   "drafts",
	Short: "Manage unsaved edits kept in the draft store",
}

var draftsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored drafts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _, _, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cmd.Context()
		keys, err := app.Editor.Sessions().ListDrafts(ctx)
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No drafts.")
			return nil
		}
		store := app.Editor.Sessions().Drafts()
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tWORKFLOW\tNAME\tNODES\tUPDATED")
		for _, key := range keys {
			d, err := store.Load(ctx, key)
			if err != nil {
				fmt.Fprintf(tw, "%s\t-\t-\t-\t%v\n", key, err)
				continue
			}
			wf := "new"
			if d.WorkflowID != 0 {
				wf = fmt.Sprint(d.WorkflowID)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", key, wf, d.Name, len(d.Graph.Nodes), d.UpdatedAt.Format(time.RFC3339))
		}
		return tw.Flush()
	},
}

var draftsShowCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Render a draft as a Mermaid diagram",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _, _, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		s, err := app.Editor.Sessions().RestoreDraft(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printDiff(cmd.OutOrStdout(), s.State().Diff())
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(s.State().Graph, nil))
		return nil
	},
}

var draftsDiscardCmd = &cobra.Command{
	Use:   "discard <key>",
	Short: "Delete a draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _, _, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Editor.Sessions().DiscardDraft(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Discarded draft %s\n", args[0])
		return nil
	},
}

var draftsPushCmd = &cobra.Command{
	Use:   "push <key>",
	Short: "Save a draft to the backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _, _, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cmd.Context()
		if _, err := app.Editor.LoadNodeTypes(ctx); err != nil {
			return err
		}
		s, err := app.Editor.Sessions().RestoreDraft(ctx, args[0])
		if err != nil {
			return err
		}
		if _, err := app.Editor.Save(ctx, s); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved workflow %d\n", s.State().WorkflowID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(draftsCmd)
	draftsCmd.AddCommand(draftsListCmd, draftsShowCmd, draftsDiscardCmd, draftsPushCmd)
}
