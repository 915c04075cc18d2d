package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aretw0/flowdeck/internal/cli"
	"github.com/aretw0/flowdeck/internal/presentation/tui"
	"github.com/aretw0/flowdeck/pkg/domain"
	"github.com/aretw0/flowdeck/pkg/orchestrator"
	"github.com/aretw0/flowdeck/pkg/schema"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <workflow-id>",
	Short: "Execute a saved workflow and follow it until it finishes",
	Long: `Submits a run of a saved workflow and polls its status until it reaches a terminal state.
Use --chat to send a chat message to the workflow's chat input, or --input key=value for raw
initial inputs (values are parsed as JSON when possible).

Interrupting the command stops polling only: the backend keeps executing the run.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseWorkflowID(args[0])
		if err != nil {
			return err
		}
		chat, _ := cmd.Flags().GetString("chat")
		rawInputs, _ := cmd.Flags().GetStringArray("input")
		noWait, _ := cmd.Flags().GetBool("no-wait")
		asJSON, _ := cmd.Flags().GetBool("json")

		inputs, err := runInputs(chat, rawInputs)
		if err != nil {
			return err
		}

		errOut := cmd.ErrOrStderr()
		progress := domain.RunHooks{
			OnStatus: func(_ context.Context, ev *domain.RunEvent) {
				fmt.Fprintf(errOut, "poll %d: %s\n", ev.Poll, tui.Status(errOut, string(ev.Status)))
			},
		}
		app, _, _, err := newApp(cmd, cli.WithRunHooks(progress))
		if err != nil {
			return err
		}
		defer app.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// A refused submit still returns the failed run so it can be reported.
		run, err := app.Editor.Execute(ctx, id, inputs)
		if err == nil && !noWait {
			if _, waitErr := run.Wait(ctx); waitErr != nil && ctx.Err() != nil {
				run.Cancel()
				fmt.Fprintln(errOut, "Stopped polling. The run may still be executing on the backend.")
			}
		}

		snap := run.Snapshot()
		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(snap); encErr != nil {
				return encErr
			}
		} else {
			rendered, renderErr := tui.NewRenderer(tui.IsTerminal(out))(tui.RunReport(snap))
			if renderErr != nil {
				return renderErr
			}
			fmt.Fprint(out, rendered)
		}

		if err != nil {
			return err
		}
		if runErr := run.Err(); runErr != nil && !noWait {
			return runErr
		}
		if snap.Status == domain.RunFailed {
			return fmt.Errorf("run %s failed", snap.ID)
		}
		return nil
	},
}

// runInputs builds the initial inputs of a run from the command flags.
func runInputs(chat string, raw []string) (map[string]any, error) {
	inputs := map[string]any{}
	if chat != "" {
		inputs = orchestrator.ChatInputs(chat)
	}
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid input %q, expected key=value", kv)
		}
		if v, err := schema.ParseFieldValue(value); err == nil {
			inputs[key] = v
		} else {
			inputs[key] = value
		}
	}
	return inputs, nil
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("chat", "", "Chat message sent as the run's test data")
	runCmd.Flags().StringArray("input", nil, "Initial input as key=value (repeatable)")
	runCmd.Flags().Bool("no-wait", false, "Return after submission without polling")
	runCmd.Flags().Bool("json", false, "Print the run as JSON")
}
