package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/flowdeck/pkg/schema"
	"github.com/spf13/cobra"
)

var nodeTypesCmd = &cobra.Command{
	Use:   "node-types",
	Short: "List the node type catalog by category",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _, _, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if _, err := app.Editor.LoadNodeTypes(cmd.Context()); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, cat := range app.Editor.Registry().Categories() {
			fmt.Fprintf(out, "%s\n", cat.Name)
			for _, def := range cat.Types {
				fmt.Fprintf(out, "  %-14s %s", def.Type, def.Label)
				if in, outs := def.InputPorts(), def.OutputPorts(); len(in)+len(outs) > 0 {
					fmt.Fprintf(out, "  (in: %s; out: %s)", joinPorts(in), joinPorts(outs))
				}
				fmt.Fprintln(out)
				if fields := schema.ForNodeType(def.Type); len(fields) > 0 {
					fmt.Fprintf(out, "  %-14s config: %s\n", "", fields.Describe())
				}
			}
		}
		return nil
	},
}

func joinPorts(ports []string) string {
	if len(ports) == 0 {
		return "-"
	}
	return strings.Join(ports, ", ")
}

func init() {
	rootCmd.AddCommand(nodeTypesCmd)
}
