package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/aretw0/flowdeck/internal/cli"
	"github.com/aretw0/flowdeck/internal/config"
	"github.com/aretw0/flowdeck/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "flowdeck",
	Short: "flowdeck edits and runs workflows on a remote workflow backend",
	Long: `flowdeck is the command line for the workflow editor core.
It lists, renders, edits and runs workflows stored by a workflow backend, keeps unsaved
edits as local drafts, and can serve the backend API or an MCP server.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Config file (default "+config.DefaultPath+" if present)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
}

// loadConfig reads the configuration and builds the logger the flags ask for.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logging.New(level), nil
}

// newApp builds the editor for a command.
func newApp(cmd *cobra.Command, opts ...cli.AppOption) (*cli.App, config.Config, *slog.Logger, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, cfg, nil, err
	}
	app, err := cli.NewApp(cfg, logger, opts...)
	if err != nil {
		return nil, cfg, nil, err
	}
	return app, cfg, logger, nil
}

func parseWorkflowID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid workflow id %q", arg)
	}
	return id, nil
}
