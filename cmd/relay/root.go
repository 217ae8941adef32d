package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shayc/relay/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Task orchestration engine for conversational assistants",
	Long: `Relay turns inbound messages into prioritized tasks and dispatches
them to specialized agents.

The engine classifies each message in two tiers (keyword heuristics,
then an optional Claude classifier), routes it to the matching agent,
and tracks every task through a persistent SQLite-backed state machine
with bounded retries.

Start the engine with 'relay run', then feed it work with
'relay submit'.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file (overrides discovery)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves configuration, honoring the --config flag.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		cfg, err := config.LoadFromPath(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", configPath, err)
		}
		return cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
