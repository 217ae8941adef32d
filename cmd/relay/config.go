package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shayc/relay/internal/config"
	"github.com/shayc/relay/internal/store"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved configuration",
	Long: `Print the effective configuration after merging defaults, the user
config file, any project .relay.yaml, and environment variables.
The API key is masked.`,
	RunE: runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	userPath := config.GetUserConfigPath()
	if _, err := os.Stat(userPath); err == nil {
		fmt.Printf("User config:    %s\n", userPath)
	} else {
		fmt.Printf("User config:    %s (not present)\n", userPath)
	}

	key, _ := config.GetAPIKey(cfg)
	model := cfg.Anthropic.Model
	if model == "" {
		model = "(default)"
	}
	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = store.DefaultDBPath()
	}

	fmt.Printf("API key:        %s\n", config.MaskAPIKey(key))
	fmt.Printf("Model:          %s\n", model)
	fmt.Printf("AWS Bedrock:    %v\n", cfg.Anthropic.UseAWSBedrock)
	fmt.Printf("Database:       %s\n", dbPath)
	fmt.Printf("Workers:        %d\n", cfg.Dispatch.Workers)
	fmt.Printf("Retention:      %d days\n", cfg.Dispatch.RetentionDays)
	fmt.Printf("Archive:        enabled=%v time=%s after=%d days\n",
		cfg.Schedule.ArchiveEnabled, cfg.Schedule.ArchiveTime, cfg.Schedule.ArchiveAfterDays)
	fmt.Printf("Sync:           enabled=%v every %s\n",
		cfg.Schedule.SyncEnabled, cfg.Schedule.SyncInterval)
	fmt.Printf("Cleanup:        enabled=%v\n", cfg.Schedule.CleanupEnabled)
	fmt.Printf("Metadata:       enabled=%v\n", cfg.Schedule.MetadataEnabled)
	return nil
}
