package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"

	"github.com/shayc/relay/internal/agent"
	"github.com/shayc/relay/internal/config"
	"github.com/shayc/relay/internal/dispatch"
	"github.com/shayc/relay/internal/llm"
	"github.com/shayc/relay/internal/manager"
	"github.com/shayc/relay/internal/orchestrator"
	"github.com/shayc/relay/internal/queue"
	"github.com/shayc/relay/internal/schedule"
	"github.com/shayc/relay/internal/store"
	"github.com/shayc/relay/internal/transport"
)

var (
	runWorkers  int
	runDebugLog string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the dispatch engine",
	Long: `Start the dispatch engine and run until interrupted.

On startup any tasks left pending by a previous run are re-queued, then
the worker pool drains the queue while the scheduler emits recurring
maintenance tasks (archive, sync, cleanup, metadata refresh).

Without an Anthropic API key the engine still runs: classification
falls back to keyword heuristics and replies use canned responses.`,
	RunE: runEngine,
}

func init() {
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "Number of dispatch workers (overrides config)")
	runCmd.Flags().StringVar(&runDebugLog, "debug-log", "", "Write dispatch debug output to this file")
}

func runEngine(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = store.DefaultDBPath()
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	q := queue.New()
	defer q.Close()
	mgr := manager.New(db, q)

	generator := buildGenerator(cfg)
	cache := llm.NewConversationCache(0, 0, 0)
	bridge := transport.NewMemoryBridge()

	retention := time.Duration(cfg.Dispatch.RetentionDays) * 24 * time.Hour

	// Registration order matters: first matching agent wins, and the
	// orchestrator must own triage before anything else sees it.
	reg := agent.NewRegistry()
	reg.Register(orchestrator.New(generator, cache, mgr, db, bridge))
	reg.Register(agent.NewConcierge(generator, bridge))
	reg.Register(agent.NewCurator(db, bridge, retention))
	reg.Register(agent.NewDocumentAnalyzer(generator))

	debugPath := cfg.Dispatch.DebugLog
	if runDebugLog != "" {
		debugPath = runDebugLog
	}
	debug, err := dispatch.NewDebugLogger(debugPath)
	if err != nil {
		return fmt.Errorf("open debug log: %w", err)
	}
	defer debug.Close()

	workers := cfg.Dispatch.Workers
	if runWorkers > 0 {
		workers = runWorkers
	}
	dispatcher := dispatch.New(q, mgr, reg, db, workers, debug)

	sched := schedule.New(mgr, schedule.Config{
		ArchiveEnabled:   cfg.Schedule.ArchiveEnabled,
		ArchiveTime:      cfg.Schedule.ArchiveTime,
		ArchiveAfterDays: cfg.Schedule.ArchiveAfterDays,
		SyncEnabled:      cfg.Schedule.SyncEnabled,
		SyncInterval:     cfg.Schedule.SyncInterval,
		CleanupEnabled:   cfg.Schedule.CleanupEnabled,
		RetentionDays:    cfg.Dispatch.RetentionDays,
		MetadataEnabled:  cfg.Schedule.MetadataEnabled,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nReceived interrupt, shutting down...")
		cancel()
	}()

	go func() {
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[relay] scheduler stopped: %v", err)
		}
	}()

	log.Printf("[relay] engine started (db=%s workers=%d)", dbPath, workers)
	if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("dispatcher: %w", err)
	}
	return nil
}

// buildGenerator returns the Claude backend, or nil when no credentials
// are configured. A nil generator degrades to heuristics and canned
// replies instead of failing.
func buildGenerator(cfg *config.Config) llm.Generator {
	key, err := config.GetAPIKey(cfg)
	if err != nil && !cfg.Anthropic.UseAWSBedrock {
		log.Printf("[relay] no API key configured, running without classifier backend")
		return nil
	}

	client, err := llm.NewClient(llm.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        key,
		UseAWSBedrock: cfg.Anthropic.UseAWSBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		log.Printf("[relay] language backend unavailable: %v", err)
		return nil
	}
	return client
}
