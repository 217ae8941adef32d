package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/shayc/relay/pkg/models"
)

var statusPendingLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show engine task statistics",
	Long: `Display task counts by status, the current queue depth, and the
oldest still-pending work.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusPendingLimit, "pending", 10, "How many pending tasks to list")
}

// statusColors maps each task status to its display color.
var statusColors = map[models.TaskStatus]*color.Color{
	models.TaskStatusPending:         color.New(color.FgYellow),
	models.TaskStatusInProgress:      color.New(color.FgCyan),
	models.TaskStatusWaitingInput:    color.New(color.FgMagenta),
	models.TaskStatusWaitingApproval: color.New(color.FgMagenta),
	models.TaskStatusCompleted:       color.New(color.FgGreen),
	models.TaskStatusFailed:          color.New(color.FgRed),
	models.TaskStatusCancelled:       color.New(color.Faint),
}

func statusColor(s models.TaskStatus) *color.Color {
	if c, ok := statusColors[s]; ok {
		return c
	}
	return color.New(color.Reset)
}

func runStatus(cmd *cobra.Command, args []string) error {
	db, mgr, err := openManager()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	stats, err := mgr.Stats(ctx)
	if err != nil {
		return fmt.Errorf("read stats: %w", err)
	}

	fmt.Printf("Tasks: %d total\n", stats.Total)
	for _, status := range []models.TaskStatus{
		models.TaskStatusPending,
		models.TaskStatusInProgress,
		models.TaskStatusWaitingInput,
		models.TaskStatusWaitingApproval,
		models.TaskStatusCompleted,
		models.TaskStatusFailed,
		models.TaskStatusCancelled,
	} {
		n := stats.ByStatus[status]
		if n == 0 {
			continue
		}
		fmt.Printf("  %-18s %d\n", statusColor(status).Sprint(string(status)), n)
	}
	if stats.AvgCompletionSeconds > 0 {
		fmt.Printf("Avg completion: %.1fs\n", stats.AvgCompletionSeconds)
	}

	pending, err := mgr.ListPending(ctx, statusPendingLimit, "")
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}
	if len(pending) == 0 {
		fmt.Println("\nNo pending tasks.")
		return nil
	}

	fmt.Printf("\nPending (%d shown):\n", len(pending))
	for _, t := range pending {
		age := time.Since(t.CreatedAt).Round(time.Second)
		retries := ""
		if t.RetryCount > 0 {
			retries = fmt.Sprintf(" retries=%d/%d", t.RetryCount, t.MaxRetries)
		}
		fmt.Printf("  #%-5d %-22s p%d  ctx=%-12s age=%s%s\n",
			t.ID, t.Kind, t.Priority, t.ContextID, age, retries)
	}
	return nil
}
