package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var cancelReason string

var retryCmd = &cobra.Command{
	Use:   "retry <task-id>",
	Short: "Re-queue a failed task",
	Long: `Re-queue a failed task for another attempt.

Retries are refused once the task's budget is exhausted or the task is
no longer in a failed state.`,
	Args: cobra.ExactArgs(1),
	RunE: runRetry,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Cancel a task",
	Long: `Cancel a task that has not yet finished.

A task already claimed by a worker is marked cancelled in the store;
its in-flight result is discarded when the worker reports back.`,
	Args: cobra.ExactArgs(1),
	RunE: runCancel,
}

var resumeCmd = &cobra.Command{
	Use:   "resume <task-id>",
	Short: "Resume a task waiting on input or approval",
	Args:  cobra.ExactArgs(1),
	RunE:  runResume,
}

var logsCmd = &cobra.Command{
	Use:   "logs <task-id>",
	Short: "Show the audit log for a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogs,
}

func init() {
	cancelCmd.Flags().StringVar(&cancelReason, "reason", "cancelled via CLI", "Reason recorded on the task")
}

func parseTaskID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task ID %q", arg)
	}
	return id, nil
}

func runRetry(cmd *cobra.Command, args []string) error {
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}
	db, mgr, err := openManager()
	if err != nil {
		return err
	}
	defer db.Close()

	ok, err := mgr.RetryTask(context.Background(), id)
	if err != nil {
		return fmt.Errorf("retry task %d: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("task %d cannot be retried (not failed, or retry budget exhausted)", id)
	}
	fmt.Printf("%s task %d re-queued\n", color.GreenString("✓"), id)
	return nil
}

func runCancel(cmd *cobra.Command, args []string) error {
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}
	db, mgr, err := openManager()
	if err != nil {
		return err
	}
	defer db.Close()

	ok, err := mgr.CancelTask(context.Background(), id, cancelReason)
	if err != nil {
		return fmt.Errorf("cancel task %d: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("task %d is already finished", id)
	}
	fmt.Printf("%s task %d cancelled\n", color.GreenString("✓"), id)
	return nil
}

func runResume(cmd *cobra.Command, args []string) error {
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}
	db, mgr, err := openManager()
	if err != nil {
		return err
	}
	defer db.Close()

	ok, err := mgr.ResumeTask(context.Background(), id)
	if err != nil {
		return fmt.Errorf("resume task %d: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("task %d is not waiting on input or approval", id)
	}
	fmt.Printf("%s task %d resumed\n", color.GreenString("✓"), id)
	return nil
}

func runLogs(cmd *cobra.Command, args []string) error {
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}
	db, mgr, err := openManager()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	task, err := mgr.GetTask(ctx, id)
	if err != nil {
		return fmt.Errorf("get task %d: %w", id, err)
	}
	entries, err := mgr.LogsForTask(ctx, id)
	if err != nil {
		return fmt.Errorf("read logs for task %d: %w", id, err)
	}

	fmt.Printf("Task #%d (%s) %s\n", task.ID, task.Kind,
		statusColor(task.Status).Sprint(string(task.Status)))
	if task.ErrorMessage != "" {
		fmt.Printf("  error: %s\n", color.RedString(task.ErrorMessage))
	}
	if len(entries) == 0 {
		fmt.Println("No log entries.")
		return nil
	}
	for _, e := range entries {
		line := fmt.Sprintf("  %s  %-12s %s", e.CreatedAt.Local().Format("15:04:05"), e.AgentName, e.Action)
		if e.DurationMS > 0 {
			line += fmt.Sprintf(" (%dms)", e.DurationMS)
		}
		if len(e.Details) > 0 {
			detail, err := json.Marshal(e.Details)
			if err == nil {
				line += " " + string(detail)
			}
		}
		fmt.Println(line)
	}
	return nil
}
