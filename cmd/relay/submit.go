package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/shayc/relay/internal/manager"
	"github.com/shayc/relay/internal/queue"
	"github.com/shayc/relay/internal/store"
	"github.com/shayc/relay/internal/transport"
	"github.com/shayc/relay/pkg/models"
)

var (
	submitContext  string
	submitSender   string
	submitFile     string
	submitMIME     string
	submitKind     string
	submitInput    string
	submitPriority int
)

var submitCmd = &cobra.Command{
	Use:   "submit [message]",
	Short: "Submit a message or task to the engine",
	Long: `Submit work to the engine's queue.

By default the message text becomes a triage task, which the
orchestrator classifies and routes on the next dispatch cycle.
Attaching a file routes it straight to document analysis.

Advanced: --kind bypasses triage and creates a task of that kind
directly, with --input supplying its JSON payload.

Examples:
  relay submit "I need to book an appointment for tomorrow"
  relay submit --file ./scan.pdf --mime application/pdf "please review"
  relay submit --kind database_cleanup --input '{"retention_days":7}'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitContext, "context", "cli", "Conversation context ID")
	submitCmd.Flags().StringVar(&submitSender, "sender", "", "Sender display name")
	submitCmd.Flags().StringVar(&submitFile, "file", "", "Path of an attached file")
	submitCmd.Flags().StringVar(&submitMIME, "mime", "", "MIME type of the attached file")
	submitCmd.Flags().StringVar(&submitKind, "kind", "", "Create a task of this kind directly, skipping triage")
	submitCmd.Flags().StringVar(&submitInput, "input", "", "JSON payload for --kind tasks")
	submitCmd.Flags().IntVar(&submitPriority, "priority", 0, "Task priority, 1 (urgent) to 9 (background)")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	db, mgr, err := openManager()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()

	var task *models.Task
	if submitKind != "" {
		task, err = submitDirect(ctx, mgr)
	} else {
		task, err = submitMessage(ctx, mgr, args)
	}
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	fmt.Printf("%s task %d (%s, priority %d) queued for context %s\n",
		green.Sprint("✓"), task.ID, task.Kind, task.Priority, task.ContextID)
	return nil
}

func submitMessage(ctx context.Context, mgr *manager.TaskManager, args []string) (*models.Task, error) {
	body := ""
	if len(args) > 0 {
		body = args[0]
	}
	in := transport.Inbound{
		ContextID:  submitContext,
		MessageID:  fmt.Sprintf("cli-%d", time.Now().UnixNano()),
		Body:       body,
		SenderName: submitSender,
		ReceivedAt: time.Now().UTC(),
	}
	if submitFile != "" {
		in.HasMedia = true
		in.MediaPath = submitFile
		in.MediaType = submitMIME
	}
	return transport.Ingest(ctx, mgr, in)
}

func submitDirect(ctx context.Context, mgr *manager.TaskManager) (*models.Task, error) {
	kind := models.TaskKind(strings.TrimSpace(submitKind))
	input := map[string]any{}
	if submitInput != "" {
		if err := json.Unmarshal([]byte(submitInput), &input); err != nil {
			return nil, fmt.Errorf("parse --input: %w", err)
		}
	}
	messageID := fmt.Sprintf("cli-%d", time.Now().UnixNano())
	return mgr.CreateTask(ctx, kind, input, submitContext, messageID, submitPriority)
}

// openManager opens the configured database and wraps it in a task
// manager. The queue is process-local; a running engine picks up new
// tasks through its pending-requeue scan.
func openManager() (*store.DB, *manager.TaskManager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = store.DefaultDBPath()
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, manager.New(db, queue.New()), nil
}
