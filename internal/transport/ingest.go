package transport

import (
	"context"
	"fmt"
	"strings"

	"github.com/shayc/relay/pkg/models"
)

// TaskCreator is the slice of the task manager that ingestion needs.
type TaskCreator interface {
	CreateTask(ctx context.Context, kind models.TaskKind, input map[string]any, contextID, messageID string, priority int) (*models.Task, error)
}

// Ingest turns an inbound message into a pending triage task. Media
// messages are routed straight to document analysis so the classifier
// never sees binary payloads.
func Ingest(ctx context.Context, tc TaskCreator, in Inbound) (*models.Task, error) {
	if strings.TrimSpace(in.Body) == "" && !in.HasMedia {
		return nil, fmt.Errorf("ingest: empty message from context %q", in.ContextID)
	}

	kind := models.TaskKindTriage
	if in.HasMedia {
		kind = models.TaskKindDocumentAnalysis
	}

	task, err := tc.CreateTask(ctx, kind, in.TriageInput(), in.ContextID, in.MessageID, models.PriorityNormal)
	if err != nil {
		return nil, fmt.Errorf("ingest message %q: %w", in.MessageID, err)
	}
	return task, nil
}
