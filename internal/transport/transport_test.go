package transport

import (
	"context"
	"testing"
	"time"

	"github.com/shayc/relay/pkg/models"
)

type recordingCreator struct {
	last   *models.Task
	nextID int64
}

func (r *recordingCreator) CreateTask(ctx context.Context, kind models.TaskKind, input map[string]any, contextID, messageID string, priority int) (*models.Task, error) {
	r.nextID++
	r.last = &models.Task{
		ID: r.nextID, Kind: kind, Priority: priority,
		ContextID: contextID, MessageID: messageID, Input: input,
	}
	return r.last, nil
}

func TestIngest_TextMessageBecomesTriage(t *testing.T) {
	creator := &recordingCreator{}
	in := Inbound{
		ContextID:  "chat-1",
		MessageID:  "msg-1",
		Body:       "I want to book an appointment",
		SenderName: "Dana",
		ReceivedAt: time.Now(),
	}

	task, err := Ingest(context.Background(), creator, in)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if task.Kind != models.TaskKindTriage {
		t.Errorf("Kind = %q, want triage", task.Kind)
	}
	if task.ContextID != "chat-1" || task.MessageID != "msg-1" {
		t.Errorf("context = %q/%q", task.ContextID, task.MessageID)
	}
	if task.Input["message"] != in.Body {
		t.Errorf("Input message = %v", task.Input["message"])
	}
	if task.Input["sender_name"] != "Dana" {
		t.Errorf("Input sender_name = %v", task.Input["sender_name"])
	}
	if task.Priority != models.PriorityNormal {
		t.Errorf("Priority = %d, want normal", task.Priority)
	}
}

func TestIngest_MediaRoutedToDocumentAnalysis(t *testing.T) {
	creator := &recordingCreator{}
	in := Inbound{
		ContextID: "chat-2",
		MessageID: "msg-2",
		HasMedia:  true,
		MediaType: "application/pdf",
		MediaPath: "/data/media/msg-2.pdf",
	}

	task, err := Ingest(context.Background(), creator, in)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if task.Kind != models.TaskKindDocumentAnalysis {
		t.Errorf("Kind = %q, want document_analysis", task.Kind)
	}
	if task.Input["mime_type"] != "application/pdf" {
		t.Errorf("mime_type = %v", task.Input["mime_type"])
	}
	if task.Input["file_path"] != "/data/media/msg-2.pdf" {
		t.Errorf("file_path = %v", task.Input["file_path"])
	}
}

func TestIngest_EmptyMessageRejected(t *testing.T) {
	creator := &recordingCreator{}
	_, err := Ingest(context.Background(), creator, Inbound{ContextID: "chat-3", Body: "   "})
	if err == nil {
		t.Fatal("expected error for empty message")
	}
	if creator.last != nil {
		t.Error("no task should be created for an empty message")
	}
}

func TestMemoryBridge(t *testing.T) {
	b := NewMemoryBridge()
	ctx := context.Background()

	if err := b.SendMessage(ctx, "chat-1", "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := b.SendMessage(ctx, "chat-2", "other"); err != nil {
		t.Fatalf("send: %v", err)
	}

	if got := b.Sent(); len(got) != 2 {
		t.Errorf("Sent() = %d messages, want 2", len(got))
	}
	to1 := b.SentTo("chat-1")
	if len(to1) != 1 || to1[0].Text != "hello" {
		t.Errorf("SentTo(chat-1) = %v", to1)
	}
}
