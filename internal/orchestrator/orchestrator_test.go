package orchestrator

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/shayc/relay/internal/llm"
	"github.com/shayc/relay/internal/transport"
	"github.com/shayc/relay/pkg/models"
)

func TestClassifyHeuristic(t *testing.T) {
	tests := []struct {
		name           string
		message        string
		wantCategory   models.TaskKind
		wantAgent      string
		wantConfidence float64
	}{
		{
			name:           "cancel appointment",
			message:        "I want to cancel my appointment",
			wantCategory:   models.TaskKindAppointmentCancel,
			wantAgent:      "appointment_agent",
			wantConfidence: 0.8,
		},
		{
			name:           "reschedule appointment",
			message:        "Can I reschedule my appointment to Friday?",
			wantCategory:   models.TaskKindAppointmentReschedule,
			wantAgent:      "appointment_agent",
			wantConfidence: 0.8,
		},
		{
			name:           "booking",
			message:        "I'd like to book an appointment for next week",
			wantCategory:   models.TaskKindAppointmentBooking,
			wantAgent:      "appointment_agent",
			wantConfidence: 0.8,
		},
		{
			name:           "information query",
			message:        "What is the price of a consultation?",
			wantCategory:   models.TaskKindInformationQuery,
			wantAgent:      "inquiry_agent",
			wantConfidence: 0.8,
		},
		{
			name:           "file reference",
			message:        "I will send you the document",
			wantCategory:   models.TaskKindFileProcessing,
			wantAgent:      "file_agent",
			wantConfidence: 0.7,
		},
		{
			name:           "greeting",
			message:        "hello there",
			wantCategory:   models.TaskKindGeneralInquiry,
			wantAgent:      "triage_agent",
			wantConfidence: 0.8,
		},
		{
			name:           "fallback",
			message:        "asdkfj random text",
			wantCategory:   models.TaskKindGeneralInquiry,
			wantAgent:      "inquiry_agent",
			wantConfidence: 0.4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyHeuristic(tt.message)
			if got.Category != tt.wantCategory {
				t.Errorf("Category = %q, want %q", got.Category, tt.wantCategory)
			}
			if got.Agent != tt.wantAgent {
				t.Errorf("Agent = %q, want %q", got.Agent, tt.wantAgent)
			}
			if math.Abs(got.Confidence-tt.wantConfidence) > 1e-9 {
				t.Errorf("Confidence = %v, want %v", got.Confidence, tt.wantConfidence)
			}
			if got.Method != "heuristic" {
				t.Errorf("Method = %q, want heuristic", got.Method)
			}
		})
	}
}

func TestClassifyHeuristic_ConfidenceCaps(t *testing.T) {
	// Many appointment keywords must not push confidence past 0.9.
	got := classifyHeuristic("book schedule reserve meeting appointment calendar availability")
	if got.Category != models.TaskKindAppointmentBooking {
		t.Fatalf("Category = %q", got.Category)
	}
	if got.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want capped at 0.9", got.Confidence)
	}
}

func TestParseClassifierReply(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    string
		wantErr bool
	}{
		{
			name: "plain json",
			text: `{"category": "INFORMATION_QUERY", "confidence": 0.9}`,
			want: "INFORMATION_QUERY",
		},
		{
			name: "fenced json",
			text: "```json\n{\"category\": \"APPOINTMENT_CANCEL\", \"confidence\": 0.85}\n```",
			want: "APPOINTMENT_CANCEL",
		},
		{
			name: "bare fence",
			text: "```\n{\"category\": \"GENERAL_INQUIRY\", \"confidence\": 0.6}\n```",
			want: "GENERAL_INQUIRY",
		},
		{
			name:    "prose instead of json",
			text:    "The customer probably wants to book an appointment.",
			wantErr: true,
		},
		{
			name:    "missing category",
			text:    `{"confidence": 0.9}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := parseClassifierReply(tt.text)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected parse error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if reply.Category != tt.want {
				t.Errorf("Category = %q, want %q", reply.Category, tt.want)
			}
		})
	}
}

// fakeGenerator returns a fixed completion.
type fakeGenerator struct {
	text string
	err  error
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	return g.text, g.err
}

func TestClassify_ShortCircuitSkipsClassifier(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("should not be called")}
	o := New(gen, nil, nil, nil, nil)

	// Cancel + two appointment keywords scores above 0.8.
	got := o.Classify(context.Background(), "please cancel and delete my appointment booking", nil)
	if got.Method != "heuristic" {
		t.Errorf("Method = %q, want heuristic short-circuit", got.Method)
	}
	if got.Category != models.TaskKindAppointmentCancel {
		t.Errorf("Category = %q", got.Category)
	}
}

func TestClassify_ClassifierWinsAmbiguousCase(t *testing.T) {
	gen := &fakeGenerator{text: `{"category": "APPOINTMENT_BOOKING", "confidence": 0.85}`}
	o := New(gen, nil, nil, nil, nil)

	got := o.Classify(context.Background(), "do you have anything free tomorrow", nil)
	if got.Method != "classifier" {
		t.Fatalf("Method = %q, want classifier", got.Method)
	}
	if got.Category != models.TaskKindAppointmentBooking {
		t.Errorf("Category = %q", got.Category)
	}
	if got.Agent != "appointment_agent" {
		t.Errorf("Agent = %q", got.Agent)
	}
}

func TestClassify_SilentFallbackOnBackendError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("rate limited")}
	o := New(gen, nil, nil, nil, nil)

	got := o.Classify(context.Background(), "asdkfj random text", nil)
	if got.Method != "heuristic" {
		t.Errorf("Method = %q, want heuristic fallback", got.Method)
	}
	if got.Confidence != 0.4 {
		t.Errorf("Confidence = %v, want 0.4 fallback", got.Confidence)
	}
}

func TestClassify_SilentFallbackOnGarbageOutput(t *testing.T) {
	gen := &fakeGenerator{text: "sorry, I cannot classify that"}
	o := New(gen, nil, nil, nil, nil)

	got := o.Classify(context.Background(), "asdkfj random text", nil)
	if got.Method != "heuristic" {
		t.Errorf("Method = %q, want heuristic fallback", got.Method)
	}
}

// fakeCreator records created follow-up tasks.
type fakeCreator struct {
	created []*models.Task
	nextID  int64
}

func (f *fakeCreator) CreateTask(ctx context.Context, kind models.TaskKind, input map[string]any, contextID, messageID string, priority int) (*models.Task, error) {
	f.nextID++
	task := &models.Task{
		ID:        f.nextID,
		Kind:      kind,
		Status:    models.TaskStatusPending,
		Priority:  priority,
		ContextID: contextID,
		MessageID: messageID,
		Input:     input,
	}
	f.created = append(f.created, task)
	return task, nil
}

// fakeLogs records appended log entries.
type fakeLogs struct {
	entries []*models.AgentLog
}

func (f *fakeLogs) AppendLog(entry *models.AgentLog) error {
	f.entries = append(f.entries, entry)
	return nil
}

func TestProcess_RoutesAndRedispatches(t *testing.T) {
	creator := &fakeCreator{}
	logs := &fakeLogs{}
	bridge := transport.NewMemoryBridge()
	o := New(nil, nil, creator, logs, bridge)

	task := &models.Task{
		ID:        1,
		Kind:      models.TaskKindTriage,
		ContextID: "chat-1",
		MessageID: "msg-1",
		Priority:  models.PriorityNormal,
		Input:     map[string]any{"message": "I want to cancel my appointment"},
	}
	result := o.Process(context.Background(), task)

	if !result.Success {
		t.Fatalf("result = %+v, want success", result)
	}
	if result.Data["routed_to"] != "appointment_agent" {
		t.Errorf("routed_to = %v, want appointment_agent", result.Data["routed_to"])
	}
	if result.Data["method"] != "heuristic" {
		t.Errorf("method = %v, want heuristic", result.Data["method"])
	}
	if conf, _ := result.Data["confidence"].(float64); conf < 0.7 {
		t.Errorf("confidence = %v, want >= 0.7", result.Data["confidence"])
	}

	if len(creator.created) != 1 {
		t.Fatalf("created %d follow-ups, want 1", len(creator.created))
	}
	followUp := creator.created[0]
	if followUp.Kind != models.TaskKindAppointmentCancel {
		t.Errorf("follow-up kind = %q, want appointment_cancel", followUp.Kind)
	}
	if followUp.ContextID != "chat-1" {
		t.Errorf("follow-up context = %q, want inherited", followUp.ContextID)
	}

	if len(logs.entries) != 1 || logs.entries[0].Action != models.LogActionRouted {
		t.Errorf("log entries = %+v, want one routed entry", logs.entries)
	}
	if len(bridge.SentTo("chat-1")) != 1 {
		t.Error("acknowledgement should be delivered")
	}
}

func TestProcess_GeneralInquiryNotRedispatched(t *testing.T) {
	creator := &fakeCreator{}
	o := New(nil, nil, creator, nil, nil)

	task := &models.Task{
		ID:        2,
		Kind:      models.TaskKindTriage,
		ContextID: "chat-2",
		Input:     map[string]any{"message": "asdkfj random text"},
	}
	result := o.Process(context.Background(), task)

	if !result.Success {
		t.Fatalf("result = %+v, want success", result)
	}
	if got, _ := result.Data["confidence"].(float64); got != 0.4 {
		t.Errorf("confidence = %v, want 0.4", result.Data["confidence"])
	}
	if len(creator.created) != 0 {
		t.Errorf("general inquiry must not be re-dispatched, got %d follow-ups", len(creator.created))
	}
}

func TestProcess_EmptyMessage(t *testing.T) {
	o := New(nil, nil, nil, nil, nil)

	result := o.Process(context.Background(), &models.Task{
		ID:    3,
		Kind:  models.TaskKindTriage,
		Input: map[string]any{},
	})
	if result.Success {
		t.Fatal("expected validation failure for empty message")
	}
	if result.ErrorKind != models.ErrorKindValidation {
		t.Errorf("ErrorKind = %q, want validation", result.ErrorKind)
	}
}

func TestProcess_UsesConversationCache(t *testing.T) {
	cache := llm.NewConversationCache(10, 5, 0)
	o := New(nil, cache, nil, nil, nil)

	task := &models.Task{
		ID:        4,
		Kind:      models.TaskKindTriage,
		ContextID: "chat-4",
		Input:     map[string]any{"message": "asdkfj random text"},
	}
	o.Process(context.Background(), task)

	if got := cache.Recent("chat-4"); len(got) != 1 {
		t.Errorf("cache = %v, want the message recorded", got)
	}
}
