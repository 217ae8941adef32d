// Package orchestrator implements the triage agent. It classifies
// inbound messages in two tiers, a keyword heuristic and an optional
// language-model classifier, then re-dispatches the work as a task of
// the routed kind.
package orchestrator

import (
	"context"
	"log"
	"strings"

	"github.com/shayc/relay/internal/agent"
	"github.com/shayc/relay/internal/llm"
	"github.com/shayc/relay/internal/transport"
	"github.com/shayc/relay/pkg/models"
)

// TaskCreator creates the follow-up task for a routed message.
type TaskCreator interface {
	CreateTask(ctx context.Context, kind models.TaskKind, input map[string]any, contextID, messageID string, priority int) (*models.Task, error)
}

// LogAppender records routing decisions in the audit log.
type LogAppender interface {
	AppendLog(entry *models.AgentLog) error
}

// acknowledgements sent back while the routed task is queued.
var acknowledgements = map[models.TaskKind]string{
	models.TaskKindAppointmentBooking:    "I'll help you book an appointment. Our appointment agent will assist you shortly.",
	models.TaskKindAppointmentReschedule: "I'll help you reschedule your appointment. Let me check the available times.",
	models.TaskKindAppointmentCancel:     "I understand you want to cancel an appointment. Our system will process this request.",
	models.TaskKindInformationQuery:      "Let me get that information for you.",
	models.TaskKindFileProcessing:        "I received your file and will process it shortly.",
	models.TaskKindGeneralInquiry:        "Thank you for your message. How can I assist you today?",
}

// Orchestrator routes triage tasks. Classification itself cannot fail;
// the worst case is the low-confidence general_inquiry fallback.
type Orchestrator struct {
	generator llm.Generator
	cache     *llm.ConversationCache
	tasks     TaskCreator
	logs      LogAppender
	bridge    transport.Bridge
}

// New returns an Orchestrator. generator may be nil to disable the
// classifier tier; bridge may be nil to skip acknowledgements.
func New(generator llm.Generator, cache *llm.ConversationCache, tasks TaskCreator, logs LogAppender, bridge transport.Bridge) *Orchestrator {
	if cache == nil {
		cache = llm.NewConversationCache(0, 0, 0)
	}
	return &Orchestrator{
		generator: generator,
		cache:     cache,
		tasks:     tasks,
		logs:      logs,
		bridge:    bridge,
	}
}

// Name implements agent.Agent.
func (o *Orchestrator) Name() string { return "orchestrator" }

// CanHandle implements agent.Agent.
func (o *Orchestrator) CanHandle(kind models.TaskKind) bool {
	return kind == models.TaskKindTriage
}

// Process implements agent.Agent.
func (o *Orchestrator) Process(ctx context.Context, task *models.Task) *agent.Result {
	message, _ := task.Input["message"].(string)
	if strings.TrimSpace(message) == "" {
		return agent.Fail(models.ErrorKindValidation, "no message content to process")
	}

	recent := o.cache.Recent(task.ContextID)
	o.cache.Append(task.ContextID, message)

	decision := o.Classify(ctx, message, recent)

	log.Printf("[orchestrator] task %d: intent %s via %s (confidence %.2f)",
		task.ID, decision.Category, decision.Method, decision.Confidence)

	data := map[string]any{
		"routed_to":  decision.Agent,
		"task_kind":  string(decision.Category),
		"confidence": decision.Confidence,
		"method":     decision.Method,
	}

	// Re-dispatch everything but plain general inquiries, which the
	// acknowledgement below already answers.
	if o.tasks != nil && decision.Category != models.TaskKindGeneralInquiry {
		followUp, err := o.tasks.CreateTask(ctx, decision.Category, task.Input,
			task.ContextID, task.MessageID, task.Priority)
		if err != nil {
			log.Printf("[orchestrator] task %d: create follow-up: %v", task.ID, err)
		} else {
			data["follow_up_id"] = followUp.ID
			o.logRouted(task.ID, decision, followUp.ID)
		}
	}

	response := acknowledgements[decision.Category]
	if o.bridge != nil && task.ContextID != "" {
		if err := o.bridge.SendMessage(ctx, task.ContextID, response); err != nil {
			log.Printf("[orchestrator] task %d: send ack: %v", task.ID, err)
		}
	}

	return agent.Succeed(response, data)
}

// Classify runs the two-tier decision. The heuristic short-circuits
// above 0.8 confidence; otherwise the classifier is consulted and its
// answer preferred, falling back silently to the heuristic.
func (o *Orchestrator) Classify(ctx context.Context, message string, recent []string) Decision {
	heuristic := classifyHeuristic(message)
	if heuristic.Confidence > 0.8 {
		return heuristic
	}

	if d := classifyLLM(ctx, o.generator, message, recent); d != nil {
		return *d
	}
	return heuristic
}

func (o *Orchestrator) logRouted(taskID int64, decision Decision, followUpID int64) {
	if o.logs == nil {
		return
	}
	entry := &models.AgentLog{
		TaskID:    taskID,
		AgentName: o.Name(),
		Action:    models.LogActionRouted,
		Details: map[string]any{
			"to_agent":     decision.Agent,
			"task_kind":    string(decision.Category),
			"follow_up_id": followUpID,
		},
	}
	if err := o.logs.AppendLog(entry); err != nil {
		log.Printf("[orchestrator] task %d: append routed log: %v", taskID, err)
	}
}
