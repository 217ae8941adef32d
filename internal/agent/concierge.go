package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/shayc/relay/internal/llm"
	"github.com/shayc/relay/internal/transport"
	"github.com/shayc/relay/pkg/models"
)

// conciergeKinds are the user-facing request kinds handled directly.
var conciergeKinds = map[models.TaskKind]bool{
	models.TaskKindAppointmentBooking:    true,
	models.TaskKindAppointmentReschedule: true,
	models.TaskKindAppointmentCancel:     true,
	models.TaskKindInformationQuery:      true,
	models.TaskKindFileProcessing:        true,
	models.TaskKindGeneralInquiry:        true,
}

// cannedReplies cover the no-backend case so the system stays useful
// without an API key.
var cannedReplies = map[models.TaskKind]string{
	models.TaskKindAppointmentBooking:    "I've noted your appointment request. Someone will confirm the details shortly.",
	models.TaskKindAppointmentReschedule: "I've noted your reschedule request. Someone will confirm the new time shortly.",
	models.TaskKindAppointmentCancel:     "Your cancellation request has been recorded.",
	models.TaskKindInformationQuery:      "Thanks for your question. I'm looking into it and will get back to you.",
	models.TaskKindFileProcessing:        "I've received your file and queued it for processing.",
	models.TaskKindGeneralInquiry:        "Hello! How can I help you today?",
}

// Concierge answers user-facing requests: appointments, questions,
// files, and general conversation. Replies are generated when a
// language backend is configured and canned otherwise, then delivered
// through the transport bridge.
type Concierge struct {
	generator llm.Generator
	bridge    transport.Bridge
}

// NewConcierge returns a Concierge. generator may be nil for canned
// replies; bridge may be nil to skip delivery.
func NewConcierge(generator llm.Generator, bridge transport.Bridge) *Concierge {
	return &Concierge{generator: generator, bridge: bridge}
}

// Name implements Agent.
func (c *Concierge) Name() string { return "concierge" }

// CanHandle implements Agent.
func (c *Concierge) CanHandle(kind models.TaskKind) bool {
	return conciergeKinds[kind]
}

// Process implements Agent.
func (c *Concierge) Process(ctx context.Context, task *models.Task) *Result {
	message, _ := task.Input["message"].(string)

	reply := c.reply(ctx, task.Kind, message)

	if c.bridge != nil && task.ContextID != "" {
		if err := c.bridge.SendMessage(ctx, task.ContextID, reply); err != nil {
			return Fail(models.ErrorKindDependencyUnavailable,
				fmt.Sprintf("send reply: %v", err))
		}
	}

	return Succeed(reply, map[string]any{
		"handled_kind": string(task.Kind),
	})
}

func (c *Concierge) reply(ctx context.Context, kind models.TaskKind, message string) string {
	canned := cannedReplies[kind]

	if c.generator == nil || strings.TrimSpace(message) == "" {
		return canned
	}

	prompt := fmt.Sprintf(
		"You are a helpful assistant replying to a customer message in a chat.\n"+
			"The request category is %q.\n"+
			"Customer message: %s\n\n"+
			"Write a short, friendly reply. Do not invent appointment times or facts.",
		kind, message)

	text, err := c.generator.Generate(ctx, prompt, 512, 0.7)
	if err != nil || strings.TrimSpace(text) == "" {
		// Model trouble never blocks the reply.
		return canned
	}
	return strings.TrimSpace(text)
}
