package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/shayc/relay/internal/llm"
	"github.com/shayc/relay/pkg/models"
)

// classifierCategories maps the fixed classifier output labels back to
// task kinds.
var classifierCategories = map[string]models.TaskKind{
	"APPOINTMENT_BOOKING":    models.TaskKindAppointmentBooking,
	"APPOINTMENT_RESCHEDULE": models.TaskKindAppointmentReschedule,
	"APPOINTMENT_CANCEL":     models.TaskKindAppointmentCancel,
	"INFORMATION_QUERY":      models.TaskKindInformationQuery,
	"FILE_PROCESSING":        models.TaskKindFileProcessing,
	"GENERAL_INQUIRY":        models.TaskKindGeneralInquiry,
}

const classifierPromptFmt = `Analyze this customer message and determine the intent.

Message: %q
%s
Classify this into ONE of these categories:
1. APPOINTMENT_BOOKING - Customer wants to book a new appointment
2. APPOINTMENT_RESCHEDULE - Customer wants to change an existing appointment
3. APPOINTMENT_CANCEL - Customer wants to cancel an appointment
4. INFORMATION_QUERY - Customer asking about services, hours, pricing, location
5. FILE_PROCESSING - Customer sent or asking about a document/file
6. GENERAL_INQUIRY - General question or greeting

Respond with ONLY a JSON object in this exact format:
{"category": "CATEGORY_NAME", "confidence": 0.0, "reasoning": "brief explanation"}`

type classifierReply struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// classifyLLM asks the generation backend to pick a category. recent
// carries short conversation context, oldest first. A nil return means
// the caller should keep its heuristic decision; backend and parse
// failures are logged, never surfaced.
func classifyLLM(ctx context.Context, gen llm.Generator, message string, recent []string) *Decision {
	if gen == nil {
		return nil
	}

	var contextBlock string
	if len(recent) > 0 {
		contextBlock = fmt.Sprintf("\nRecent conversation:\n%s\n", strings.Join(recent, "\n"))
	}

	prompt := fmt.Sprintf(classifierPromptFmt, message, contextBlock)

	text, err := gen.Generate(ctx, prompt, 256, 0.0)
	if err != nil {
		log.Printf("[orchestrator] classifier call failed: %v", err)
		return nil
	}

	reply, err := parseClassifierReply(text)
	if err != nil {
		log.Printf("[orchestrator] classifier output unparsable: %v", err)
		return nil
	}

	kind, ok := classifierCategories[strings.ToUpper(strings.TrimSpace(reply.Category))]
	if !ok {
		kind = models.TaskKindGeneralInquiry
	}

	confidence := reply.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = 0.5
	}

	return &Decision{
		Category:   kind,
		Agent:      agentForKind[kind],
		Confidence: confidence,
		Method:     "classifier",
	}
}

// parseClassifierReply extracts the JSON object from the completion,
// tolerating markdown code fences around it.
func parseClassifierReply(text string) (*classifierReply, error) {
	s := strings.TrimSpace(text)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	var reply classifierReply
	if err := json.Unmarshal([]byte(s), &reply); err != nil {
		return nil, fmt.Errorf("decode classifier reply: %w", err)
	}
	if reply.Category == "" {
		return nil, fmt.Errorf("classifier reply missing category")
	}
	return &reply, nil
}
