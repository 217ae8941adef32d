package orchestrator

import (
	"strings"

	"github.com/shayc/relay/pkg/models"
)

// Decision is the routing outcome for one message.
type Decision struct {
	// Category is the task kind the message should be handled as.
	Category models.TaskKind
	// Agent is the logical agent group responsible for the category.
	Agent string
	// Confidence is 0.0 to 1.0.
	Confidence float64
	// KeywordsMatched counts heuristic hits, zero for the fallback.
	KeywordsMatched int
	// Method is "heuristic" or "classifier".
	Method string
}

// Logical agent groups reported in routing decisions.
const (
	agentAppointment = "appointment_agent"
	agentInquiry     = "inquiry_agent"
	agentFile        = "file_agent"
	agentTriage      = "triage_agent"
)

// agentForKind maps categories to their logical agent group.
var agentForKind = map[models.TaskKind]string{
	models.TaskKindAppointmentBooking:    agentAppointment,
	models.TaskKindAppointmentReschedule: agentAppointment,
	models.TaskKindAppointmentCancel:     agentAppointment,
	models.TaskKindInformationQuery:      agentInquiry,
	models.TaskKindFileProcessing:        agentFile,
	models.TaskKindGeneralInquiry:        agentInquiry,
}

// Curated keyword sets for the heuristic tier.
var (
	appointmentKeywords = []string{
		"appointment", "book", "schedule", "reserve", "meeting",
		"reschedule", "cancel", "change", "available", "availability",
		"time slot", "calendar", "when can", "free time",
	}
	rescheduleKeywords = []string{
		"reschedule", "change", "move", "different time", "different date",
	}
	cancelKeywords = []string{
		"cancel", "delete", "remove appointment",
	}
	infoKeywords = []string{
		"what is", "how much", "price", "cost", "hours", "open",
		"location", "address", "where", "services", "what do you",
		"tell me about", "information", "details",
	}
	greetingKeywords = []string{
		"hello", "hi", "hey", "good morning", "good afternoon", "good evening",
	}
	fileKeywords = []string{
		"send", "file", "document", "photo", "image", "picture", "attachment",
	}
)

func countMatches(message string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(message, kw) {
			n++
		}
	}
	return n
}

// classifyHeuristic scores the lower-cased message against the keyword
// sets and applies the decision rules in priority order. It always
// returns a decision; the catch-all is general_inquiry at 0.4.
func classifyHeuristic(message string) Decision {
	message = strings.ToLower(message)

	appointmentScore := countMatches(message, appointmentKeywords)
	rescheduleScore := countMatches(message, rescheduleKeywords)
	cancelScore := countMatches(message, cancelKeywords)
	infoScore := countMatches(message, infoKeywords)
	greetingScore := countMatches(message, greetingKeywords)
	fileScore := countMatches(message, fileKeywords)

	if cancelScore > 0 && appointmentScore > 0 {
		return Decision{
			Category:        models.TaskKindAppointmentCancel,
			Agent:           agentAppointment,
			Confidence:      min(0.9, 0.7+float64(cancelScore)*0.1),
			KeywordsMatched: cancelScore + appointmentScore,
			Method:          "heuristic",
		}
	}

	if rescheduleScore > 0 && appointmentScore > 0 {
		return Decision{
			Category:        models.TaskKindAppointmentReschedule,
			Agent:           agentAppointment,
			Confidence:      min(0.9, 0.7+float64(rescheduleScore)*0.1),
			KeywordsMatched: rescheduleScore + appointmentScore,
			Method:          "heuristic",
		}
	}

	if appointmentScore >= 2 {
		return Decision{
			Category:        models.TaskKindAppointmentBooking,
			Agent:           agentAppointment,
			Confidence:      min(0.9, 0.6+float64(appointmentScore)*0.1),
			KeywordsMatched: appointmentScore,
			Method:          "heuristic",
		}
	}

	if infoScore >= 2 {
		return Decision{
			Category:        models.TaskKindInformationQuery,
			Agent:           agentInquiry,
			Confidence:      min(0.8, 0.6+float64(infoScore)*0.1),
			KeywordsMatched: infoScore,
			Method:          "heuristic",
		}
	}

	if fileScore >= 1 {
		return Decision{
			Category:        models.TaskKindFileProcessing,
			Agent:           agentFile,
			Confidence:      0.7,
			KeywordsMatched: fileScore,
			Method:          "heuristic",
		}
	}

	if greetingScore >= 1 {
		return Decision{
			Category:        models.TaskKindGeneralInquiry,
			Agent:           agentTriage,
			Confidence:      0.8,
			KeywordsMatched: greetingScore,
			Method:          "heuristic",
		}
	}

	return Decision{
		Category:   models.TaskKindGeneralInquiry,
		Agent:      agentInquiry,
		Confidence: 0.4,
		Method:     "heuristic",
	}
}
