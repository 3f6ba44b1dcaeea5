package problem

import (
	"strings"

	"github.com/fixfirst/repair-advisor/internal/device"
	"github.com/fixfirst/repair-advisor/internal/storage"
)

// IntentMatch is a classified user intent.
type IntentMatch struct {
	Intent     storage.Intent `json:"intent"`
	Confidence float64        `json:"confidence"`
}

type intentRule struct {
	Intent   storage.Intent
	Keywords []string
	// ContextKeywords add a small boost when present alongside a hit.
	ContextKeywords []string
}

var intentRules = []intentRule{
	{
		Intent:          storage.IntentBookingRequest,
		Keywords:        []string{"book", "appointment", "schedule", "reserve", "come in", "drop off"},
		ContextKeywords: []string{"urgent", "today", "tomorrow", "asap", "as soon as"},
	},
	{
		Intent:          storage.IntentPriceInquiry,
		Keywords:        []string{"how much", "cost", "price", "quote", "estimate", "charge for", "expensive"},
		ContextKeywords: []string{"cheapest", "budget"},
	},
	{
		Intent:          storage.IntentTimeInquiry,
		Keywords:        []string{"how long", "turnaround", "when will", "how quickly", "same day", "time does it take"},
		ContextKeywords: []string{"urgent", "asap"},
	},
	{
		Intent:          storage.IntentProblemDiagnosis,
		Keywords:        []string{"why is", "why does", "what's wrong", "whats wrong", "diagnose", "not sure what", "keeps happening"},
		ContextKeywords: []string{"sometimes", "intermittent"},
	},
	{
		Intent:          storage.IntentServiceInquiry,
		Keywords:        []string{"do you repair", "do you fix", "do you service", "warranty", "guarantee", "what services"},
		ContextKeywords: nil,
	},
	{
		Intent:          storage.IntentRepairRequest,
		Keywords:        []string{"fix", "repair", "broken", "replace", "need help with", "stopped working", "not working"},
		ContextKeywords: []string{"please", "can you"},
	},
}

// IntentClassifier classifies what the user wants from the message.
type IntentClassifier struct{}

// NewIntentClassifier creates an intent classifier.
func NewIntentClassifier() *IntentClassifier {
	return &IntentClassifier{}
}

// Classify scans the intent keyword table. Base confidence 0.7 per hit,
// boosted by device-match quality and intent-specific context keywords,
// capped at 0.95. When nothing fires the result is general_inquiry at the
// 0.3 floor.
func (c *IntentClassifier) Classify(text string, dev device.Match) IntentMatch {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return IntentMatch{Intent: storage.IntentGeneralInquiry, Confidence: 0.3}
	}

	best := IntentMatch{Intent: storage.IntentGeneralInquiry, Confidence: 0}
	for _, rule := range intentRules {
		if !containsAny(lower, rule.Keywords) {
			continue
		}

		conf := 0.7
		if dev.Confidence > 0.8 {
			conf += 0.1
		}
		if containsAny(lower, rule.ContextKeywords) {
			conf += 0.05
		}
		if conf > 0.95 {
			conf = 0.95
		}

		if conf > best.Confidence {
			best = IntentMatch{Intent: rule.Intent, Confidence: conf}
		}
	}

	if best.Confidence == 0 {
		return IntentMatch{Intent: storage.IntentGeneralInquiry, Confidence: 0.3}
	}
	return best
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
