// Package problem classifies what is wrong with a device and what the user
// wants, from free text plus the device-identification context.
package problem

import (
	"strings"

	"github.com/fixfirst/repair-advisor/internal/device"
	"github.com/fixfirst/repair-advisor/internal/observability"
	"github.com/fixfirst/repair-advisor/internal/storage"
)

// UnknownConfidence is the floor confidence when no signal resolves a
// problem or intent.
const UnknownConfidence = 0.1

// Match is a classified problem.
type Match struct {
	Category            storage.ProblemCategory `json:"category"`
	IssueCode           string                  `json:"issue_code,omitempty"`
	Severity            storage.Severity        `json:"severity"`
	EstimatedRepairTime string                  `json:"estimated_repair_time,omitempty"`
	Confidence          float64                 `json:"confidence"`
}

// Unknown returns the sentinel no-match value.
func Unknown() Match {
	return Match{
		Category:   storage.ProblemGeneral,
		Severity:   storage.SeverityUnknown,
		Confidence: UnknownConfidence,
	}
}

type categoryRule struct {
	Category  storage.ProblemCategory
	IssueCode string
	Keywords  []string
}

// categoryRules is scanned in order; the first hit per category sets the
// issue code.
var categoryRules = []categoryRule{
	{storage.ProblemScreenDamage, "cracked_screen", []string{
		"cracked screen", "broken screen", "screen cracked", "screen broken",
		"shattered", "screen is black", "display broken", "display cracked",
		"screen", "display",
	}},
	{storage.ProblemBattery, "battery_degradation", []string{
		"battery", "drains", "draining", "won't hold charge", "dies quickly",
		"power dies", "battery life",
	}},
	{storage.ProblemWaterDamage, "liquid_damage", []string{
		"water", "liquid", "dropped in", "wet", "spilled", "moisture", "rain",
	}},
	{storage.ProblemAudio, "speaker_failure", []string{
		"speaker", "no sound", "microphone", "audio", "can't hear", "muffled",
		"earpiece", "headphone jack",
	}},
	{storage.ProblemCharging, "charging_port_failure", []string{
		"won't charge", "not charging", "charging port", "charger", "charging",
		"cable doesn't", "usb port",
	}},
	{storage.ProblemPerformance, "slow_performance", []string{
		"slow", "freezes", "freezing", "lagging", "lags", "crashes", "crashing",
		"hangs", "overheats", "overheating", "restarts itself",
	}},
	{storage.ProblemConnectivity, "connectivity_failure", []string{
		"wifi", "wi-fi", "bluetooth", "no signal", "cellular", "network",
		"won't connect", "no service",
	}},
}

var highSeverityKeywords = []string{
	"urgent", "emergency", "critical", "completely broken", "won't turn on", "dead",
}

var mediumSeverityKeywords = []string{
	"sometimes", "intermittent", "occasionally", "slow",
}

// Categories that are serious by nature regardless of phrasing.
var intrinsicHighSeverity = map[storage.ProblemCategory]bool{
	storage.ProblemWaterDamage:  true,
	storage.ProblemScreenDamage: true,
}

// repairTimeBands maps category to the customer-facing time estimate.
// Laptop and desktop screen/battery jobs take the longer band.
var repairTimeBands = map[storage.ProblemCategory]string{
	storage.ProblemScreenDamage: "1-2 hours",
	storage.ProblemBattery:      "30-60 minutes",
	storage.ProblemWaterDamage:  "24-48 hours",
	storage.ProblemAudio:        "1-2 hours",
	storage.ProblemCharging:     "30-90 minutes",
	storage.ProblemPerformance:  "1-3 hours",
	storage.ProblemConnectivity: "30-90 minutes",
	storage.ProblemGeneral:      "varies",
}

var longRepairTimeBands = map[storage.ProblemCategory]string{
	storage.ProblemScreenDamage: "2-4 hours",
	storage.ProblemBattery:      "1-2 hours",
}

// Classifier performs tiered problem classification.
type Classifier struct {
	logger *observability.Logger
}

// NewClassifier creates a problem classifier.
func NewClassifier(logger *observability.Logger) *Classifier {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Classifier{logger: logger.WithComponent("problem_classifier")}
}

// Classify runs keyword classification over the message, using the device
// match as context for confidence boosts. Never fails; empty input yields
// the Unknown sentinel.
func (c *Classifier) Classify(text string, dev device.Match) Match {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return Unknown()
	}

	best := c.classifyKeywords(lower, dev)
	if best.Confidence < 0.5 {
		best = fallbackClassify(lower)
	}

	best.Severity = deriveSeverity(lower, best.Category)
	best.EstimatedRepairTime = repairTime(best.Category, dev.Type)
	best.Confidence = clamp(best.Confidence)

	c.logger.Debug().
		Str("category", string(best.Category)).
		Str("severity", string(best.Severity)).
		Float64("confidence", best.Confidence).
		Msg("problem classified")

	return best
}

func (c *Classifier) classifyKeywords(lower string, dev device.Match) Match {
	best := Match{Category: storage.ProblemGeneral, Confidence: 0}

	for _, rule := range categoryRules {
		for _, kw := range rule.Keywords {
			if !strings.Contains(lower, kw) {
				continue
			}

			conf := 0.8
			if dev.Confidence > 0.8 {
				conf += 0.05
			}
			conf += deviceNudge(rule.Category, dev)
			if conf > 0.95 {
				conf = 0.95
			}

			if conf > best.Confidence {
				best = Match{
					Category:   rule.Category,
					IssueCode:  rule.IssueCode,
					Confidence: conf,
				}
			}
			break
		}
	}
	return best
}

// deviceNudge adds small category boosts for device families with known
// frequent failures of that kind.
func deviceNudge(category storage.ProblemCategory, dev device.Match) float64 {
	if dev.Brand != "apple" {
		return 0
	}
	switch {
	case category == storage.ProblemScreenDamage && dev.Type == device.TypePhone:
		return 0.05
	case category == storage.ProblemBattery && dev.Type == device.TypeLaptop:
		return 0.05
	}
	return 0
}

// fallbackClassify is the minimal heuristic when keyword confidence is weak.
func fallbackClassify(lower string) Match {
	switch {
	case strings.Contains(lower, "screen"):
		return Match{Category: storage.ProblemScreenDamage, IssueCode: "cracked_screen", Confidence: 0.6}
	case strings.Contains(lower, "battery"):
		return Match{Category: storage.ProblemBattery, IssueCode: "battery_degradation", Confidence: 0.6}
	default:
		return Match{Category: storage.ProblemGeneral, Confidence: 0.2}
	}
}

func deriveSeverity(lower string, category storage.ProblemCategory) storage.Severity {
	for _, kw := range highSeverityKeywords {
		if strings.Contains(lower, kw) {
			return storage.SeverityHigh
		}
	}
	for _, kw := range mediumSeverityKeywords {
		if strings.Contains(lower, kw) {
			return storage.SeverityMedium
		}
	}
	if intrinsicHighSeverity[category] {
		return storage.SeverityHigh
	}
	return storage.SeverityLow
}

func repairTime(category storage.ProblemCategory, deviceType string) string {
	if deviceType == device.TypeLaptop || deviceType == device.TypeDesktop {
		if band, ok := longRepairTimeBands[category]; ok {
			return band
		}
	}
	return repairTimeBands[category]
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
