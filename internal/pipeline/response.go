package pipeline

import (
	"fmt"
	"strings"

	"github.com/fixfirst/repair-advisor/internal/retrieval"
	"github.com/fixfirst/repair-advisor/internal/storage"
)

// maxRecommendedActions caps the action list shown to the user.
const maxRecommendedActions = 6

// Booking is suggested instead of self-repair from this difficulty up.
const bookingDifficultyThreshold = 4

// NextStep is one structured follow-up for the user.
type NextStep struct {
	Title              string `json:"title"`
	Description        string `json:"description"`
	BookingRecommended bool   `json:"booking_recommended,omitempty"`
}

// Response is the user-facing part of a pipeline result.
type Response struct {
	Answer             string     `json:"answer"`
	RecommendedActions []string   `json:"recommended_actions,omitempty"`
	NextSteps          []NextStep `json:"next_steps,omitempty"`
}

// composeResponse renders the natural-language answer, the action list,
// and the structured next steps from the analyzed result.
func composeResponse(req Request, result Result) Response {
	return Response{
		Answer:             renderAnswer(result),
		RecommendedActions: recommendedActions(result),
		NextSteps:          nextSteps(result),
	}
}

func renderAnswer(result Result) string {
	deviceLabel := result.Device.String()
	category := humanCategory(result.Problem.Category)

	switch result.Confidence.ResponseType {
	case retrieval.ResponseDetailed:
		var b strings.Builder
		fmt.Fprintf(&b, "It looks like your %s has %s.", deviceLabel, category)
		if n := len(result.Procedures); n > 0 {
			fmt.Fprintf(&b, " I found %d repair procedure%s that can help.", n, plural(n))
		}
		if result.Problem.EstimatedRepairTime != "" {
			fmt.Fprintf(&b, " A repair like this typically takes %s.", result.Problem.EstimatedRepairTime)
		}
		if result.CostEstimate != nil {
			fmt.Fprintf(&b, " Expect a cost around %s.", result.CostEstimate.Range)
		}
		return b.String()

	case retrieval.ResponseClarification:
		if !result.Device.IsKnown() {
			return "I understand you have " + category + ", but I could not identify your device. Could you tell me the brand and model?"
		}
		return fmt.Sprintf("I can see you have a %s, but I need a bit more detail about the problem. Could you describe what exactly is wrong?", deviceLabel)

	default:
		return "Thanks for reaching out. Could you share your device's brand and model and describe the problem so I can find the right repair guidance?"
	}
}

func recommendedActions(result Result) []string {
	var actions []string

	switch result.Problem.Category {
	case storage.ProblemScreenDamage:
		actions = append(actions,
			"Stop using the device if the glass is loose or flaking",
			"Apply a screen protector to contain further cracking")
	case storage.ProblemBattery:
		actions = append(actions,
			"Avoid charging the device unattended until inspected",
			"Note how quickly the battery drains from full charge")
	case storage.ProblemWaterDamage:
		actions = append(actions,
			"Power the device off immediately and do not charge it",
			"Do not attempt to dry it with heat")
	case storage.ProblemCharging:
		actions = append(actions,
			"Try a different cable and charger to rule out accessories",
			"Check the charging port for lint or debris")
	case storage.ProblemPerformance:
		actions = append(actions,
			"Back up your data before any repair work",
			"Note which apps or actions trigger the slowdown")
	case storage.ProblemConnectivity:
		actions = append(actions,
			"Restart the device and the router before booking a repair")
	case storage.ProblemAudio:
		actions = append(actions,
			"Test with wired and wireless headphones to isolate the speaker")
	}

	switch strings.ToLower(result.Device.Brand) {
	case "apple":
		actions = append(actions, "Check your AppleCare coverage before paying for a repair")
	case "samsung":
		actions = append(actions, "Check your Samsung Care+ coverage before paying for a repair")
	}

	if result.Problem.Severity == storage.SeverityHigh {
		actions = append(actions, "Book a repair as soon as possible to avoid further damage")
	} else if len(result.Procedures) > 0 {
		actions = append(actions, "Review the suggested repair procedures below")
	}

	if len(actions) > maxRecommendedActions {
		actions = actions[:maxRecommendedActions]
	}
	return actions
}

func nextSteps(result Result) []NextStep {
	if len(result.Procedures) == 0 {
		return []NextStep{{
			Title:              "Get a professional diagnosis",
			Description:        "We could not match a specific procedure, a technician can assess the device in person.",
			BookingRecommended: true,
		}}
	}

	top := result.Procedures[0]
	booking := top.Procedure.DifficultyLevel >= bookingDifficultyThreshold

	steps := []NextStep{{
		Title:              "Review: " + top.Procedure.Title,
		Description:        top.RecommendationReason,
		BookingRecommended: booking,
	}}

	if booking {
		steps = append(steps, NextStep{
			Title:              "Book a technician",
			Description:        "This repair is rated difficult, we recommend having it done professionally.",
			BookingRecommended: true,
		})
	} else if result.Intent.Intent == storage.IntentBookingRequest {
		steps = append(steps, NextStep{
			Title:              "Book a repair slot",
			Description:        "You mentioned booking, pick a time that suits you and we will confirm availability.",
			BookingRecommended: true,
		})
	}

	return steps
}

func humanCategory(c storage.ProblemCategory) string {
	switch c {
	case storage.ProblemGeneral, "":
		return "an issue we have not pinned down yet"
	case storage.ProblemScreenDamage:
		return "screen damage"
	case storage.ProblemBattery:
		return "a battery issue"
	case storage.ProblemWaterDamage:
		return "water damage"
	case storage.ProblemAudio:
		return "an audio issue"
	case storage.ProblemPerformance:
		return "a performance issue"
	case storage.ProblemConnectivity:
		return "a connectivity issue"
	case storage.ProblemCharging:
		return "a charging problem"
	default:
		return strings.ReplaceAll(string(c), "_", " ")
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
