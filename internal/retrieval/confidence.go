package retrieval

// ConfidenceLevel is the categorical confidence bucket.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// Overall confidence weights: recognition (device/problem), knowledge-base
// match, and diagnostic-rule match.
const (
	recognitionWeight = 0.4
	knowledgeWeight   = 0.4
	diagnosticWeight  = 0.2
)

// Message confidence blend for response-type selection.
const (
	messageDeviceWeight  = 0.40
	messageProblemWeight = 0.35
	messageIntentWeight  = 0.25
)

// KnowledgeBaseConfidence folds the ranked candidate set into one score:
// the top candidate's relevance, boosted for each additional strong
// candidate (score > 0.7, boost capped at 0.15) and penalized by 0.1 when
// no candidate reaches 0.8. Empty input yields 0, never an error.
func KnowledgeBaseConfidence(scored []*ScoredProcedure) float64 {
	if len(scored) == 0 {
		return 0
	}

	conf := scored[0].RelevanceScore

	strong := 0
	reached := false
	for _, sp := range scored {
		if sp.RelevanceScore > 0.7 {
			strong++
		}
		if sp.RelevanceScore >= 0.8 {
			reached = true
		}
	}

	boost := 0.05 * float64(strong)
	if boost > 0.15 {
		boost = 0.15
	}
	conf += boost

	if !reached {
		conf -= 0.1
	}

	return clampScore(conf)
}

// OverallConfidence combines the stage confidences with fixed weights.
func OverallConfidence(recognition, knowledgeBase, diagnostic float64) float64 {
	return clampScore(recognition*recognitionWeight +
		knowledgeBase*knowledgeWeight +
		diagnostic*diagnosticWeight)
}

// MessageConfidence blends device, problem, and intent confidences into the
// score that drives response-type selection.
func MessageConfidence(deviceConf, problemConf, intentConf float64) float64 {
	return clampScore(deviceConf*messageDeviceWeight +
		problemConf*messageProblemWeight +
		intentConf*messageIntentWeight)
}

// LevelFor buckets a confidence value.
func LevelFor(confidence float64) ConfidenceLevel {
	switch {
	case confidence > 0.8:
		return ConfidenceHigh
	case confidence > 0.6:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// ResponseType picks the response template tier from message confidence.
type ResponseType string

const (
	ResponseDetailed      ResponseType = "detailed"
	ResponseClarification ResponseType = "clarification"
	ResponseGeneral       ResponseType = "general"
)

// ResponseTypeFor selects the response tier: >0.8 detailed, >0.5
// clarification, else general.
func ResponseTypeFor(messageConfidence float64) ResponseType {
	switch {
	case messageConfidence > 0.8:
		return ResponseDetailed
	case messageConfidence > 0.5:
		return ResponseClarification
	default:
		return ResponseGeneral
	}
}
