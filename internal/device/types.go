// Package device identifies which physical device a support message and an
// optional device-identifying header describe, fusing text-pattern matching
// with header fingerprinting.
package device

// Source identifies which signal produced a device match.
type Source string

const (
	SourceTextPattern       Source = "text_pattern"
	SourceTextFuzzy         Source = "text_fuzzy"
	SourceUserAgentPrimary  Source = "user_agent_primary"
	SourceUserAgentFallback Source = "user_agent_fallback"
	SourceHybridPerfect     Source = "hybrid_perfect"
	SourceHybridConflict    Source = "hybrid_conflict"
	SourceHybridEnhanced    Source = "hybrid_text_enhanced"
	SourceUnknown           Source = "unknown"
)

// Device types used across matching and retrieval.
const (
	TypePhone   = "phone"
	TypeTablet  = "tablet"
	TypeLaptop  = "laptop"
	TypeDesktop = "desktop"
)

// UnknownConfidence is the floor confidence assigned when no signal resolves
// a device.
const UnknownConfidence = 0.1

// Match is an immutable device identification result. Stages never mutate a
// Match; fusion wraps inputs into a new value.
type Match struct {
	Brand      string  `json:"brand,omitempty"`
	Model      string  `json:"model,omitempty"`
	Type       string  `json:"type,omitempty"`
	Confidence float64 `json:"confidence"`
	Source     Source  `json:"source"`
	Evidence   string  `json:"evidence,omitempty"`
}

// Unknown returns the sentinel no-match value.
func Unknown(evidence string) Match {
	return Match{
		Confidence: UnknownConfidence,
		Source:     SourceUnknown,
		Evidence:   evidence,
	}
}

// IsKnown reports whether any signal identified a device.
func (m Match) IsKnown() bool {
	return m.Source != SourceUnknown
}

// String renders "brand model" for analytics and logging.
func (m Match) String() string {
	switch {
	case m.Brand == "" && m.Model == "":
		return "unknown"
	case m.Model == "":
		return m.Brand
	default:
		return m.Brand + " " + m.Model
	}
}
