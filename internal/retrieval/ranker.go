package retrieval

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fixfirst/repair-advisor/internal/storage"
)

// Default ranking weights.
const (
	DefaultDeviceWeight  = 0.4
	DefaultProblemWeight = 0.3
	DefaultQualityWeight = 0.2
	DefaultSearchWeight  = 0.1
)

// Breakdown holds the per-factor sub-scores behind a relevance score.
type Breakdown struct {
	Device  float64 `json:"device"`
	Problem float64 `json:"problem"`
	Quality float64 `json:"quality"`
	Search  float64 `json:"search"`
}

// ScoredProcedure is a candidate with its relevance score and explanation.
// Created fresh per request and discarded after the response.
type ScoredProcedure struct {
	Procedure            *storage.Procedure `json:"procedure"`
	Strategy             Strategy           `json:"strategy"`
	RelevanceScore       float64            `json:"relevance_score"`
	Breakdown            Breakdown          `json:"scoring_breakdown"`
	RecommendationReason string             `json:"recommendation_reason"`

	// Enrichment fields, populated for top candidates only.
	StepsPreview  []*storage.ProcedureStep `json:"steps_preview,omitempty"`
	Feedback      *storage.FeedbackSummary `json:"feedback,omitempty"`
	EstimatedCost float64                  `json:"estimated_cost,omitempty"`
}

// Weights configures the relevance combination.
type Weights struct {
	Device  float64
	Problem float64
	Quality float64
	Search  float64
}

// DefaultWeights returns the standard 0.4/0.3/0.2/0.1 split.
func DefaultWeights() Weights {
	return Weights{
		Device:  DefaultDeviceWeight,
		Problem: DefaultProblemWeight,
		Quality: DefaultQualityWeight,
		Search:  DefaultSearchWeight,
	}
}

// Ranker scores and orders retrieval candidates.
type Ranker struct {
	weights Weights
}

// NewRanker creates a ranker. Zero weights fall back to the defaults.
func NewRanker(weights Weights) *Ranker {
	if weights.Device+weights.Problem+weights.Quality+weights.Search <= 0 {
		weights = DefaultWeights()
	}
	return &Ranker{weights: weights}
}

// Rank scores every candidate and sorts descending by relevance. The sort
// is stable; equal scores break by stored quality score descending with
// nulls last, then arrival order. A scoring fault skips the offending
// candidate rather than failing the batch.
func (r *Ranker) Rank(candidates []Candidate, criteria Criteria) []*ScoredProcedure {
	scored := make([]*ScoredProcedure, 0, len(candidates))
	for _, c := range candidates {
		if c.Procedure == nil {
			continue
		}
		sp := r.score(c, criteria)
		scored = append(scored, sp)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].RelevanceScore != scored[j].RelevanceScore {
			return scored[i].RelevanceScore > scored[j].RelevanceScore
		}
		qi, qj := scored[i].Procedure.QualityScore, scored[j].Procedure.QualityScore
		if qi.Valid != qj.Valid {
			return qi.Valid
		}
		if qi.Valid && qi.Float64 != qj.Float64 {
			return qi.Float64 > qj.Float64
		}
		return false
	})

	return scored
}

func (r *Ranker) score(c Candidate, criteria Criteria) *ScoredProcedure {
	b := Breakdown{
		Device:  deviceScore(c.Procedure, criteria),
		Problem: problemScore(c.Procedure, criteria),
		Quality: qualityScore(c.Procedure),
		Search:  clampScore(c.SearchRelevance),
	}

	total := b.Device*r.weights.Device +
		b.Problem*r.weights.Problem +
		b.Quality*r.weights.Quality +
		b.Search*r.weights.Search

	return &ScoredProcedure{
		Procedure:            c.Procedure,
		Strategy:             c.Strategy,
		RelevanceScore:       clampScore(total),
		Breakdown:            b,
		RecommendationReason: buildReason(b, c, criteria),
	}
}

// deviceScore: brand 0.5, model 0.3, type 0.2, wildcards accepted.
func deviceScore(p *storage.Procedure, criteria Criteria) float64 {
	score := 0.0
	if p.DeviceCompatibility.MatchesBrand(criteria.Brand) {
		score += 0.5
	}
	if p.DeviceCompatibility.MatchesModel(criteria.Model) {
		score += 0.3
	}
	if p.DeviceCompatibility.MatchesType(criteria.DeviceType) {
		score += 0.2
	}
	return score
}

// problemScore: category 0.6, tag 0.4, keyword bonus up to 0.2.
func problemScore(p *storage.Procedure, criteria Criteria) float64 {
	score := 0.0
	if p.HasCategory(criteria.Category) {
		score += 0.6
	}
	if criteria.IssueCode != "" && p.HasTag(criteria.IssueCode) {
		score += 0.4
	}
	score += keywordBonus(p, criteria.Keywords)
	return clampScore(score)
}

// keywordBonus is (matched keywords / total procedure keywords) clamped
// to 0.2.
func keywordBonus(p *storage.Procedure, keywords []string) float64 {
	if len(p.DiagnosticTags) == 0 || len(keywords) == 0 {
		return 0
	}

	matched := 0
	for _, tag := range p.DiagnosticTags {
		tagWords := strings.ReplaceAll(strings.ToLower(tag), "_", " ")
		for _, kw := range keywords {
			if strings.Contains(tagWords, kw) {
				matched++
				break
			}
		}
	}

	bonus := float64(matched) / float64(len(p.DiagnosticTags))
	if bonus > 0.2 {
		bonus = 0.2
	}
	return bonus
}

// qualityScore: (quality/5)*0.5 + (success/100)*0.3 + min(views/100,1)*0.2.
// Null quality or success rate contributes zero.
func qualityScore(p *storage.Procedure) float64 {
	score := 0.0
	if p.QualityScore.Valid {
		score += p.QualityScore.Float64 / 5 * 0.5
	}
	if p.SuccessRate.Valid {
		score += p.SuccessRate.Float64 / 100 * 0.3
	}
	views := float64(p.ViewCount) / 100
	if views > 1 {
		views = 1
	}
	score += views * 0.2
	return clampScore(score)
}

// buildReason renders a human-readable justification from threshold checks
// on the breakdown.
func buildReason(b Breakdown, c Candidate, criteria Criteria) string {
	var parts []string

	switch {
	case b.Device > 0.8:
		parts = append(parts, fmt.Sprintf("perfect compatibility with your %s", deviceLabel(criteria)))
	case b.Device > 0.4:
		parts = append(parts, fmt.Sprintf("compatible with %s devices", deviceLabel(criteria)))
	}

	if b.Problem > 0.5 {
		parts = append(parts, fmt.Sprintf("directly addresses %s", categoryLabel(criteria.Category)))
	}
	if b.Quality > 0.7 {
		parts = append(parts, "highly rated with a strong success record")
	}
	if b.Search > 0.7 {
		parts = append(parts, "closely matches your description")
	}

	if len(parts) == 0 {
		if c.Strategy == StrategyGeneric {
			return "General procedure for your device type"
		}
		return "Related to your described issue"
	}

	reason := strings.Join(parts, ", ")
	return strings.ToUpper(reason[:1]) + reason[1:]
}

func deviceLabel(criteria Criteria) string {
	switch {
	case criteria.Model != "":
		return criteria.Model
	case criteria.Brand != "":
		return criteria.Brand
	case criteria.DeviceType != "":
		return criteria.DeviceType
	default:
		return "device"
	}
}

func categoryLabel(c storage.ProblemCategory) string {
	return strings.ReplaceAll(string(c), "_", " ")
}
