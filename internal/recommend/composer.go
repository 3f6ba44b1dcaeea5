package recommend

import (
	"math/rand"
	"sort"
	"strings"

	"github.com/fixfirst/repair-advisor/internal/device"
	"github.com/fixfirst/repair-advisor/internal/observability"
	"github.com/fixfirst/repair-advisor/internal/problem"
	"github.com/fixfirst/repair-advisor/internal/retrieval"
	"github.com/fixfirst/repair-advisor/internal/storage"
)

// SkillLevel grades how hands-on the user is with repairs.
type SkillLevel string

const (
	SkillBeginner     SkillLevel = "beginner"
	SkillIntermediate SkillLevel = "intermediate"
	SkillExpert       SkillLevel = "expert"
	SkillProfessional SkillLevel = "professional"
)

// Highest procedure difficulty each skill level is expected to handle.
var skillCeilings = map[SkillLevel]int{
	SkillBeginner:     2,
	SkillIntermediate: 4,
	SkillExpert:       5,
	SkillProfessional: 5,
}

const (
	PreferenceQuickRepair   = "quick_repair"
	PreferenceDetailedGuide = "detailed_guide"

	// A repair counts as quick when it fits inside an hour.
	quickRepairMinutes = 60
)

// Profile is the optional user context the personalized pass scores against.
type Profile struct {
	SkillLevel  SkillLevel `json:"skill_level"`
	Preferences []string   `json:"preferences"`
}

// HasPreference reports whether the profile lists the given preference.
func (p Profile) HasPreference(name string) bool {
	for _, pref := range p.Preferences {
		if strings.EqualFold(strings.TrimSpace(pref), name) {
			return true
		}
	}
	return false
}

func (p Profile) skillLevel() SkillLevel {
	if _, ok := skillCeilings[p.SkillLevel]; ok {
		return p.SkillLevel
	}
	return SkillIntermediate
}

func (p Profile) isAdvanced() bool {
	lvl := p.skillLevel()
	return lvl == SkillExpert || lvl == SkillProfessional
}

// FeatureScores is the per-feature breakdown behind a recommendation score.
type FeatureScores struct {
	DeviceSimilarity  float64 `json:"device_similarity"`
	ProblemSimilarity float64 `json:"problem_similarity"`
	Difficulty        float64 `json:"difficulty_appropriateness"`
	Preference        float64 `json:"preference_match"`
	SuccessLikelihood float64 `json:"success_likelihood"`
}

// Feature weights for the personalized score. They sum to 1.
const (
	weightDeviceSimilarity  = 0.35
	weightProblemSimilarity = 0.25
	weightDifficulty        = 0.15
	weightPreference        = 0.15
	weightSuccess           = 0.10
)

// Recommendation is a ranked candidate re-scored against the user profile.
type Recommendation struct {
	*retrieval.ScoredProcedure

	MLScore       float64       `json:"ml_score"`
	FeatureScores FeatureScores `json:"feature_scores"`
	Rank          int           `json:"rank"`
	Explanation   string        `json:"explanation"`
}

// DefaultMaxRecommendations bounds the personalized output list.
const DefaultMaxRecommendations = 5

// ComposerOptions configure the personalized re-scoring pass.
type ComposerOptions struct {
	MaxRecommendations int
	// DisableJitter makes the success-likelihood feature fully
	// deterministic. Used by tests.
	DisableJitter bool
	Seed          int64
	Logger        *observability.Logger
}

// Composer re-scores ranked procedures against a user profile and emits an
// explained top-N list.
type Composer struct {
	maxOut int
	jitter bool
	rng    *rand.Rand
	logger *observability.Logger
}

// NewComposer creates a composer. A zero options value yields sane defaults.
func NewComposer(opts ComposerOptions) *Composer {
	if opts.MaxRecommendations <= 0 {
		opts.MaxRecommendations = DefaultMaxRecommendations
	}
	if opts.Logger == nil {
		opts.Logger = observability.Nop()
	}
	return &Composer{
		maxOut: opts.MaxRecommendations,
		jitter: !opts.DisableJitter,
		rng:    rand.New(rand.NewSource(opts.Seed)),
		logger: opts.Logger.WithComponent("recommendation_composer"),
	}
}

// Compose re-scores the ranked candidates for the given user profile and
// returns the top recommendations in descending score order. The input
// slice is left untouched.
func (c *Composer) Compose(scored []*retrieval.ScoredProcedure, dev device.Match, prob problem.Match, profile Profile) []Recommendation {
	if len(scored) == 0 {
		return nil
	}

	recs := make([]Recommendation, 0, len(scored))
	for _, sp := range scored {
		features := c.scoreFeatures(sp.Procedure, dev, prob, profile)
		score := features.DeviceSimilarity*weightDeviceSimilarity +
			features.ProblemSimilarity*weightProblemSimilarity +
			features.Difficulty*weightDifficulty +
			features.Preference*weightPreference +
			features.SuccessLikelihood*weightSuccess

		recs = append(recs, Recommendation{
			ScoredProcedure: sp,
			MLScore:         clamp(score),
			FeatureScores:   features,
			Explanation:     explain(features, profile),
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].MLScore > recs[j].MLScore
	})

	if len(recs) > c.maxOut {
		recs = recs[:c.maxOut]
	}
	for i := range recs {
		recs[i].Rank = i + 1
	}

	c.logger.Debug().
		Int("candidates", len(scored)).
		Int("recommended", len(recs)).
		Str("skill_level", string(profile.skillLevel())).
		Msg("personalized recommendations composed")

	return recs
}

func (c *Composer) scoreFeatures(p *storage.Procedure, dev device.Match, prob problem.Match, profile Profile) FeatureScores {
	return FeatureScores{
		DeviceSimilarity:  deviceSimilarity(p, dev),
		ProblemSimilarity: problemSimilarity(p, prob),
		Difficulty:        DifficultyScore(p.DifficultyLevel, profile.skillLevel()),
		Preference:        preferenceScore(p, profile),
		SuccessLikelihood: c.successLikelihood(p.DifficultyLevel),
	}
}

// deviceSimilarity mirrors the ranking weights: brand 0.5, model 0.3,
// type 0.2, recomputed here from the procedure's compatibility strings so
// the personalized pass stands on its own.
func deviceSimilarity(p *storage.Procedure, dev device.Match) float64 {
	var score float64
	if p.DeviceCompatibility.MatchesBrand(dev.Brand) {
		score += 0.5
	}
	if p.DeviceCompatibility.MatchesModel(dev.Model) {
		score += 0.3
	}
	if p.DeviceCompatibility.MatchesType(dev.Type) {
		score += 0.2
	}
	return score
}

// problemSimilarity is 1.0 on an exact category match, otherwise the best
// Jaccard overlap between the classified category's keyword set and each of
// the procedure's category keyword sets.
func problemSimilarity(p *storage.Procedure, prob problem.Match) float64 {
	if prob.Category == "" {
		return 0
	}
	if p.HasCategory(prob.Category) {
		return 1.0
	}

	want := categoryKeywords(string(prob.Category))
	best := 0.0
	for _, cat := range p.ProblemCategories {
		if j := jaccard(want, categoryKeywords(cat)); j > best {
			best = j
		}
	}
	return best
}

func categoryKeywords(category string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Split(strings.ToLower(category), "_") {
		if w != "" {
			out[w] = struct{}{}
		}
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// DifficultyScore decays smoothly as procedure difficulty approaches the
// skill level's ceiling and drops sharply past it.
func DifficultyScore(difficulty int, skill SkillLevel) float64 {
	maxDifficulty, ok := skillCeilings[skill]
	if !ok {
		maxDifficulty = skillCeilings[SkillIntermediate]
	}
	if difficulty < 1 {
		difficulty = 1
	}

	if difficulty <= maxDifficulty {
		score := 1 - float64(difficulty-1)/float64(maxDifficulty)*0.3
		if score < 0.6 {
			score = 0.6
		}
		return score
	}

	overage := difficulty - maxDifficulty
	score := 0.3 - 0.1*float64(overage)
	if score < 0 {
		score = 0
	}
	return score
}

func preferenceScore(p *storage.Procedure, profile Profile) float64 {
	score := 0.5
	if profile.isAdvanced() {
		score += 0.2
	}
	if profile.HasPreference(PreferenceQuickRepair) && p.EstimatedTimeMinutes > 0 && p.EstimatedTimeMinutes <= quickRepairMinutes {
		score += 0.2
	}
	if profile.HasPreference(PreferenceDetailedGuide) && p.Overview != "" {
		score += 0.1
	}
	return clamp(score)
}

// successLikelihood is a difficulty-derived proxy. There is no historical
// per-user outcome data yet, so a small seeded jitter stands in for the
// missing signal; tests disable it.
func (c *Composer) successLikelihood(difficulty int) float64 {
	if difficulty < 1 {
		difficulty = 1
	}
	base := 0.95 - 0.1*float64(difficulty-1)
	if base < 0.7 {
		base = 0.7
	}
	if c.jitter {
		base += (c.rng.Float64() - 0.5) * 0.1
	}
	return clamp(base)
}

func explain(f FeatureScores, profile Profile) string {
	var parts []string
	if f.DeviceSimilarity > 0.8 {
		parts = append(parts, "excellent fit for your device")
	} else if f.DeviceSimilarity > 0.4 {
		parts = append(parts, "compatible with your device")
	}
	if f.ProblemSimilarity > 0.7 {
		parts = append(parts, "closely matches the problem you described")
	}
	switch {
	case f.Difficulty >= 0.6:
		parts = append(parts, "well suited to your "+string(profile.skillLevel())+" skill level")
	case f.Difficulty > 0:
		parts = append(parts, "more challenging than your usual skill level")
	default:
		parts = append(parts, "likely beyond your skill level, professional help recommended")
	}
	if f.SuccessLikelihood > 0.85 {
		parts = append(parts, "high expected success rate")
	}

	s := strings.Join(parts, ", ")
	if s == "" {
		return "Related procedure for your request"
	}
	return strings.ToUpper(s[:1]) + s[1:]
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
