package retrieval

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixfirst/repair-advisor/internal/device"
	"github.com/fixfirst/repair-advisor/internal/problem"
	"github.com/fixfirst/repair-advisor/internal/storage"
)

type fakeStore struct {
	exact   []*storage.Procedure
	fuzzy   []*storage.Procedure
	generic []*storage.Procedure
	rules   []*storage.DiagnosticRule
	steps   map[uuid.UUID][]*storage.ProcedureStep
	fb      map[uuid.UUID]*storage.FeedbackSummary
	err     error
}

func (f *fakeStore) SearchExact(ctx context.Context, brand string, category storage.ProblemCategory, issueTag, searchTerms string, limit int) ([]*storage.Procedure, error) {
	return f.exact, f.err
}

func (f *fakeStore) SearchFuzzy(ctx context.Context, searchTerms string, limit int) ([]*storage.Procedure, error) {
	return f.fuzzy, f.err
}

func (f *fakeStore) ListByDeviceType(ctx context.Context, deviceType string, limit int) ([]*storage.Procedure, error) {
	return f.generic, f.err
}

func (f *fakeStore) DiagnosticRulesForDevice(ctx context.Context, deviceType string, limit int) ([]*storage.DiagnosticRule, error) {
	return f.rules, f.err
}

func (f *fakeStore) ResolvePublished(ctx context.Context, ids []string) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, id := range ids {
		parsed, err := uuid.Parse(id)
		if err == nil {
			out = append(out, parsed)
		}
	}
	return out, nil
}

func (f *fakeStore) StepsForProcedure(ctx context.Context, id uuid.UUID) ([]*storage.ProcedureStep, error) {
	return f.steps[id], nil
}

func (f *fakeStore) FeedbackForProcedures(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*storage.FeedbackSummary, error) {
	return f.fb, nil
}

func proc(id uuid.UUID, title string, rank float64) *storage.Procedure {
	return &storage.Procedure{
		ID:    id,
		Title: title,
		DeviceCompatibility: storage.DeviceCompatibility{
			Brands: []string{"apple"},
			Models: []string{"iPhone 14"},
			Types:  []string{"phone"},
		},
		ProblemCategories: []string{"screen_damage"},
		DiagnosticTags:    []string{"cracked_screen"},
		DifficultyLevel:   3,
		SearchRank:        rank,
		Status:            storage.ProcedureStatusPublished,
	}
}

func appleCriteria() Criteria {
	return BuildCriteria(
		"my iphone 14 screen is cracked",
		device.Match{Brand: "apple", Model: "iPhone 14", Type: device.TypePhone, Confidence: 0.9, Source: device.SourceTextPattern},
		problem.Match{Category: storage.ProblemScreenDamage, IssueCode: "cracked_screen", Confidence: 0.85},
	)
}

func TestBuildCriteria(t *testing.T) {
	c := appleCriteria()

	assert.Equal(t, "apple", c.Brand)
	assert.Equal(t, "iPhone 14", c.Model)
	assert.Equal(t, "phone", c.DeviceType)
	assert.Equal(t, storage.ProblemScreenDamage, c.Category)
	assert.Contains(t, c.Keywords, "cracked")
	assert.NotContains(t, c.Keywords, "my")
	assert.NotContains(t, c.Keywords, "is")
	assert.Contains(t, c.SearchTerms, "iphone 14")
	assert.Contains(t, c.SearchTerms, "cracked screen")
}

func TestSearch_DedupKeepsEarliestStrategy(t *testing.T) {
	shared := uuid.New()
	fuzzyOnly := uuid.New()
	genericOnly := uuid.New()

	store := &fakeStore{
		exact:   []*storage.Procedure{proc(shared, "Exact hit", 0.9)},
		fuzzy:   []*storage.Procedure{proc(shared, "Fuzzy duplicate", 0.6), proc(fuzzyOnly, "Fuzzy only", 0.5)},
		generic: []*storage.Procedure{proc(genericOnly, "Generic only", 0), proc(shared, "Generic duplicate", 0)},
	}
	s := NewSearcher(store, DefaultLimits(), nil)

	candidates := s.Search(context.Background(), appleCriteria())

	require.Len(t, candidates, 3)
	assert.Equal(t, shared, candidates[0].Procedure.ID)
	assert.Equal(t, StrategyExact, candidates[0].Strategy)
	assert.Equal(t, "Exact hit", candidates[0].Procedure.Title)
	assert.Equal(t, StrategyFuzzy, candidates[1].Strategy)
	assert.Equal(t, StrategyGeneric, candidates[2].Strategy)
}

func TestSearch_GenericBaselineRelevance(t *testing.T) {
	store := &fakeStore{generic: []*storage.Procedure{proc(uuid.New(), "Generic", 0)}}
	s := NewSearcher(store, DefaultLimits(), nil)

	candidates := s.Search(context.Background(), appleCriteria())

	require.Len(t, candidates, 1)
	assert.InDelta(t, 0.5, candidates[0].SearchRelevance, 0.001)
}

func TestSearch_StoreFailureDegradesToEmpty(t *testing.T) {
	store := &fakeStore{err: errors.New("store unreachable")}
	s := NewSearcher(store, DefaultLimits(), nil)

	candidates := s.Search(context.Background(), appleCriteria())

	assert.Empty(t, candidates)
}

func TestSearch_SkipsExactWithoutBrand(t *testing.T) {
	store := &fakeStore{
		exact: []*storage.Procedure{proc(uuid.New(), "should not appear", 0.9)},
		fuzzy: []*storage.Procedure{proc(uuid.New(), "fuzzy", 0.4)},
	}
	s := NewSearcher(store, DefaultLimits(), nil)

	criteria := BuildCriteria("screen cracked", device.Unknown(""), problem.Match{Category: storage.ProblemScreenDamage})
	candidates := s.Search(context.Background(), criteria)

	require.Len(t, candidates, 1)
	assert.Equal(t, StrategyFuzzy, candidates[0].Strategy)
}

func TestRank_FullCompatibilityScoresHigh(t *testing.T) {
	r := NewRanker(DefaultWeights())
	p := proc(uuid.New(), "iPhone 14 screen replacement", 0.9)
	p.QualityScore = sql.NullFloat64{Float64: 5, Valid: true}
	p.SuccessRate = sql.NullFloat64{Float64: 100, Valid: true}
	p.ViewCount = 200

	scored := r.Rank([]Candidate{{Procedure: p, Strategy: StrategyExact, SearchRelevance: 0.9}}, appleCriteria())

	require.Len(t, scored, 1)
	b := scored[0].Breakdown
	assert.InDelta(t, 1.0, b.Device, 0.001)
	assert.InDelta(t, 1.0, b.Quality, 0.001)
	assert.GreaterOrEqual(t, b.Problem, 0.6)
	assert.Greater(t, scored[0].RelevanceScore, 0.8)
	assert.LessOrEqual(t, scored[0].RelevanceScore, 1.0)
	assert.Contains(t, scored[0].RecommendationReason, "compatibility")
}

func TestRank_QualityMetricFormula(t *testing.T) {
	p := &storage.Procedure{
		QualityScore: sql.NullFloat64{Float64: 5, Valid: true},
		SuccessRate:  sql.NullFloat64{Float64: 100, Valid: true},
		ViewCount:    200,
	}
	assert.InDelta(t, 1.0, qualityScore(p), 0.001)

	// Nulls contribute nothing.
	empty := &storage.Procedure{ViewCount: 50}
	assert.InDelta(t, 0.5*0.2, qualityScore(empty), 0.001)
}

func TestRank_TieBreaksByQualityNullsLast(t *testing.T) {
	r := NewRanker(DefaultWeights())
	criteria := appleCriteria()

	a := proc(uuid.New(), "no quality", 0.5)
	b := proc(uuid.New(), "high quality", 0.5)
	b.QualityScore = sql.NullFloat64{Float64: 4.8, Valid: true}
	c := proc(uuid.New(), "low quality", 0.5)
	c.QualityScore = sql.NullFloat64{Float64: 2.0, Valid: true}

	// Force equal relevance by zeroing the quality weight.
	r = NewRanker(Weights{Device: 0.4, Problem: 0.3, Quality: 0, Search: 0.3})

	scored := r.Rank([]Candidate{
		{Procedure: a, Strategy: StrategyExact, SearchRelevance: 0.5},
		{Procedure: b, Strategy: StrategyExact, SearchRelevance: 0.5},
		{Procedure: c, Strategy: StrategyExact, SearchRelevance: 0.5},
	}, criteria)

	require.Len(t, scored, 3)
	assert.Equal(t, "high quality", scored[0].Procedure.Title)
	assert.Equal(t, "low quality", scored[1].Procedure.Title)
	assert.Equal(t, "no quality", scored[2].Procedure.Title)
}

func TestRank_StableOrderOnFullTies(t *testing.T) {
	r := NewRanker(DefaultWeights())
	criteria := appleCriteria()

	first := proc(uuid.New(), "arrived first", 0.5)
	second := proc(uuid.New(), "arrived second", 0.5)

	scored := r.Rank([]Candidate{
		{Procedure: first, Strategy: StrategyExact, SearchRelevance: 0.5},
		{Procedure: second, Strategy: StrategyExact, SearchRelevance: 0.5},
	}, criteria)

	require.Len(t, scored, 2)
	assert.Equal(t, "arrived first", scored[0].Procedure.Title)
	assert.Equal(t, "arrived second", scored[1].Procedure.Title)
}

func TestRank_ScoresAlwaysInRange(t *testing.T) {
	r := NewRanker(DefaultWeights())
	candidates := []Candidate{
		{Procedure: proc(uuid.New(), "a", 5.0), Strategy: StrategyExact, SearchRelevance: 5.0},
		{Procedure: &storage.Procedure{ID: uuid.New()}, Strategy: StrategyFuzzy, SearchRelevance: -2},
	}

	for _, sp := range r.Rank(candidates, appleCriteria()) {
		assert.GreaterOrEqual(t, sp.RelevanceScore, 0.0)
		assert.LessOrEqual(t, sp.RelevanceScore, 1.0)
		for _, sub := range []float64{sp.Breakdown.Device, sp.Breakdown.Problem, sp.Breakdown.Quality, sp.Breakdown.Search} {
			assert.GreaterOrEqual(t, sub, 0.0)
			assert.LessOrEqual(t, sub, 1.0)
		}
	}
}

func TestEnrich_TopNOnly(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	steps := map[uuid.UUID][]*storage.ProcedureStep{
		ids[0]: {
			{StepNumber: 1, Title: "one"}, {StepNumber: 2, Title: "two"},
			{StepNumber: 3, Title: "three"}, {StepNumber: 4, Title: "four"},
		},
	}
	fb := map[uuid.UUID]*storage.FeedbackSummary{
		ids[0]: {ProcedureID: ids[0], AverageRating: 4.2, FeedbackCount: 12},
	}
	store := &fakeStore{steps: steps, fb: fb}
	e := NewEnricher(store, 1, nil)

	p0 := proc(ids[0], "enriched", 0.9)
	p0.EstimatedTimeMinutes = 60
	p0.PartsRequired = []string{"replacement screen"}
	scored := []*ScoredProcedure{
		{Procedure: p0},
		{Procedure: proc(ids[1], "not enriched", 0.5)},
	}

	e.Enrich(context.Background(), scored)

	require.Len(t, scored[0].StepsPreview, 3)
	require.NotNil(t, scored[0].Feedback)
	assert.InDelta(t, 4.2, scored[0].Feedback.AverageRating, 0.001)
	// Difficulty 3, 60 minutes labor at 50/hour plus one part at 25.
	assert.InDelta(t, 75, scored[0].EstimatedCost, 0.001)

	assert.Nil(t, scored[1].StepsPreview)
	assert.Nil(t, scored[1].Feedback)
	assert.Zero(t, scored[1].EstimatedCost)
}

func TestKnowledgeBaseConfidence(t *testing.T) {
	mk := func(scores ...float64) []*ScoredProcedure {
		out := make([]*ScoredProcedure, len(scores))
		for i, s := range scores {
			out[i] = &ScoredProcedure{RelevanceScore: s}
		}
		return out
	}

	// Empty input: zero confidence, no panic.
	assert.Zero(t, KnowledgeBaseConfidence(nil))

	// One strong candidate: 0.85 + 0.05 boost.
	assert.InDelta(t, 0.9, KnowledgeBaseConfidence(mk(0.85)), 0.001)

	// Boost caps at 0.15 even with many strong candidates.
	assert.InDelta(t, 1.0, KnowledgeBaseConfidence(mk(0.9, 0.85, 0.82, 0.81, 0.8)), 0.001)

	// No candidate reaches 0.8: penalty applies.
	assert.InDelta(t, 0.75-0.1+0.05, KnowledgeBaseConfidence(mk(0.75)), 0.001)

	// Weak set: penalty, no boost.
	assert.InDelta(t, 0.3-0.1, KnowledgeBaseConfidence(mk(0.3, 0.2)), 0.001)
}

func TestOverallConfidence(t *testing.T) {
	assert.InDelta(t, 0.9*0.4+0.8*0.4+0.5*0.2, OverallConfidence(0.9, 0.8, 0.5), 0.001)
	assert.InDelta(t, 0.0, OverallConfidence(0, 0, 0), 0.001)
	assert.LessOrEqual(t, OverallConfidence(1, 1, 1), 1.0)
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, ConfidenceHigh, LevelFor(0.81))
	assert.Equal(t, ConfidenceMedium, LevelFor(0.7))
	assert.Equal(t, ConfidenceMedium, LevelFor(0.61))
	assert.Equal(t, ConfidenceLow, LevelFor(0.6))
	assert.Equal(t, ConfidenceLow, LevelFor(0.1))
}

func TestResponseTypeFor(t *testing.T) {
	assert.Equal(t, ResponseDetailed, ResponseTypeFor(0.85))
	assert.Equal(t, ResponseClarification, ResponseTypeFor(0.6))
	assert.Equal(t, ResponseGeneral, ResponseTypeFor(0.4))
}

func TestDiagnostician_MeanConfidence(t *testing.T) {
	procID := uuid.NewString()
	store := &fakeStore{
		rules: []*storage.DiagnosticRule{
			{DeviceType: "phone", SymptomKeywords: []string{"cracked"}, Confidence: 0.8, ProcedureIDs: []string{procID}},
			{DeviceType: "phone", SymptomKeywords: []string{"shattered"}, Confidence: 0.6},
			{DeviceType: "phone", SymptomKeywords: []string{"overheating"}, Confidence: 0.9},
		},
	}
	d := NewDiagnostician(store, 5, nil)

	result := d.Recommend(context.Background(), "phone", []string{"cracked", "shattered", "screen"})

	require.Len(t, result.Recommendations, 2)
	assert.InDelta(t, 0.7, result.Confidence, 0.001)
	assert.Len(t, result.Recommendations[0].ProcedureIDs, 1)
}

func TestDiagnostician_NoInputNoRules(t *testing.T) {
	d := NewDiagnostician(&fakeStore{}, 5, nil)

	assert.Zero(t, d.Recommend(context.Background(), "", []string{"cracked"}).Confidence)
	assert.Zero(t, d.Recommend(context.Background(), "phone", nil).Confidence)

	failing := NewDiagnostician(&fakeStore{err: errors.New("down")}, 5, nil)
	result := failing.Recommend(context.Background(), "phone", []string{"cracked"})
	assert.Empty(t, result.Recommendations)
}
