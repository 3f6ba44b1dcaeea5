package retrieval

import (
	"context"

	"github.com/google/uuid"

	"github.com/fixfirst/repair-advisor/internal/observability"
	"github.com/fixfirst/repair-advisor/internal/storage"
)

// Strategy identifies which retrieval strategy produced a candidate.
type Strategy string

const (
	StrategyExact   Strategy = "exact"
	StrategyFuzzy   Strategy = "fuzzy"
	StrategyGeneric Strategy = "generic"
)

// genericBaselineRelevance is the fixed search relevance assigned to
// generic-strategy candidates, which carry no text-search rank.
const genericBaselineRelevance = 0.5

// Default per-strategy result caps.
const (
	DefaultExactLimit   = 10
	DefaultFuzzyLimit   = 15
	DefaultGenericLimit = 5
)

// Store is the knowledge-store read surface the searcher consumes.
type Store interface {
	SearchExact(ctx context.Context, brand string, category storage.ProblemCategory, issueTag string, searchTerms string, limit int) ([]*storage.Procedure, error)
	SearchFuzzy(ctx context.Context, searchTerms string, limit int) ([]*storage.Procedure, error)
	ListByDeviceType(ctx context.Context, deviceType string, limit int) ([]*storage.Procedure, error)
}

// Candidate is one retrieved procedure with its provenance.
type Candidate struct {
	Procedure *storage.Procedure
	Strategy  Strategy
	// SearchRelevance is the store's text-relevance score, or the fixed
	// baseline for generic candidates.
	SearchRelevance float64
}

// Limits caps results per strategy.
type Limits struct {
	Exact   int
	Fuzzy   int
	Generic int
}

// DefaultLimits returns the standard strategy caps.
func DefaultLimits() Limits {
	return Limits{Exact: DefaultExactLimit, Fuzzy: DefaultFuzzyLimit, Generic: DefaultGenericLimit}
}

// Searcher runs the three retrieval strategies and merges their results.
type Searcher struct {
	store  Store
	limits Limits
	logger *observability.Logger
}

// NewSearcher creates a searcher over the knowledge store.
func NewSearcher(store Store, limits Limits, logger *observability.Logger) *Searcher {
	if limits.Exact <= 0 {
		limits.Exact = DefaultExactLimit
	}
	if limits.Fuzzy <= 0 {
		limits.Fuzzy = DefaultFuzzyLimit
	}
	if limits.Generic <= 0 {
		limits.Generic = DefaultGenericLimit
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Searcher{store: store, limits: limits, logger: logger.WithComponent("searcher")}
}

// Search runs exact, fuzzy, and generic retrieval in that order,
// concatenates, and deduplicates by procedure ID keeping the first
// occurrence, so exact hits shadow fuzzy and generic duplicates. Store
// failures degrade a strategy to an empty result set; an empty candidate
// list means "no data", never a hard failure.
func (s *Searcher) Search(ctx context.Context, criteria Criteria) []Candidate {
	var candidates []Candidate

	if criteria.Brand != "" {
		procs, err := s.store.SearchExact(ctx, criteria.Brand, criteria.Category, criteria.IssueCode, criteria.SearchTerms, s.limits.Exact)
		if err != nil {
			s.logger.Warn().Err(err).Msg("exact strategy degraded to empty")
		}
		for _, p := range procs {
			candidates = append(candidates, Candidate{Procedure: p, Strategy: StrategyExact, SearchRelevance: clampScore(p.SearchRank)})
		}
	}

	if criteria.SearchTerms != "" {
		procs, err := s.store.SearchFuzzy(ctx, criteria.SearchTerms, s.limits.Fuzzy)
		if err != nil {
			s.logger.Warn().Err(err).Msg("fuzzy strategy degraded to empty")
		}
		for _, p := range procs {
			candidates = append(candidates, Candidate{Procedure: p, Strategy: StrategyFuzzy, SearchRelevance: clampScore(p.SearchRank)})
		}
	}

	if criteria.DeviceType != "" {
		procs, err := s.store.ListByDeviceType(ctx, criteria.DeviceType, s.limits.Generic)
		if err != nil {
			s.logger.Warn().Err(err).Msg("generic strategy degraded to empty")
		}
		for _, p := range procs {
			candidates = append(candidates, Candidate{Procedure: p, Strategy: StrategyGeneric, SearchRelevance: genericBaselineRelevance})
		}
	}

	deduped := dedupCandidates(candidates)

	s.logger.Debug().
		Int("raw", len(candidates)).
		Int("deduped", len(deduped)).
		Msg("retrieval complete")

	return deduped
}

// dedupCandidates keeps the first occurrence of each procedure ID.
func dedupCandidates(in []Candidate) []Candidate {
	seen := make(map[uuid.UUID]bool, len(in))
	out := make([]Candidate, 0, len(in))
	for _, c := range in {
		if c.Procedure == nil || seen[c.Procedure.ID] {
			continue
		}
		seen[c.Procedure.ID] = true
		out = append(out, c)
	}
	return out
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
