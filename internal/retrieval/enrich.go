package retrieval

import (
	"context"
	"math"

	"github.com/google/uuid"

	"github.com/fixfirst/repair-advisor/internal/observability"
	"github.com/fixfirst/repair-advisor/internal/storage"
)

// DefaultEnrichTopN bounds enrichment cost to the head of the ranking.
const DefaultEnrichTopN = 5

const stepsPreviewCount = 3

// laborRates maps difficulty level to the hourly labor rate in GBP.
var laborRates = map[int]float64{
	1: 30,
	2: 40,
	3: 50,
	4: 70,
	5: 90,
}

// nominalPartCost stands in for a parts price list the store does not
// carry per-part prices for.
const nominalPartCost = 25.0

// EnrichStore is the store surface enrichment reads from.
type EnrichStore interface {
	StepsForProcedure(ctx context.Context, procedureID uuid.UUID) ([]*storage.ProcedureStep, error)
	FeedbackForProcedures(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*storage.FeedbackSummary, error)
}

// Enricher attaches steps previews, feedback, and cost estimates to the
// top-ranked candidates.
type Enricher struct {
	store  EnrichStore
	topN   int
	logger *observability.Logger
}

// NewEnricher creates an enricher.
func NewEnricher(store EnrichStore, topN int, logger *observability.Logger) *Enricher {
	if topN <= 0 {
		topN = DefaultEnrichTopN
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Enricher{store: store, topN: topN, logger: logger.WithComponent("enricher")}
}

// Enrich mutates the first topN scored procedures in place. Store failures
// leave the affected enrichment fields empty; the ranking itself is never
// disturbed.
func (e *Enricher) Enrich(ctx context.Context, scored []*ScoredProcedure) {
	n := e.topN
	if n > len(scored) {
		n = len(scored)
	}
	if n == 0 {
		return
	}

	ids := make([]uuid.UUID, 0, n)
	for _, sp := range scored[:n] {
		ids = append(ids, sp.Procedure.ID)
	}

	feedback, err := e.store.FeedbackForProcedures(ctx, ids)
	if err != nil {
		e.logger.Warn().Err(err).Msg("feedback enrichment skipped")
		feedback = map[uuid.UUID]*storage.FeedbackSummary{}
	}

	for _, sp := range scored[:n] {
		steps, err := e.store.StepsForProcedure(ctx, sp.Procedure.ID)
		if err != nil {
			e.logger.Warn().Err(err).Str("procedure", sp.Procedure.ID.String()).Msg("steps enrichment skipped")
		}
		if len(steps) > stepsPreviewCount {
			steps = steps[:stepsPreviewCount]
		}
		sp.StepsPreview = steps
		sp.Feedback = feedback[sp.Procedure.ID]
		sp.EstimatedCost = EstimateProcedureCost(sp.Procedure)
	}
}

// EstimateProcedureCost is parts cost plus labor, where labor is
// (estimated minutes / 60) times the difficulty-banded hourly rate.
func EstimateProcedureCost(p *storage.Procedure) float64 {
	rate, ok := laborRates[p.DifficultyLevel]
	if !ok {
		rate = laborRates[3]
	}

	labor := float64(p.EstimatedTimeMinutes) / 60 * rate
	parts := float64(len(p.PartsRequired)) * nominalPartCost

	return math.Round((labor+parts)*100) / 100
}
