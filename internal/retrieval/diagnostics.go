package retrieval

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/fixfirst/repair-advisor/internal/observability"
	"github.com/fixfirst/repair-advisor/internal/storage"
)

// DefaultDiagnosticLimit caps how many rules feed the recommendations.
const DefaultDiagnosticLimit = 5

// DiagnosticStore is the store surface diagnostics reads from.
type DiagnosticStore interface {
	DiagnosticRulesForDevice(ctx context.Context, deviceType string, limit int) ([]*storage.DiagnosticRule, error)
	ResolvePublished(ctx context.Context, ids []string) ([]uuid.UUID, error)
}

// DiagnosticRecommendation is one matched rule with its resolved published
// procedures.
type DiagnosticRecommendation struct {
	Rule         *storage.DiagnosticRule `json:"rule"`
	ProcedureIDs []uuid.UUID             `json:"procedure_ids,omitempty"`
}

// DiagnosticResult bundles matched rules and their aggregate confidence.
type DiagnosticResult struct {
	Recommendations []DiagnosticRecommendation `json:"recommendations,omitempty"`
	// Confidence is the mean of the matched rules' confidences; zero when
	// nothing matched.
	Confidence float64 `json:"confidence"`
}

// Diagnostician matches diagnostic rules against the reported symptoms.
type Diagnostician struct {
	store  DiagnosticStore
	limit  int
	logger *observability.Logger
}

// NewDiagnostician creates a diagnostician.
func NewDiagnostician(store DiagnosticStore, limit int, logger *observability.Logger) *Diagnostician {
	if limit <= 0 {
		limit = DefaultDiagnosticLimit
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Diagnostician{store: store, limit: limit, logger: logger.WithComponent("diagnostician")}
}

// Recommend fetches rules for the device type, keeps the ones whose symptom
// keywords appear in the message keywords, and resolves their suggested
// procedures against published records. Store failures degrade to an empty
// result.
func (d *Diagnostician) Recommend(ctx context.Context, deviceType string, keywords []string) DiagnosticResult {
	if deviceType == "" || len(keywords) == 0 {
		return DiagnosticResult{}
	}

	rules, err := d.store.DiagnosticRulesForDevice(ctx, deviceType, d.limit)
	if err != nil {
		d.logger.Warn().Err(err).Msg("diagnostic rules degraded to empty")
		return DiagnosticResult{}
	}

	var recs []DiagnosticRecommendation
	total := 0.0
	for _, rule := range rules {
		if !symptomsMatch(rule.SymptomKeywords, keywords) {
			continue
		}

		ids, err := d.store.ResolvePublished(ctx, rule.ProcedureIDs)
		if err != nil {
			d.logger.Warn().Err(err).Msg("procedure resolution skipped for rule")
		}
		recs = append(recs, DiagnosticRecommendation{Rule: rule, ProcedureIDs: ids})
		total += rule.Confidence
	}

	if len(recs) == 0 {
		return DiagnosticResult{}
	}

	return DiagnosticResult{
		Recommendations: recs,
		Confidence:      clampScore(total / float64(len(recs))),
	}
}

func symptomsMatch(symptoms []string, keywords []string) bool {
	for _, s := range symptoms {
		sl := strings.ToLower(s)
		for _, kw := range keywords {
			if strings.Contains(sl, kw) || strings.Contains(kw, sl) {
				return true
			}
		}
	}
	return false
}
