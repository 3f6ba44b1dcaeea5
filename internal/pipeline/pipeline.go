// Package pipeline wires the identification, classification, retrieval,
// ranking, and personalization stages into a single request flow.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fixfirst/repair-advisor/internal/device"
	"github.com/fixfirst/repair-advisor/internal/observability"
	"github.com/fixfirst/repair-advisor/internal/problem"
	"github.com/fixfirst/repair-advisor/internal/recommend"
	"github.com/fixfirst/repair-advisor/internal/retrieval"
	"github.com/fixfirst/repair-advisor/internal/storage"
)

// AnalyticsSink receives fire-and-forget interaction events.
// *storage.InteractionRepository satisfies it.
type AnalyticsSink interface {
	Record(ctx context.Context, ev *storage.InteractionEvent) error
}

// Request is a single support message to analyze.
type Request struct {
	Message   string             `json:"message"`
	Header    string             `json:"header,omitempty"`
	SessionID string             `json:"session_id,omitempty"`
	Profile   *recommend.Profile `json:"user_context,omitempty"`
}

// Confidence carries the per-stage and aggregated confidence values.
type Confidence struct {
	Recognition   float64                   `json:"recognition"`
	KnowledgeBase float64                   `json:"knowledge_base"`
	Diagnostic    float64                   `json:"diagnostic"`
	Overall       float64                   `json:"overall"`
	Level         retrieval.ConfidenceLevel `json:"level"`
	Message       float64                   `json:"message"`
	ResponseType  retrieval.ResponseType    `json:"response_type"`
}

// Result is the full pipeline output for one request.
type Result struct {
	Device          device.Match                 `json:"device"`
	Problem         problem.Match                `json:"problem"`
	Intent          problem.IntentMatch          `json:"intent"`
	Procedures      []*retrieval.ScoredProcedure `json:"procedures"`
	Recommendations []recommend.Recommendation   `json:"recommendations,omitempty"`
	Diagnostics     retrieval.DiagnosticResult   `json:"diagnostics"`
	Insights        *device.RepairInsights       `json:"repair_insights,omitempty"`
	CostEstimate    *problem.CostEstimate        `json:"cost_estimate,omitempty"`
	Response        Response                     `json:"response"`
	Confidence      Confidence                   `json:"confidence"`
	Degraded        bool                         `json:"degraded,omitempty"`
	ElapsedMS       int64                        `json:"elapsed_ms"`
}

// Pipeline holds the injected stage implementations. Stages communicate
// only through their output values, never through shared state.
type Pipeline struct {
	matcher       *device.Matcher
	classifier    *problem.Classifier
	intents       *problem.IntentClassifier
	searcher      *retrieval.Searcher
	ranker        *retrieval.Ranker
	enricher      *retrieval.Enricher
	diagnostician *retrieval.Diagnostician
	composer      *recommend.Composer
	analytics     AnalyticsSink
	logger        *observability.Logger
	stats         *Stats
	now           func() time.Time
}

// Options configure a Pipeline. Matcher, Searcher, Ranker, Enricher,
// Diagnostician, and Composer are required; the rest default sensibly.
type Options struct {
	Matcher       *device.Matcher
	Classifier    *problem.Classifier
	Intents       *problem.IntentClassifier
	Searcher      *retrieval.Searcher
	Ranker        *retrieval.Ranker
	Enricher      *retrieval.Enricher
	Diagnostician *retrieval.Diagnostician
	Composer      *recommend.Composer
	Analytics     AnalyticsSink
	Logger        *observability.Logger
}

// New creates a pipeline from the given stages.
func New(opts Options) *Pipeline {
	if opts.Classifier == nil {
		opts.Classifier = problem.NewClassifier(opts.Logger)
	}
	if opts.Intents == nil {
		opts.Intents = problem.NewIntentClassifier()
	}
	if opts.Logger == nil {
		opts.Logger = observability.Nop()
	}
	return &Pipeline{
		matcher:       opts.Matcher,
		classifier:    opts.Classifier,
		intents:       opts.Intents,
		searcher:      opts.Searcher,
		ranker:        opts.Ranker,
		enricher:      opts.Enricher,
		diagnostician: opts.Diagnostician,
		composer:      opts.Composer,
		analytics:     opts.Analytics,
		logger:        opts.Logger.WithComponent("pipeline"),
		stats:         NewStats(),
		now:           time.Now,
	}
}

// Stats exposes the rolling performance counters.
func (p *Pipeline) Stats() *Stats { return p.stats }

// IdentifyAndRecommend runs the full pipeline over one message. It never
// returns an error: any stage panic degrades to a fixed fallback payload
// so a caller always has something to show the user.
func (p *Pipeline) IdentifyAndRecommend(ctx context.Context, req Request) (result Result) {
	start := p.now()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Interface("panic", r).Str("session_id", req.SessionID).Msg("pipeline degraded to fallback")
			result = fallbackResult()
			result.ElapsedMS = p.now().Sub(start).Milliseconds()
			p.stats.RecordFallback(float64(result.ElapsedMS))
		}
	}()

	dev := p.matcher.MatchHybrid(ctx, req.Message, req.Header)
	prob := p.classifier.Classify(req.Message, dev)
	intent := p.intents.Classify(req.Message, dev)

	criteria := retrieval.BuildCriteria(req.Message, dev, prob)
	candidates := p.searcher.Search(ctx, criteria)
	scored := p.ranker.Rank(candidates, criteria)
	p.enricher.Enrich(ctx, scored)

	diag := p.diagnostician.Recommend(ctx, criteria.DeviceType, criteria.Keywords)

	conf := aggregateConfidence(dev, prob, intent, scored, diag)

	result = Result{
		Device:      dev,
		Problem:     prob,
		Intent:      intent,
		Procedures:  scored,
		Diagnostics: diag,
		Confidence:  conf,
	}

	if req.Profile != nil {
		result.Recommendations = p.composer.Compose(scored, dev, prob, *req.Profile)
	}
	if insights, ok := device.InsightsFor(dev); ok {
		result.Insights = &insights
	}
	if dev.IsKnown() && prob.Category != storage.ProblemGeneral {
		cost := problem.EstimateCost(dev, prob)
		result.CostEstimate = &cost
	}

	result.Response = composeResponse(req, result)
	result.ElapsedMS = p.now().Sub(start).Milliseconds()

	p.stats.RecordRequest(float64(result.ElapsedMS), conf.Overall)
	p.recordInteraction(req, result)

	p.logger.Info().
		Str("device", dev.String()).
		Str("category", string(prob.Category)).
		Str("intent", string(intent.Intent)).
		Int("procedures", len(scored)).
		Float64("confidence", conf.Overall).
		Int64("elapsed_ms", result.ElapsedMS).
		Msg("request analyzed")

	return result
}

// aggregateConfidence folds the per-stage confidences into the overall
// score and the message-level score that drives response-type selection.
func aggregateConfidence(dev device.Match, prob problem.Match, intent problem.IntentMatch, scored []*retrieval.ScoredProcedure, diag retrieval.DiagnosticResult) Confidence {
	recognition := (dev.Confidence + prob.Confidence) / 2
	kb := retrieval.KnowledgeBaseConfidence(scored)
	overall := retrieval.OverallConfidence(recognition, kb, diag.Confidence)
	msg := retrieval.MessageConfidence(dev.Confidence, prob.Confidence, intent.Confidence)

	return Confidence{
		Recognition:   recognition,
		KnowledgeBase: kb,
		Diagnostic:    diag.Confidence,
		Overall:       overall,
		Level:         retrieval.LevelFor(overall),
		Message:       msg,
		ResponseType:  retrieval.ResponseTypeFor(msg),
	}
}

// recordInteraction ships the analytics event without blocking or failing
// the request. The write runs detached from the request context.
func (p *Pipeline) recordInteraction(req Request, result Result) {
	if p.analytics == nil {
		return
	}

	ev := &storage.InteractionEvent{
		ID:             uuid.New(),
		EventType:      "message_analyzed",
		SessionID:      req.SessionID,
		Query:          truncate(req.Message, 500),
		DeviceString:   result.Device.String(),
		ProblemString:  string(result.Problem.Category),
		ResponseTimeMS: result.ElapsedMS,
		ResultCount:    len(result.Procedures),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.analytics.Record(ctx, ev); err != nil {
			p.logger.Warn().Err(err).Msg("interaction event dropped")
		}
	}()
}

func fallbackResult() Result {
	return Result{
		Device:  device.Unknown(""),
		Problem: problem.Unknown(),
		Intent:  problem.IntentMatch{Intent: storage.IntentGeneralInquiry, Confidence: 0.1},
		Response: Response{
			Answer: "I encountered an issue processing your request. Please try rephrasing your message or contact our support team directly.",
			RecommendedActions: []string{
				"Contact our support team",
				"Try describing your device and problem differently",
				"Visit a nearby service center",
			},
		},
		Confidence: Confidence{
			Overall:      0.1,
			Level:        retrieval.ConfidenceLow,
			Message:      0.1,
			ResponseType: retrieval.ResponseGeneral,
		},
		Degraded: true,
	}
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max]
}
