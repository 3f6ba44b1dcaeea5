// Package handlers provides HTTP handlers for the repair advisor API.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/fixfirst/repair-advisor/internal/observability"
	"github.com/fixfirst/repair-advisor/internal/pipeline"
	"github.com/fixfirst/repair-advisor/internal/recommend"
	"github.com/fixfirst/repair-advisor/internal/retrieval"
)

// AnalyzeHandler handles message analysis requests.
type AnalyzeHandler struct {
	logger   *observability.Logger
	pipeline *pipeline.Pipeline
}

// NewAnalyzeHandler creates a new analyze handler.
func NewAnalyzeHandler(logger *observability.Logger, p *pipeline.Pipeline) *AnalyzeHandler {
	return &AnalyzeHandler{
		logger:   logger,
		pipeline: p,
	}
}

// AnalyzeRequestDTO represents the API request for message analysis.
type AnalyzeRequestDTO struct {
	Message     string          `json:"message"`
	UserAgent   string          `json:"userAgent,omitempty"`
	SessionID   string          `json:"sessionId,omitempty"`
	UserContext *UserContextDTO `json:"userContext,omitempty"`
}

// UserContextDTO represents the optional personalization profile.
type UserContextDTO struct {
	SkillLevel  string   `json:"skillLevel,omitempty"`
	Preferences []string `json:"preferences,omitempty"`
}

// AnalyzeResponseDTO represents the API response.
type AnalyzeResponseDTO struct {
	Device          DeviceDTO           `json:"device"`
	Problem         ProblemDTO          `json:"problem"`
	Intent          IntentDTO           `json:"intent"`
	Answer          string              `json:"answer"`
	Actions         []string            `json:"recommendedActions,omitempty"`
	NextSteps       []NextStepDTO       `json:"nextSteps,omitempty"`
	Procedures      []ProcedureDTO      `json:"procedures"`
	Recommendations []RecommendationDTO `json:"recommendations,omitempty"`
	RepairInsights  *InsightsDTO        `json:"repairInsights,omitempty"`
	CostEstimate    *CostEstimateDTO    `json:"costEstimate,omitempty"`
	Confidence      ConfidenceDTO       `json:"confidence"`
	Degraded        bool                `json:"degraded,omitempty"`
	ElapsedMs       int64               `json:"elapsedMs"`
}

// DeviceDTO represents the identified device.
type DeviceDTO struct {
	Brand      string  `json:"brand,omitempty"`
	Model      string  `json:"model,omitempty"`
	Type       string  `json:"type,omitempty"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// ProblemDTO represents the classified problem.
type ProblemDTO struct {
	Category            string  `json:"category"`
	IssueCode           string  `json:"issueCode,omitempty"`
	Severity            string  `json:"severity"`
	EstimatedRepairTime string  `json:"estimatedRepairTime,omitempty"`
	Confidence          float64 `json:"confidence"`
}

// IntentDTO represents the classified intent.
type IntentDTO struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// NextStepDTO represents one structured follow-up.
type NextStepDTO struct {
	Title              string `json:"title"`
	Description        string `json:"description,omitempty"`
	BookingRecommended bool   `json:"bookingRecommended,omitempty"`
}

// ProcedureDTO represents one ranked repair procedure.
type ProcedureDTO struct {
	ID               string        `json:"id"`
	Title            string        `json:"title"`
	Description      string        `json:"description,omitempty"`
	DifficultyLevel  int           `json:"difficultyLevel"`
	EstimatedMinutes int           `json:"estimatedMinutes,omitempty"`
	RelevanceScore   float64       `json:"relevanceScore"`
	Strategy         string        `json:"strategy"`
	Reason           string        `json:"reason,omitempty"`
	EstimatedCost    float64       `json:"estimatedCost,omitempty"`
	Steps            []StepDTO     `json:"steps,omitempty"`
	Feedback         *FeedbackDTO  `json:"feedback,omitempty"`
	Breakdown        *BreakdownDTO `json:"scoringBreakdown,omitempty"`
}

// StepDTO represents one procedure step.
type StepDTO struct {
	Number      int    `json:"number"`
	Title       string `json:"title"`
	Instruction string `json:"instruction,omitempty"`
	CautionNote string `json:"cautionNote,omitempty"`
}

// FeedbackDTO represents aggregated procedure feedback.
type FeedbackDTO struct {
	AverageRating float64 `json:"averageRating"`
	FeedbackCount int     `json:"feedbackCount"`
	SuccessCount  int     `json:"successCount"`
}

// BreakdownDTO represents the relevance sub-scores.
type BreakdownDTO struct {
	Device  float64 `json:"device"`
	Problem float64 `json:"problem"`
	Quality float64 `json:"quality"`
	Search  float64 `json:"search"`
}

// RecommendationDTO represents one personalized recommendation.
type RecommendationDTO struct {
	ProcedureID   string           `json:"procedureId"`
	Title         string           `json:"title"`
	Rank          int              `json:"rank"`
	MLScore       float64          `json:"mlScore"`
	FeatureScores FeatureScoresDTO `json:"featureScores"`
	Explanation   string           `json:"explanation"`
}

// FeatureScoresDTO represents the personalization feature breakdown.
type FeatureScoresDTO struct {
	DeviceSimilarity  float64 `json:"deviceSimilarity"`
	ProblemSimilarity float64 `json:"problemSimilarity"`
	Difficulty        float64 `json:"difficultyAppropriateness"`
	Preference        float64 `json:"preferenceMatch"`
	SuccessLikelihood float64 `json:"successLikelihood"`
}

// InsightsDTO represents brand/type repair insights.
type InsightsDTO struct {
	Repairability     string   `json:"repairability,omitempty"`
	AverageCostBand   string   `json:"averageCostBand,omitempty"`
	TypicalTurnaround string   `json:"typicalTurnaround,omitempty"`
	CommonIssues      []string `json:"commonIssues,omitempty"`
}

// CostEstimateDTO represents a category-level cost estimate.
type CostEstimateDTO struct {
	BaseCost float64 `json:"baseCost"`
	LowCost  float64 `json:"lowCost"`
	HighCost float64 `json:"highCost"`
	Currency string  `json:"currency"`
	Range    string  `json:"range"`
}

// ConfidenceDTO represents the aggregated confidence values.
type ConfidenceDTO struct {
	Overall       float64 `json:"overall"`
	Level         string  `json:"level"`
	Recognition   float64 `json:"recognition"`
	KnowledgeBase float64 `json:"knowledgeBase"`
	Diagnostic    float64 `json:"diagnostic"`
	ResponseType  string  `json:"responseType"`
}

// Analyze handles POST /v1/analyze.
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var reqDTO AnalyzeRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if reqDTO.Message == "" {
		h.writeError(w, http.StatusBadRequest, "message is required", "")
		return
	}

	req := pipeline.Request{
		Message:   reqDTO.Message,
		Header:    reqDTO.UserAgent,
		SessionID: reqDTO.SessionID,
	}
	if reqDTO.UserContext != nil {
		req.Profile = &recommend.Profile{
			SkillLevel:  recommend.SkillLevel(reqDTO.UserContext.SkillLevel),
			Preferences: reqDTO.UserContext.Preferences,
		}
	}

	result := h.pipeline.IdentifyAndRecommend(r.Context(), req)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(toResponseDTO(result)); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

// Stats handles GET /v1/stats.
func (h *AnalyzeHandler) Stats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.pipeline.Stats().Snapshot()); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode stats")
	}
}

func toResponseDTO(result pipeline.Result) AnalyzeResponseDTO {
	dto := AnalyzeResponseDTO{
		Device: DeviceDTO{
			Brand:      result.Device.Brand,
			Model:      result.Device.Model,
			Type:       result.Device.Type,
			Confidence: result.Device.Confidence,
			Source:     string(result.Device.Source),
		},
		Problem: ProblemDTO{
			Category:            string(result.Problem.Category),
			IssueCode:           result.Problem.IssueCode,
			Severity:            string(result.Problem.Severity),
			EstimatedRepairTime: result.Problem.EstimatedRepairTime,
			Confidence:          result.Problem.Confidence,
		},
		Intent: IntentDTO{
			Intent:     string(result.Intent.Intent),
			Confidence: result.Intent.Confidence,
		},
		Answer:     result.Response.Answer,
		Actions:    result.Response.RecommendedActions,
		Procedures: make([]ProcedureDTO, 0, len(result.Procedures)),
		Confidence: ConfidenceDTO{
			Overall:       result.Confidence.Overall,
			Level:         string(result.Confidence.Level),
			Recognition:   result.Confidence.Recognition,
			KnowledgeBase: result.Confidence.KnowledgeBase,
			Diagnostic:    result.Confidence.Diagnostic,
			ResponseType:  string(result.Confidence.ResponseType),
		},
		Degraded:  result.Degraded,
		ElapsedMs: result.ElapsedMS,
	}

	for _, step := range result.Response.NextSteps {
		dto.NextSteps = append(dto.NextSteps, NextStepDTO{
			Title:              step.Title,
			Description:        step.Description,
			BookingRecommended: step.BookingRecommended,
		})
	}

	for _, sp := range result.Procedures {
		dto.Procedures = append(dto.Procedures, toProcedureDTO(sp))
	}

	for _, rec := range result.Recommendations {
		dto.Recommendations = append(dto.Recommendations, toRecommendationDTO(rec))
	}

	if result.Insights != nil {
		dto.RepairInsights = &InsightsDTO{
			Repairability:     result.Insights.Repairability,
			AverageCostBand:   result.Insights.AverageCostBand,
			TypicalTurnaround: result.Insights.TypicalTurnaround,
			CommonIssues:      result.Insights.CommonIssues,
		}
	}

	if result.CostEstimate != nil {
		dto.CostEstimate = &CostEstimateDTO{
			BaseCost: result.CostEstimate.BaseCost,
			LowCost:  result.CostEstimate.LowCost,
			HighCost: result.CostEstimate.HighCost,
			Currency: result.CostEstimate.Currency,
			Range:    result.CostEstimate.Range,
		}
	}

	return dto
}

func toProcedureDTO(sp *retrieval.ScoredProcedure) ProcedureDTO {
	p := ProcedureDTO{
		ID:               sp.Procedure.ID.String(),
		Title:            sp.Procedure.Title,
		Description:      sp.Procedure.Description,
		DifficultyLevel:  sp.Procedure.DifficultyLevel,
		EstimatedMinutes: sp.Procedure.EstimatedTimeMinutes,
		RelevanceScore:   sp.RelevanceScore,
		Strategy:         string(sp.Strategy),
		Reason:           sp.RecommendationReason,
		EstimatedCost:    sp.EstimatedCost,
		Breakdown: &BreakdownDTO{
			Device:  sp.Breakdown.Device,
			Problem: sp.Breakdown.Problem,
			Quality: sp.Breakdown.Quality,
			Search:  sp.Breakdown.Search,
		},
	}

	for _, step := range sp.StepsPreview {
		p.Steps = append(p.Steps, StepDTO{
			Number:      step.StepNumber,
			Title:       step.Title,
			Instruction: step.Instruction,
			CautionNote: step.CautionNote,
		})
	}

	if sp.Feedback != nil {
		p.Feedback = &FeedbackDTO{
			AverageRating: sp.Feedback.AverageRating,
			FeedbackCount: sp.Feedback.FeedbackCount,
			SuccessCount:  sp.Feedback.SuccessCount,
		}
	}

	return p
}

func toRecommendationDTO(rec recommend.Recommendation) RecommendationDTO {
	return RecommendationDTO{
		ProcedureID: rec.Procedure.ID.String(),
		Title:       rec.Procedure.Title,
		Rank:        rec.Rank,
		MLScore:     rec.MLScore,
		FeatureScores: FeatureScoresDTO{
			DeviceSimilarity:  rec.FeatureScores.DeviceSimilarity,
			ProblemSimilarity: rec.FeatureScores.ProblemSimilarity,
			Difficulty:        rec.FeatureScores.Difficulty,
			Preference:        rec.FeatureScores.Preference,
			SuccessLikelihood: rec.FeatureScores.SuccessLikelihood,
		},
		Explanation: rec.Explanation,
	}
}

func (h *AnalyzeHandler) writeError(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]string{
		"error": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	json.NewEncoder(w).Encode(resp)
}
