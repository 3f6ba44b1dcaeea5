// Package advisor provides the public Go SDK for the repair advisor API.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client is the public SDK client for the repair advisor service.
type Client struct {
	baseURL string
	http    *http.Client
}

// ClientConfig holds client configuration.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the default client, Timeout is ignored when set.
	HTTPClient *http.Client
}

// NewClient creates a new repair advisor client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8090"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    httpClient,
	}
}

// AnalyzeRequest represents a message analysis request.
type AnalyzeRequest struct {
	Message     string       `json:"message"`
	UserAgent   string       `json:"userAgent,omitempty"`
	SessionID   string       `json:"sessionId,omitempty"`
	UserContext *UserContext `json:"userContext,omitempty"`
}

// UserContext carries the optional personalization profile.
type UserContext struct {
	SkillLevel  string   `json:"skillLevel,omitempty"`
	Preferences []string `json:"preferences,omitempty"`
}

// AnalyzeResponse represents a message analysis response.
type AnalyzeResponse struct {
	Device          Device           `json:"device"`
	Problem         Problem          `json:"problem"`
	Intent          Intent           `json:"intent"`
	Answer          string           `json:"answer"`
	Actions         []string         `json:"recommendedActions,omitempty"`
	NextSteps       []NextStep       `json:"nextSteps,omitempty"`
	Procedures      []Procedure      `json:"procedures"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
	RepairInsights  *Insights        `json:"repairInsights,omitempty"`
	CostEstimate    *CostEstimate    `json:"costEstimate,omitempty"`
	Confidence      Confidence       `json:"confidence"`
	Degraded        bool             `json:"degraded,omitempty"`
	ElapsedMs       int64            `json:"elapsedMs"`
}

// Device is the identified device.
type Device struct {
	Brand      string  `json:"brand,omitempty"`
	Model      string  `json:"model,omitempty"`
	Type       string  `json:"type,omitempty"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// Problem is the classified problem.
type Problem struct {
	Category            string  `json:"category"`
	IssueCode           string  `json:"issueCode,omitempty"`
	Severity            string  `json:"severity"`
	EstimatedRepairTime string  `json:"estimatedRepairTime,omitempty"`
	Confidence          float64 `json:"confidence"`
}

// Intent is the classified user intent.
type Intent struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// NextStep is one structured follow-up.
type NextStep struct {
	Title              string `json:"title"`
	Description        string `json:"description,omitempty"`
	BookingRecommended bool   `json:"bookingRecommended,omitempty"`
}

// Procedure is one ranked repair procedure.
type Procedure struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	DifficultyLevel  int       `json:"difficultyLevel"`
	EstimatedMinutes int       `json:"estimatedMinutes,omitempty"`
	RelevanceScore   float64   `json:"relevanceScore"`
	Strategy         string    `json:"strategy"`
	Reason           string    `json:"reason,omitempty"`
	EstimatedCost    float64   `json:"estimatedCost,omitempty"`
	Steps            []Step    `json:"steps,omitempty"`
	Feedback         *Feedback `json:"feedback,omitempty"`
}

// Step is one procedure step.
type Step struct {
	Number      int    `json:"number"`
	Title       string `json:"title"`
	Instruction string `json:"instruction,omitempty"`
	CautionNote string `json:"cautionNote,omitempty"`
}

// Feedback is aggregated procedure feedback.
type Feedback struct {
	AverageRating float64 `json:"averageRating"`
	FeedbackCount int     `json:"feedbackCount"`
	SuccessCount  int     `json:"successCount"`
}

// Recommendation is one personalized recommendation.
type Recommendation struct {
	ProcedureID string  `json:"procedureId"`
	Title       string  `json:"title"`
	Rank        int     `json:"rank"`
	MLScore     float64 `json:"mlScore"`
	Explanation string  `json:"explanation"`
}

// Insights is the brand/type repair profile.
type Insights struct {
	Repairability     string   `json:"repairability,omitempty"`
	AverageCostBand   string   `json:"averageCostBand,omitempty"`
	TypicalTurnaround string   `json:"typicalTurnaround,omitempty"`
	CommonIssues      []string `json:"commonIssues,omitempty"`
}

// CostEstimate is a category-level cost estimate.
type CostEstimate struct {
	BaseCost float64 `json:"baseCost"`
	LowCost  float64 `json:"lowCost"`
	HighCost float64 `json:"highCost"`
	Currency string  `json:"currency"`
	Range    string  `json:"range"`
}

// Confidence carries the aggregated confidence values.
type Confidence struct {
	Overall       float64 `json:"overall"`
	Level         string  `json:"level"`
	Recognition   float64 `json:"recognition"`
	KnowledgeBase float64 `json:"knowledgeBase"`
	Diagnostic    float64 `json:"diagnostic"`
	ResponseType  string  `json:"responseType"`
}

// StatsResponse is a snapshot of the service's rolling counters.
type StatsResponse struct {
	TotalRequests     int64   `json:"total_requests"`
	Fallbacks         int64   `json:"fallbacks"`
	AvgResponseTimeMS float64 `json:"avg_response_time_ms"`
	AvgConfidence     float64 `json:"avg_confidence"`
	SampleCount       int     `json:"sample_count"`
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Message    string `json:"error"`
	Detail     string `json:"detail,omitempty"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("advisor: %s (%d): %s", e.Message, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("advisor: %s (%d)", e.Message, e.StatusCode)
}

// Analyze submits a support message for analysis.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	var resp AnalyzeResponse
	if err := c.post(ctx, "/v1/analyze", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stats fetches the service's rolling request counters.
func (c *Client) Stats(ctx context.Context) (*StatsResponse, error) {
	var resp StatsResponse
	if err := c.get(ctx, "/v1/stats", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health checks the service health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.get(ctx, "/health", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil {
			apiErr.Message = resp.Status
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
