package advisor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/analyze", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req AnalyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "my iphone screen is cracked", req.Message)
		require.NotNil(t, req.UserContext)
		assert.Equal(t, "beginner", req.UserContext.SkillLevel)

		json.NewEncoder(w).Encode(AnalyzeResponse{
			Device:  Device{Brand: "apple", Model: "iPhone 14", Confidence: 0.9, Source: "text_pattern"},
			Problem: Problem{Category: "screen_damage", Severity: "high", Confidence: 0.85},
			Answer:  "It looks like your apple iPhone 14 has screen damage.",
			Confidence: Confidence{
				Overall: 0.82,
				Level:   "high",
			},
		})
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL})

	resp, err := client.Analyze(context.Background(), AnalyzeRequest{
		Message:     "my iphone screen is cracked",
		UserContext: &UserContext{SkillLevel: "beginner"},
	})

	require.NoError(t, err)
	assert.Equal(t, "apple", resp.Device.Brand)
	assert.Equal(t, "screen_damage", resp.Problem.Category)
	assert.Equal(t, "high", resp.Confidence.Level)
}

func TestAnalyze_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "message is required"})
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL})

	_, err := client.Analyze(context.Background(), AnalyzeRequest{})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Error(), "message is required")
}

func TestStatsAndHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/stats":
			json.NewEncoder(w).Encode(StatsResponse{TotalRequests: 12, AvgConfidence: 0.7})
		case "/health":
			json.NewEncoder(w).Encode(HealthResponse{Status: "healthy", Service: "repair-advisor"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL})

	stats, err := client.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), stats.TotalRequests)

	health, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(ClientConfig{})
	assert.Equal(t, "http://localhost:8090", client.baseURL)
	assert.NotNil(t, client.http)
}
