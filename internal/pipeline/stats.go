package pipeline

import "sync"

// Rolling sample windows stay small: once a window hits maxSamples it is
// trimmed back to keepSamples, so averages track recent traffic.
const (
	maxSamples  = 100
	keepSamples = 50
)

// Stats tracks rolling request metrics for the stats endpoint.
type Stats struct {
	mu            sync.Mutex
	totalRequests int64
	fallbacks     int64
	responseMS    []float64
	confidences   []float64
}

// NewStats creates an empty counter set.
func NewStats() *Stats {
	return &Stats{}
}

// RecordRequest records one successfully analyzed request.
func (s *Stats) RecordRequest(elapsedMS, confidence float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalRequests++
	s.responseMS = addSample(s.responseMS, elapsedMS)
	s.confidences = addSample(s.confidences, confidence)
}

// RecordFallback records a request that degraded to the fallback payload.
func (s *Stats) RecordFallback(elapsedMS float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalRequests++
	s.fallbacks++
	s.responseMS = addSample(s.responseMS, elapsedMS)
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	TotalRequests     int64   `json:"total_requests"`
	Fallbacks         int64   `json:"fallbacks"`
	AvgResponseTimeMS float64 `json:"avg_response_time_ms"`
	AvgConfidence     float64 `json:"avg_confidence"`
	SampleCount       int     `json:"sample_count"`
}

// Snapshot returns the current counters and rolling averages.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		TotalRequests:     s.totalRequests,
		Fallbacks:         s.fallbacks,
		AvgResponseTimeMS: mean(s.responseMS),
		AvgConfidence:     mean(s.confidences),
		SampleCount:       len(s.responseMS),
	}
}

func addSample(window []float64, v float64) []float64 {
	window = append(window, v)
	if len(window) >= maxSamples {
		window = append(window[:0], window[len(window)-keepSamples:]...)
	}
	return window
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
