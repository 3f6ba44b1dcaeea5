// Package storage provides database models and repositories for the repair
// knowledge store.
package storage

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ProcedureStatus represents the publication status of a repair procedure.
type ProcedureStatus string

const (
	ProcedureStatusDraft     ProcedureStatus = "draft"
	ProcedureStatusPublished ProcedureStatus = "published"
	ProcedureStatusArchived  ProcedureStatus = "archived"
)

// ProblemCategory represents the supported problem categories.
type ProblemCategory string

const (
	ProblemScreenDamage ProblemCategory = "screen_damage"
	ProblemBattery      ProblemCategory = "battery_issues"
	ProblemWaterDamage  ProblemCategory = "water_damage"
	ProblemAudio        ProblemCategory = "audio_issues"
	ProblemPerformance  ProblemCategory = "performance_issues"
	ProblemConnectivity ProblemCategory = "connectivity_issues"
	ProblemCharging     ProblemCategory = "charging_problems"
	ProblemGeneral      ProblemCategory = "general_inquiry"
)

// Severity represents how urgent a reported problem is.
type Severity string

const (
	SeverityLow     Severity = "low"
	SeverityMedium  Severity = "medium"
	SeverityHigh    Severity = "high"
	SeverityUnknown Severity = "unknown"
)

// Intent represents what the user wants from the interaction.
type Intent string

const (
	IntentRepairRequest    Intent = "repair_request"
	IntentPriceInquiry     Intent = "price_inquiry"
	IntentTimeInquiry      Intent = "time_inquiry"
	IntentBookingRequest   Intent = "booking_request"
	IntentProblemDiagnosis Intent = "problem_diagnosis"
	IntentServiceInquiry   Intent = "service_inquiry"
	IntentGeneralInquiry   Intent = "general_inquiry"
)

// DeviceCompatibility lists the brands, models, and device types a procedure
// applies to. Stored as JSONB; historical rows use either a bare array of
// model names or an object with brand/model/type lists, so scanning accepts
// both. The wildcard "*" matches everything.
type DeviceCompatibility struct {
	Brands []string `json:"brands,omitempty"`
	Models []string `json:"models,omitempty"`
	Types  []string `json:"types,omitempty"`
}

// Scan implements sql.Scanner for the JSONB device_compatibility column.
func (d *DeviceCompatibility) Scan(src interface{}) error {
	if src == nil {
		*d = DeviceCompatibility{}
		return nil
	}

	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported device_compatibility type %T", src)
	}

	if len(data) == 0 {
		*d = DeviceCompatibility{}
		return nil
	}

	var obj struct {
		Brands []string `json:"brands"`
		Models []string `json:"models"`
		Types  []string `json:"types"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		*d = DeviceCompatibility{Brands: obj.Brands, Models: obj.Models, Types: obj.Types}
		return nil
	}

	// Legacy shape: a bare array of model names.
	var models []string
	if err := json.Unmarshal(data, &models); err == nil {
		*d = DeviceCompatibility{Models: models}
		return nil
	}

	// Malformed compatibility data degrades this one record to an empty
	// set rather than failing the whole result.
	*d = DeviceCompatibility{}
	return nil
}

// Value implements driver.Valuer.
func (d DeviceCompatibility) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// MatchesBrand reports whether the brand is listed, case insensitively.
// A "*" entry matches any brand.
func (d DeviceCompatibility) MatchesBrand(brand string) bool {
	brand = strings.ToLower(strings.TrimSpace(brand))
	for _, b := range d.Brands {
		if b == "*" {
			return true
		}
		if brand != "" && strings.ToLower(b) == brand {
			return true
		}
	}
	return false
}

// MatchesModel reports whether the model is listed, with substring
// containment accepted in either direction. A "*" entry matches any model.
func (d DeviceCompatibility) MatchesModel(model string) bool {
	model = strings.ToLower(strings.TrimSpace(model))
	for _, m := range d.Models {
		if m == "*" {
			return true
		}
		if model == "" {
			continue
		}
		lm := strings.ToLower(m)
		if strings.Contains(lm, model) || strings.Contains(model, lm) {
			return true
		}
	}
	return false
}

// MatchesType reports whether the device type is listed, case insensitively.
// A "*" entry matches any type.
func (d DeviceCompatibility) MatchesType(deviceType string) bool {
	deviceType = strings.ToLower(strings.TrimSpace(deviceType))
	for _, t := range d.Types {
		if t == "*" {
			return true
		}
		if deviceType != "" && strings.ToLower(t) == deviceType {
			return true
		}
	}
	return false
}

// Procedure is a repair procedure from the knowledge store.
type Procedure struct {
	ID                   uuid.UUID           `json:"id"`
	Title                string              `json:"title"`
	Description          string              `json:"description"`
	Overview             string              `json:"overview"`
	DeviceCompatibility  DeviceCompatibility `json:"device_compatibility"`
	ProblemCategories    pq.StringArray      `json:"problem_categories"`
	DiagnosticTags       pq.StringArray      `json:"diagnostic_tags"`
	DifficultyLevel      int                 `json:"difficulty_level"` // 1 (easy) to 5 (professional)
	EstimatedTimeMinutes int                 `json:"estimated_time_minutes"`
	ToolsRequired        pq.StringArray      `json:"tools_required"`
	PartsRequired        pq.StringArray      `json:"parts_required"`
	QualityScore         sql.NullFloat64     `json:"quality_score"` // 0-5, null until reviewed
	SuccessRate          sql.NullFloat64     `json:"success_rate"`  // 0-100
	ViewCount            int                 `json:"view_count"`
	Status               ProcedureStatus     `json:"status"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`

	// SearchRank is the ts_rank score from full-text retrieval. Zero for
	// rows fetched outside a text search.
	SearchRank float64 `json:"search_rank,omitempty"`
}

// HasCategory reports whether the procedure covers the given problem category.
func (p *Procedure) HasCategory(category ProblemCategory) bool {
	for _, c := range p.ProblemCategories {
		if ProblemCategory(c) == category {
			return true
		}
	}
	return false
}

// HasTag reports whether the procedure carries the given diagnostic tag.
func (p *Procedure) HasTag(tag string) bool {
	tag = strings.ToLower(tag)
	for _, t := range p.DiagnosticTags {
		if strings.ToLower(t) == tag {
			return true
		}
	}
	return false
}

// ProcedureStep is one ordered step of a repair procedure.
type ProcedureStep struct {
	ID          uuid.UUID `json:"id"`
	ProcedureID uuid.UUID `json:"procedure_id"`
	StepNumber  int       `json:"step_number"`
	Title       string    `json:"title"`
	Instruction string    `json:"instruction"`
	CautionNote string    `json:"caution_note,omitempty"`
}

// FeedbackSummary aggregates user feedback for a procedure.
type FeedbackSummary struct {
	ProcedureID   uuid.UUID `json:"procedure_id"`
	AverageRating float64   `json:"average_rating"` // 1-5
	FeedbackCount int       `json:"feedback_count"`
	SuccessCount  int       `json:"success_count"`
}

// DiagnosticRule maps symptom keywords to follow-up questions and suggested
// procedures for a device type.
type DiagnosticRule struct {
	ID              uuid.UUID       `json:"id"`
	DeviceType      string          `json:"device_type"`
	ProblemCategory ProblemCategory `json:"problem_category"`
	SymptomKeywords pq.StringArray  `json:"symptom_keywords"`
	Question        string          `json:"question"`
	ProcedureIDs    pq.StringArray  `json:"procedure_ids"`
	Confidence      float64         `json:"confidence"`
	SuccessRate     float64         `json:"success_rate"`
	Priority        int             `json:"priority"`
}

// InteractionEvent records one analyzed user query for analytics.
type InteractionEvent struct {
	ID              uuid.UUID `json:"id"`
	EventType       string    `json:"event_type"`
	SessionID       string    `json:"session_id"`
	Query           string    `json:"query"`
	DeviceString    string    `json:"device_string,omitempty"`
	ProblemString   string    `json:"problem_string,omitempty"`
	ResponseTimeMS  int64     `json:"response_time_ms"`
	ResultCount     int       `json:"result_count"`
	CreatedAt       time.Time `json:"created_at"`
}
