package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Common errors
var (
	ErrNotFound = errors.New("record not found")
	// ErrStoreUnavailable marks a query that failed and could not be
	// recovered by a reconnect.
	ErrStoreUnavailable = errors.New("knowledge store unavailable")
)

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	PingContext(ctx context.Context) error
}

const procedureColumns = `
	id, title, description, overview, device_compatibility,
	problem_categories, diagnostic_tags, difficulty_level, estimated_time_minutes,
	tools_required, parts_required, quality_score, success_rate, view_count,
	status, created_at, updated_at`

// ProcedureRepository handles repair procedure queries against Postgres.
type ProcedureRepository struct {
	db DB
}

// NewProcedureRepository creates a new procedure repository.
func NewProcedureRepository(db DB) *ProcedureRepository {
	return &ProcedureRepository{db: db}
}

// query runs a SELECT with a single reconnect retry. Transient connection
// drops show up as a failed query; one ping plus re-query recovers them
// without surfacing an error to the caller.
func (r *ProcedureRepository) query(ctx context.Context, q string, args ...interface{}) (*sql.Rows, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err == nil {
		return rows, nil
	}

	if pingErr := r.db.PingContext(ctx); pingErr != nil {
		return nil, fmt.Errorf("%w: query failed and reconnect failed: %v", ErrStoreUnavailable, err)
	}

	rows, err = r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed after reconnect: %w", err)
	}
	return rows, nil
}

// SearchExact runs a full-text search over published procedures compatible
// with the device brand and matching the problem category or issue tag.
// Results carry their ts_rank score in SearchRank.
func (r *ProcedureRepository) SearchExact(ctx context.Context, brand string, category ProblemCategory, issueTag string, searchTerms string, limit int) ([]*Procedure, error) {
	query := `
		SELECT ` + procedureColumns + `,
			ts_rank(search_vector, plainto_tsquery('english', $1)) AS rank
		FROM repair_procedures
		WHERE status = 'published'
			AND (device_compatibility->'brands' ? $2 OR device_compatibility->'brands' ? '*')
			AND ($3 = ANY(problem_categories) OR $4 = ANY(diagnostic_tags))
			AND search_vector @@ plainto_tsquery('english', $1)
		ORDER BY rank DESC, quality_score DESC NULLS LAST
		LIMIT $5
	`
	rows, err := r.query(ctx, query, searchTerms, brand, string(category), issueTag, limit)
	if err != nil {
		return nil, fmt.Errorf("exact search: %w", err)
	}
	defer rows.Close()

	return scanProceduresWithRank(rows)
}

// SearchFuzzy runs a full-text search over all published procedures without
// device or category filters.
func (r *ProcedureRepository) SearchFuzzy(ctx context.Context, searchTerms string, limit int) ([]*Procedure, error) {
	query := `
		SELECT ` + procedureColumns + `,
			ts_rank(search_vector, plainto_tsquery('english', $1)) AS rank
		FROM repair_procedures
		WHERE status = 'published'
			AND search_vector @@ plainto_tsquery('english', $1)
		ORDER BY rank DESC, quality_score DESC NULLS LAST
		LIMIT $2
	`
	rows, err := r.query(ctx, query, searchTerms, limit)
	if err != nil {
		return nil, fmt.Errorf("fuzzy search: %w", err)
	}
	defer rows.Close()

	return scanProceduresWithRank(rows)
}

// ListByDeviceType returns published procedures whose compatible types
// include the given device type, best quality and most viewed first.
func (r *ProcedureRepository) ListByDeviceType(ctx context.Context, deviceType string, limit int) ([]*Procedure, error) {
	query := `
		SELECT ` + procedureColumns + `
		FROM repair_procedures
		WHERE status = 'published'
			AND (device_compatibility->'types' ? $1 OR device_compatibility->'types' ? '*')
		ORDER BY quality_score DESC NULLS LAST, view_count DESC
		LIMIT $2
	`
	rows, err := r.query(ctx, query, deviceType, limit)
	if err != nil {
		return nil, fmt.Errorf("list by device type: %w", err)
	}
	defer rows.Close()

	return scanProcedures(rows)
}

// GetByID retrieves a single procedure.
func (r *ProcedureRepository) GetByID(ctx context.Context, id uuid.UUID) (*Procedure, error) {
	query := `
		SELECT ` + procedureColumns + `
		FROM repair_procedures
		WHERE id = $1
	`
	p := &Procedure{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(scanDest(p)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// ResolvePublished filters the given procedure IDs down to the ones that
// exist and are published.
func (r *ProcedureRepository) ResolvePublished(ctx context.Context, ids []string) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id FROM repair_procedures
		WHERE status = 'published' AND id = ANY($1)
	`
	rows, err := r.query(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("resolve published: %w", err)
	}
	defer rows.Close()

	var resolved []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		resolved = append(resolved, id)
	}
	return resolved, rows.Err()
}

// StepsForProcedure returns the ordered steps of a procedure.
func (r *ProcedureRepository) StepsForProcedure(ctx context.Context, procedureID uuid.UUID) ([]*ProcedureStep, error) {
	query := `
		SELECT id, procedure_id, step_number, title, instruction, COALESCE(caution_note, '')
		FROM procedure_steps
		WHERE procedure_id = $1
		ORDER BY step_number
	`
	rows, err := r.query(ctx, query, procedureID)
	if err != nil {
		return nil, fmt.Errorf("steps for procedure: %w", err)
	}
	defer rows.Close()

	var steps []*ProcedureStep
	for rows.Next() {
		s := &ProcedureStep{}
		if err := rows.Scan(&s.ID, &s.ProcedureID, &s.StepNumber, &s.Title, &s.Instruction, &s.CautionNote); err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

// FeedbackForProcedures returns aggregated feedback keyed by procedure ID.
// Procedures with no feedback have no entry.
func (r *ProcedureRepository) FeedbackForProcedures(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*FeedbackSummary, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]*FeedbackSummary{}, nil
	}

	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}

	query := `
		SELECT procedure_id, AVG(rating), COUNT(*),
			COUNT(*) FILTER (WHERE repair_succeeded)
		FROM procedure_feedback
		WHERE procedure_id = ANY($1)
		GROUP BY procedure_id
	`
	rows, err := r.query(ctx, query, pq.Array(strIDs))
	if err != nil {
		return nil, fmt.Errorf("feedback for procedures: %w", err)
	}
	defer rows.Close()

	result := make(map[uuid.UUID]*FeedbackSummary)
	for rows.Next() {
		f := &FeedbackSummary{}
		if err := rows.Scan(&f.ProcedureID, &f.AverageRating, &f.FeedbackCount, &f.SuccessCount); err != nil {
			return nil, err
		}
		result[f.ProcedureID] = f
	}
	return result, rows.Err()
}

// DiagnosticRulesForDevice returns diagnostic rules for a device type,
// highest priority then success rate first.
func (r *ProcedureRepository) DiagnosticRulesForDevice(ctx context.Context, deviceType string, limit int) ([]*DiagnosticRule, error) {
	query := `
		SELECT id, device_type, problem_category, symptom_keywords, question,
			procedure_ids, confidence, success_rate, priority
		FROM diagnostic_rules
		WHERE device_type = $1 OR device_type = '*'
		ORDER BY priority DESC, success_rate DESC
		LIMIT $2
	`
	rows, err := r.query(ctx, query, deviceType, limit)
	if err != nil {
		return nil, fmt.Errorf("diagnostic rules: %w", err)
	}
	defer rows.Close()

	var rules []*DiagnosticRule
	for rows.Next() {
		dr := &DiagnosticRule{}
		if err := rows.Scan(
			&dr.ID, &dr.DeviceType, &dr.ProblemCategory, &dr.SymptomKeywords,
			&dr.Question, &dr.ProcedureIDs, &dr.Confidence, &dr.SuccessRate, &dr.Priority,
		); err != nil {
			return nil, err
		}
		rules = append(rules, dr)
	}
	return rules, rows.Err()
}

// IncrementViewCount bumps a procedure's view counter.
func (r *ProcedureRepository) IncrementViewCount(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE repair_procedures SET view_count = view_count + 1 WHERE id = $1`, id)
	return err
}

// InteractionRepository persists analyzed queries for analytics.
type InteractionRepository struct {
	db DB
}

// NewInteractionRepository creates a new interaction repository.
func NewInteractionRepository(db DB) *InteractionRepository {
	return &InteractionRepository{db: db}
}

// Record inserts an interaction event.
func (r *InteractionRepository) Record(ctx context.Context, ev *InteractionEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO interaction_events (id, event_type, session_id, query,
			device_string, problem_string, response_time_ms, result_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		ev.ID, ev.EventType, ev.SessionID, ev.Query,
		ev.DeviceString, ev.ProblemString, ev.ResponseTimeMS, ev.ResultCount, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record interaction: %w", err)
	}
	return nil
}

// EventCounts returns interaction counts per event type since the given time.
func (r *InteractionRepository) EventCounts(ctx context.Context, since time.Time) (map[string]int, error) {
	query := `
		SELECT event_type, COUNT(*)
		FROM interaction_events
		WHERE created_at >= $1
		GROUP BY event_type
	`
	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("event counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var et string
		var n int
		if err := rows.Scan(&et, &n); err != nil {
			return nil, err
		}
		counts[et] = n
	}
	return counts, rows.Err()
}

func scanDest(p *Procedure) []interface{} {
	return []interface{}{
		&p.ID, &p.Title, &p.Description, &p.Overview, &p.DeviceCompatibility,
		&p.ProblemCategories, &p.DiagnosticTags, &p.DifficultyLevel, &p.EstimatedTimeMinutes,
		&p.ToolsRequired, &p.PartsRequired, &p.QualityScore, &p.SuccessRate, &p.ViewCount,
		&p.Status, &p.CreatedAt, &p.UpdatedAt,
	}
}

func scanProcedures(rows *sql.Rows) ([]*Procedure, error) {
	var procedures []*Procedure
	for rows.Next() {
		p := &Procedure{}
		if err := rows.Scan(scanDest(p)...); err != nil {
			return nil, err
		}
		procedures = append(procedures, p)
	}
	return procedures, rows.Err()
}

func scanProceduresWithRank(rows *sql.Rows) ([]*Procedure, error) {
	var procedures []*Procedure
	for rows.Next() {
		p := &Procedure{}
		dest := append(scanDest(p), &p.SearchRank)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		procedures = append(procedures, p)
	}
	return procedures, rows.Err()
}
