package storage

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var procedureCols = []string{
	"id", "title", "description", "overview", "device_compatibility",
	"problem_categories", "diagnostic_tags", "difficulty_level", "estimated_time_minutes",
	"tools_required", "parts_required", "quality_score", "success_rate", "view_count",
	"status", "created_at", "updated_at",
}

func procedureRow(id uuid.UUID, title string, withRank bool, rank float64) *sqlmock.Rows {
	now := time.Now()
	vals := []driver.Value{
		id, title, "description text", "overview text",
		[]byte(`{"brands":["apple"],"models":["iphone 14"],"types":["phone"]}`),
		"{screen_damage}", "{cracked_screen}", 3, 45,
		"{screwdriver,spudger}", "{replacement screen}", 4.5, 92.0, 120,
		"published", now, now,
	}
	cols := procedureCols
	if withRank {
		cols = append(append([]string{}, procedureCols...), "rank")
		vals = append(vals, rank)
	}
	return sqlmock.NewRows(cols).AddRow(vals...)
}

func newMock(t *testing.T) (*ProcedureRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewProcedureRepository(db), mock
}

func TestSearchExact(t *testing.T) {
	repo, mock := newMock(t)
	id := uuid.New()

	mock.ExpectQuery(`FROM repair_procedures`).
		WithArgs("iphone 14 cracked screen", "apple", "screen_damage", "cracked_screen", 10).
		WillReturnRows(procedureRow(id, "iPhone 14 screen replacement", true, 0.73))

	procs, err := repo.SearchExact(context.Background(), "apple", ProblemScreenDamage, "cracked_screen", "iphone 14 cracked screen", 10)
	require.NoError(t, err)
	require.Len(t, procs, 1)

	assert.Equal(t, id, procs[0].ID)
	assert.InDelta(t, 0.73, procs[0].SearchRank, 0.001)
	assert.Equal(t, []string{"iphone 14"}, []string(procs[0].DeviceCompatibility.Models))
	assert.Equal(t, []string{"screen_damage"}, []string(procs[0].ProblemCategories))
	assert.Contains(t, []string(procs[0].ToolsRequired), "screwdriver")
	assert.True(t, procs[0].QualityScore.Valid)
	assert.InDelta(t, 4.5, procs[0].QualityScore.Float64, 0.001)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchFuzzy(t *testing.T) {
	repo, mock := newMock(t)
	id := uuid.New()

	mock.ExpectQuery(`FROM repair_procedures`).
		WithArgs("screen cracked", 15).
		WillReturnRows(procedureRow(id, "Generic screen repair", true, 0.41))

	procs, err := repo.SearchFuzzy(context.Background(), "screen cracked", 15)
	require.NoError(t, err)
	require.Len(t, procs, 1)
	assert.InDelta(t, 0.41, procs[0].SearchRank, 0.001)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByDeviceType(t *testing.T) {
	repo, mock := newMock(t)
	id := uuid.New()

	mock.ExpectQuery(`ORDER BY quality_score DESC NULLS LAST, view_count DESC`).
		WithArgs("phone", 5).
		WillReturnRows(procedureRow(id, "Phone battery basics", false, 0))

	procs, err := repo.ListByDeviceType(context.Background(), "phone", 5)
	require.NoError(t, err)
	require.Len(t, procs, 1)
	assert.Zero(t, procs[0].SearchRank)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_RetriesOnceAfterReconnect(t *testing.T) {
	repo, mock := newMock(t)
	id := uuid.New()

	mock.ExpectQuery(`FROM repair_procedures`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectPing()
	mock.ExpectQuery(`FROM repair_procedures`).
		WillReturnRows(procedureRow(id, "Retry success", false, 0))

	procs, err := repo.ListByDeviceType(context.Background(), "phone", 5)
	require.NoError(t, err)
	assert.Len(t, procs, 1)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_FailsWhenReconnectFails(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`FROM repair_procedures`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectPing().WillReturnError(errors.New("still down"))

	_, err := repo.ListByDeviceType(context.Background(), "phone", 5)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Contains(t, err.Error(), "reconnect failed")
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock := newMock(t)
	id := uuid.New()

	mock.ExpectQuery(`WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(procedureCols))

	_, err := repo.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolvePublished(t *testing.T) {
	repo, mock := newMock(t)
	keep := uuid.New()

	mock.ExpectQuery(`status = 'published' AND id = ANY`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(keep))

	resolved, err := repo.ResolvePublished(context.Background(), []string{keep.String(), uuid.NewString()})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{keep}, resolved)
}

func TestStepsForProcedure(t *testing.T) {
	repo, mock := newMock(t)
	procID := uuid.New()

	rows := sqlmock.NewRows([]string{"id", "procedure_id", "step_number", "title", "instruction", "caution_note"}).
		AddRow(uuid.New(), procID, 1, "Power off", "Hold the side button.", "").
		AddRow(uuid.New(), procID, 2, "Remove screws", "Use the pentalobe driver.", "Screws strip easily")

	mock.ExpectQuery(`FROM procedure_steps`).
		WithArgs(procID).
		WillReturnRows(rows)

	steps, err := repo.StepsForProcedure(context.Background(), procID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, 1, steps[0].StepNumber)
	assert.Equal(t, "Screws strip easily", steps[1].CautionNote)
}

func TestFeedbackForProcedures(t *testing.T) {
	repo, mock := newMock(t)
	procID := uuid.New()

	rows := sqlmock.NewRows([]string{"procedure_id", "avg", "count", "success"}).
		AddRow(procID, 4.3, 27, 24)

	mock.ExpectQuery(`FROM procedure_feedback`).
		WillReturnRows(rows)

	fb, err := repo.FeedbackForProcedures(context.Background(), []uuid.UUID{procID})
	require.NoError(t, err)
	require.Contains(t, fb, procID)
	assert.InDelta(t, 4.3, fb[procID].AverageRating, 0.001)
	assert.Equal(t, 27, fb[procID].FeedbackCount)
}

func TestFeedbackForProcedures_EmptyInput(t *testing.T) {
	repo, _ := newMock(t)

	fb, err := repo.FeedbackForProcedures(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, fb)
}

func TestDiagnosticRulesForDevice(t *testing.T) {
	repo, mock := newMock(t)
	ruleID := uuid.New()

	rows := sqlmock.NewRows([]string{
		"id", "device_type", "problem_category", "symptom_keywords", "question",
		"procedure_ids", "confidence", "success_rate", "priority",
	}).AddRow(ruleID, "phone", "screen_damage", "{cracked,shattered}", "Is the display glass visibly cracked?", "{}", 0.85, 91.0, 10)

	mock.ExpectQuery(`FROM diagnostic_rules`).
		WithArgs("phone", 5).
		WillReturnRows(rows)

	rules, err := repo.DiagnosticRulesForDevice(context.Background(), "phone", 5)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, ProblemScreenDamage, rules[0].ProblemCategory)
	assert.Contains(t, []string(rules[0].SymptomKeywords), "cracked")
}

func TestInteractionRepository_Record(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewInteractionRepository(db)

	mock.ExpectExec(`INSERT INTO interaction_events`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ev := &InteractionEvent{
		EventType:      "analyze",
		SessionID:      "sess-1",
		Query:          "my screen is cracked",
		DeviceString:   "apple iphone 14",
		ProblemString:  "screen_damage",
		ResponseTimeMS: 42,
		ResultCount:    3,
	}
	require.NoError(t, repo.Record(context.Background(), ev))

	assert.NotEqual(t, uuid.Nil, ev.ID)
	assert.False(t, ev.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
