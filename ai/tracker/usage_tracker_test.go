package tracker

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/finkg/errors"
	testutil "github.com/teranos/finkg/internal/testing"
	"github.com/teranos/finkg/logger"
)

func ptr[T any](v T) *T { return &v }

func TestTrackUsage(t *testing.T) {
	db := testutil.CreateTestDB(t)
	tr := NewUsageTracker(db)
	ctx := context.Background()

	now := time.Now()
	done := now.Add(2 * time.Second)
	usage := &ModelUsage{
		OperationType:     "compliance",
		EntityType:        "trace",
		EntityID:          "abc",
		ModelName:         "openai/gpt-4o-mini",
		ModelProvider:     "openrouter",
		ModelConfig:       NewModelConfig(ModelConfig{Temperature: ptr(0.0), MaxTokens: ptr(1000)}),
		RequestTimestamp:  now,
		ResponseTimestamp: &done,
		TokensUsed:        ptr(150),
		Cost:              ptr(0.05),
		Success:           true,
	}
	require.NoError(t, tr.TrackUsage(ctx, usage))

	var (
		model, provider string
		tokens          int
		cost            float64
		success         bool
		config          sql.NullString
	)
	err := db.QueryRow(`SELECT model_name, model_provider, tokens_used, cost, success, model_config
		FROM ai_model_usage WHERE entity_id = ?`, "abc").
		Scan(&model, &provider, &tokens, &cost, &success, &config)
	require.NoError(t, err)

	assert.Equal(t, "openai/gpt-4o-mini", model)
	assert.Equal(t, "openrouter", provider)
	assert.Equal(t, 150, tokens)
	assert.InDelta(t, 0.05, cost, 1e-9)
	assert.True(t, success)
	require.True(t, config.Valid)
	assert.JSONEq(t, `{"temperature":0,"max_tokens":1000}`, config.String)
}

func TestRecord(t *testing.T) {
	db := testutil.CreateTestDB(t)
	tr := NewUsageTracker(db)

	ctx := logger.WithScenario(context.Background(), "summary")
	ctx = logger.WithTraceID(ctx, "trace-7")

	require.NoError(t, tr.Record(ctx, Call{
		Provider:         "anthropic",
		Model:            "claude-3-5-haiku-latest",
		Started:          time.Now().Add(-time.Second),
		Attempts:         2,
		PromptTokens:     100,
		CompletionTokens: 20,
		Cost:             ptr(0.001),
	}))
	require.NoError(t, tr.Record(ctx, Call{
		Provider: "anthropic",
		Model:    "claude-3-5-haiku-latest",
		Started:  time.Now(),
		Attempts: 3,
		Err:      errors.New("HTTP 503"),
	}))

	var (
		op, entityType, entityID string
		tokens                   sql.NullInt64
		errMsg                   sql.NullString
		meta                     string
	)
	err := db.QueryRow(`SELECT operation_type, entity_type, entity_id, tokens_used, error_message, metadata
		FROM ai_model_usage WHERE success = 0`).Scan(&op, &entityType, &entityID, &tokens, &errMsg, &meta)
	require.NoError(t, err)

	assert.Equal(t, "summary", op)
	assert.Equal(t, "trace", entityType)
	assert.Equal(t, "trace-7", entityID)
	assert.False(t, tokens.Valid)
	assert.Equal(t, "HTTP 503", errMsg.String)

	var md UsageMetadata
	require.NoError(t, json.Unmarshal([]byte(meta), &md))
	assert.Equal(t, 3, md.Attempts)

	stats, err := tr.GetUsageStats(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalRequests)
	assert.Equal(t, 1, stats.SuccessfulRequests)
	assert.Equal(t, 120, stats.TotalTokens)
	assert.InDelta(t, 0.5, stats.SuccessRate, 1e-9)
}

func TestRecordNilTracker(t *testing.T) {
	var tr *UsageTracker
	assert.NoError(t, tr.Record(context.Background(), Call{Model: "m"}))
}

func TestGetUsageStatsWindow(t *testing.T) {
	db := testutil.CreateTestDB(t)
	tr := NewUsageTracker(db)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now().Add(-time.Hour)
	for _, u := range []*ModelUsage{
		{ModelName: "a", ModelProvider: "openrouter", RequestTimestamp: old, TokensUsed: ptr(500), Cost: ptr(1.0), Success: true},
		{ModelName: "a", ModelProvider: "openrouter", RequestTimestamp: recent, TokensUsed: ptr(100), Cost: ptr(0.1), Success: true},
		{ModelName: "b", ModelProvider: "openai", RequestTimestamp: recent, TokensUsed: ptr(50), Cost: ptr(0.2), Success: true},
		{ModelName: "b", ModelProvider: "openai", RequestTimestamp: recent, Success: false},
	} {
		require.NoError(t, tr.TrackUsage(ctx, u))
	}

	stats, err := tr.GetUsageStats(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalRequests)
	assert.Equal(t, 2, stats.SuccessfulRequests)
	assert.Equal(t, 150, stats.TotalTokens)
	assert.InDelta(t, 0.3, stats.TotalCost, 1e-9)
	assert.Equal(t, 2, stats.UniqueModels)

	empty, err := tr.GetUsageStats(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, empty.TotalRequests)
	assert.Zero(t, empty.SuccessRate)
}

func TestGetModelBreakdown(t *testing.T) {
	db := testutil.CreateTestDB(t)
	tr := NewUsageTracker(db)
	ctx := context.Background()

	start := time.Now().Add(-time.Minute)
	end := start.Add(500 * time.Millisecond)
	require.NoError(t, tr.TrackUsage(ctx, &ModelUsage{ModelName: "cheap", ModelProvider: "openrouter",
		RequestTimestamp: start, ResponseTimestamp: &end, TokensUsed: ptr(10), Cost: ptr(0.01), Success: true}))
	require.NoError(t, tr.TrackUsage(ctx, &ModelUsage{ModelName: "pricey", ModelProvider: "anthropic",
		RequestTimestamp: start, ResponseTimestamp: &end, TokensUsed: ptr(10), Cost: ptr(1.0), Success: true}))
	require.NoError(t, tr.TrackUsage(ctx, &ModelUsage{ModelName: "failed", ModelProvider: "openai",
		RequestTimestamp: start, Success: false}))

	breakdown, err := tr.GetModelBreakdown(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, breakdown, 2)
	assert.Equal(t, "pricey", breakdown[0].ModelName)
	assert.Equal(t, "cheap", breakdown[1].ModelName)
	require.NotNil(t, breakdown[0].AvgResponseTimeMs)
	assert.InDelta(t, 500, *breakdown[0].AvgResponseTimeMs, 5)
}

func TestNewModelConfig(t *testing.T) {
	assert.Nil(t, NewModelConfig(ModelConfig{}))

	cfg := NewModelConfig(ModelConfig{MaxTokens: ptr(10), JSONMode: true})
	require.NotNil(t, cfg)
	assert.JSONEq(t, `{"max_tokens":10,"json_mode":true}`, *cfg)
}

func TestTrackUsage_Sqlmock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO ai_model_usage").
		WillReturnError(errors.New("disk I/O error"))

	tr := NewUsageTracker(db)
	err = tr.TrackUsage(context.Background(), &ModelUsage{ModelName: "m", ModelProvider: "p", RequestTimestamp: time.Now()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert ai_model_usage")
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUsageStats_Sqlmock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM ai_model_usage").
		WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c", "d", "e"}).AddRow(4, 3, 900, 0.42, 2))

	stats, err := NewUsageTracker(db).GetUsageStats(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalRequests)
	assert.InDelta(t, 0.75, stats.SuccessRate, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetModelBreakdown_Sqlmock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM ai_model_usage").
		WillReturnError(sql.ErrConnDone)

	_, err = NewUsageTracker(db).GetModelBreakdown(context.Background(), time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrConnDone))
	assert.NoError(t, mock.ExpectationsWereMet())
}
