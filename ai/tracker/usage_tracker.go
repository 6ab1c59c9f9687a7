// Package tracker records every chat call in the ai_model_usage table.
package tracker

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/teranos/finkg/errors"
	"github.com/teranos/finkg/logger"
)

// ModelUsage is one row of ai_model_usage
type ModelUsage struct {
	ID                int        `json:"id" db:"id"`
	OperationType     string     `json:"operation_type" db:"operation_type"`
	EntityType        string     `json:"entity_type" db:"entity_type"`
	EntityID          string     `json:"entity_id" db:"entity_id"`
	ModelName         string     `json:"model_name" db:"model_name"`
	ModelProvider     string     `json:"model_provider" db:"model_provider"`
	ModelConfig       *string    `json:"model_config,omitempty" db:"model_config"`
	RequestTimestamp  time.Time  `json:"request_timestamp" db:"request_timestamp"`
	ResponseTimestamp *time.Time `json:"response_timestamp,omitempty" db:"response_timestamp"`
	TokensUsed        *int       `json:"tokens_used,omitempty" db:"tokens_used"`
	Cost              *float64   `json:"cost,omitempty" db:"cost"`
	Success           bool       `json:"success" db:"success"`
	ErrorMessage      *string    `json:"error_message,omitempty" db:"error_message"`
	Metadata          *string    `json:"metadata,omitempty" db:"metadata"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
}

// ModelConfig is serialized into ModelUsage.ModelConfig
type ModelConfig struct {
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	JSONMode    bool     `json:"json_mode,omitempty"`
}

// UsageMetadata is serialized into ModelUsage.Metadata
type UsageMetadata struct {
	Attempts         int `json:"attempts,omitempty"`
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	InputLength      int `json:"input_length,omitempty"`
	OutputLength     int `json:"output_length,omitempty"`
}

// UsageTracker writes and aggregates ai_model_usage rows
type UsageTracker struct {
	db *sql.DB
}

// NewUsageTracker creates a tracker over a migrated database
func NewUsageTracker(db *sql.DB) *UsageTracker {
	return &UsageTracker{db: db}
}

// TrackUsage inserts one usage row
func (t *UsageTracker) TrackUsage(ctx context.Context, usage *ModelUsage) error {
	const query = `
		INSERT INTO ai_model_usage (
			operation_type, entity_type, entity_id, model_name, model_provider,
			model_config, request_timestamp, response_timestamp, tokens_used,
			cost, success, error_message, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := t.db.ExecContext(ctx, query,
		usage.OperationType, usage.EntityType, usage.EntityID,
		usage.ModelName, usage.ModelProvider, usage.ModelConfig,
		usage.RequestTimestamp.UTC(), utcPtr(usage.ResponseTimestamp), usage.TokensUsed,
		usage.Cost, usage.Success, usage.ErrorMessage, usage.Metadata,
	)
	if err != nil {
		return errors.Wrap(err, "insert ai_model_usage")
	}
	return nil
}

// Call summarizes one chat call for Record
type Call struct {
	Provider         string
	Model            string
	Temperature      *float64
	MaxTokens        *int
	JSONMode         bool
	Started          time.Time
	Attempts         int
	PromptTokens     int
	CompletionTokens int
	Cost             *float64
	InputLength      int
	OutputLength     int
	Err              error
}

// Record turns a finished call into a usage row. The workflow name and trace
// id carried by ctx become the operation and entity. A nil tracker is a no-op.
func (t *UsageTracker) Record(ctx context.Context, call Call) error {
	if t == nil {
		return nil
	}

	finished := time.Now()
	usage := &ModelUsage{
		OperationType:     logger.ScenarioFromContext(ctx),
		ModelName:         call.Model,
		ModelProvider:     call.Provider,
		ModelConfig:       NewModelConfig(ModelConfig{Temperature: call.Temperature, MaxTokens: call.MaxTokens, JSONMode: call.JSONMode}),
		RequestTimestamp:  call.Started,
		ResponseTimestamp: &finished,
		Success:           call.Err == nil,
		Metadata: NewUsageMetadata(UsageMetadata{
			Attempts:         call.Attempts,
			PromptTokens:     call.PromptTokens,
			CompletionTokens: call.CompletionTokens,
			InputLength:      call.InputLength,
			OutputLength:     call.OutputLength,
		}),
	}
	if id := logger.TraceIDFromContext(ctx); id != "" {
		usage.EntityType = "trace"
		usage.EntityID = id
	}
	if call.Err != nil {
		msg := call.Err.Error()
		usage.ErrorMessage = &msg
	} else {
		tokens := call.PromptTokens + call.CompletionTokens
		usage.TokensUsed = &tokens
		usage.Cost = call.Cost
	}

	// the call itself may have been cancelled; the row should still land
	return t.TrackUsage(context.WithoutCancel(ctx), usage)
}

// UsageStats represents aggregated usage statistics
type UsageStats struct {
	TotalRequests      int     `json:"total_requests" yaml:"total_requests"`
	SuccessfulRequests int     `json:"successful_requests" yaml:"successful_requests"`
	SuccessRate        float64 `json:"success_rate" yaml:"success_rate"`
	TotalTokens        int     `json:"total_tokens" yaml:"total_tokens"`
	TotalCost          float64 `json:"total_cost" yaml:"total_cost"`
	UniqueModels       int     `json:"unique_models" yaml:"unique_models"`
}

// GetUsageStats aggregates every row requested at or after since
func (t *UsageTracker) GetUsageStats(ctx context.Context, since time.Time) (*UsageStats, error) {
	const query = `
		SELECT
			COUNT(*),
			COUNT(CASE WHEN success = 1 THEN 1 END),
			COALESCE(SUM(COALESCE(tokens_used, 0)), 0),
			COALESCE(SUM(COALESCE(cost, 0)), 0),
			COUNT(DISTINCT model_name)
		FROM ai_model_usage
		WHERE request_timestamp >= ?`

	var stats UsageStats
	err := t.db.QueryRowContext(ctx, query, since.UTC()).Scan(
		&stats.TotalRequests, &stats.SuccessfulRequests,
		&stats.TotalTokens, &stats.TotalCost, &stats.UniqueModels,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query usage stats")
	}

	if stats.TotalRequests > 0 {
		stats.SuccessRate = float64(stats.SuccessfulRequests) / float64(stats.TotalRequests)
	}
	return &stats, nil
}

// ModelBreakdown represents usage statistics for a specific model
type ModelBreakdown struct {
	ModelName         string   `json:"model_name" yaml:"model_name"`
	ModelProvider     string   `json:"model_provider" yaml:"model_provider"`
	RequestCount      int      `json:"request_count" yaml:"request_count"`
	TotalTokens       int      `json:"total_tokens" yaml:"total_tokens"`
	TotalCost         float64  `json:"total_cost" yaml:"total_cost"`
	AvgResponseTimeMs *float64 `json:"avg_response_time_ms,omitempty" yaml:"avg_response_time_ms,omitempty"`
}

// GetModelBreakdown groups successful calls since the given time by model,
// most expensive first.
func (t *UsageTracker) GetModelBreakdown(ctx context.Context, since time.Time) ([]ModelBreakdown, error) {
	const query = `
		SELECT
			model_name,
			model_provider,
			COUNT(*) AS request_count,
			SUM(COALESCE(tokens_used, 0)) AS total_tokens,
			SUM(COALESCE(cost, 0)) AS total_cost,
			AVG(CASE WHEN response_timestamp IS NOT NULL THEN
				(julianday(response_timestamp) - julianday(request_timestamp)) * 86400000
				ELSE NULL END) AS avg_response_time_ms
		FROM ai_model_usage
		WHERE request_timestamp >= ? AND success = 1
		GROUP BY model_name, model_provider
		ORDER BY total_cost DESC, model_name`

	rows, err := t.db.QueryContext(ctx, query, since.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "query model breakdown")
	}
	defer rows.Close()

	var breakdown []ModelBreakdown
	for rows.Next() {
		var mb ModelBreakdown
		if err := rows.Scan(&mb.ModelName, &mb.ModelProvider, &mb.RequestCount,
			&mb.TotalTokens, &mb.TotalCost, &mb.AvgResponseTimeMs); err != nil {
			return nil, errors.Wrap(err, "scan model breakdown")
		}
		breakdown = append(breakdown, mb)
	}
	return breakdown, errors.Wrap(rows.Err(), "iterate model breakdown")
}

// NewModelConfig serializes cfg, or returns nil when it carries nothing
func NewModelConfig(cfg ModelConfig) *string {
	if cfg.Temperature == nil && cfg.MaxTokens == nil && !cfg.JSONMode {
		return nil
	}
	return marshal(cfg)
}

// NewUsageMetadata serializes metadata
func NewUsageMetadata(metadata UsageMetadata) *string {
	return marshal(metadata)
}

func marshal(v interface{}) *string {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	s := string(data)
	return &s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
