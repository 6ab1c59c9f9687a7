package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across finkg.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldTraceID   = "trace_id"
	FieldScenario  = "scenario"
	FieldComponent = "component"

	// Graph
	FieldClientID = "client_id"
	FieldTxID     = "tx_id"
	FieldRuleID   = "rule_id"
	FieldNode     = "node"
	FieldTriples  = "triples"

	// Ingestion
	FieldFile    = "file"
	FieldRow     = "row"
	FieldColumn  = "column"
	FieldRows    = "rows"
	FieldSkipped = "skipped"

	// Reasoning
	FieldProvider = "provider"
	FieldModel    = "model"
	FieldAttempt  = "attempt"
	FieldTokens   = "tokens"

	// Timing
	FieldDurationMS = "duration_ms"

	// Errors
	FieldError = "error"
)

type contextKey string

const (
	traceIDKey  contextKey = "logger_trace_id"
	scenarioKey contextKey = "logger_scenario"
)

// WithTraceID adds a trace record ID to the context for logging
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// WithScenario adds the workflow name to the context for logging
func WithScenario(ctx context.Context, scenario string) context.Context {
	return context.WithValue(ctx, scenarioKey, scenario)
}

// FieldsFromContext extracts logging fields from context.
// Returns key-value pairs suitable for use with Infow/Errorw/etc.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	if traceID, ok := ctx.Value(traceIDKey).(string); ok && traceID != "" {
		fields = append(fields, FieldTraceID, traceID)
	}
	if scenario, ok := ctx.Value(scenarioKey).(string); ok && scenario != "" {
		fields = append(fields, FieldScenario, scenario)
	}

	return fields
}

// FromContext returns base enriched with fields carried by ctx.
// A nil base falls back to the global logger.
func FromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if base == nil {
		base = Logger
	}
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// ScenarioFromContext returns the workflow name set by WithScenario, if any
func ScenarioFromContext(ctx context.Context) string {
	s, _ := ctx.Value(scenarioKey).(string)
	return s
}

// TraceIDFromContext returns the trace record ID set by WithTraceID, if any
func TraceIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(traceIDKey).(string)
	return s
}
