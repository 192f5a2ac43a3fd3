package services

import "context"

type contextKey string

const (
	entityIDKey      contextKey = "entity_id"
	stageKey         contextKey = "stage"
	dutyKey          contextKey = "duty"
	correlationIDKey contextKey = "correlation_id"
)

// WithEntityID annotates context with the tracked entity identifier.
func WithEntityID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, entityIDKey, id)
}

// EntityIDFromContext extracts the entity identifier if present.
func EntityIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(entityIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the collaborator stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stageKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithDuty annotates context with the orchestrator duty name
// (ingestion/results/sweep).
func WithDuty(ctx context.Context, duty string) context.Context {
	if duty == "" {
		return ctx
	}
	return context.WithValue(ctx, dutyKey, duty)
}

// DutyFromContext returns the duty name if present.
func DutyFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(dutyKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithCorrelationID annotates context with a workflow correlation identifier.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext extracts the correlation identifier if present.
func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(correlationIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
