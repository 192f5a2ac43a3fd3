package logging

import (
	"context"
	"log/slog"

	"manifold/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEntityID is the standardized structured logging key for tracked entity identifiers.
	FieldEntityID = "entity_id"
	// FieldStage is the standardized structured logging key for collaborator stage names.
	FieldStage = "stage"
	// FieldDuty is the standardized structured logging key for orchestrator duty names.
	FieldDuty = "duty"
	// FieldChannel is the standardized structured logging key for bus channel names.
	FieldChannel = "channel"
	// FieldMessageID is the standardized structured logging key for bus message identifiers.
	FieldMessageID = "message_id"
	// FieldMessageType is the standardized structured logging key for bus message type tags.
	FieldMessageType = "message_type"
	// FieldPriority is the standardized structured logging key for message priorities.
	FieldPriority = "priority"
	// FieldState is the standardized structured logging key for workflow states.
	FieldState = "state"
	// FieldCorrelationID is the standardized structured logging key for workflow correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType tags log lines with a machine-greppable event name.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the operator's next step after a failure.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.EntityIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldEntityID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if duty, ok := services.DutyFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldDuty, duty))
	}
	if cid, ok := services.CorrelationIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, cid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from
// the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
