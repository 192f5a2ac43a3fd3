// Package api defines wire-format types and converters for the IPC and HTTP
// API layer. It translates internal orchestrator models into transport-friendly
// DTOs that CLI and HTTP consumers can render without coupling to internal
// types.
//
// # Key Types
//
// WorkflowSummary: transport representation of a workflow with state history,
// retry counters, and failure details.
//
// StatsReport: orchestrator counters plus bus and deadline statistics.
//
// DaemonStatus: aggregated daemon runtime information including file paths.
//
// AuditEntry: one message-bus audit event in string form.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers. Internal
// enums (workflow.State, workflow.Urgency, bus.Channel) are exposed as
// lowercase strings with title-cased display variants for terminal output.
// Timestamps use RFC3339 with milliseconds. Archived workflow context is
// passed through as json.RawMessage to avoid double-encoding.
package api
