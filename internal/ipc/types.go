package ipc

import "manifold/internal/api"

// WorkflowSummary mirrors the HTTP API workflow DTO for IPC callers.
type WorkflowSummary = api.WorkflowSummary

// StatsReport mirrors the HTTP API stats DTO for IPC callers.
type StatsReport = api.StatsReport

// AuditEntry mirrors the HTTP API audit DTO for IPC callers.
type AuditEntry = api.AuditEntry

// StartRequest starts orchestration inside a running daemon process.
type StartRequest struct{}

// StartResponse indicates whether orchestration was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest halts orchestration but leaves the daemon process alive.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// ShutdownRequest stops orchestration and terminates the daemon process.
type ShutdownRequest struct{}

// ShutdownResponse acknowledges that termination was scheduled.
type ShutdownResponse struct {
	ShuttingDown bool `json:"shutting_down"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon/orchestrator status information.
type StatusResponse struct {
	Running         bool           `json:"running"`
	PID             int            `json:"pid"`
	StartedAt       string         `json:"started_at,omitempty"`
	ArchivePath     string         `json:"archive_path"`
	LockPath        string         `json:"lock_path"`
	SocketPath      string         `json:"socket_path"`
	APIBind         string         `json:"api_bind,omitempty"`
	LiveWorkflows   int            `json:"live_workflows"`
	States          map[string]int `json:"states,omitempty"`
	ArchivedByState map[string]int `json:"archived_by_state,omitempty"`
}

// WorkflowsRequest lists workflows, optionally including archived ones.
type WorkflowsRequest struct {
	IncludeArchived bool `json:"include_archived"`
	Limit           int  `json:"limit"`
}

// WorkflowsResponse contains workflow summaries.
type WorkflowsResponse struct {
	Workflows []WorkflowSummary `json:"workflows"`
}

// DescribeRequest fetches a single workflow by entity id.
type DescribeRequest struct {
	EntityID string `json:"entity_id"`
}

// DescribeResponse contains one workflow, with archived context when the
// workflow has retired.
type DescribeResponse struct {
	Workflow WorkflowSummary `json:"workflow"`
}

// StatsRequest fetches orchestrator counters.
type StatsRequest struct{}

// StatsResponse contains orchestrator, bus, and deadline counters.
type StatsResponse struct {
	Stats StatsReport `json:"stats"`
}

// AuditRequest fetches recent bus audit entries.
type AuditRequest struct {
	Limit int `json:"limit"`
}

// AuditResponse contains bus audit entries, newest last.
type AuditResponse struct {
	Entries []AuditEntry `json:"entries"`
}

// FeedRequest injects one telemetry record.
type FeedRequest struct {
	EntityID  string             `json:"entity_id"`
	Timestamp string             `json:"timestamp,omitempty"`
	Readings  map[string]float64 `json:"readings,omitempty"`
}

// FeedResponse reports the workflow the record landed in.
type FeedResponse struct {
	Workflow WorkflowSummary `json:"workflow"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
