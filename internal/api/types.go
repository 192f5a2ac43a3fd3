package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// WorkflowSummary describes a workflow in a transport-friendly format.
type WorkflowSummary struct {
	EntityID        string             `json:"entityId"`
	CorrelationID   string             `json:"correlationId"`
	State           string             `json:"state"`
	StateDisplay    string             `json:"stateDisplay"`
	Urgency         string             `json:"urgency,omitempty"`
	RetryCount      int                `json:"retryCount"`
	ErrorCount      int                `json:"errorCount"`
	MergedInputs    int                `json:"mergedInputs,omitempty"`
	FailureReason   string             `json:"failureReason,omitempty"`
	CreatedAt       string             `json:"createdAt,omitempty"`
	UpdatedAt       string             `json:"updatedAt,omitempty"`
	DurationSeconds float64            `json:"durationSeconds"`
	Archived        bool               `json:"archived"`
	History         []TransitionRecord `json:"history,omitempty"`
	Context         json.RawMessage    `json:"context,omitempty"`
}

// TransitionRecord captures one state change in a workflow's history.
type TransitionRecord struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Timestamp string `json:"timestamp,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// StatsReport aggregates orchestrator, bus, and deadline counters.
type StatsReport struct {
	Running         bool           `json:"running"`
	LiveWorkflows   int            `json:"liveWorkflows"`
	States          map[string]int `json:"states,omitempty"`
	Ingested        uint64         `json:"ingested"`
	Merged          uint64         `json:"merged"`
	Completed       uint64         `json:"completed"`
	Failed          uint64         `json:"failed"`
	Errors          uint64         `json:"errors"`
	Timeouts        uint64         `json:"timeouts"`
	Retries         uint64         `json:"retries"`
	Bus             BusStats       `json:"bus"`
	Deadlines       DeadlineStats  `json:"deadlines"`
	ArchivedByState map[string]int `json:"archivedByState,omitempty"`
}

// BusStats mirrors message-bus counters and per-channel depth.
type BusStats struct {
	Published  uint64                  `json:"published"`
	Delivered  uint64                  `json:"delivered"`
	Expired    uint64                  `json:"expired"`
	Dropped    uint64                  `json:"dropped"`
	AuditSize  int                     `json:"auditSize"`
	AuditTotal uint64                  `json:"auditTotal"`
	Channels   map[string]ChannelStats `json:"channels,omitempty"`
}

// ChannelStats reports subscriber count and queued messages for one channel.
type ChannelStats struct {
	Subscribers int `json:"subscribers"`
	QueueDepth  int `json:"queueDepth"`
}

// DeadlineStats mirrors the deadline manager's counters.
type DeadlineStats struct {
	Pending      int    `json:"pending"`
	Expired      uint64 `json:"expired"`
	Acknowledged uint64 `json:"acknowledged"`
}

// AuditEntry is one message-bus audit event in string form.
type AuditEntry struct {
	Timestamp     string `json:"timestamp"`
	Channel       string `json:"channel"`
	Action        string `json:"action"`
	MessageID     string `json:"messageId"`
	CorrelationID string `json:"correlationId,omitempty"`
	Sender        string `json:"sender,omitempty"`
	Receiver      string `json:"receiver,omitempty"`
	Type          string `json:"type,omitempty"`
	Priority      string `json:"priority"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool        `json:"running"`
	PID          int         `json:"pid"`
	StartedAt    string      `json:"startedAt,omitempty"`
	ArchivePath  string      `json:"archivePath"`
	LockFilePath string      `json:"lockFilePath"`
	SocketPath   string      `json:"socketPath"`
	APIBind      string      `json:"apiBind,omitempty"`
	Stats        StatsReport `json:"stats"`
}

// WorkflowListResponse wraps a collection of workflows for API responses.
type WorkflowListResponse struct {
	Workflows []WorkflowSummary `json:"workflows"`
}

// WorkflowResponse wraps a single workflow.
type WorkflowResponse struct {
	Workflow WorkflowSummary `json:"workflow"`
}

// AuditResponse wraps the bus audit trail.
type AuditResponse struct {
	Entries []AuditEntry `json:"entries"`
}

// FeedRequest injects a telemetry record through the IPC surface.
type FeedRequest struct {
	EntityID  string             `json:"entityId"`
	Timestamp string             `json:"timestamp,omitempty"`
	Readings  map[string]float64 `json:"readings,omitempty"`
}
