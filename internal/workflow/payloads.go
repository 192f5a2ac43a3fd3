package workflow

import "time"

// Payload types for the collaborator protocol. Requests are built by the
// orchestrator; results arrive from collaborators on the matching result
// channel with ReplyTo set to the request message id. A non-empty Error
// field on any result routes the workflow through the retry path exactly
// like a deadline expiry.

// AnalysisRequest rides analysis.request and carries the entity's latest
// telemetry.
type AnalysisRequest struct {
	EntityID  string             `json:"entity_id"`
	Timestamp time.Time          `json:"timestamp"`
	Readings  map[string]float64 `json:"readings,omitempty"`
	// Attempt is zero on the first dispatch and increments per retry.
	Attempt int `json:"attempt"`
}

// AnalysisResult rides analysis.result.
type AnalysisResult struct {
	EntityID               string  `json:"entity_id"`
	PredictedDaysToFailure float64 `json:"predicted_days_to_failure"`
	FailureProbability     float64 `json:"failure_probability"`
	AnomalyDetected        bool    `json:"anomaly_detected"`
	Component              string  `json:"component,omitempty"`
	Summary                string  `json:"summary,omitempty"`
	Error                  string  `json:"error,omitempty"`
}

// EngagementRequest rides engagement.request.
type EngagementRequest struct {
	EntityID  string `json:"entity_id"`
	Urgency   string `json:"urgency"`
	Component string `json:"component,omitempty"`
	Summary   string `json:"summary,omitempty"`
}

// EngagementResult rides engagement.result.
type EngagementResult struct {
	EntityID string `json:"entity_id"`
	// Response is the customer's answer: accepted, interested, declined.
	Response string `json:"response"`
	Notes    string `json:"notes,omitempty"`
	Error    string `json:"error,omitempty"`
}

// SchedulingRequest rides scheduling.request.
type SchedulingRequest struct {
	EntityID string `json:"entity_id"`
	Urgency  string `json:"urgency"`
	Notes    string `json:"notes,omitempty"`
}

// SchedulingResult rides scheduling.result. A collaborator sends it twice
// per booking: disposition "confirmed" when the slot is reserved, then
// "completed" once the external work finished. "failed" aborts the booking.
type SchedulingResult struct {
	EntityID    string    `json:"entity_id"`
	Disposition string    `json:"disposition"`
	SlotID      string    `json:"slot_id,omitempty"`
	ScheduledAt time.Time `json:"scheduled_at,omitempty"`
	Outcome     string    `json:"outcome,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// ErrorReport rides system.error. Any collaborator may publish one; the
// orchestrator routes the owning workflow through its retry path.
type ErrorReport struct {
	EntityID string `json:"entity_id,omitempty"`
	Stage    string `json:"stage,omitempty"`
	Reason   string `json:"reason"`
}

// TimeoutNotice rides system.timeout. The orchestrator publishes exactly one
// per expired request deadline, for external monitors.
type TimeoutNotice struct {
	EntityID  string `json:"entity_id"`
	Stage     string `json:"stage"`
	RequestID string `json:"request_id"`
}

// Insight rides quality.insight when a workflow retires, carrying the
// terminal outcome for downstream quality reporting.
type Insight struct {
	EntityID      string  `json:"entity_id"`
	FinalState    State   `json:"final_state"`
	Urgency       Urgency `json:"urgency,omitempty"`
	FailureReason string  `json:"failure_reason,omitempty"`
	RetryCount    int     `json:"retry_count"`
	ErrorCount    int     `json:"error_count"`
	DurationSecs  float64 `json:"duration_seconds"`
}
