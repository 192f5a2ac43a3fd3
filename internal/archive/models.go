package archive

import "time"

// Record is one retired workflow. History and context arrive pre-marshaled
// so the archive stays decoupled from workflow types.
type Record struct {
	ID            int64
	CorrelationID string
	EntityID      string
	FinalState    string
	FailureReason string
	Urgency       string
	RetryCount    int
	ErrorCount    int
	CreatedAt     time.Time
	CompletedAt   time.Time
	Duration      time.Duration
	HistoryJSON   string
	ContextJSON   string
}
