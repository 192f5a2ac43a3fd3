package api

import (
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"manifold/internal/bus"
	"manifold/internal/deadline"
	"manifold/internal/workflow"
)

// FromWorkflowStatus converts a workflow snapshot to its API representation.
func FromWorkflowStatus(st workflow.Status) WorkflowSummary {
	dto := WorkflowSummary{
		EntityID:      st.EntityID,
		CorrelationID: st.CorrelationID,
		State:         string(st.State),
		StateDisplay:  DisplayName(string(st.State)),
		Urgency:       string(st.Urgency),
		RetryCount:    st.RetryCount,
		ErrorCount:    st.ErrorCount,
		MergedInputs:  st.MergedInputs,
		FailureReason: st.FailureReason,
		Archived:      st.Archived,
		History:       fromTransitions(st.History),
	}
	if !st.CreatedAt.IsZero() {
		dto.CreatedAt = st.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !st.LastUpdate.IsZero() {
		dto.UpdatedAt = st.LastUpdate.UTC().Format(dateTimeFormat)
		if !st.CreatedAt.IsZero() {
			dto.DurationSeconds = st.LastUpdate.Sub(st.CreatedAt).Seconds()
		}
	}
	return dto
}

// FromWorkflowStatuses converts a slice of workflow snapshots into API DTOs.
func FromWorkflowStatuses(statuses []workflow.Status) []WorkflowSummary {
	if len(statuses) == 0 {
		return nil
	}
	out := make([]WorkflowSummary, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, FromWorkflowStatus(st))
	}
	return out
}

func fromTransitions(history []workflow.Transition) []TransitionRecord {
	if len(history) == 0 {
		return nil
	}
	out := make([]TransitionRecord, 0, len(history))
	for _, tr := range history {
		rec := TransitionRecord{
			From:   string(tr.From),
			To:     string(tr.To),
			Reason: tr.Reason,
		}
		if !tr.Timestamp.IsZero() {
			rec.Timestamp = tr.Timestamp.UTC().Format(dateTimeFormat)
		}
		out = append(out, rec)
	}
	return out
}

// AttachContext adds archived workflow context as a raw JSON passthrough.
func AttachContext(dto *WorkflowSummary, contextJSON string) {
	if dto == nil || strings.TrimSpace(contextJSON) == "" {
		return
	}
	dto.Context = json.RawMessage(contextJSON)
}

// FromStatistics converts orchestrator statistics to the API payload.
func FromStatistics(stats workflow.Statistics) StatsReport {
	return StatsReport{
		Running:         stats.Running,
		LiveWorkflows:   stats.LiveWorkflows,
		States:          stats.States,
		Ingested:        stats.TotalIngested,
		Merged:          stats.TotalMerged,
		Completed:       stats.TotalCompleted,
		Failed:          stats.TotalFailed,
		Errors:          stats.TotalErrors,
		Timeouts:        stats.TotalTimeouts,
		Retries:         stats.TotalRetries,
		Bus:             fromBusStats(stats.Bus),
		Deadlines:       fromDeadlineStats(stats.Deadlines),
		ArchivedByState: stats.ArchivedByState,
	}
}

func fromBusStats(stats bus.Stats) BusStats {
	out := BusStats{
		Published:  stats.Published,
		Delivered:  stats.Delivered,
		Expired:    stats.Expired,
		Dropped:    stats.Dropped,
		AuditSize:  stats.AuditSize,
		AuditTotal: stats.AuditTotal,
	}
	if len(stats.Channels) > 0 {
		out.Channels = make(map[string]ChannelStats, len(stats.Channels))
		for ch, cs := range stats.Channels {
			out.Channels[string(ch)] = ChannelStats{
				Subscribers: cs.Subscribers,
				QueueDepth:  cs.QueueDepth,
			}
		}
	}
	return out
}

func fromDeadlineStats(stats deadline.Stats) DeadlineStats {
	return DeadlineStats{
		Pending:      stats.Pending,
		Expired:      stats.Expired,
		Acknowledged: stats.Acknowledged,
	}
}

// FromAuditEntry converts a bus audit event to its API representation.
func FromAuditEntry(entry bus.AuditEntry) AuditEntry {
	dto := AuditEntry{
		Channel:       string(entry.Channel),
		Action:        string(entry.Action),
		MessageID:     entry.MessageID,
		CorrelationID: entry.CorrelationID,
		Sender:        entry.Sender,
		Receiver:      entry.Receiver,
		Type:          string(entry.Type),
		Priority:      entry.Priority.String(),
	}
	if !entry.Timestamp.IsZero() {
		dto.Timestamp = entry.Timestamp.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromAuditEntries converts the bus audit trail into API DTOs.
func FromAuditEntries(entries []bus.AuditEntry) []AuditEntry {
	if len(entries) == 0 {
		return nil
	}
	out := make([]AuditEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, FromAuditEntry(entry))
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// DisplayName renders an internal enum value for terminal output, turning
// "awaiting_external" into "Awaiting External".
func DisplayName(value string) string {
	if value == "" {
		return ""
	}
	return cases.Title(language.Und).String(strings.ReplaceAll(value, "_", " "))
}
