package workflow

import (
	"context"
	"encoding/json"
	"sort"

	"manifold/internal/archive"
	"manifold/internal/bus"
	"manifold/internal/deadline"
	"manifold/internal/logging"
	"manifold/internal/services"
)

// Workflows returns snapshots of every live workflow, sorted by entity id.
func (m *Manager) Workflows() []Status {
	m.mu.RLock()
	live := make([]*Workflow, 0, len(m.workflows))
	for _, wf := range m.workflows {
		live = append(live, wf)
	}
	m.mu.RUnlock()

	statuses := make([]Status, 0, len(live))
	for _, wf := range live {
		statuses = append(statuses, wf.Snapshot())
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].EntityID < statuses[j].EntityID
	})
	return statuses
}

// WorkflowStatus reports the live workflow for an entity, falling back to the
// entity's most recent archived record.
func (m *Manager) WorkflowStatus(ctx context.Context, entityID string) (Status, error) {
	entityID = normalizeEntityID(entityID)
	if entityID == "" {
		return Status{}, services.Wrap(services.ErrValidation, senderName, "status", "entity id required", nil)
	}
	if wf := m.lookup(entityID); wf != nil {
		return wf.Snapshot(), nil
	}
	if m.store == nil {
		return Status{}, services.Wrap(services.ErrNotFound, senderName, "status", entityID, nil)
	}
	records, err := m.store.ListByEntity(ctx, entityID, 1)
	if err != nil {
		return Status{}, err
	}
	if len(records) == 0 {
		return Status{}, services.Wrap(services.ErrNotFound, senderName, "status", entityID, nil)
	}
	return StatusFromRecord(records[0]), nil
}

// StatusFromRecord rebuilds a workflow snapshot from an archived record so
// retired workflows render through the same status surfaces as live ones.
func StatusFromRecord(rec *archive.Record) Status {
	status := Status{
		EntityID:      rec.EntityID,
		CorrelationID: rec.CorrelationID,
		State:         State(rec.FinalState),
		Urgency:       Urgency(rec.Urgency),
		RetryCount:    rec.RetryCount,
		ErrorCount:    rec.ErrorCount,
		FailureReason: rec.FailureReason,
		CreatedAt:     rec.CreatedAt,
		LastUpdate:    rec.CompletedAt,
		Archived:      true,
	}
	if rec.HistoryJSON != "" {
		var history []Transition
		if err := json.Unmarshal([]byte(rec.HistoryJSON), &history); err == nil {
			status.History = history
		}
	}
	return status
}

// Statistics aggregates orchestrator, bus, and deadline counters for the
// status surfaces.
type Statistics struct {
	Running         bool           `json:"running"`
	LiveWorkflows   int            `json:"live_workflows"`
	States          map[string]int `json:"states"`
	TotalIngested   uint64         `json:"total_ingested"`
	TotalMerged     uint64         `json:"total_merged"`
	TotalCompleted  uint64         `json:"total_completed"`
	TotalFailed     uint64         `json:"total_failed"`
	TotalErrors     uint64         `json:"total_errors"`
	TotalTimeouts   uint64         `json:"total_timeouts"`
	TotalRetries    uint64         `json:"total_retries"`
	Bus             bus.Stats      `json:"bus"`
	Deadlines       deadline.Stats `json:"deadlines"`
	ArchivedByState map[string]int `json:"archived_by_state,omitempty"`
}

// Statistics reports aggregate counters across the live set, the bus, the
// deadline manager, and the archive when one is attached.
func (m *Manager) Statistics(ctx context.Context) Statistics {
	m.mu.RLock()
	running := m.running
	live := make([]*Workflow, 0, len(m.workflows))
	for _, wf := range m.workflows {
		live = append(live, wf)
	}
	m.mu.RUnlock()

	states := make(map[string]int)
	for _, wf := range live {
		states[string(wf.State())]++
	}

	stats := Statistics{
		Running:        running,
		LiveWorkflows:  len(live),
		States:         states,
		TotalIngested:  m.totalIngested.Load(),
		TotalMerged:    m.totalMerged.Load(),
		TotalCompleted: m.totalCompleted.Load(),
		TotalFailed:    m.totalFailed.Load(),
		TotalErrors:    m.totalErrors.Load(),
		TotalTimeouts:  m.totalTimeouts.Load(),
		TotalRetries:   m.totalRetries.Load(),
		Bus:            m.bus.Stats(),
		Deadlines:      m.deadlines.Stats(),
	}

	if m.store != nil {
		archived, err := m.store.CountByState(ctx)
		if err != nil {
			m.logger.Debug("archive count failed", logging.Error(err))
		} else {
			stats.ArchivedByState = archived
		}
	}
	return stats
}
