package workflow

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"manifold/internal/bus"
	"manifold/internal/ingest"
	"manifold/internal/services"
)

// Stage names one collaborator concern. Stage names key accumulated results
// in workflow context and appear in logs and timeout notices.
type Stage string

const (
	StageAnalysis   Stage = "analysis"
	StageEngagement Stage = "engagement"
	StageScheduling Stage = "scheduling"
)

func (s Stage) requestChannel() bus.Channel {
	switch s {
	case StageAnalysis:
		return bus.ChannelAnalysisRequest
	case StageEngagement:
		return bus.ChannelEngagementRequest
	default:
		return bus.ChannelSchedulingRequest
	}
}

func (s Stage) requestType() bus.MessageType {
	switch s {
	case StageAnalysis:
		return bus.TypeAnalysisRequest
	case StageEngagement:
		return bus.TypeEngagementRequest
	default:
		return bus.TypeSchedulingRequest
	}
}

// Workflow tracks one entity through the pipeline. All fields are guarded by
// mu; the manager holds the lock across each multi-step advance so that
// concurrent result deliveries for the same entity cannot interleave.
type Workflow struct {
	mu sync.Mutex

	entityID      string
	correlationID string
	state         State
	urgency       Urgency
	context       map[string]any
	telemetry     ingest.Record
	retryCount    int
	errorCount    int
	mergedInputs  int
	failureReason string
	createdAt     time.Time
	updatedAt     time.Time
	history       []Transition

	// pendingRequestID holds the id of the outstanding request, if any,
	// so its deadline can be acknowledged or reported against.
	pendingRequestID string
	pendingStage     Stage
	nextRetryAt      time.Time
}

func newWorkflow(entityID string) *Workflow {
	now := time.Now().UTC()
	return &Workflow{
		entityID:      entityID,
		correlationID: newCorrelationID(entityID),
		state:         StateIdle,
		context:       make(map[string]any),
		createdAt:     now,
		updatedAt:     now,
	}
}

// The correlation id is minted once per workflow and never changes; every
// message belonging to the workflow carries it.
func newCorrelationID(entityID string) string {
	return fmt.Sprintf("wf-%s-%s", entityID, uuid.NewString()[:8])
}

// EntityID returns the entity this workflow tracks.
func (w *Workflow) EntityID() string { return w.entityID }

// CorrelationID returns the workflow's immutable correlation identifier.
func (w *Workflow) CorrelationID() string { return w.correlationID }

// State returns the current state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Transition applies one validated state change. Invalid edges are rejected
// with ErrInvalidTransition and leave state and history untouched.
func (w *Workflow) Transition(to State, reason string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.transitionLocked(to, reason)
}

func (w *Workflow) transitionLocked(to State, reason string) error {
	if !CanTransition(w.state, to) {
		return services.Wrap(services.ErrInvalidTransition, "workflow", w.entityID,
			fmt.Sprintf("%s -> %s", w.state, to), nil)
	}
	now := time.Now().UTC()
	w.history = append(w.history, Transition{
		From:      w.state,
		To:        to,
		Timestamp: now,
		Reason:    reason,
	})
	w.state = to
	w.updatedAt = now
	return nil
}

func (w *Workflow) mergeTelemetryLocked(rec ingest.Record) {
	if w.telemetry.Readings == nil {
		w.telemetry = rec
	} else {
		if rec.Readings != nil {
			merged := make(map[string]float64, len(w.telemetry.Readings)+len(rec.Readings))
			for k, v := range w.telemetry.Readings {
				merged[k] = v
			}
			for k, v := range rec.Readings {
				merged[k] = v
			}
			rec.Readings = merged
		} else {
			rec.Readings = w.telemetry.Readings
		}
		w.telemetry = rec
	}
	w.context["telemetry"] = w.telemetry
}

func (w *Workflow) storeResultLocked(stage Stage, payload any) {
	w.context[string(stage)] = payload
}

func (w *Workflow) storeOutcomeLocked(payload any) {
	w.context["outcome"] = payload
}

func (w *Workflow) canRetryLocked(maxRetries int) bool {
	return w.retryCount < maxRetries
}

// Status is a read-only snapshot of one workflow, safe to hand across
// API and IPC boundaries.
type Status struct {
	EntityID      string       `json:"entity_id"`
	CorrelationID string       `json:"correlation_id"`
	State         State        `json:"state"`
	Urgency       Urgency      `json:"urgency,omitempty"`
	RetryCount    int          `json:"retry_count"`
	ErrorCount    int          `json:"error_count"`
	MergedInputs  int          `json:"merged_inputs,omitempty"`
	FailureReason string       `json:"failure_reason,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	LastUpdate    time.Time    `json:"last_update"`
	History       []Transition `json:"history"`
	// Archived marks snapshots reconstructed from the archive rather than
	// the live set.
	Archived bool `json:"archived,omitempty"`
}

// Snapshot copies the workflow's observable fields.
func (w *Workflow) Snapshot() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *Workflow) snapshotLocked() Status {
	history := make([]Transition, len(w.history))
	copy(history, w.history)
	return Status{
		EntityID:      w.entityID,
		CorrelationID: w.correlationID,
		State:         w.state,
		Urgency:       w.urgency,
		RetryCount:    w.retryCount,
		ErrorCount:    w.errorCount,
		MergedInputs:  w.mergedInputs,
		FailureReason: w.failureReason,
		CreatedAt:     w.createdAt,
		LastUpdate:    w.updatedAt,
		History:       history,
	}
}

func (w *Workflow) contextSnapshotLocked() map[string]any {
	out := make(map[string]any, len(w.context))
	for k, v := range w.context {
		out[k] = v
	}
	return out
}
