package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"manifold/internal/archive"
	"manifold/internal/bus"
	"manifold/internal/deadline"
	"manifold/internal/logging"
	"manifold/internal/services"
)

// resolve acknowledges the request deadline named by msg.ReplyTo and maps the
// message to its live workflow. Results that arrive for retired workflows
// resolve to nil; results that lost the expiry race fall back to correlation
// lookup so the caller's state guard can drop them.
func (m *Manager) resolve(msg bus.Message) *Workflow {
	var entityID string
	if msg.ReplyTo != "" {
		m.deadlines.Acknowledge(msg.ReplyTo)
		if id, ok := m.claimPending(msg.ReplyTo); ok {
			entityID = id
		}
	}
	if entityID == "" {
		entityID = m.findByCorrelation(msg.CorrelationID)
	}
	if entityID == "" {
		m.logger.Debug("result without live workflow dropped",
			logging.String("type", string(msg.Type)),
			logging.String("correlation_id", msg.CorrelationID))
		return nil
	}
	return m.lookup(entityID)
}

// findByCorrelation scans the live set for a workflow by correlation id.
// Correlation ids are immutable, so no workflow lock is needed.
func (m *Manager) findByCorrelation(correlationID string) string {
	if correlationID == "" {
		return ""
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for entityID, wf := range m.workflows {
		if wf.correlationID == correlationID {
			return entityID
		}
	}
	return ""
}

// reportSendError logs a failed request dispatch and escalates transport
// failures into an orchestrator shutdown. Must be called without any
// workflow lock held.
func (m *Manager) reportSendError(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, bus.ErrStopped) || errors.Is(err, deadline.ErrStopped) {
		m.logger.Debug("dispatch skipped during shutdown", logging.Error(err))
		return
	}
	if services.Classify(err) == services.DispositionFatal {
		logging.ErrorWithContext(m.logger, "bus transport failed", "transport_failure",
			logging.Error(err),
			logging.Alert("orchestrator down"))
		m.shutdown()
		return
	}
	m.logger.Warn("request dispatch failed", logging.Error(err))
}

func (m *Manager) handleAnalysisResult(msg bus.Message) {
	res, ok := msg.Payload.(AnalysisResult)
	if !ok {
		m.logger.Warn("analysis result payload mismatch",
			logging.String("correlation_id", msg.CorrelationID),
			logging.String("sender", msg.Sender))
		return
	}
	wf := m.resolve(msg)
	if wf == nil {
		return
	}

	wf.mu.Lock()
	if wf.state != StateAnalyzing {
		m.logger.Debug("stale analysis result dropped",
			logging.String("entity_id", wf.entityID),
			logging.String("state", string(wf.state)))
		wf.mu.Unlock()
		return
	}
	wf.pendingRequestID = ""
	wf.pendingStage = ""

	if res.Error != "" {
		retired, status, snapshot := m.failLocked(wf, "analysis failed: "+res.Error)
		wf.mu.Unlock()
		if retired {
			m.retire(wf, status, snapshot)
		}
		return
	}

	wf.storeResultLocked(StageAnalysis, res)
	if err := wf.transitionLocked(StateAssessing, "analysis result received"); err != nil {
		wf.mu.Unlock()
		m.logger.Warn("dropping analysis result", logging.Error(err))
		return
	}

	decision := m.policy.AssessAnalysis(res)
	if !decision.Engage {
		if err := wf.transitionLocked(StateCompleted, decision.Reason); err != nil {
			wf.mu.Unlock()
			m.logger.Warn("completion transition rejected", logging.Error(err))
			return
		}
		status := wf.snapshotLocked()
		snapshot := wf.contextSnapshotLocked()
		wf.mu.Unlock()
		m.retire(wf, status, snapshot)
		return
	}

	wf.urgency = decision.Urgency
	if err := wf.transitionLocked(StateEngaging, decision.Reason); err != nil {
		wf.mu.Unlock()
		m.logger.Warn("engagement transition rejected", logging.Error(err))
		return
	}
	req := EngagementRequest{
		EntityID:  wf.entityID,
		Urgency:   string(wf.urgency),
		Component: res.Component,
		Summary:   res.Summary,
	}
	err := m.sendRequestLocked(wf, StageEngagement, wf.urgency.Priority(), req)
	wf.mu.Unlock()
	m.reportSendError(err)
}

func (m *Manager) handleEngagementResult(msg bus.Message) {
	res, ok := msg.Payload.(EngagementResult)
	if !ok {
		m.logger.Warn("engagement result payload mismatch",
			logging.String("correlation_id", msg.CorrelationID),
			logging.String("sender", msg.Sender))
		return
	}
	wf := m.resolve(msg)
	if wf == nil {
		return
	}

	wf.mu.Lock()
	if wf.state != StateEngaging {
		m.logger.Debug("stale engagement result dropped",
			logging.String("entity_id", wf.entityID),
			logging.String("state", string(wf.state)))
		wf.mu.Unlock()
		return
	}
	wf.pendingRequestID = ""
	wf.pendingStage = ""

	if res.Error != "" {
		retired, status, snapshot := m.failLocked(wf, "engagement failed: "+res.Error)
		wf.mu.Unlock()
		if retired {
			m.retire(wf, status, snapshot)
		}
		return
	}

	wf.storeResultLocked(StageEngagement, res)
	decision := m.policy.AssessEngagement(res)
	if !decision.Schedule {
		if err := wf.transitionLocked(StateCompleted, decision.Reason); err != nil {
			wf.mu.Unlock()
			m.logger.Warn("completion transition rejected", logging.Error(err))
			return
		}
		status := wf.snapshotLocked()
		snapshot := wf.contextSnapshotLocked()
		wf.mu.Unlock()
		m.retire(wf, status, snapshot)
		return
	}

	if err := wf.transitionLocked(StateScheduling, decision.Reason); err != nil {
		wf.mu.Unlock()
		m.logger.Warn("scheduling transition rejected", logging.Error(err))
		return
	}
	req := SchedulingRequest{
		EntityID: wf.entityID,
		Urgency:  string(wf.urgency),
		Notes:    res.Notes,
	}
	err := m.sendRequestLocked(wf, StageScheduling, wf.urgency.Priority(), req)
	wf.mu.Unlock()
	m.reportSendError(err)
}

func (m *Manager) handleSchedulingResult(msg bus.Message) {
	res, ok := msg.Payload.(SchedulingResult)
	if !ok {
		m.logger.Warn("scheduling result payload mismatch",
			logging.String("correlation_id", msg.CorrelationID),
			logging.String("sender", msg.Sender))
		return
	}
	wf := m.resolve(msg)
	if wf == nil {
		return
	}

	wf.mu.Lock()
	if wf.state != StateScheduling && wf.state != StateAwaitingExternal {
		m.logger.Debug("stale scheduling result dropped",
			logging.String("entity_id", wf.entityID),
			logging.String("state", string(wf.state)))
		wf.mu.Unlock()
		return
	}
	wf.pendingRequestID = ""
	wf.pendingStage = ""

	if res.Error != "" {
		retired, status, snapshot := m.failLocked(wf, "scheduling failed: "+res.Error)
		wf.mu.Unlock()
		if retired {
			m.retire(wf, status, snapshot)
		}
		return
	}

	decision := m.policy.AssessScheduling(res)
	switch decision.Outcome {
	case SchedulingConfirmed:
		if wf.state != StateScheduling {
			m.logger.Debug("duplicate scheduling confirmation dropped",
				logging.String("entity_id", wf.entityID))
			wf.mu.Unlock()
			return
		}
		wf.storeResultLocked(StageScheduling, res)
		if err := wf.transitionLocked(StateAwaitingExternal, decision.Reason); err != nil {
			wf.mu.Unlock()
			m.logger.Warn("confirmation transition rejected", logging.Error(err))
			return
		}
		entityID, slotID := wf.entityID, res.SlotID
		wf.mu.Unlock()
		if m.notifier != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := m.notifier.NotifyMaintenanceScheduled(ctx, entityID, slotID); err != nil {
				m.logger.Debug("schedule notification failed", logging.Error(err))
			}
			cancel()
		}

	case SchedulingCompleted:
		if wf.state == StateScheduling {
			// Confirmation never arrived separately; accept the
			// completion and walk the remaining states.
			if err := wf.transitionLocked(StateAwaitingExternal, "confirmation implied by completion"); err != nil {
				wf.mu.Unlock()
				m.logger.Warn("confirmation transition rejected", logging.Error(err))
				return
			}
		}
		wf.storeOutcomeLocked(res)
		if err := wf.transitionLocked(StateCollectingOutcome, decision.Reason); err != nil {
			wf.mu.Unlock()
			m.logger.Warn("outcome transition rejected", logging.Error(err))
			return
		}
		if err := wf.transitionLocked(StateCompleted, "outcome recorded"); err != nil {
			wf.mu.Unlock()
			m.logger.Warn("completion transition rejected", logging.Error(err))
			return
		}
		status := wf.snapshotLocked()
		snapshot := wf.contextSnapshotLocked()
		wf.mu.Unlock()
		m.retire(wf, status, snapshot)

	case SchedulingFailed:
		retired, status, snapshot := m.failLocked(wf, decision.Reason)
		wf.mu.Unlock()
		if retired {
			m.retire(wf, status, snapshot)
		}

	default:
		retired, status, snapshot := m.failLocked(wf,
			fmt.Sprintf("unrecognized scheduling disposition %q", res.Disposition))
		wf.mu.Unlock()
		if retired {
			m.retire(wf, status, snapshot)
		}
	}
}

// handleSystemError fails the live workflow a collaborator reports against.
// Reports that reference no live workflow are logged and dropped.
func (m *Manager) handleSystemError(msg bus.Message) {
	report, ok := msg.Payload.(ErrorReport)
	if !ok {
		m.logger.Warn("system error payload mismatch",
			logging.String("sender", msg.Sender),
			logging.String("correlation_id", msg.CorrelationID))
		return
	}

	entityID := normalizeEntityID(report.EntityID)
	if entityID == "" {
		entityID = m.findByCorrelation(msg.CorrelationID)
	}
	var wf *Workflow
	if entityID != "" {
		wf = m.lookup(entityID)
	}
	if wf == nil {
		m.logger.Warn("system error without live workflow",
			logging.String("entity_id", report.EntityID),
			logging.String("stage", report.Stage),
			logging.String("reason", report.Reason))
		return
	}

	reason := report.Reason
	if reason == "" {
		reason = "system error reported"
	}
	if report.Stage != "" {
		reason = report.Stage + ": " + reason
	}

	wf.mu.Lock()
	if wf.state.Terminal() {
		wf.mu.Unlock()
		return
	}
	if pending := wf.pendingRequestID; pending != "" {
		m.deadlines.Acknowledge(pending)
		m.dropPending(pending)
		wf.pendingRequestID = ""
		wf.pendingStage = ""
	}
	retired, status, snapshot := m.failLocked(wf, reason)
	wf.mu.Unlock()
	if retired {
		m.retire(wf, status, snapshot)
	}
}

// onDeadlineExpired is the deadline manager's expiry callback. Winning the
// claim here is what makes expiry and acknowledgment mutually exclusive: a
// result that raced ahead has already removed the pending entry.
func (m *Manager) onDeadlineExpired(requestID string) {
	entityID, ok := m.claimPending(requestID)
	if !ok {
		return
	}
	wf := m.lookup(entityID)
	if wf == nil {
		return
	}

	wf.mu.Lock()
	if wf.pendingRequestID != requestID {
		wf.mu.Unlock()
		return
	}
	stage := wf.pendingStage
	wf.pendingRequestID = ""
	wf.pendingStage = ""
	m.totalTimeouts.Add(1)

	notice := bus.NewMessage(bus.TypeSystemTimeout, senderName,
		bus.WithCorrelationID(wf.correlationID),
		bus.WithPriority(bus.PriorityHigh),
		bus.WithPayload(TimeoutNotice{
			EntityID:  wf.entityID,
			Stage:     string(stage),
			RequestID: requestID,
		}))
	if err := m.bus.Publish(bus.ChannelSystemTimeout, notice); err != nil {
		m.logger.Warn("timeout notice publish failed", logging.Error(err))
	}

	m.logger.Warn("request deadline expired",
		logging.String("entity_id", wf.entityID),
		logging.String("correlation_id", wf.correlationID),
		logging.String("stage", string(stage)),
		logging.String("request_id", requestID))

	retired, status, snapshot := m.failLocked(wf, fmt.Sprintf("%s request timed out", stage))
	wf.mu.Unlock()
	if retired {
		m.retire(wf, status, snapshot)
	}
}

// failLocked routes a workflow through the error path. Within the retry
// budget the workflow re-enters IDLE under an exponential backoff; beyond it
// the workflow is forced terminal with a failure reason. When the final
// return is true the caller must retire the workflow after releasing its
// lock. Callers hold wf.mu.
func (m *Manager) failLocked(wf *Workflow, reason string) (bool, Status, map[string]any) {
	m.totalErrors.Add(1)
	wf.errorCount++
	if wf.state != StateError {
		if err := wf.transitionLocked(StateError, reason); err != nil {
			m.logger.Warn("error transition rejected",
				logging.String("entity_id", wf.entityID),
				logging.String("state", string(wf.state)),
				logging.Error(err))
			return false, Status{}, nil
		}
	}

	if wf.canRetryLocked(m.maxRetries) {
		wf.retryCount++
		m.totalRetries.Add(1)
		backoff := m.backoffFor(wf.retryCount)
		wf.nextRetryAt = time.Now().UTC().Add(backoff)
		if err := wf.transitionLocked(StateIdle, fmt.Sprintf("retry %d of %d in %s", wf.retryCount, m.maxRetries, backoff)); err != nil {
			m.logger.Warn("retry transition rejected", logging.Error(err))
			return false, Status{}, nil
		}
		m.logger.Info("workflow scheduled for retry",
			logging.String("entity_id", wf.entityID),
			logging.String("correlation_id", wf.correlationID),
			logging.Int("retry", wf.retryCount),
			logging.Duration("backoff", backoff),
			logging.String("reason", reason))
		return false, Status{}, nil
	}

	wf.failureReason = reason
	if err := wf.transitionLocked(StateCompleted, "retries exhausted"); err != nil {
		m.logger.Warn("terminal transition rejected", logging.Error(err))
		return false, Status{}, nil
	}
	return true, wf.snapshotLocked(), wf.contextSnapshotLocked()
}

func (m *Manager) backoffFor(attempt int) time.Duration {
	backoff := m.backoffBase
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	return backoff
}

// retire removes a terminal workflow from the live set, publishes its quality
// insight, persists the archive record, and emits notifications. Runs without
// any workflow lock held; uses a detached context so late retirements still
// persist during shutdown.
func (m *Manager) retire(wf *Workflow, status Status, contextSnapshot map[string]any) {
	m.removeLive(wf)

	failed := status.FailureReason != ""
	if failed {
		m.totalFailed.Add(1)
	} else {
		m.totalCompleted.Add(1)
	}

	duration := status.LastUpdate.Sub(status.CreatedAt)
	insight := bus.NewMessage(bus.TypeQualityInsight, senderName,
		bus.WithCorrelationID(status.CorrelationID),
		bus.WithPriority(bus.PriorityLow),
		bus.WithPayload(Insight{
			EntityID:      status.EntityID,
			FinalState:    status.State,
			Urgency:       status.Urgency,
			FailureReason: status.FailureReason,
			RetryCount:    status.RetryCount,
			ErrorCount:    status.ErrorCount,
			DurationSecs:  duration.Seconds(),
		}))
	if err := m.bus.Publish(bus.ChannelQualityInsight, insight); err != nil {
		m.logger.Debug("insight publish skipped", logging.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if m.store != nil {
		if err := m.archiveStatus(ctx, status, contextSnapshot, duration); err != nil {
			m.logger.Warn("archive write failed",
				logging.String("entity_id", status.EntityID),
				logging.String("correlation_id", status.CorrelationID),
				logging.Error(err))
		}
	}

	if m.notifier != nil {
		if failed {
			if err := m.notifier.NotifyWorkflowFailed(ctx, status.EntityID, status.FailureReason); err != nil {
				m.logger.Debug("failure notification failed", logging.Error(err))
			}
		} else {
			if err := m.notifier.NotifyWorkflowCompleted(ctx, status.EntityID, string(status.Urgency), duration); err != nil {
				m.logger.Debug("completion notification failed", logging.Error(err))
			}
		}
	}

	if failed {
		m.logger.Warn("workflow failed",
			logging.String("entity_id", status.EntityID),
			logging.String("correlation_id", status.CorrelationID),
			logging.String("reason", status.FailureReason),
			logging.Int("retries", status.RetryCount))
	} else {
		m.logger.Info("workflow completed",
			logging.String("entity_id", status.EntityID),
			logging.String("correlation_id", status.CorrelationID),
			logging.Duration("duration", duration))
	}
}

func (m *Manager) archiveStatus(ctx context.Context, status Status, contextSnapshot map[string]any, duration time.Duration) error {
	historyJSON, err := json.Marshal(status.History)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	contextJSON, err := json.Marshal(contextSnapshot)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}
	return m.store.Save(ctx, &archive.Record{
		CorrelationID: status.CorrelationID,
		EntityID:      status.EntityID,
		FinalState:    string(status.State),
		FailureReason: status.FailureReason,
		Urgency:       string(status.Urgency),
		RetryCount:    status.RetryCount,
		ErrorCount:    status.ErrorCount,
		CreatedAt:     status.CreatedAt,
		CompletedAt:   status.LastUpdate,
		Duration:      duration,
		HistoryJSON:   string(historyJSON),
		ContextJSON:   string(contextJSON),
	})
}
