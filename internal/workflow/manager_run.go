package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"manifold/internal/bus"
	"manifold/internal/ingest"
	"manifold/internal/logging"
	"manifold/internal/services"
)

// Start subscribes the orchestrator to its result channels and launches the
// ingestion and sweep loops. It returns immediately; Stop tears everything
// down.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("orchestrator already running")
	}

	runCtx, cancel := context.WithCancel(ctx)

	handlers := []struct {
		channel bus.Channel
		handler bus.Handler
	}{
		{bus.ChannelAnalysisResult, m.handleAnalysisResult},
		{bus.ChannelEngagementResult, m.handleEngagementResult},
		{bus.ChannelSchedulingResult, m.handleSchedulingResult},
		{bus.ChannelSystemError, m.handleSystemError},
	}
	subs := make([]*bus.Subscription, 0, len(handlers))
	for _, h := range handlers {
		sub, err := m.bus.Subscribe(h.channel, senderName, h.handler)
		if err != nil {
			for _, s := range subs {
				m.bus.Unsubscribe(s)
			}
			cancel()
			m.mu.Unlock()
			return services.Wrap(services.ErrTransport, senderName, "subscribe", string(h.channel), err)
		}
		subs = append(subs, sub)
	}

	m.subs = subs
	m.cancel = cancel
	m.running = true
	m.mu.Unlock()

	m.wg.Add(2)
	go m.ingestLoop(runCtx)
	go m.sweepLoop(runCtx)

	m.logger.Info("orchestrator started",
		logging.Duration("poll_interval", m.pollInterval),
		logging.Duration("sweep_interval", m.sweepInterval),
		logging.Duration("request_timeout", m.requestTimeout),
		logging.Int("max_retries", m.maxRetries))
	return nil
}

// Stop halts the loops, detaches from the bus, and stops the deadline
// manager. Safe to call whether or not Start succeeded.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	subs := m.subs
	wasRunning := m.running
	m.cancel = nil
	m.subs = nil
	m.running = false
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	for _, sub := range subs {
		m.bus.Unsubscribe(sub)
	}
	m.deadlines.Stop()

	if wasRunning {
		m.logger.Info("orchestrator stopped")
	}
}

func (m *Manager) ingestLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	for {
		if err := m.IngestOnce(ctx); err != nil {
			if services.Classify(err) == services.DispositionFatal {
				logging.ErrorWithContext(m.logger, "ingestion halted", "transport_failure",
					logging.Error(err),
					logging.Alert("orchestrator down"))
				m.shutdown()
				return
			}
			m.logger.Warn("ingestion cycle failed", logging.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Manager) sweepLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SweepOnce()
		}
	}
}

func (m *Manager) shutdown() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// IngestOnce runs a single ingestion cycle: poll the source and admit every
// returned record. Records are admitted even when the poll also reports an
// error; polled records are claimed and must not be dropped. Exposed so tests
// and manual triggers can drive the orchestrator without waiting out the poll
// interval.
func (m *Manager) IngestOnce(ctx context.Context) error {
	records, pollErr := m.source.Poll(ctx, m.batchLimit)
	for _, rec := range records {
		if err := m.admit(rec); err != nil {
			if services.Classify(err) == services.DispositionFatal {
				return err
			}
			m.logger.Warn("record admission failed",
				logging.String("entity_id", rec.EntityID),
				logging.Error(err))
		}
	}
	if pollErr != nil {
		if errors.Is(pollErr, services.ErrIngestion) {
			return pollErr
		}
		return services.Wrap(services.ErrIngestion, senderName, "poll", "", pollErr)
	}
	return nil
}

// admit routes one telemetry record into the live workflow set. New entities
// get a fresh workflow and an immediate analysis dispatch. Records for idle
// workflows clear any retry backoff and dispatch immediately; records for
// busy workflows merge into pending context without disturbing progress.
func (m *Manager) admit(rec ingest.Record) error {
	entityID := normalizeEntityID(rec.EntityID)
	if entityID == "" {
		m.logger.Warn("dropping record without entity id", logging.String("source", rec.Source))
		return nil
	}
	rec.EntityID = entityID

	for {
		created := false
		m.mu.Lock()
		wf, ok := m.workflows[entityID]
		if !ok {
			wf = newWorkflow(entityID)
			m.workflows[entityID] = wf
			created = true
		}
		m.mu.Unlock()

		wf.mu.Lock()
		if !created && wf.state.Terminal() {
			// Completed but not yet retired; replace with a fresh
			// workflow so the record is not lost.
			wf.mu.Unlock()
			m.removeLive(wf)
			continue
		}

		wf.mergeTelemetryLocked(rec)
		if created {
			m.totalIngested.Add(1)
			m.logger.Info("workflow created",
				logging.String("entity_id", entityID),
				logging.String("correlation_id", wf.correlationID),
				logging.String("source", rec.Source))
		} else {
			wf.mergedInputs++
			m.totalMerged.Add(1)
			m.logger.Debug("telemetry merged",
				logging.String("entity_id", entityID),
				logging.String("state", string(wf.state)),
				logging.Int("merged_inputs", wf.mergedInputs))
		}

		var err error
		if wf.state == StateIdle {
			wf.nextRetryAt = time.Time{}
			err = m.dispatchAnalysisLocked(wf, "telemetry received")
		}
		wf.mu.Unlock()
		return err
	}
}

// dispatchAnalysisLocked moves an idle workflow into ANALYZING and publishes
// the analysis request. Callers hold wf.mu.
func (m *Manager) dispatchAnalysisLocked(wf *Workflow, reason string) error {
	if err := wf.transitionLocked(StateAnalyzing, reason); err != nil {
		return err
	}
	req := AnalysisRequest{
		EntityID:  wf.entityID,
		Timestamp: wf.telemetry.Timestamp,
		Readings:  wf.telemetry.Readings,
		Attempt:   wf.retryCount,
	}
	return m.sendRequestLocked(wf, StageAnalysis, bus.PriorityNormal, req)
}

// sendRequestLocked publishes a collaborator request and arms its deadline.
// The deadline is registered before publishing so a fast responder can never
// acknowledge an unarmed request. Callers hold wf.mu.
func (m *Manager) sendRequestLocked(wf *Workflow, stage Stage, priority bus.Priority, body any) error {
	msg := bus.NewMessage(stage.requestType(), senderName,
		bus.WithCorrelationID(wf.correlationID),
		bus.WithPriority(priority),
		bus.WithTTL(m.requestTTL),
		bus.WithPayload(body))

	wf.pendingRequestID = msg.ID
	wf.pendingStage = stage
	m.trackPending(msg.ID, wf.entityID)

	if err := m.deadlines.Register(msg.ID, m.requestTimeout, m.onDeadlineExpired); err != nil {
		wf.pendingRequestID = ""
		wf.pendingStage = ""
		m.dropPending(msg.ID)
		return services.Wrap(services.ErrTransport, senderName, "arm deadline", string(stage), err)
	}
	if err := m.bus.Publish(stage.requestChannel(), msg); err != nil {
		m.deadlines.Acknowledge(msg.ID)
		m.dropPending(msg.ID)
		wf.pendingRequestID = ""
		wf.pendingStage = ""
		return services.Wrap(services.ErrTransport, senderName, "publish", string(stage), err)
	}

	m.logger.Info("request dispatched",
		logging.String("entity_id", wf.entityID),
		logging.String("correlation_id", wf.correlationID),
		logging.String("stage", string(stage)),
		logging.String("request_id", msg.ID),
		logging.String("priority", priority.String()))
	return nil
}

// SweepOnce runs a single maintenance pass: re-dispatch workflows whose retry
// backoff has elapsed and fail workflows that have made no progress within
// the staleness threshold. Exposed for tests and manual triggers.
func (m *Manager) SweepOnce() {
	now := time.Now().UTC()

	m.mu.RLock()
	live := make([]*Workflow, 0, len(m.workflows))
	for _, wf := range m.workflows {
		live = append(live, wf)
	}
	m.mu.RUnlock()

	for _, wf := range live {
		wf.mu.Lock()
		switch {
		case wf.state == StateIdle:
			if wf.nextRetryAt.IsZero() || now.Before(wf.nextRetryAt) {
				wf.mu.Unlock()
				continue
			}
			wf.nextRetryAt = time.Time{}
			reason := fmt.Sprintf("retry attempt %d", wf.retryCount)
			err := m.dispatchAnalysisLocked(wf, reason)
			wf.mu.Unlock()
			m.reportSendError(err)

		case !wf.state.Terminal() && now.Sub(wf.updatedAt) > m.staleAfter:
			stale := fmt.Sprintf("no progress in state %s for %s", wf.state, now.Sub(wf.updatedAt).Round(time.Second))
			m.logger.Warn("workflow stale",
				logging.String("entity_id", wf.entityID),
				logging.String("correlation_id", wf.correlationID),
				logging.String("state", string(wf.state)))
			if pending := wf.pendingRequestID; pending != "" {
				m.deadlines.Acknowledge(pending)
				m.dropPending(pending)
				wf.pendingRequestID = ""
				wf.pendingStage = ""
			}
			retired, status, snapshot := m.failLocked(wf, stale)
			wf.mu.Unlock()
			if retired {
				m.retire(wf, status, snapshot)
			}

		default:
			wf.mu.Unlock()
		}
	}
}
