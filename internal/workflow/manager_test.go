package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"manifold/internal/bus"
	"manifold/internal/config"
	"manifold/internal/ingest"
	"manifold/internal/logging"
	"manifold/internal/services"
	"manifold/internal/testsupport"
)

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type harness struct {
	cfg *config.Config
	bus *bus.Bus
	mgr *Manager
}

// newHarness builds a manager wired to a fresh bus, archive, and the given
// source. Loop intervals are parked at an hour so tests drive cycles through
// IngestOnce and SweepOnce; Start still runs one ingestion pass immediately.
func newHarness(t *testing.T, source ingest.Source, cfgOpts []testsupport.ConfigOption, opts ...Option) *harness {
	t.Helper()

	cfgOpts = append([]testsupport.ConfigOption{func(cfg *config.Config) {
		cfg.Workflow.PollInterval = 3600
		cfg.Workflow.SweepInterval = 3600
	}}, cfgOpts...)
	cfg := testsupport.NewConfig(t, cfgOpts...)

	b := bus.New(bus.Options{Logger: logging.NewNop()})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := b.Stop(ctx); err != nil {
			t.Errorf("bus stop: %v", err)
		}
	})

	store := testsupport.MustOpenArchive(t, cfg)
	base := []Option{
		WithArchive(store),
		WithRequestTimeout(500 * time.Millisecond),
		WithDeadlineSweep(5 * time.Millisecond),
		WithRetryBackoff(5 * time.Millisecond),
	}
	mgr := NewManager(cfg, b, source, logging.NewNop(), append(base, opts...)...)
	t.Cleanup(mgr.Stop)
	return &harness{cfg: cfg, bus: b, mgr: mgr}
}

// respondTo wires a scripted collaborator: for every message on the request
// channel it publishes build's payload on the result channel, mirroring the
// correlation id and answering with ReplyTo. Returning false from build
// leaves the request unanswered.
func respondTo(t *testing.T, b *bus.Bus, name string, requestChannel, resultChannel bus.Channel, resultType bus.MessageType, build func(bus.Message) (any, bool)) {
	t.Helper()
	_, err := b.Subscribe(requestChannel, name, func(msg bus.Message) {
		payload, ok := build(msg)
		if !ok {
			return
		}
		reply := bus.NewMessage(resultType, name,
			bus.WithCorrelationID(msg.CorrelationID),
			bus.WithReplyTo(msg.ID),
			bus.WithPayload(payload))
		if err := b.Publish(resultChannel, reply); err != nil {
			t.Logf("%s publish failed: %v", name, err)
		}
	})
	if err != nil {
		t.Fatalf("subscribe %s: %v", name, err)
	}
}

// captureMessages records every message on a channel and returns an accessor
// for the snapshot so far.
func captureMessages(t *testing.T, b *bus.Bus, channel bus.Channel, name string) func() []bus.Message {
	t.Helper()
	var mu sync.Mutex
	var msgs []bus.Message
	_, err := b.Subscribe(channel, name, func(msg bus.Message) {
		mu.Lock()
		msgs = append(msgs, msg)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("subscribe %s: %v", name, err)
	}
	return func() []bus.Message {
		mu.Lock()
		defer mu.Unlock()
		out := make([]bus.Message, len(msgs))
		copy(out, msgs)
		return out
	}
}

func assertHistoryPath(t *testing.T, history []Transition, want []State) {
	t.Helper()
	if len(history) != len(want)-1 {
		t.Fatalf("history has %d transitions, want %d: %+v", len(history), len(want)-1, history)
	}
	for i, entry := range history {
		if entry.From != want[i] || entry.To != want[i+1] {
			t.Fatalf("transition %d = %s -> %s, want %s -> %s", i, entry.From, entry.To, want[i], want[i+1])
		}
	}
}

func TestNoActionPredictionCompletesWorkflow(t *testing.T) {
	source := ingest.NewStaticSource(ingest.Record{
		EntityID: "truck-1",
		Readings: map[string]float64{"oil_temp": 88},
	})
	h := newHarness(t, source, nil)

	respondTo(t, h.bus, "analyzer", bus.ChannelAnalysisRequest, bus.ChannelAnalysisResult, bus.TypeAnalysisResult, func(msg bus.Message) (any, bool) {
		req, ok := msg.Payload.(AnalysisRequest)
		if !ok {
			t.Errorf("analysis request payload = %T", msg.Payload)
			return nil, false
		}
		return AnalysisResult{
			EntityID:               req.EntityID,
			PredictedDaysToFailure: 120,
			FailureProbability:     0.01,
		}, true
	})
	engagements := captureMessages(t, h.bus, bus.ChannelEngagementRequest, "capture")
	insights := captureMessages(t, h.bus, bus.ChannelQualityInsight, "capture")

	ctx := context.Background()
	if err := h.mgr.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, 5*time.Second, "workflow retirement", func() bool {
		st, err := h.mgr.WorkflowStatus(ctx, "truck-1")
		return err == nil && st.Archived && st.State == StateCompleted
	})

	st, err := h.mgr.WorkflowStatus(ctx, "truck-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.FailureReason != "" {
		t.Fatalf("unexpected failure reason %q", st.FailureReason)
	}
	assertHistoryPath(t, st.History, []State{StateIdle, StateAnalyzing, StateAssessing, StateCompleted})

	if got := engagements(); len(got) != 0 {
		t.Fatalf("expected no engagement requests, got %d", len(got))
	}

	waitFor(t, 2*time.Second, "quality insight", func() bool {
		return len(insights()) == 1
	})
	insight, ok := insights()[0].Payload.(Insight)
	if !ok {
		t.Fatalf("insight payload = %T", insights()[0].Payload)
	}
	if insight.EntityID != "truck-1" || insight.FinalState != StateCompleted || insight.FailureReason != "" {
		t.Fatalf("unexpected insight %+v", insight)
	}

	stats := h.mgr.Statistics(ctx)
	if stats.TotalIngested != 1 || stats.TotalCompleted != 1 || stats.TotalFailed != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(h.mgr.Workflows()) != 0 {
		t.Fatal("live set should be empty after retirement")
	}
}

func TestUrgentPredictionRunsFullPipeline(t *testing.T) {
	source := ingest.NewStaticSource(ingest.Record{
		EntityID: "truck-2",
		Readings: map[string]float64{"vibration": 9.4},
	})
	h := newHarness(t, source, nil)

	respondTo(t, h.bus, "analyzer", bus.ChannelAnalysisRequest, bus.ChannelAnalysisResult, bus.TypeAnalysisResult, func(msg bus.Message) (any, bool) {
		req := msg.Payload.(AnalysisRequest)
		return AnalysisResult{
			EntityID:               req.EntityID,
			PredictedDaysToFailure: 0.5,
			FailureProbability:     0.9,
			Component:              "bearing",
		}, true
	})
	engagements := captureMessages(t, h.bus, bus.ChannelEngagementRequest, "capture")
	respondTo(t, h.bus, "engager", bus.ChannelEngagementRequest, bus.ChannelEngagementResult, bus.TypeEngagementResult, func(msg bus.Message) (any, bool) {
		req := msg.Payload.(EngagementRequest)
		return EngagementResult{EntityID: req.EntityID, Response: "accepted"}, true
	})
	respondTo(t, h.bus, "scheduler", bus.ChannelSchedulingRequest, bus.ChannelSchedulingResult, bus.TypeSchedulingResult, func(msg bus.Message) (any, bool) {
		req := msg.Payload.(SchedulingRequest)
		return SchedulingResult{EntityID: req.EntityID, Disposition: "confirmed", SlotID: "slot-19"}, true
	})

	ctx := context.Background()
	if err := h.mgr.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, 5*time.Second, "booking confirmation", func() bool {
		st, err := h.mgr.WorkflowStatus(ctx, "truck-2")
		return err == nil && !st.Archived && st.State == StateAwaitingExternal
	})

	sent := engagements()
	if len(sent) != 1 {
		t.Fatalf("engagement requests = %d, want 1", len(sent))
	}
	if sent[0].Priority != bus.PriorityCritical {
		t.Fatalf("engagement priority = %s, want %s", sent[0].Priority, bus.PriorityCritical)
	}
	engReq := sent[0].Payload.(EngagementRequest)
	if engReq.Urgency != string(UrgencyCritical) || engReq.Component != "bearing" {
		t.Fatalf("unexpected engagement request %+v", engReq)
	}

	st, err := h.mgr.WorkflowStatus(ctx, "truck-2")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	done := bus.NewMessage(bus.TypeSchedulingResult, "maintenance-crew",
		bus.WithCorrelationID(st.CorrelationID),
		bus.WithPayload(SchedulingResult{
			EntityID:    "truck-2",
			Disposition: "completed",
			Outcome:     "bearing replaced",
		}))
	if err := h.bus.Publish(bus.ChannelSchedulingResult, done); err != nil {
		t.Fatalf("publish completion: %v", err)
	}

	waitFor(t, 5*time.Second, "workflow retirement", func() bool {
		st, err := h.mgr.WorkflowStatus(ctx, "truck-2")
		return err == nil && st.Archived && st.State == StateCompleted
	})

	final, err := h.mgr.WorkflowStatus(ctx, "truck-2")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if final.FailureReason != "" {
		t.Fatalf("unexpected failure reason %q", final.FailureReason)
	}
	if final.Urgency != UrgencyCritical {
		t.Fatalf("urgency = %s, want %s", final.Urgency, UrgencyCritical)
	}
	assertHistoryPath(t, final.History, []State{
		StateIdle,
		StateAnalyzing,
		StateAssessing,
		StateEngaging,
		StateScheduling,
		StateAwaitingExternal,
		StateCollectingOutcome,
		StateCompleted,
	})
}

func TestDeadlineExpiryEmitsOneTimeoutAndRetries(t *testing.T) {
	source := ingest.NewStaticSource(ingest.Record{EntityID: "truck-3"})
	h := newHarness(t, source, nil, WithRequestTimeout(30*time.Millisecond))

	analyses := captureMessages(t, h.bus, bus.ChannelAnalysisRequest, "capture")
	timeouts := captureMessages(t, h.bus, bus.ChannelSystemTimeout, "capture")
	respondTo(t, h.bus, "analyzer", bus.ChannelAnalysisRequest, bus.ChannelAnalysisResult, bus.TypeAnalysisResult, func(msg bus.Message) (any, bool) {
		req := msg.Payload.(AnalysisRequest)
		if req.Attempt == 0 {
			return AnalysisResult{EntityID: req.EntityID, PredictedDaysToFailure: 2}, true
		}
		return AnalysisResult{EntityID: req.EntityID, PredictedDaysToFailure: 400}, true
	})
	// No engagement collaborator: the first attempt's engagement request
	// expires and routes the workflow through the retry path.

	ctx := context.Background()
	if err := h.mgr.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, 5*time.Second, "retry scheduled after timeout", func() bool {
		st, err := h.mgr.WorkflowStatus(ctx, "truck-3")
		return err == nil && !st.Archived && st.State == StateIdle && st.RetryCount == 1
	})

	time.Sleep(10 * time.Millisecond)
	h.mgr.SweepOnce()

	waitFor(t, 5*time.Second, "workflow retirement after retry", func() bool {
		st, err := h.mgr.WorkflowStatus(ctx, "truck-3")
		return err == nil && st.Archived && st.State == StateCompleted
	})

	final, err := h.mgr.WorkflowStatus(ctx, "truck-3")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if final.FailureReason != "" {
		t.Fatalf("retried workflow should complete cleanly, got failure %q", final.FailureReason)
	}
	if final.RetryCount != 1 {
		t.Fatalf("retry count = %d, want 1", final.RetryCount)
	}

	notices := timeouts()
	if len(notices) != 1 {
		t.Fatalf("timeout notices = %d, want exactly 1", len(notices))
	}
	notice := notices[0].Payload.(TimeoutNotice)
	if notice.EntityID != "truck-3" || notice.Stage != string(StageEngagement) {
		t.Fatalf("unexpected timeout notice %+v", notice)
	}
	if notices[0].Priority != bus.PriorityHigh {
		t.Fatalf("timeout notice priority = %s, want %s", notices[0].Priority, bus.PriorityHigh)
	}

	requests := analyses()
	if len(requests) != 2 {
		t.Fatalf("analysis requests = %d, want 2", len(requests))
	}
	first := requests[0].Payload.(AnalysisRequest)
	second := requests[1].Payload.(AnalysisRequest)
	if first.Attempt != 0 || second.Attempt != 1 {
		t.Fatalf("attempts = %d, %d, want 0, 1", first.Attempt, second.Attempt)
	}

	stats := h.mgr.Statistics(ctx)
	if stats.TotalTimeouts != 1 || stats.TotalRetries != 1 || stats.TotalErrors != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestRetryBudgetExhaustionForcesTerminalFailure(t *testing.T) {
	source := ingest.NewStaticSource(ingest.Record{EntityID: "truck-4"})
	h := newHarness(t, source, []testsupport.ConfigOption{testsupport.WithMaxRetries(1)})

	respondTo(t, h.bus, "analyzer", bus.ChannelAnalysisRequest, bus.ChannelAnalysisResult, bus.TypeAnalysisResult, func(msg bus.Message) (any, bool) {
		req := msg.Payload.(AnalysisRequest)
		return AnalysisResult{EntityID: req.EntityID, Error: "sensor stream corrupt"}, true
	})
	insights := captureMessages(t, h.bus, bus.ChannelQualityInsight, "capture")

	ctx := context.Background()
	if err := h.mgr.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, 5*time.Second, "retry scheduled", func() bool {
		st, err := h.mgr.WorkflowStatus(ctx, "truck-4")
		return err == nil && !st.Archived && st.State == StateIdle && st.RetryCount == 1
	})

	time.Sleep(10 * time.Millisecond)
	h.mgr.SweepOnce()

	waitFor(t, 5*time.Second, "terminal failure", func() bool {
		st, err := h.mgr.WorkflowStatus(ctx, "truck-4")
		return err == nil && st.Archived && st.State == StateCompleted
	})

	final, err := h.mgr.WorkflowStatus(ctx, "truck-4")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(final.FailureReason, "analysis failed: sensor stream corrupt") {
		t.Fatalf("failure reason = %q", final.FailureReason)
	}
	if final.RetryCount != 1 {
		t.Fatalf("retry count = %d, want 1", final.RetryCount)
	}
	if final.ErrorCount != 2 {
		t.Fatalf("error count = %d, want 2", final.ErrorCount)
	}

	waitFor(t, 2*time.Second, "failure insight", func() bool {
		return len(insights()) == 1
	})
	insight := insights()[0].Payload.(Insight)
	if insight.FailureReason == "" || insight.RetryCount != 1 {
		t.Fatalf("unexpected insight %+v", insight)
	}

	stats := h.mgr.Statistics(ctx)
	if stats.TotalFailed != 1 || stats.TotalCompleted != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.TotalErrors != 2 || stats.TotalRetries != 1 {
		t.Fatalf("unexpected error counters %+v", stats)
	}
	if len(h.mgr.Workflows()) != 0 {
		t.Fatal("live set should be empty after terminal failure")
	}
}

func TestConcurrentRecordsMergeIntoOneWorkflow(t *testing.T) {
	source := ingest.NewStaticSource(
		ingest.Record{EntityID: "truck-5", Readings: map[string]float64{"oil_temp": 91}},
		ingest.Record{EntityID: "truck-5", Readings: map[string]float64{"vibration": 2.2}},
	)
	h := newHarness(t, source, nil)

	analyses := captureMessages(t, h.bus, bus.ChannelAnalysisRequest, "capture")
	respondTo(t, h.bus, "analyzer", bus.ChannelAnalysisRequest, bus.ChannelAnalysisResult, bus.TypeAnalysisResult, func(msg bus.Message) (any, bool) {
		// Hold the reply long enough for the second record to merge.
		time.Sleep(25 * time.Millisecond)
		req := msg.Payload.(AnalysisRequest)
		return AnalysisResult{EntityID: req.EntityID, PredictedDaysToFailure: 400}, true
	})

	ctx := context.Background()
	if err := h.mgr.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, 5*time.Second, "second record merged", func() bool {
		st, err := h.mgr.WorkflowStatus(ctx, "truck-5")
		return err == nil && !st.Archived && st.MergedInputs == 1
	})

	waitFor(t, 5*time.Second, "workflow retirement", func() bool {
		st, err := h.mgr.WorkflowStatus(ctx, "truck-5")
		return err == nil && st.Archived && st.State == StateCompleted
	})

	if got := len(analyses()); got != 1 {
		t.Fatalf("analysis requests = %d, want 1", got)
	}
	stats := h.mgr.Statistics(ctx)
	if stats.TotalIngested != 1 {
		t.Fatalf("total ingested = %d, want 1", stats.TotalIngested)
	}
	if stats.TotalMerged != 1 {
		t.Fatalf("total merged = %d, want 1", stats.TotalMerged)
	}
}

func TestStaleWorkflowFailsViaSweep(t *testing.T) {
	source := ingest.NewStaticSource(ingest.Record{EntityID: "truck-6"})
	h := newHarness(t, source,
		[]testsupport.ConfigOption{testsupport.WithMaxRetries(0)},
		WithStaleAfter(20*time.Millisecond))

	respondTo(t, h.bus, "analyzer", bus.ChannelAnalysisRequest, bus.ChannelAnalysisResult, bus.TypeAnalysisResult, func(msg bus.Message) (any, bool) {
		req := msg.Payload.(AnalysisRequest)
		return AnalysisResult{EntityID: req.EntityID, PredictedDaysToFailure: 2}, true
	})
	respondTo(t, h.bus, "engager", bus.ChannelEngagementRequest, bus.ChannelEngagementResult, bus.TypeEngagementResult, func(msg bus.Message) (any, bool) {
		req := msg.Payload.(EngagementRequest)
		return EngagementResult{EntityID: req.EntityID, Response: "accepted"}, true
	})
	respondTo(t, h.bus, "scheduler", bus.ChannelSchedulingRequest, bus.ChannelSchedulingResult, bus.TypeSchedulingResult, func(msg bus.Message) (any, bool) {
		req := msg.Payload.(SchedulingRequest)
		return SchedulingResult{EntityID: req.EntityID, Disposition: "confirmed", SlotID: "slot-3"}, true
	})
	// The external completion signal never arrives.

	ctx := context.Background()
	if err := h.mgr.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, 5*time.Second, "booking confirmation", func() bool {
		st, err := h.mgr.WorkflowStatus(ctx, "truck-6")
		return err == nil && !st.Archived && st.State == StateAwaitingExternal
	})

	time.Sleep(30 * time.Millisecond)
	h.mgr.SweepOnce()

	waitFor(t, 5*time.Second, "stale retirement", func() bool {
		st, err := h.mgr.WorkflowStatus(ctx, "truck-6")
		return err == nil && st.Archived && st.State == StateCompleted
	})

	final, err := h.mgr.WorkflowStatus(ctx, "truck-6")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(final.FailureReason, "no progress") {
		t.Fatalf("failure reason = %q", final.FailureReason)
	}
	stats := h.mgr.Statistics(ctx)
	if stats.TotalFailed != 1 {
		t.Fatalf("total failed = %d, want 1", stats.TotalFailed)
	}
}

func TestNewRecordAfterCompletionStartsFreshWorkflow(t *testing.T) {
	source := ingest.NewStaticSource(ingest.Record{EntityID: "truck-7"})
	h := newHarness(t, source, nil)

	respondTo(t, h.bus, "analyzer", bus.ChannelAnalysisRequest, bus.ChannelAnalysisResult, bus.TypeAnalysisResult, func(msg bus.Message) (any, bool) {
		req := msg.Payload.(AnalysisRequest)
		return AnalysisResult{EntityID: req.EntityID, PredictedDaysToFailure: 400}, true
	})

	ctx := context.Background()
	if err := h.mgr.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, 5*time.Second, "first retirement", func() bool {
		st, err := h.mgr.WorkflowStatus(ctx, "truck-7")
		return err == nil && st.Archived && st.State == StateCompleted
	})
	first, err := h.mgr.WorkflowStatus(ctx, "truck-7")
	if err != nil {
		t.Fatalf("status: %v", err)
	}

	source.Push(ingest.Record{EntityID: "truck-7", Readings: map[string]float64{"oil_temp": 99}})
	if err := h.mgr.IngestOnce(ctx); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	waitFor(t, 5*time.Second, "second retirement", func() bool {
		st, err := h.mgr.WorkflowStatus(ctx, "truck-7")
		return err == nil && st.Archived && st.CorrelationID != first.CorrelationID
	})

	stats := h.mgr.Statistics(ctx)
	if stats.TotalIngested != 2 {
		t.Fatalf("total ingested = %d, want 2", stats.TotalIngested)
	}
	if stats.TotalCompleted != 2 {
		t.Fatalf("total completed = %d, want 2", stats.TotalCompleted)
	}
}

func TestSystemErrorFailsLiveWorkflow(t *testing.T) {
	source := ingest.NewStaticSource(ingest.Record{EntityID: "truck-8"})
	h := newHarness(t, source, []testsupport.ConfigOption{testsupport.WithMaxRetries(0)})

	// The analyzer never replies; an out-of-band error report arrives
	// instead, as a collaborator would publish on an internal fault.
	ctx := context.Background()
	if err := h.mgr.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, 5*time.Second, "analysis dispatched", func() bool {
		st, err := h.mgr.WorkflowStatus(ctx, "truck-8")
		return err == nil && st.State == StateAnalyzing
	})

	report := bus.NewMessage(bus.TypeSystemError, "analyzer",
		bus.WithPriority(bus.PriorityHigh),
		bus.WithPayload(ErrorReport{EntityID: "truck-8", Stage: "analysis", Reason: "model crashed"}))
	if err := h.bus.Publish(bus.ChannelSystemError, report); err != nil {
		t.Fatalf("publish error report: %v", err)
	}

	waitFor(t, 5*time.Second, "terminal failure", func() bool {
		st, err := h.mgr.WorkflowStatus(ctx, "truck-8")
		return err == nil && st.Archived && st.State == StateCompleted
	})

	final, err := h.mgr.WorkflowStatus(ctx, "truck-8")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(final.FailureReason, "model crashed") {
		t.Fatalf("failure reason = %q", final.FailureReason)
	}
}

func TestWorkflowStatusValidation(t *testing.T) {
	h := newHarness(t, ingest.NewStaticSource(), nil)
	ctx := context.Background()

	if _, err := h.mgr.WorkflowStatus(ctx, "ghost"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("unknown entity error = %v, want ErrNotFound", err)
	}
	if _, err := h.mgr.WorkflowStatus(ctx, "  "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("blank entity error = %v, want ErrValidation", err)
	}
}

func TestStartRejectsSecondStart(t *testing.T) {
	h := newHarness(t, ingest.NewStaticSource(), nil)
	ctx := context.Background()

	if err := h.mgr.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.mgr.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}
}
