package collab_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"manifold/internal/bus"
	"manifold/internal/collab"
	"manifold/internal/logging"
	"manifold/internal/workflow"
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

func newBus(t *testing.T) *bus.Bus {
	t.Helper()
	b := bus.New(bus.Options{Logger: logging.NewNop()})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := b.Stop(ctx); err != nil {
			t.Errorf("bus stop: %v", err)
		}
	})
	return b
}

func capture(t *testing.T, b *bus.Bus, channel bus.Channel) func() []bus.Message {
	t.Helper()
	var mu sync.Mutex
	var msgs []bus.Message
	_, err := b.Subscribe(channel, "capture", func(msg bus.Message) {
		mu.Lock()
		msgs = append(msgs, msg)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("subscribe capture: %v", err)
	}
	return func() []bus.Message {
		mu.Lock()
		defer mu.Unlock()
		out := make([]bus.Message, len(msgs))
		copy(out, msgs)
		return out
	}
}

func TestRuntimeAnswersWithReplyTo(t *testing.T) {
	b := newBus(t)
	rt := collab.NewRuntime(b, logging.NewNop())
	t.Cleanup(rt.Close)

	if err := rt.Attach(collab.SimulatedAnalyzer()); err != nil {
		t.Fatalf("attach: %v", err)
	}
	results := capture(t, b, bus.ChannelAnalysisResult)

	req := bus.NewMessage(bus.TypeAnalysisRequest, "orchestrator",
		bus.WithCorrelationID("wf-truck-1-abc"),
		bus.WithPayload(workflow.AnalysisRequest{EntityID: "truck-1"}))
	if err := b.Publish(bus.ChannelAnalysisRequest, req); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitFor(t, 2*time.Second, "analysis result", func() bool {
		return len(results()) == 1
	})

	reply := results()[0]
	if reply.ReplyTo != req.ID {
		t.Fatalf("ReplyTo = %q, want %q", reply.ReplyTo, req.ID)
	}
	if reply.CorrelationID != "wf-truck-1-abc" {
		t.Fatalf("CorrelationID = %q", reply.CorrelationID)
	}
	res, ok := reply.Payload.(workflow.AnalysisResult)
	if !ok {
		t.Fatalf("payload = %T", reply.Payload)
	}
	if res.EntityID != "truck-1" || res.PredictedDaysToFailure != 365 {
		t.Fatalf("unexpected default result %+v", res)
	}
}

func TestScriptedReadingsDriveAnalyzer(t *testing.T) {
	b := newBus(t)
	rt := collab.NewRuntime(b, logging.NewNop())
	t.Cleanup(rt.Close)

	if err := rt.Attach(collab.SimulatedAnalyzer()); err != nil {
		t.Fatalf("attach: %v", err)
	}
	results := capture(t, b, bus.ChannelAnalysisResult)

	req := bus.NewMessage(bus.TypeAnalysisRequest, "orchestrator",
		bus.WithPayload(workflow.AnalysisRequest{
			EntityID: "truck-2",
			Readings: map[string]float64{
				collab.ReadingDaysToFailure:      2,
				collab.ReadingFailureProbability: 0.7,
				collab.ReadingAnomaly:            1,
			},
		}))
	if err := b.Publish(bus.ChannelAnalysisRequest, req); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitFor(t, 2*time.Second, "analysis result", func() bool {
		return len(results()) == 1
	})

	res := results()[0].Payload.(workflow.AnalysisResult)
	if res.PredictedDaysToFailure != 2 || res.FailureProbability != 0.7 || !res.AnomalyDetected {
		t.Fatalf("unexpected scripted result %+v", res)
	}
	if res.Component == "" {
		t.Fatal("expected a component on an anomalous result")
	}
}

func TestResponderErrorPublishesSystemError(t *testing.T) {
	b := newBus(t)
	rt := collab.NewRuntime(b, logging.NewNop())
	t.Cleanup(rt.Close)

	err := rt.Attach(collab.Collaborator{
		Name:    "flaky",
		Request: bus.ChannelAnalysisRequest,
		Result:  bus.ChannelAnalysisResult,
		Type:    bus.TypeAnalysisResult,
		Respond: func(msg bus.Message) (any, error) {
			return nil, errors.New("model crashed")
		},
	})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	reports := capture(t, b, bus.ChannelSystemError)

	req := bus.NewMessage(bus.TypeAnalysisRequest, "orchestrator",
		bus.WithPayload(workflow.AnalysisRequest{EntityID: "truck-3"}))
	if err := b.Publish(bus.ChannelAnalysisRequest, req); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitFor(t, 2*time.Second, "system error report", func() bool {
		return len(reports()) == 1
	})

	report := reports()[0].Payload.(workflow.ErrorReport)
	if report.EntityID != "truck-3" || report.Stage != "flaky" || report.Reason != "model crashed" {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestSimulatedEngagerResponses(t *testing.T) {
	engager := collab.SimulatedEngager()

	tests := []struct {
		urgency string
		want    string
	}{
		{"critical", "accepted"},
		{"high", "accepted"},
		{"normal", "interested"},
		{"low", "declined"},
	}
	for _, tc := range tests {
		msg := bus.NewMessage(bus.TypeEngagementRequest, "orchestrator",
			bus.WithPayload(workflow.EngagementRequest{EntityID: "truck-4", Urgency: tc.urgency}))
		payload, err := engager.Respond(msg)
		if err != nil {
			t.Fatalf("respond(%s): %v", tc.urgency, err)
		}
		res := payload.(workflow.EngagementResult)
		if res.Response != tc.want {
			t.Errorf("urgency %s: response = %q, want %q", tc.urgency, res.Response, tc.want)
		}
	}
}

func TestSimulatedSchedulerPublishesFollowUpCompletion(t *testing.T) {
	b := newBus(t)
	rt := collab.NewRuntime(b, logging.NewNop())
	t.Cleanup(rt.Close)

	if err := rt.Attach(collab.SimulatedScheduler(rt, 10*time.Millisecond)); err != nil {
		t.Fatalf("attach: %v", err)
	}
	results := capture(t, b, bus.ChannelSchedulingResult)

	req := bus.NewMessage(bus.TypeSchedulingRequest, "orchestrator",
		bus.WithPayload(workflow.SchedulingRequest{EntityID: "truck-5", Urgency: "high"}))
	if err := b.Publish(bus.ChannelSchedulingRequest, req); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitFor(t, 2*time.Second, "confirmation and completion", func() bool {
		return len(results()) == 2
	})

	first := results()[0].Payload.(workflow.SchedulingResult)
	second := results()[1].Payload.(workflow.SchedulingResult)
	if first.Disposition != "confirmed" || second.Disposition != "completed" {
		t.Fatalf("dispositions = %q, %q", first.Disposition, second.Disposition)
	}
	if first.SlotID == "" || first.SlotID != second.SlotID {
		t.Fatalf("slot ids = %q, %q", first.SlotID, second.SlotID)
	}
	if results()[0].ReplyTo != req.ID {
		t.Fatalf("confirmation ReplyTo = %q, want %q", results()[0].ReplyTo, req.ID)
	}
	if results()[1].ReplyTo != "" {
		t.Fatal("completion signal should not carry ReplyTo")
	}
}

func TestCloseCancelsScheduledPublishes(t *testing.T) {
	b := newBus(t)
	rt := collab.NewRuntime(b, logging.NewNop())

	results := capture(t, b, bus.ChannelSchedulingResult)
	msg := bus.NewMessage(bus.TypeSchedulingResult, "scheduler-sim",
		bus.WithPayload(workflow.SchedulingResult{EntityID: "truck-6", Disposition: "completed"}))
	rt.PublishAfter(50*time.Millisecond, bus.ChannelSchedulingResult, msg)
	rt.Close()

	time.Sleep(80 * time.Millisecond)
	if got := len(results()); got != 0 {
		t.Fatalf("expected no publishes after close, got %d", got)
	}
}
