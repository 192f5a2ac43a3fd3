package collab

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"manifold/internal/bus"
	"manifold/internal/workflow"
)

// Reading keys the simulated analyzer interprets. Telemetry records script
// their own outcomes by carrying these keys; anything else flows through as
// plain sensor data.
const (
	ReadingDaysToFailure      = "days_to_failure"
	ReadingFailureProbability = "failure_probability"
	ReadingAnomaly            = "anomaly"
)

// SimulatedAnalyzer answers analysis requests from the scripted reading keys,
// defaulting to a healthy prediction when none are present.
func SimulatedAnalyzer() Collaborator {
	return Collaborator{
		Name:    "analyzer-sim",
		Request: bus.ChannelAnalysisRequest,
		Result:  bus.ChannelAnalysisResult,
		Type:    bus.TypeAnalysisResult,
		Respond: func(msg bus.Message) (any, error) {
			req, ok := msg.Payload.(workflow.AnalysisRequest)
			if !ok {
				return nil, fmt.Errorf("unexpected payload %T", msg.Payload)
			}

			days := 365.0
			if v, ok := req.Readings[ReadingDaysToFailure]; ok {
				days = v
			}
			probability := 0.05
			if v, ok := req.Readings[ReadingFailureProbability]; ok {
				probability = v
			}
			anomaly := req.Readings[ReadingAnomaly] > 0

			res := workflow.AnalysisResult{
				EntityID:               req.EntityID,
				PredictedDaysToFailure: days,
				FailureProbability:     probability,
				AnomalyDetected:        anomaly,
				Summary:                fmt.Sprintf("predicted %.1f days to failure (p=%.2f)", days, probability),
			}
			if anomaly || probability > 0.5 {
				res.Component = "powertrain"
			}
			return res, nil
		},
	}
}

// SimulatedEngager accepts urgent engagements and declines the rest, the way
// a responsive customer would.
func SimulatedEngager() Collaborator {
	return Collaborator{
		Name:    "engager-sim",
		Request: bus.ChannelEngagementRequest,
		Result:  bus.ChannelEngagementResult,
		Type:    bus.TypeEngagementResult,
		Respond: func(msg bus.Message) (any, error) {
			req, ok := msg.Payload.(workflow.EngagementRequest)
			if !ok {
				return nil, fmt.Errorf("unexpected payload %T", msg.Payload)
			}

			var response string
			switch workflow.Urgency(req.Urgency) {
			case workflow.UrgencyCritical, workflow.UrgencyHigh:
				response = "accepted"
			case workflow.UrgencyNormal:
				response = "interested"
			default:
				response = "declined"
			}
			return workflow.EngagementResult{
				EntityID: req.EntityID,
				Response: response,
				Notes:    "simulated customer reply",
			}, nil
		},
	}
}

// SimulatedScheduler confirms every booking with a generated slot and, when
// completeAfter is positive, publishes the external completion signal after
// that delay.
func SimulatedScheduler(rt *Runtime, completeAfter time.Duration) Collaborator {
	const name = "scheduler-sim"
	return Collaborator{
		Name:    name,
		Request: bus.ChannelSchedulingRequest,
		Result:  bus.ChannelSchedulingResult,
		Type:    bus.TypeSchedulingResult,
		Respond: func(msg bus.Message) (any, error) {
			req, ok := msg.Payload.(workflow.SchedulingRequest)
			if !ok {
				return nil, fmt.Errorf("unexpected payload %T", msg.Payload)
			}

			slotID := "slot-" + uuid.NewString()[:8]
			scheduledAt := time.Now().UTC().Add(24 * time.Hour)

			if completeAfter > 0 {
				done := bus.NewMessage(bus.TypeSchedulingResult, name,
					bus.WithCorrelationID(msg.CorrelationID),
					bus.WithPayload(workflow.SchedulingResult{
						EntityID:    req.EntityID,
						Disposition: "completed",
						SlotID:      slotID,
						Outcome:     "maintenance performed (simulated)",
					}))
				rt.PublishAfter(completeAfter, bus.ChannelSchedulingResult, done)
			}

			return workflow.SchedulingResult{
				EntityID:    req.EntityID,
				Disposition: "confirmed",
				SlotID:      slotID,
				ScheduledAt: scheduledAt,
			}, nil
		},
	}
}

// Simulated returns the full simulated collaborator set.
func Simulated(rt *Runtime, completeAfter time.Duration) []Collaborator {
	return []Collaborator{
		SimulatedAnalyzer(),
		SimulatedEngager(),
		SimulatedScheduler(rt, completeAfter),
	}
}
