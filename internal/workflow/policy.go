package workflow

import (
	"fmt"
	"strings"

	"manifold/internal/bus"
)

// Urgency classifies how quickly an entity needs attention. It drives both
// the next stage selection and the priority of outgoing requests.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyNormal   Urgency = "normal"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Priority maps an urgency class to the bus priority its requests ride at.
func (u Urgency) Priority() bus.Priority {
	switch u {
	case UrgencyCritical:
		return bus.PriorityCritical
	case UrgencyHigh:
		return bus.PriorityHigh
	default:
		return bus.PriorityNormal
	}
}

// AnalysisDecision selects the stage after assessment.
type AnalysisDecision struct {
	Engage  bool
	Urgency Urgency
	Reason  string
}

// EngagementDecision selects the stage after an engagement reply.
type EngagementDecision struct {
	Schedule bool
	Reason   string
}

// SchedulingOutcome classifies a scheduling result.
type SchedulingOutcome int

const (
	SchedulingUnknown SchedulingOutcome = iota
	// SchedulingConfirmed means the booking is reserved and the workflow
	// waits for the external work to happen.
	SchedulingConfirmed
	// SchedulingCompleted is the external completion signal.
	SchedulingCompleted
	// SchedulingFailed aborts the booking and routes through retry.
	SchedulingFailed
)

// SchedulingDecision interprets a scheduling result.
type SchedulingDecision struct {
	Outcome SchedulingOutcome
	Reason  string
}

// DecisionPolicy maps collaborator results to routing decisions. The
// orchestrator invokes it but never computes urgency itself, so business
// thresholds stay swappable.
type DecisionPolicy interface {
	AssessAnalysis(AnalysisResult) AnalysisDecision
	AssessEngagement(EngagementResult) EngagementDecision
	AssessScheduling(SchedulingResult) SchedulingDecision
}

// StandardPolicy is the default maintenance policy: urgency follows the
// predicted days to failure, and anomaly signals force engagement even when
// the prediction itself is not time-critical.
type StandardPolicy struct {
	// CriticalWithinDays and friends are exclusive upper bounds on the
	// predicted days to failure for each urgency class.
	CriticalWithinDays float64
	HighWithinDays     float64
	NormalWithinDays   float64
	// ProbabilityFloor forces engagement when the failure probability
	// exceeds it, regardless of the predicted horizon.
	ProbabilityFloor float64
}

// NewStandardPolicy returns the policy with production thresholds.
func NewStandardPolicy() *StandardPolicy {
	return &StandardPolicy{
		CriticalWithinDays: 1,
		HighWithinDays:     7,
		NormalWithinDays:   30,
		ProbabilityFloor:   0.3,
	}
}

// AssessAnalysis classifies urgency from the failure prediction. A
// prediction of zero or less means the collaborator produced no horizon and
// contributes no time urgency.
func (p *StandardPolicy) AssessAnalysis(res AnalysisResult) AnalysisDecision {
	urgency := UrgencyLow
	days := res.PredictedDaysToFailure
	if days > 0 {
		switch {
		case days < p.CriticalWithinDays:
			urgency = UrgencyCritical
		case days < p.HighWithinDays:
			urgency = UrgencyHigh
		case days < p.NormalWithinDays:
			urgency = UrgencyNormal
		}
	}

	if urgency != UrgencyLow {
		return AnalysisDecision{
			Engage:  true,
			Urgency: urgency,
			Reason:  fmt.Sprintf("predicted failure in %.1f days", days),
		}
	}
	if res.AnomalyDetected || res.FailureProbability > p.ProbabilityFloor {
		return AnalysisDecision{
			Engage:  true,
			Urgency: UrgencyNormal,
			Reason:  fmt.Sprintf("anomaly signals (probability %.2f)", res.FailureProbability),
		}
	}
	return AnalysisDecision{Engage: false, Urgency: UrgencyLow, Reason: "no action required"}
}

// AssessEngagement schedules when the customer accepted or showed interest.
func (p *StandardPolicy) AssessEngagement(res EngagementResult) EngagementDecision {
	switch strings.ToLower(strings.TrimSpace(res.Response)) {
	case "accepted", "interested":
		return EngagementDecision{Schedule: true, Reason: "customer accepted engagement"}
	default:
		return EngagementDecision{Schedule: false, Reason: "customer declined engagement"}
	}
}

// AssessScheduling interprets the collaborator's disposition tag.
func (p *StandardPolicy) AssessScheduling(res SchedulingResult) SchedulingDecision {
	switch strings.ToLower(strings.TrimSpace(res.Disposition)) {
	case "confirmed", "booked":
		return SchedulingDecision{Outcome: SchedulingConfirmed, Reason: "booking confirmed"}
	case "completed", "done":
		return SchedulingDecision{Outcome: SchedulingCompleted, Reason: "external completion signal"}
	case "failed", "aborted":
		return SchedulingDecision{Outcome: SchedulingFailed, Reason: "scheduling failed"}
	default:
		return SchedulingDecision{Outcome: SchedulingUnknown, Reason: fmt.Sprintf("unknown disposition %q", res.Disposition)}
	}
}
