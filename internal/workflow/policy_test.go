package workflow

import (
	"testing"

	"manifold/internal/bus"
)

func TestStandardPolicyAnalysisDecisions(t *testing.T) {
	policy := NewStandardPolicy()

	tests := []struct {
		name        string
		result      AnalysisResult
		wantEngage  bool
		wantUrgency Urgency
	}{
		{
			name:        "imminent failure is critical",
			result:      AnalysisResult{PredictedDaysToFailure: 0.5},
			wantEngage:  true,
			wantUrgency: UrgencyCritical,
		},
		{
			name:        "failure within a week is high",
			result:      AnalysisResult{PredictedDaysToFailure: 3},
			wantEngage:  true,
			wantUrgency: UrgencyHigh,
		},
		{
			name:        "failure within a month is normal",
			result:      AnalysisResult{PredictedDaysToFailure: 14},
			wantEngage:  true,
			wantUrgency: UrgencyNormal,
		},
		{
			name:        "distant failure needs no action",
			result:      AnalysisResult{PredictedDaysToFailure: 45, FailureProbability: 0.1},
			wantEngage:  false,
			wantUrgency: UrgencyLow,
		},
		{
			name:        "anomaly forces engagement",
			result:      AnalysisResult{PredictedDaysToFailure: 45, AnomalyDetected: true},
			wantEngage:  true,
			wantUrgency: UrgencyNormal,
		},
		{
			name:        "high probability forces engagement without horizon",
			result:      AnalysisResult{PredictedDaysToFailure: 0, FailureProbability: 0.4},
			wantEngage:  true,
			wantUrgency: UrgencyNormal,
		},
		{
			name:        "no horizon and no signals needs no action",
			result:      AnalysisResult{PredictedDaysToFailure: 0, FailureProbability: 0.05},
			wantEngage:  false,
			wantUrgency: UrgencyLow,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			decision := policy.AssessAnalysis(tc.result)
			if decision.Engage != tc.wantEngage {
				t.Fatalf("Engage = %v, want %v (reason %q)", decision.Engage, tc.wantEngage, decision.Reason)
			}
			if decision.Urgency != tc.wantUrgency {
				t.Fatalf("Urgency = %s, want %s", decision.Urgency, tc.wantUrgency)
			}
			if decision.Reason == "" {
				t.Fatal("expected a reason on every decision")
			}
		})
	}
}

func TestStandardPolicyEngagementDecisions(t *testing.T) {
	policy := NewStandardPolicy()

	tests := []struct {
		response     string
		wantSchedule bool
	}{
		{"accepted", true},
		{"Accepted", true},
		{" interested ", true},
		{"declined", false},
		{"no_response", false},
		{"", false},
	}
	for _, tc := range tests {
		decision := policy.AssessEngagement(EngagementResult{Response: tc.response})
		if decision.Schedule != tc.wantSchedule {
			t.Errorf("AssessEngagement(%q).Schedule = %v, want %v", tc.response, decision.Schedule, tc.wantSchedule)
		}
	}
}

func TestStandardPolicySchedulingDecisions(t *testing.T) {
	policy := NewStandardPolicy()

	tests := []struct {
		disposition string
		want        SchedulingOutcome
	}{
		{"confirmed", SchedulingConfirmed},
		{"BOOKED", SchedulingConfirmed},
		{"completed", SchedulingCompleted},
		{"done", SchedulingCompleted},
		{"failed", SchedulingFailed},
		{"aborted", SchedulingFailed},
		{"maybe", SchedulingUnknown},
		{"", SchedulingUnknown},
	}
	for _, tc := range tests {
		decision := policy.AssessScheduling(SchedulingResult{Disposition: tc.disposition})
		if decision.Outcome != tc.want {
			t.Errorf("AssessScheduling(%q).Outcome = %d, want %d", tc.disposition, decision.Outcome, tc.want)
		}
	}
}

func TestUrgencyPriorityMapping(t *testing.T) {
	tests := []struct {
		urgency Urgency
		want    bus.Priority
	}{
		{UrgencyCritical, bus.PriorityCritical},
		{UrgencyHigh, bus.PriorityHigh},
		{UrgencyNormal, bus.PriorityNormal},
		{UrgencyLow, bus.PriorityNormal},
		{Urgency(""), bus.PriorityNormal},
	}
	for _, tc := range tests {
		if got := tc.urgency.Priority(); got != tc.want {
			t.Errorf("Priority(%q) = %s, want %s", tc.urgency, got, tc.want)
		}
	}
}
