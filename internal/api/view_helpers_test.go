package api

import "testing"

const sampleContext = `{
	"telemetry": {"entity_id": "truck-7", "readings": {"vibration": 0.9}},
	"analysis": {"summary": "predicted 2.0 days to failure (p=0.70)", "component": "bearing"},
	"engagement": {"response": "accepted"},
	"scheduling": {"disposition": "confirmed", "slot_id": "slot-19"},
	"outcome": {"disposition": "completed", "outcome": "maintenance performed"}
}`

func TestContextFieldExtraction(t *testing.T) {
	tests := []struct {
		name     string
		json     string
		section  string
		field    string
		fallback string
		want     string
	}{
		{"analysis summary", sampleContext, "analysis", "summary", "", "predicted 2.0 days to failure (p=0.70)"},
		{"scheduling slot", sampleContext, "scheduling", "slot_id", "", "slot-19"},
		{"missing section", sampleContext, "quality", "score", "n/a", "n/a"},
		{"missing field", sampleContext, "analysis", "severity", "unknown", "unknown"},
		{"non-string field", sampleContext, "telemetry", "readings", "none", "none"},
		{"empty json", "", "analysis", "summary", "none", "none"},
		{"malformed json", "{not json", "analysis", "summary", "none", "none"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ContextField(tc.json, tc.section, tc.field, tc.fallback); got != tc.want {
				t.Fatalf("ContextField = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestContextConvenienceAccessors(t *testing.T) {
	if got := AnalysisSummary(sampleContext); got != "predicted 2.0 days to failure (p=0.70)" {
		t.Fatalf("AnalysisSummary = %q", got)
	}
	if got := AnalysisComponent(sampleContext); got != "bearing" {
		t.Fatalf("AnalysisComponent = %q", got)
	}
	if got := ScheduledSlot(sampleContext); got != "slot-19" {
		t.Fatalf("ScheduledSlot = %q", got)
	}
	if got := OutcomeNote(sampleContext); got != "maintenance performed" {
		t.Fatalf("OutcomeNote = %q", got)
	}
}
