package api

import "encoding/json"

// ContextField extracts a string field from one section of archived workflow
// context JSON. Sections are keyed by pipeline stage ("analysis",
// "engagement", "scheduling", "outcome", "telemetry").
func ContextField(contextJSON, section, field, fallback string) string {
	sec := contextSection(contextJSON, section)
	if sec == nil {
		return fallback
	}
	value, ok := sec[field].(string)
	if !ok || value == "" {
		return fallback
	}
	return value
}

// AnalysisSummary extracts the analyzer's summary line from context JSON.
func AnalysisSummary(contextJSON string) string {
	return ContextField(contextJSON, "analysis", "summary", "")
}

// AnalysisComponent extracts the flagged component from context JSON.
func AnalysisComponent(contextJSON string) string {
	return ContextField(contextJSON, "analysis", "component", "")
}

// ScheduledSlot extracts the booked slot id from context JSON.
func ScheduledSlot(contextJSON string) string {
	return ContextField(contextJSON, "scheduling", "slot_id", "")
}

// OutcomeNote extracts the recorded maintenance outcome from context JSON.
func OutcomeNote(contextJSON string) string {
	return ContextField(contextJSON, "outcome", "outcome", "")
}

func contextSection(contextJSON, section string) map[string]any {
	if contextJSON == "" {
		return nil
	}
	var ctx map[string]json.RawMessage
	if err := json.Unmarshal([]byte(contextJSON), &ctx); err != nil {
		return nil
	}
	raw, ok := ctx[section]
	if !ok {
		return nil
	}
	var sec map[string]any
	if err := json.Unmarshal(raw, &sec); err != nil {
		return nil
	}
	return sec
}
