package bus

import (
	"testing"
	"time"
)

func TestNewMessageStampsEnvelope(t *testing.T) {
	before := time.Now().UTC()
	msg := NewMessage(TypeAnalysisRequest, "orchestrator",
		WithCorrelationID("wf-veh-1-abc"),
		WithReceiver("analysis"),
		WithPriority(PriorityHigh),
		WithReplyTo("req-42"),
		WithTTL(time.Minute),
		WithPayload(map[string]int{"readings": 3}),
	)

	if msg.ID == "" {
		t.Fatal("expected generated message id")
	}
	if msg.Timestamp.Before(before) {
		t.Fatalf("timestamp %v predates construction", msg.Timestamp)
	}
	if msg.CorrelationID != "wf-veh-1-abc" {
		t.Fatalf("correlation id = %q", msg.CorrelationID)
	}
	if msg.Receiver != "analysis" || msg.Sender != "orchestrator" {
		t.Fatalf("unexpected parties %q -> %q", msg.Sender, msg.Receiver)
	}
	if msg.Priority != PriorityHigh {
		t.Fatalf("priority = %v", msg.Priority)
	}
	if msg.ReplyTo != "req-42" {
		t.Fatalf("reply-to = %q", msg.ReplyTo)
	}
	if err := msg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestNewMessageDefaultsToNormalPriority(t *testing.T) {
	msg := NewMessage(TypeSystemError, "orchestrator")
	if msg.Priority != PriorityNormal {
		t.Fatalf("priority = %v, want normal", msg.Priority)
	}
	if msg.TTL != 0 {
		t.Fatalf("ttl = %v, want 0 (no expiry)", msg.TTL)
	}
}

func TestMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Message)
		wantErr bool
	}{
		{"valid", func(*Message) {}, false},
		{"missing id", func(m *Message) { m.ID = "" }, true},
		{"missing sender", func(m *Message) { m.Sender = "" }, true},
		{"zero timestamp", func(m *Message) { m.Timestamp = time.Time{} }, true},
		{"unknown type", func(m *Message) { m.Type = "telemetry.blob" }, true},
		{"priority out of range", func(m *Message) { m.Priority = Priority(9) }, true},
		{"negative ttl", func(m *Message) { m.TTL = -time.Second }, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg := NewMessage(TypeAnalysisResult, "analysis")
			tc.mutate(&msg)
			err := msg.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestMessageExpired(t *testing.T) {
	base := time.Now().UTC()
	msg := Message{Timestamp: base, TTL: time.Second}
	if msg.Expired(base.Add(500 * time.Millisecond)) {
		t.Fatal("message expired before ttl elapsed")
	}
	if !msg.Expired(base.Add(2 * time.Second)) {
		t.Fatal("message did not expire after ttl elapsed")
	}

	forever := Message{Timestamp: base}
	if forever.Expired(base.Add(24 * time.Hour)) {
		t.Fatal("zero ttl must never expire")
	}
}
