package services_test

import (
	"errors"
	"strings"
	"testing"

	"manifold/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrCollaborator, "analysis", "publish", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrCollaborator) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"analysis", "publish", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "scheduling", "respond", "no marker", nil)
	if !errors.Is(err, services.ErrCollaborator) {
		t.Fatalf("expected collaborator marker fallback, got %v", err)
	}
}

func TestClassifyDispositions(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want services.Disposition
	}{
		{"transport is fatal", services.Wrap(services.ErrTransport, "bus", "publish", "stopped", nil), services.DispositionFatal},
		{"deadline retries workflow", services.Wrap(services.ErrDeadline, "analysis", "await", "expired", nil), services.DispositionRetryWorkflow},
		{"collaborator retries workflow", services.Wrap(services.ErrCollaborator, "engagement", "respond", "refused", nil), services.DispositionRetryWorkflow},
		{"invalid transition drops", services.Wrap(services.ErrInvalidTransition, "workflow", "apply", "stale result", nil), services.DispositionDrop},
		{"ingestion waits a cycle", services.Wrap(services.ErrIngestion, "ingest", "poll", "source down", nil), services.DispositionRetryNextCycle},
		{"untagged retries workflow", errors.New("mystery"), services.DispositionRetryWorkflow},
		{"nil drops", nil, services.DispositionDrop},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.Classify(tt.err); got != tt.want {
				t.Fatalf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}
