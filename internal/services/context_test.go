package services_test

import (
	"context"
	"testing"

	"manifold/internal/services"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithEntityID(ctx, "veh-1042")
	ctx = services.WithStage(ctx, "analysis")
	ctx = services.WithDuty(ctx, "results")
	ctx = services.WithCorrelationID(ctx, "wf-veh-1042-abcd")

	if id, ok := services.EntityIDFromContext(ctx); !ok || id != "veh-1042" {
		t.Fatalf("entity id = %q, %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "analysis" {
		t.Fatalf("stage = %q, %v", stage, ok)
	}
	if duty, ok := services.DutyFromContext(ctx); !ok || duty != "results" {
		t.Fatalf("duty = %q, %v", duty, ok)
	}
	if cid, ok := services.CorrelationIDFromContext(ctx); !ok || cid != "wf-veh-1042-abcd" {
		t.Fatalf("correlation id = %q, %v", cid, ok)
	}
}

func TestContextEmptyValuesIgnored(t *testing.T) {
	ctx := services.WithEntityID(context.Background(), "")
	if _, ok := services.EntityIDFromContext(ctx); ok {
		t.Fatal("expected empty entity id to be absent")
	}
	if _, ok := services.StageFromContext(context.Background()); ok {
		t.Fatal("expected missing stage to be absent")
	}
}
