package ingest

import (
	"context"
	"time"
)

// Record is one telemetry observation for an entity, the unit the ingestion
// duty turns into a workflow.
type Record struct {
	EntityID  string             `json:"entity_id"`
	Timestamp time.Time          `json:"timestamp"`
	Readings  map[string]float64 `json:"readings,omitempty"`

	// Source names where the record came from, for logs. Not serialized.
	Source string `json:"-"`
}

// Source supplies pending records to the orchestrator. Records returned by
// Poll are claimed: the source must never hand them out again.
type Source interface {
	// Poll returns up to limit pending records. A limit of zero or less
	// means no bound. Poll never blocks waiting for new records.
	Poll(ctx context.Context, limit int) ([]Record, error)
}
