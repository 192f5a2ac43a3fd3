package testsupport

import (
	"context"
	"testing"
	"time"

	"manifold/internal/archive"
	"manifold/internal/config"
)

// MustOpenArchive opens an archive.Store for tests and registers cleanup.
func MustOpenArchive(t testing.TB, cfg *config.Config) *archive.Store {
	t.Helper()

	store, err := archive.Open(cfg)
	if err != nil {
		t.Fatalf("archive.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedRecord archives a minimal terminal record for tests.
func SeedRecord(t testing.TB, store *archive.Store, correlationID, entityID, finalState string) *archive.Record {
	t.Helper()

	now := time.Now().UTC()
	rec := &archive.Record{
		CorrelationID: correlationID,
		EntityID:      entityID,
		FinalState:    finalState,
		CreatedAt:     now.Add(-time.Minute),
		CompletedAt:   now,
		Duration:      time.Minute,
	}
	if err := store.Save(context.Background(), rec); err != nil {
		t.Fatalf("archive.Save: %v", err)
	}
	return rec
}
