package daemon

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"manifold/internal/archive"
	"manifold/internal/bus"
	"manifold/internal/config"
	"manifold/internal/ingest"
	"manifold/internal/logging"
	"manifold/internal/services"
	"manifold/internal/testsupport"
	"manifold/internal/workflow"
)

// newTestDaemon builds a daemon on a fresh config with loop intervals parked
// so nothing runs behind the test's back. Feeding and cycles are driven
// manually.
func newTestDaemon(t *testing.T, cfg *config.Config) *Daemon {
	t.Helper()

	logger := logging.NewNop()
	msgBus := bus.New(bus.Options{Logger: logger})
	store := testsupport.MustOpenArchive(t, cfg)
	feed := ingest.NewStaticSource()
	mgr := workflow.NewManager(cfg, msgBus, feed, logger, workflow.WithArchive(store))
	t.Cleanup(mgr.Stop)

	d, err := New(cfg, msgBus, store, mgr, feed, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("daemon close: %v", err)
		}
	})
	return d
}

func parkedConfig(t *testing.T, opts ...testsupport.ConfigOption) *config.Config {
	t.Helper()
	opts = append([]testsupport.ConfigOption{func(cfg *config.Config) {
		cfg.Workflow.PollInterval = 3600
		cfg.Workflow.SweepInterval = 3600
		cfg.Paths.APIBind = ""
	}}, opts...)
	return testsupport.NewConfig(t, opts...)
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	cfg := parkedConfig(t)
	first := newTestDaemon(t, cfg)
	second := newTestDaemon(t, cfg)

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first start: %v", err)
	}
	err := second.Start(ctx)
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("second start err = %v", err)
	}

	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("start after lock release: %v", err)
	}
	second.Stop()
}

func TestDaemonStartRejectsWhileRunning(t *testing.T) {
	d := newTestDaemon(t, parkedConfig(t))
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}
	d.Stop()
}

func TestDaemonFeedCreatesWorkflow(t *testing.T) {
	d := newTestDaemon(t, parkedConfig(t))
	ctx := context.Background()

	st, err := d.Feed(ctx, ingest.Record{
		EntityID: " truck-1 ",
		Readings: map[string]float64{"engine_temp": 104},
	})
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if st.EntityID != "truck-1" {
		t.Fatalf("entity = %q", st.EntityID)
	}
	if st.State != workflow.StateAnalyzing {
		t.Fatalf("state = %s, want analyzing", st.State)
	}

	stats := d.Statistics(ctx)
	if stats.TotalIngested != 1 || stats.LiveWorkflows != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestDaemonFeedValidation(t *testing.T) {
	d := newTestDaemon(t, parkedConfig(t))
	if _, err := d.Feed(context.Background(), ingest.Record{EntityID: "   "}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
}

func TestDaemonFeedRequiresSource(t *testing.T) {
	cfg := parkedConfig(t)
	logger := logging.NewNop()
	msgBus := bus.New(bus.Options{Logger: logger})
	store := testsupport.MustOpenArchive(t, cfg)
	mgr := workflow.NewManager(cfg, msgBus, ingest.NewStaticSource(), logger)
	t.Cleanup(mgr.Stop)

	d, err := New(cfg, msgBus, store, mgr, nil, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	if _, err := d.Feed(context.Background(), ingest.Record{EntityID: "truck-1"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration", err)
	}
}

func TestDaemonWorkflowsMergesArchive(t *testing.T) {
	cfg := parkedConfig(t)
	d := newTestDaemon(t, cfg)
	ctx := context.Background()

	testsupport.SeedRecord(t, d.store, "wf-truck-9-aaaa", "truck-9", "completed")
	// Archived record for an entity that is live again must not duplicate.
	testsupport.SeedRecord(t, d.store, "wf-truck-1-bbbb", "truck-1", "completed")

	if _, err := d.Feed(ctx, ingest.Record{EntityID: "truck-1"}); err != nil {
		t.Fatalf("feed: %v", err)
	}

	liveOnly, err := d.Workflows(ctx, false, 0)
	if err != nil {
		t.Fatalf("workflows: %v", err)
	}
	if len(liveOnly) != 1 || liveOnly[0].EntityID != "truck-1" {
		t.Fatalf("live set = %+v", liveOnly)
	}

	all, err := d.Workflows(ctx, true, 10)
	if err != nil {
		t.Fatalf("workflows archived: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d workflows, want 2", len(all))
	}
	byEntity := make(map[string]workflow.Status, len(all))
	for _, st := range all {
		byEntity[st.EntityID] = st
	}
	if byEntity["truck-1"].Archived {
		t.Fatal("live workflow shadowed by archived record")
	}
	if !byEntity["truck-9"].Archived {
		t.Fatal("archived workflow missing archived flag")
	}
}

func TestDaemonDescribeAttachesArchivedContext(t *testing.T) {
	cfg := parkedConfig(t)
	d := newTestDaemon(t, cfg)
	ctx := context.Background()

	now := time.Now().UTC()
	rec := &archive.Record{
		CorrelationID: "wf-truck-3-cccc",
		EntityID:      "truck-3",
		FinalState:    "completed",
		CreatedAt:     now.Add(-time.Minute),
		CompletedAt:   now,
		Duration:      time.Minute,
		ContextJSON:   `{"analysis":{"summary":"all clear"}}`,
	}
	if err := d.store.Save(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	st, contextJSON, err := d.Describe(ctx, "truck-3")
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if !st.Archived || st.CorrelationID != "wf-truck-3-cccc" {
		t.Fatalf("status = %+v", st)
	}
	if !strings.Contains(contextJSON, "all clear") {
		t.Fatalf("contextJSON = %q", contextJSON)
	}

	if _, _, err := d.Describe(ctx, "ghost"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("ghost err = %v", err)
	}
}

func TestDaemonStatusReportsPaths(t *testing.T) {
	cfg := parkedConfig(t)
	d := newTestDaemon(t, cfg)
	ctx := context.Background()

	status := d.Status(ctx)
	if status.Running {
		t.Fatal("running before start")
	}
	if status.ArchivePath != cfg.ArchivePath() || status.LockFilePath != cfg.LockPath() || status.SocketPath != cfg.SocketPath() {
		t.Fatalf("paths = %+v", status)
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	status = d.Status(ctx)
	if !status.Running || status.PID <= 0 || status.StartedAt.IsZero() {
		t.Fatalf("status after start = %+v", status)
	}
	if !status.Stats.Running {
		t.Fatal("orchestrator not reported running")
	}
	d.Stop()
}
