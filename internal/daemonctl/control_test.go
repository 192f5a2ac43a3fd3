package daemonctl_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"manifold/internal/bus"
	"manifold/internal/config"
	"manifold/internal/daemon"
	"manifold/internal/daemonctl"
	"manifold/internal/ingest"
	"manifold/internal/ipc"
	"manifold/internal/logging"
	"manifold/internal/testsupport"
	"manifold/internal/workflow"
)

func parkedConfig(t *testing.T) *config.Config {
	t.Helper()
	return testsupport.NewConfig(t, func(cfg *config.Config) {
		cfg.Workflow.PollInterval = 3600
		cfg.Workflow.SweepInterval = 3600
		cfg.Paths.APIBind = ""
	})
}

func TestBuildStatusSnapshotOfflineFallsBackToArchive(t *testing.T) {
	cfg := parkedConfig(t)
	store := testsupport.MustOpenArchive(t, cfg)
	testsupport.SeedRecord(t, store, "wf-truck-1-aaaa", "truck-1", "completed")
	testsupport.SeedRecord(t, store, "wf-truck-2-bbbb", "truck-2", "failed")
	if err := store.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}

	snap, err := daemonctl.BuildStatusSnapshot(context.Background(), cfg.SocketPath(), cfg)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Running {
		t.Fatal("expected offline snapshot")
	}
	if snap.ArchivePath != cfg.ArchivePath() || snap.SocketPath != cfg.SocketPath() {
		t.Fatalf("paths = %+v", snap)
	}
	if snap.ArchivedByState["completed"] != 1 || snap.ArchivedByState["failed"] != 1 {
		t.Fatalf("archived counts = %+v", snap.ArchivedByState)
	}
}

func TestStopAndTerminateWithoutDaemon(t *testing.T) {
	cfg := parkedConfig(t)
	_, err := daemonctl.StopAndTerminate(cfg.SocketPath(), time.Second)
	if !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("err = %v, want ErrDaemonNotRunning", err)
	}
}

func TestProcessInfoWithoutDaemon(t *testing.T) {
	cfg := parkedConfig(t)
	reachable, pid, err := daemonctl.ProcessInfo(cfg.SocketPath())
	if err != nil {
		t.Fatalf("process info: %v", err)
	}
	if reachable || pid != 0 {
		t.Fatalf("reachable=%v pid=%d, want unreachable", reachable, pid)
	}
}

func TestEnsureStartedOverExistingSocket(t *testing.T) {
	cfg := parkedConfig(t)

	logger := logging.NewNop()
	msgBus := bus.New(bus.Options{Logger: logger})
	store := testsupport.MustOpenArchive(t, cfg)
	feed := ingest.NewStaticSource()
	mgr := workflow.NewManager(cfg, msgBus, feed, logger, workflow.WithArchive(store))
	t.Cleanup(mgr.Stop)
	d, err := daemon.New(cfg, msgBus, store, mgr, feed, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping socket test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)
	time.Sleep(50 * time.Millisecond)

	// Socket already reachable, so no process launch happens and an empty
	// executable path is never used.
	result, err := daemonctl.EnsureStarted(cfg.SocketPath(), "", daemonctl.LaunchOptions{}, time.Second)
	if err != nil {
		t.Fatalf("ensure started: %v", err)
	}
	if result.State != daemonctl.StartStateStarted || result.Launched {
		t.Fatalf("result = %+v", result)
	}

	again, err := daemonctl.EnsureStarted(cfg.SocketPath(), "", daemonctl.LaunchOptions{}, time.Second)
	if err != nil {
		t.Fatalf("ensure started again: %v", err)
	}
	if again.State != daemonctl.StartStateAlreadyRunning {
		t.Fatalf("second result = %+v", again)
	}
}
