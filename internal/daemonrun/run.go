// Package daemonrun bootstraps the full daemon process: logging, preflight,
// archive, bus, collaborators, orchestrator, IPC, and signal handling.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"manifold/internal/archive"
	"manifold/internal/bus"
	"manifold/internal/collab"
	"manifold/internal/config"
	"manifold/internal/daemon"
	"manifold/internal/ingest"
	"manifold/internal/ipc"
	"manifold/internal/logging"
	"manifold/internal/notifications"
	"manifold/internal/preflight"
	"manifold/internal/workflow"
)

// scheduleCompleteAfter is how long the simulated scheduler waits before
// reporting a confirmed maintenance slot as completed.
const scheduleCompleteAfter = 10 * time.Second

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel   string
	SocketPath string
}

// Run starts the manifold daemon runtime loop and blocks until SIGINT,
// SIGTERM, or a Shutdown RPC arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("manifold-%s.log", runID))

	level := strings.TrimSpace(opts.LogLevel)
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update manifold.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Paths.LogDir, "manifold-*.log", cfg.Logging.RetentionDays, logPath)

	if failed := preflight.Failed(preflight.RunAll(signalCtx, cfg)); len(failed) > 0 {
		for _, check := range failed {
			logger.Error("preflight check failed",
				logging.String(logging.FieldEventType, "preflight_failed"),
				logging.String("check", check.Name),
				logging.String("detail", check.Detail))
		}
		return fmt.Errorf("preflight failed: %s", failed[0].Name)
	}

	store, err := archive.Open(cfg)
	if err != nil {
		logger.Error("open archive store", logging.Error(err))
		return err
	}
	defer store.Close()

	msgBus := bus.New(bus.Options{
		AuditLogCapacity: cfg.Bus.AuditLogCapacity,
		Logger:           logger,
	})

	notifier := notifications.NewService(cfg)

	feed := ingest.NewStaticSource()
	source, err := buildSource(cfg, feed, logger)
	if err != nil {
		return err
	}
	defer source.Close()

	mgr := workflow.NewManager(cfg, msgBus, source, logger,
		workflow.WithArchive(store),
		workflow.WithNotifier(notifier))

	runtime := collab.NewRuntime(msgBus, logger)
	if err := runtime.AttachAll(collab.Simulated(runtime, scheduleCompleteAfter)...); err != nil {
		return fmt.Errorf("attach collaborators: %w", err)
	}
	defer runtime.Close()

	d, err := daemon.New(cfg, msgBus, store, mgr, feed, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	socketPath := strings.TrimSpace(opts.SocketPath)
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.OnShutdown(cancel)
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Warn("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check configuration and archive access"),
			logging.String("impact", "orchestration is idle until started via IPC"))
	} else if notifyErr := notifier.NotifyDaemonStarted(signalCtx, cfg.Paths.APIBind); notifyErr != nil {
		logger.Debug("daemon start notification failed", logging.Error(notifyErr))
	}

	<-signalCtx.Done()
	logger.Info("manifold daemon shutting down")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if notifyErr := notifier.NotifyDaemonStopped(stopCtx); notifyErr != nil {
		logger.Debug("daemon stop notification failed", logging.Error(notifyErr))
	}
	return nil
}

// buildSource assembles the ingestion source set: the manual feed always, the
// drop directory watcher when configured.
func buildSource(cfg *config.Config, feed *ingest.StaticSource, logger *slog.Logger) (*ingest.MultiSource, error) {
	sources := []ingest.Source{feed}
	if dir := strings.TrimSpace(cfg.Paths.IngestDir); dir != "" {
		dropDir, err := ingest.NewDropDir(dir, logger)
		if err != nil {
			return nil, fmt.Errorf("watch ingest directory: %w", err)
		}
		sources = append(sources, dropDir)
	}
	return ingest.NewMultiSource(sources...), nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "manifold.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}
