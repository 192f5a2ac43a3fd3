package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"manifold/internal/archive"
	"manifold/internal/bus"
	"manifold/internal/config"
	"manifold/internal/ingest"
	"manifold/internal/logging"
	"manifold/internal/notifications"
	"manifold/internal/services"
	"manifold/internal/workflow"
)

// Daemon coordinates the orchestrator runtime and enforces single-instance
// execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	bus     *bus.Bus
	store   *archive.Store
	manager *workflow.Manager
	feed    *ingest.StaticSource

	lockPath string
	lock     *flock.Flock

	api *apiServer

	startedAt time.Time
	running   atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	StartedAt    time.Time
	ArchivePath  string
	LockFilePath string
	SocketPath   string
	APIBind      string
	Stats        workflow.Statistics
}

// New constructs a daemon with initialized dependencies. The feed source is
// optional; without one, manual record injection is rejected.
func New(cfg *config.Config, msgBus *bus.Bus, store *archive.Store, mgr *workflow.Manager, feed *ingest.StaticSource, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || msgBus == nil || store == nil || mgr == nil || logger == nil {
		return nil, errors.New("daemon requires config, bus, store, manager, and logger")
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		bus:      msgBus,
		store:    store,
		manager:  mgr,
		feed:     feed,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	apiSrv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = apiSrv
	return d, nil
}

// Start acquires the daemon lock, launches the orchestrator, and brings up
// the HTTP API when one is configured.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another manifold daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.manager.Start(d.ctx); err != nil {
		d.releaseLock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start orchestrator: %w", err)
	}
	if err := d.api.start(d.ctx); err != nil {
		d.manager.Stop()
		d.releaseLock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return err
	}

	d.startedAt = time.Now().UTC()
	d.running.Store(true)
	d.logger.Info("manifold daemon started",
		logging.Int("pid", os.Getpid()),
		logging.String("lock", d.lockPath))
	return nil
}

// Stop halts background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.manager.Stop()
	d.releaseLock()
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("manifold daemon stopped")
}

// Close stops the daemon and releases the archive store and message bus.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if d.bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.bus.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		StartedAt:    d.startedAt,
		ArchivePath:  d.cfg.ArchivePath(),
		LockFilePath: d.lockPath,
		SocketPath:   d.cfg.SocketPath(),
		APIBind:      strings.TrimSpace(d.cfg.Paths.APIBind),
		Stats:        d.manager.Statistics(ctx),
	}
}

// Statistics returns orchestrator, bus, and deadline counters.
func (d *Daemon) Statistics(ctx context.Context) workflow.Statistics {
	return d.manager.Statistics(ctx)
}

// Workflows lists live workflows, optionally extended with recently archived
// ones. Archived entries are skipped for entities that are live again.
func (d *Daemon) Workflows(ctx context.Context, includeArchived bool, limit int) ([]workflow.Status, error) {
	statuses := d.manager.Workflows()
	if !includeArchived || d.store == nil {
		return statuses, nil
	}
	records, err := d.store.List(ctx, limit)
	if err != nil {
		return statuses, err
	}
	live := make(map[string]struct{}, len(statuses))
	for _, st := range statuses {
		live[st.EntityID] = struct{}{}
	}
	for _, rec := range records {
		if _, ok := live[rec.EntityID]; ok {
			continue
		}
		statuses = append(statuses, workflow.StatusFromRecord(rec))
	}
	return statuses, nil
}

// Describe reports one entity's workflow along with its archived context
// JSON when the workflow has retired.
func (d *Daemon) Describe(ctx context.Context, entityID string) (workflow.Status, string, error) {
	st, err := d.manager.WorkflowStatus(ctx, entityID)
	if err != nil {
		return workflow.Status{}, "", err
	}
	contextJSON := ""
	if st.Archived && d.store != nil {
		rec, recErr := d.store.GetByCorrelationID(ctx, st.CorrelationID)
		if recErr == nil && rec != nil {
			contextJSON = rec.ContextJSON
		}
	}
	return st, contextJSON, nil
}

// AuditLog returns the most recent bus audit entries, newest last.
func (d *Daemon) AuditLog(limit int) []bus.AuditEntry {
	entries := d.bus.AuditLog()
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries
}

// Feed injects a telemetry record and runs an immediate ingestion cycle so
// the record is admitted without waiting out the poll interval.
func (d *Daemon) Feed(ctx context.Context, rec ingest.Record) (workflow.Status, error) {
	if d.feed == nil {
		return workflow.Status{}, services.Wrap(services.ErrConfiguration, "daemon", "feed", "manual feed source not configured", nil)
	}
	entityID := strings.TrimSpace(rec.EntityID)
	if entityID == "" {
		return workflow.Status{}, services.Wrap(services.ErrValidation, "daemon", "feed", "entity id required", nil)
	}
	rec.EntityID = entityID
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if rec.Source == "" {
		rec.Source = "manual"
	}

	d.feed.Push(rec)
	if err := d.manager.IngestOnce(ctx); err != nil {
		return workflow.Status{}, err
	}
	d.logger.Info("manual record ingested", logging.String("entity_id", entityID))
	return d.manager.WorkflowStatus(ctx, entityID)
}

// TestNotification triggers a test notification using the current
// configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}
