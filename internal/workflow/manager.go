package workflow

import (
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"manifold/internal/archive"
	"manifold/internal/bus"
	"manifold/internal/config"
	"manifold/internal/deadline"
	"manifold/internal/ingest"
	"manifold/internal/logging"
	"manifold/internal/notifications"
)

// senderName identifies the orchestrator on the bus, both as message sender
// and as subscriber name.
const senderName = "orchestrator"

// Manager owns the live workflow set and drives every workflow through the
// state machine. It subscribes to the collaborator result channels, polls the
// ingestion source, arms a deadline for each outbound request, and sweeps for
// due retries and stalled workflows.
type Manager struct {
	cfg       *config.Config
	logger    *slog.Logger
	bus       *bus.Bus
	deadlines *deadline.Manager
	source    ingest.Source
	store     *archive.Store
	notifier  notifications.Service
	policy    DecisionPolicy

	pollInterval   time.Duration
	sweepInterval  time.Duration
	requestTimeout time.Duration
	requestTTL     time.Duration
	staleAfter     time.Duration
	backoffBase    time.Duration
	deadlineSweep  time.Duration
	maxRetries     int
	batchLimit     int

	// mu guards workflows, running, cancel, and subs. Never acquired while
	// holding a Workflow lock.
	mu        sync.RWMutex
	workflows map[string]*Workflow
	running   bool
	cancel    func()
	subs      []*bus.Subscription
	wg        sync.WaitGroup

	// pendMu guards pendingIndex only and is never held across other lock
	// acquisitions, so it is safe to take under a Workflow lock.
	pendMu       sync.Mutex
	pendingIndex map[string]string

	totalIngested  atomic.Uint64
	totalMerged    atomic.Uint64
	totalCompleted atomic.Uint64
	totalFailed    atomic.Uint64
	totalErrors    atomic.Uint64
	totalTimeouts  atomic.Uint64
	totalRetries   atomic.Uint64
}

// Option adjusts manager construction.
type Option func(*Manager)

// WithPolicy replaces the default decision policy.
func WithPolicy(policy DecisionPolicy) Option {
	return func(m *Manager) {
		if policy != nil {
			m.policy = policy
		}
	}
}

// WithArchive enables persistence of retired workflows.
func WithArchive(store *archive.Store) Option {
	return func(m *Manager) { m.store = store }
}

// WithNotifier enables push notifications for workflow outcomes.
func WithNotifier(notifier notifications.Service) Option {
	return func(m *Manager) { m.notifier = notifier }
}

// WithRequestTimeout overrides the collaborator acknowledgment deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.requestTimeout = d
		}
	}
}

// WithStaleAfter overrides the staleness threshold.
func WithStaleAfter(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.staleAfter = d
		}
	}
}

// WithRetryBackoff overrides the base retry backoff.
func WithRetryBackoff(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.backoffBase = d
		}
	}
}

// WithDeadlineSweep overrides how often the deadline manager scans for
// expired requests.
func WithDeadlineSweep(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.deadlineSweep = d
		}
	}
}

// NewManager builds an orchestrator bound to the given bus and ingestion
// source. The deadline manager is owned internally; callers observe it only
// through Statistics.
func NewManager(cfg *config.Config, msgBus *bus.Bus, source ingest.Source, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		cfg:            cfg,
		logger:         logging.NewComponentLogger(logger, senderName),
		bus:            msgBus,
		source:         source,
		policy:         NewStandardPolicy(),
		pollInterval:   secondsOr(cfg.Workflow.PollInterval, 5*time.Second),
		sweepInterval:  secondsOr(cfg.Workflow.SweepInterval, time.Second),
		requestTimeout: secondsOr(cfg.Workflow.RequestTimeout, 60*time.Second),
		requestTTL:     time.Duration(cfg.Bus.DefaultTTL) * time.Second,
		staleAfter:     secondsOr(cfg.Workflow.WorkflowTimeout, 300*time.Second),
		backoffBase:    secondsOr(cfg.Workflow.RetryBackoffBase, 2*time.Second),
		maxRetries:     cfg.Workflow.MaxRetries,
		batchLimit:     cfg.Workflow.IngestBatchLimit,
		workflows:      make(map[string]*Workflow),
		pendingIndex:   make(map[string]string),
	}
	if m.maxRetries < 0 {
		m.maxRetries = 0
	}
	for _, opt := range opts {
		opt(m)
	}
	m.deadlines = deadline.New(deadline.Options{
		SweepInterval: m.deadlineSweep,
		Logger:        logger,
	})
	return m
}

func secondsOr(value int, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return time.Duration(value) * time.Second
}

// lookup returns the live workflow for an entity, or nil.
func (m *Manager) lookup(entityID string) *Workflow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.workflows[entityID]
}

// removeLive drops wf from the live set if it is still the registered
// workflow for its entity. Admission may have already replaced it.
func (m *Manager) removeLive(wf *Workflow) {
	m.mu.Lock()
	if m.workflows[wf.entityID] == wf {
		delete(m.workflows, wf.entityID)
	}
	m.mu.Unlock()
}

func (m *Manager) trackPending(requestID, entityID string) {
	m.pendMu.Lock()
	m.pendingIndex[requestID] = entityID
	m.pendMu.Unlock()
}

// claimPending resolves and removes a pending request entry. The second
// return reports whether this caller won the claim; the loser of an
// acknowledge/expiry race sees false.
func (m *Manager) claimPending(requestID string) (string, bool) {
	m.pendMu.Lock()
	entityID, ok := m.pendingIndex[requestID]
	if ok {
		delete(m.pendingIndex, requestID)
	}
	m.pendMu.Unlock()
	return entityID, ok
}

func (m *Manager) dropPending(requestID string) {
	m.pendMu.Lock()
	delete(m.pendingIndex, requestID)
	m.pendMu.Unlock()
}

func normalizeEntityID(raw string) string {
	return strings.TrimSpace(raw)
}
