// Package deadline arms acknowledgment deadlines for in-flight requests.
// Each registration resolves exactly once: either Acknowledge wins before the
// deadline, or the expiry callback fires. Never both.
package deadline

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"manifold/internal/logging"
)

// ErrStopped is returned by Register once Stop has been called.
var ErrStopped = errors.New("deadline manager stopped")

const defaultSweepInterval = 250 * time.Millisecond

// Callback runs when a registration expires unacknowledged. It is invoked on
// its own goroutine and may call back into the Manager.
type Callback func(id string)

// Options configure a Manager.
type Options struct {
	// SweepInterval controls how often pending deadlines are checked. Zero
	// selects the 250ms default. Expiry resolution is bounded by this
	// interval.
	SweepInterval time.Duration
	Logger        *slog.Logger
}

type entry struct {
	id       string
	deadline time.Time
	callback Callback
}

// Manager tracks pending deadlines keyed by request id. Removal from the
// pending map is the commit point: whichever of Acknowledge or the sweeper
// removes the entry owns its resolution.
type Manager struct {
	logger        *slog.Logger
	sweepInterval time.Duration

	mu      sync.Mutex
	pending map[string]*entry
	stopped bool

	quit chan struct{}
	wg   sync.WaitGroup

	expired      atomic.Uint64
	acknowledged atomic.Uint64
}

// New builds a Manager and starts its sweeper. Stop must be called to
// release it.
func New(opts Options) *Manager {
	interval := opts.SweepInterval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		logger:        logging.NewComponentLogger(logger, "deadline"),
		sweepInterval: interval,
		pending:       make(map[string]*entry),
		quit:          make(chan struct{}),
	}
	m.wg.Add(1)
	go m.sweep()
	return m
}

// Register arms a deadline for id. If the id is already registered the
// deadline is re-armed and the previous callback discarded. A timeout of
// zero or less expires on the next sweep.
func (m *Manager) Register(id string, timeout time.Duration, cb Callback) error {
	if id == "" {
		return errors.New("empty deadline id")
	}
	if cb == nil {
		return errors.New("nil expiry callback")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return ErrStopped
	}
	m.pending[id] = &entry{id: id, deadline: time.Now().Add(timeout), callback: cb}
	return nil
}

// Acknowledge resolves the registration before its deadline. It reports true
// when the acknowledgment won; false when the id is unknown, was already
// acknowledged, or its expiry callback already claimed it.
func (m *Manager) Acknowledge(id string) bool {
	m.mu.Lock()
	_, ok := m.pending[id]
	if ok {
		delete(m.pending, id)
	}
	m.mu.Unlock()
	if ok {
		m.acknowledged.Add(1)
	}
	return ok
}

// Pending reports how many registrations are still armed.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Stats is a point-in-time snapshot of deadline activity.
type Stats struct {
	Pending      int    `json:"pending"`
	Expired      uint64 `json:"expired"`
	Acknowledged uint64 `json:"acknowledged"`
}

func (m *Manager) Stats() Stats {
	return Stats{
		Pending:      m.Pending(),
		Expired:      m.expired.Load(),
		Acknowledged: m.acknowledged.Load(),
	}
}

func (m *Manager) sweep() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.quit:
			return
		case now := <-ticker.C:
			m.fireDue(now)
		}
	}
}

func (m *Manager) fireDue(now time.Time) {
	m.mu.Lock()
	var due []*entry
	for id, e := range m.pending {
		if !now.Before(e.deadline) {
			due = append(due, e)
			delete(m.pending, id)
		}
	}
	m.mu.Unlock()

	for _, e := range due {
		m.expired.Add(1)
		m.logger.Debug("deadline expired", logging.String(logging.FieldMessageID, e.id))
		m.wg.Add(1)
		go func(e *entry) {
			defer m.wg.Done()
			e.callback(e.id)
		}(e)
	}
}

// Stop cancels every pending registration and waits for the sweeper and any
// in-flight expiry callbacks. No callback starts after Stop returns.
// Stopping twice is harmless.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		m.wg.Wait()
		return
	}
	m.stopped = true
	canceled := len(m.pending)
	m.pending = make(map[string]*entry)
	m.mu.Unlock()

	close(m.quit)
	m.wg.Wait()
	if canceled > 0 {
		m.logger.Debug("canceled pending deadlines", logging.Int("count", canceled))
	}
}
