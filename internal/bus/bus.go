package bus

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"manifold/internal/logging"
)

// ErrStopped is returned by Publish and Subscribe once Stop has been called.
var ErrStopped = errors.New("bus stopped")

const defaultAuditCapacity = 1000

// Handler consumes one message. Handlers on the same subscription are never
// invoked concurrently; each subscription drains its queue serially and in
// priority order.
type Handler func(Message)

// Options configure a Bus.
type Options struct {
	// AuditLogCapacity bounds the in-memory audit ring. Zero selects the
	// default of 1000 entries.
	AuditLogCapacity int
	Logger           *slog.Logger
}

// Bus routes messages between in-process components. Publishing fans the
// message out to every subscription on the channel; each subscription owns a
// dispatcher goroutine that pops its highest-priority pending message and
// runs the handler to completion before looking at the next one.
type Bus struct {
	logger *slog.Logger
	audit  *auditLog

	mu       sync.RWMutex
	channels map[Channel]map[int64]*Subscription
	stopped  bool
	nextID   int64

	wg sync.WaitGroup

	published atomic.Uint64
	delivered atomic.Uint64
	expired   atomic.Uint64
	dropped   atomic.Uint64

	obsMu     sync.RWMutex
	observers map[int64]func(AuditEntry)
	nextObs   int64
}

// Subscription binds a handler to a channel. It is returned by Subscribe and
// consumed by Unsubscribe.
type Subscription struct {
	id      int64
	channel Channel
	name    string
	handler Handler

	mu     sync.Mutex
	queues [numPriorities][]Message
	closed bool

	wake chan struct{}
	quit chan struct{}
	once sync.Once
}

// Channel returns the channel this subscription listens on.
func (s *Subscription) Channel() Channel { return s.channel }

// Name returns the subscriber name supplied to Subscribe.
func (s *Subscription) Name() string { return s.name }

func (s *Subscription) enqueue(msg Message) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.queues[msg.Priority] = append(s.queues[msg.Priority], msg)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// dequeue pops the oldest message from the highest non-empty priority band.
func (s *Subscription) dequeue() (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for band := numPriorities - 1; band >= 0; band-- {
		q := s.queues[band]
		if len(q) == 0 {
			continue
		}
		msg := q[0]
		q[0] = Message{}
		s.queues[band] = q[1:]
		return msg, true
	}
	return Message{}, false
}

func (s *Subscription) depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, q := range s.queues {
		n += len(q)
	}
	return n
}

func (s *Subscription) close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.quit)
	})
}

// New builds a Bus ready for use. Stop must be called to release its
// dispatcher goroutines.
func New(opts Options) *Bus {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	capacity := opts.AuditLogCapacity
	if capacity <= 0 {
		capacity = defaultAuditCapacity
	}
	return &Bus{
		logger:    logging.NewComponentLogger(logger, "bus"),
		audit:     newAuditLog(capacity),
		channels:  make(map[Channel]map[int64]*Subscription),
		observers: make(map[int64]func(AuditEntry)),
	}
}

// Publish validates the envelope and hands it to every subscription on the
// channel. The call never waits on handlers; it only appends to subscriber
// queues. Publishing to a channel with no subscribers succeeds and is
// visible in the audit log.
func (b *Bus) Publish(channel Channel, msg Message) error {
	if channel == "" {
		return errors.New("empty channel")
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return ErrStopped
	}
	state, ok := b.channels[channel]
	if !ok {
		state = make(map[int64]*Subscription)
		b.channels[channel] = state
	}
	for _, sub := range state {
		sub.enqueue(msg)
	}
	b.published.Add(1)
	entry := entryFor(msg, channel, ActionPublished, "")
	b.audit.append(entry)
	b.mu.Unlock()

	b.notify(entry)
	b.logger.Debug("message published",
		logging.String(logging.FieldChannel, string(channel)),
		logging.String(logging.FieldMessageID, msg.ID),
		logging.String(logging.FieldMessageType, msg.Type.String()),
		logging.String(logging.FieldPriority, msg.Priority.String()),
		logging.String(logging.FieldCorrelationID, msg.CorrelationID))
	return nil
}

// Subscribe attaches a handler to a channel and starts its dispatcher. The
// name identifies the subscriber in logs and delivery audit entries.
func (b *Bus) Subscribe(channel Channel, name string, handler Handler) (*Subscription, error) {
	if channel == "" {
		return nil, errors.New("empty channel")
	}
	if handler == nil {
		return nil, errors.New("nil handler")
	}

	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil, ErrStopped
	}
	b.nextID++
	sub := &Subscription{
		id:      b.nextID,
		channel: channel,
		name:    name,
		handler: handler,
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
	}
	state, ok := b.channels[channel]
	if !ok {
		state = make(map[int64]*Subscription)
		b.channels[channel] = state
	}
	state[sub.id] = sub
	b.wg.Add(1)
	b.mu.Unlock()

	go b.dispatch(sub)
	b.logger.Debug("subscriber attached",
		logging.String(logging.FieldChannel, string(channel)),
		logging.String("subscriber", name))
	return sub, nil
}

// Unsubscribe detaches the subscription. Messages already queued for its
// handler are still delivered; the dispatcher exits once the queue is empty.
// Unsubscribing twice is harmless.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	if state, ok := b.channels[sub.channel]; ok {
		delete(state, sub.id)
	}
	b.mu.Unlock()
	sub.close()
	b.logger.Debug("subscriber detached",
		logging.String(logging.FieldChannel, string(sub.channel)),
		logging.String("subscriber", sub.name))
}

func (b *Bus) dispatch(sub *Subscription) {
	defer b.wg.Done()
	for {
		msg, ok := sub.dequeue()
		if !ok {
			select {
			case <-sub.wake:
				continue
			case <-sub.quit:
				b.drain(sub)
				return
			}
		}
		b.deliver(sub, msg)
	}
}

// drain flushes whatever was enqueued before the subscription closed.
func (b *Bus) drain(sub *Subscription) {
	for {
		msg, ok := sub.dequeue()
		if !ok {
			return
		}
		b.deliver(sub, msg)
	}
}

func (b *Bus) deliver(sub *Subscription, msg Message) {
	if msg.Expired(time.Now().UTC()) {
		b.expired.Add(1)
		b.record(entryFor(msg, sub.channel, ActionExpired, sub.name))
		b.logger.Debug("message expired before dispatch",
			logging.String(logging.FieldChannel, string(sub.channel)),
			logging.String(logging.FieldMessageID, msg.ID),
			logging.Duration("ttl", msg.TTL))
		return
	}
	if b.invoke(sub, msg) {
		b.delivered.Add(1)
		b.record(entryFor(msg, sub.channel, ActionDelivered, sub.name))
		return
	}
	b.dropped.Add(1)
	b.record(entryFor(msg, sub.channel, ActionDropped, sub.name))
}

// invoke runs the handler and absorbs panics so one bad subscriber cannot
// take down the dispatcher.
func (b *Bus) invoke(sub *Subscription, msg Message) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			b.logger.Error("handler panic",
				logging.String(logging.FieldChannel, string(sub.channel)),
				logging.String("subscriber", sub.name),
				logging.String(logging.FieldMessageID, msg.ID),
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())))
		}
	}()
	sub.handler(msg)
	return true
}

func (b *Bus) record(entry AuditEntry) {
	b.audit.append(entry)
	b.notify(entry)
}

func (b *Bus) notify(entry AuditEntry) {
	b.obsMu.RLock()
	observers := make([]func(AuditEntry), 0, len(b.observers))
	for _, fn := range b.observers {
		observers = append(observers, fn)
	}
	b.obsMu.RUnlock()
	for _, fn := range observers {
		fn(entry)
	}
}

// Observe registers a callback invoked for every audit entry as it is
// recorded. Callbacks run on bus goroutines and must return quickly. The
// returned cancel function removes the observer.
func (b *Bus) Observe(fn func(AuditEntry)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	b.obsMu.Lock()
	b.nextObs++
	id := b.nextObs
	b.observers[id] = fn
	b.obsMu.Unlock()
	return func() {
		b.obsMu.Lock()
		delete(b.observers, id)
		b.obsMu.Unlock()
	}
}

// AuditLog returns a copy of the audit ring, oldest entry first.
func (b *Bus) AuditLog() []AuditEntry {
	return b.audit.snapshot()
}

// ChannelStats describes one channel inside a Stats snapshot.
type ChannelStats struct {
	Subscribers int `json:"subscribers"`
	QueueDepth  int `json:"queue_depth"`
}

// Stats is a point-in-time snapshot of bus activity.
type Stats struct {
	Published  uint64                   `json:"published"`
	Delivered  uint64                   `json:"delivered"`
	Expired    uint64                   `json:"expired"`
	Dropped    uint64                   `json:"dropped"`
	AuditSize  int                      `json:"audit_size"`
	AuditTotal uint64                   `json:"audit_total"`
	Channels   map[Channel]ChannelStats `json:"channels"`
}

// Stats reports counters and per-channel queue depth. Counters are
// monotonically increasing for the bus lifetime; queue depth is instantaneous.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	channels := make(map[Channel]ChannelStats, len(b.channels))
	for ch, subs := range b.channels {
		cs := ChannelStats{Subscribers: len(subs)}
		for _, sub := range subs {
			cs.QueueDepth += sub.depth()
		}
		channels[ch] = cs
	}
	b.mu.RUnlock()
	return Stats{
		Published:  b.published.Load(),
		Delivered:  b.delivered.Load(),
		Expired:    b.expired.Load(),
		Dropped:    b.dropped.Load(),
		AuditSize:  b.audit.size(),
		AuditTotal: b.audit.recorded(),
		Channels:   channels,
	}
}

// Stop rejects further publishes and subscriptions, closes every
// subscription, and waits for the dispatchers to drain their queues. The
// context bounds the wait.
func (b *Bus) Stop(ctx context.Context) error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil
	}
	b.stopped = true
	var subs []*Subscription
	for _, state := range b.channels {
		for _, sub := range state {
			subs = append(subs, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		b.logger.Info("bus stopped",
			logging.Uint64("published", b.published.Load()),
			logging.Uint64("delivered", b.delivered.Load()))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
