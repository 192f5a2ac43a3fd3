package bus

import (
	"sync"
	"time"
)

// AuditAction records what happened to a message at a point in its life.
type AuditAction string

const (
	// ActionPublished is appended once per accepted Publish call.
	ActionPublished AuditAction = "published"
	// ActionDelivered is appended after a handler returns for the message.
	ActionDelivered AuditAction = "delivered"
	// ActionExpired marks a message whose TTL elapsed before dispatch.
	ActionExpired AuditAction = "expired"
	// ActionDropped marks a message discarded without delivery, for example
	// when its handler panicked.
	ActionDropped AuditAction = "dropped"
)

// AuditEntry is one record in the bounded in-memory audit log. It carries
// envelope metadata only, never the payload.
type AuditEntry struct {
	Timestamp     time.Time
	Channel       Channel
	Action        AuditAction
	MessageID     string
	CorrelationID string
	Sender        string
	Receiver      string
	Type          MessageType
	Priority      Priority
}

// auditLog is a fixed-capacity ring. Once full, each append overwrites the
// oldest entry. Snapshot returns entries oldest first.
type auditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
	next    int
	full    bool
	total   uint64
}

func newAuditLog(capacity int) *auditLog {
	if capacity < 1 {
		capacity = 1
	}
	return &auditLog{entries: make([]AuditEntry, capacity)}
}

func (l *auditLog) append(entry AuditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[l.next] = entry
	l.next++
	l.total++
	if l.next == len(l.entries) {
		l.next = 0
		l.full = true
	}
}

func (l *auditLog) snapshot() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.full {
		out := make([]AuditEntry, l.next)
		copy(out, l.entries[:l.next])
		return out
	}
	out := make([]AuditEntry, 0, len(l.entries))
	out = append(out, l.entries[l.next:]...)
	out = append(out, l.entries[:l.next]...)
	return out
}

func (l *auditLog) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.full {
		return len(l.entries)
	}
	return l.next
}

func (l *auditLog) recorded() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

func entryFor(msg Message, channel Channel, action AuditAction, receiver string) AuditEntry {
	if receiver == "" {
		receiver = msg.Receiver
	}
	return AuditEntry{
		Timestamp:     time.Now().UTC(),
		Channel:       channel,
		Action:        action,
		MessageID:     msg.ID,
		CorrelationID: msg.CorrelationID,
		Sender:        msg.Sender,
		Receiver:      receiver,
		Type:          msg.Type,
		Priority:      msg.Priority,
	}
}
