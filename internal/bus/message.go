package bus

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message is the immutable envelope carried on every channel. The bus never
// mutates a message after Publish accepts it; subscribers receive copies of
// the envelope and must treat the payload as read-only.
type Message struct {
	ID            string
	CorrelationID string
	Timestamp     time.Time
	Sender        string
	Receiver      string
	Type          MessageType
	Priority      Priority
	// ReplyTo holds the id of the request message this one answers, so a
	// result can be matched to its pending deadline.
	ReplyTo string
	TTL     time.Duration
	Payload any
}

// MessageOption customizes an envelope at construction time.
type MessageOption func(*Message)

// WithCorrelationID threads a workflow correlation identifier through the
// message so replies can be matched to the request that caused them.
func WithCorrelationID(id string) MessageOption {
	return func(m *Message) { m.CorrelationID = id }
}

// WithReceiver names the intended recipient. Informational only; delivery is
// still fan-out to every subscriber on the channel.
func WithReceiver(receiver string) MessageOption {
	return func(m *Message) { m.Receiver = receiver }
}

// WithPriority overrides the default normal priority.
func WithPriority(p Priority) MessageOption {
	return func(m *Message) { m.Priority = p }
}

// WithReplyTo records the request message id this message answers.
func WithReplyTo(requestID string) MessageOption {
	return func(m *Message) { m.ReplyTo = requestID }
}

// WithTTL bounds how long the message stays deliverable. Zero means the
// message never expires. Expiry is checked when the dispatcher dequeues the
// message, not when it is enqueued.
func WithTTL(ttl time.Duration) MessageOption {
	return func(m *Message) { m.TTL = ttl }
}

// WithPayload attaches the type-tagged body.
func WithPayload(payload any) MessageOption {
	return func(m *Message) { m.Payload = payload }
}

// NewMessage builds a valid envelope with a fresh ID and a UTC timestamp.
func NewMessage(msgType MessageType, sender string, opts ...MessageOption) Message {
	m := Message{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Sender:    sender,
		Type:      msgType,
		Priority:  PriorityNormal,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Validate reports whether the envelope is complete enough to publish.
func (m Message) Validate() error {
	var problems []string
	if m.ID == "" {
		problems = append(problems, "missing id")
	}
	if m.Sender == "" {
		problems = append(problems, "missing sender")
	}
	if m.Timestamp.IsZero() {
		problems = append(problems, "missing timestamp")
	}
	if !m.Type.Valid() {
		problems = append(problems, fmt.Sprintf("unknown type %q", string(m.Type)))
	}
	if !m.Priority.Valid() {
		problems = append(problems, fmt.Sprintf("priority %d out of range", int(m.Priority)))
	}
	if m.TTL < 0 {
		problems = append(problems, "negative ttl")
	}
	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid message: " + joinProblems(problems))
}

// Expired reports whether the message's TTL elapsed as of now. Messages with
// a zero TTL never expire.
func (m Message) Expired(now time.Time) bool {
	if m.TTL <= 0 {
		return false
	}
	return now.After(m.Timestamp.Add(m.TTL))
}

func joinProblems(problems []string) string {
	out := problems[0]
	for _, p := range problems[1:] {
		out += "; " + p
	}
	return out
}
