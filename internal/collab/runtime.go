package collab

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"manifold/internal/bus"
	"manifold/internal/logging"
	"manifold/internal/workflow"
)

// Responder computes the result payload for one request message. Returning a
// nil payload leaves the request unanswered; returning an error publishes a
// system error report instead of a result.
type Responder func(msg bus.Message) (any, error)

// Collaborator binds a named responder to its channel pair.
type Collaborator struct {
	Name    string
	Request bus.Channel
	Result  bus.Channel
	Type    bus.MessageType
	Respond Responder
}

// Runtime attaches collaborators to the bus and owns their subscriptions and
// any delayed publishes they schedule.
type Runtime struct {
	logger *slog.Logger
	bus    *bus.Bus

	mu     sync.Mutex
	subs   []*bus.Subscription
	closed bool
	quit   chan struct{}
	wg     sync.WaitGroup
}

// NewRuntime builds an empty runtime bound to the bus.
func NewRuntime(msgBus *bus.Bus, logger *slog.Logger) *Runtime {
	return &Runtime{
		logger: logging.NewComponentLogger(logger, "collab"),
		bus:    msgBus,
		quit:   make(chan struct{}),
	}
}

// Attach subscribes a collaborator. Its responder runs on the subscription's
// dispatch goroutine, one request at a time.
func (r *Runtime) Attach(c Collaborator) error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("collaborator name required")
	}
	if c.Respond == nil {
		return errors.New("collaborator responder required")
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return errors.New("collab runtime closed")
	}
	r.mu.Unlock()

	sub, err := r.bus.Subscribe(c.Request, c.Name, func(msg bus.Message) {
		r.dispatch(c, msg)
	})
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.subs = append(r.subs, sub)
	r.mu.Unlock()

	r.logger.Info("collaborator attached",
		logging.String("name", c.Name),
		logging.String("channel", string(c.Request)))
	return nil
}

// AttachAll attaches every collaborator, failing on the first error.
func (r *Runtime) AttachAll(collaborators ...Collaborator) error {
	for _, c := range collaborators {
		if err := r.Attach(c); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runtime) dispatch(c Collaborator, msg bus.Message) {
	payload, err := c.Respond(msg)
	if err != nil {
		report := bus.NewMessage(bus.TypeSystemError, c.Name,
			bus.WithCorrelationID(msg.CorrelationID),
			bus.WithPriority(bus.PriorityHigh),
			bus.WithPayload(workflow.ErrorReport{
				EntityID: entityFrom(msg),
				Stage:    c.Name,
				Reason:   err.Error(),
			}))
		if pubErr := r.bus.Publish(bus.ChannelSystemError, report); pubErr != nil {
			r.logger.Warn("error report publish failed",
				logging.String("name", c.Name),
				logging.Error(pubErr))
		}
		return
	}
	if payload == nil {
		return
	}

	reply := bus.NewMessage(c.Type, c.Name,
		bus.WithCorrelationID(msg.CorrelationID),
		bus.WithReplyTo(msg.ID),
		bus.WithPayload(payload))
	if err := r.bus.Publish(c.Result, reply); err != nil {
		r.logger.Warn("result publish failed",
			logging.String("name", c.Name),
			logging.Error(err))
	}
}

// PublishAfter schedules a one-shot delayed publish, used by simulated
// collaborators for follow-up signals. Cancelled by Close.
func (r *Runtime) PublishAfter(delay time.Duration, channel bus.Channel, msg bus.Message) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-r.quit:
			return
		case <-timer.C:
		}
		if err := r.bus.Publish(channel, msg); err != nil {
			r.logger.Debug("delayed publish dropped", logging.Error(err))
		}
	}()
}

// Close detaches every collaborator and cancels scheduled publishes.
func (r *Runtime) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	subs := r.subs
	r.subs = nil
	close(r.quit)
	r.mu.Unlock()

	for _, sub := range subs {
		r.bus.Unsubscribe(sub)
	}
	r.wg.Wait()
}

func entityFrom(msg bus.Message) string {
	switch payload := msg.Payload.(type) {
	case workflow.AnalysisRequest:
		return payload.EntityID
	case workflow.EngagementRequest:
		return payload.EntityID
	case workflow.SchedulingRequest:
		return payload.EntityID
	default:
		return ""
	}
}
