package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"manifold/internal/config"
)

const userAgent = "Manifold/0.1.0"

// Service defines the notification surface exposed to the daemon and the
// workflow orchestrator.
type Service interface {
	NotifyDaemonStarted(ctx context.Context, bind string) error
	NotifyDaemonStopped(ctx context.Context) error
	NotifyWorkflowCompleted(ctx context.Context, entityID, urgency string, duration time.Duration) error
	NotifyWorkflowFailed(ctx context.Context, entityID, reason string) error
	NotifyMaintenanceScheduled(ctx context.Context, entityID, slotID string) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		lifecycle:   cfg.Notifications.DaemonLifecycle,
		failures:    cfg.Notifications.WorkflowFailures,
		completions: cfg.Notifications.WorkflowCompletions,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	lifecycle   bool
	failures    bool
	completions bool
}

func (n *ntfyService) NotifyDaemonStarted(ctx context.Context, bind string) error {
	if !n.lifecycle {
		return nil
	}
	message := "Daemon started"
	if bind = strings.TrimSpace(bind); bind != "" {
		message = fmt.Sprintf("Daemon started, API on %s", bind)
	}
	data := payload{
		title:   "Manifold - Started",
		message: message,
		tags:    []string{"manifold", "daemon", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDaemonStopped(ctx context.Context) error {
	if !n.lifecycle {
		return nil
	}
	data := payload{
		title:   "Manifold - Stopped",
		message: "Daemon stopped",
		tags:    []string{"manifold", "daemon", "stopped"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyWorkflowCompleted(ctx context.Context, entityID, urgency string, duration time.Duration) error {
	if !n.completions {
		return nil
	}
	entityID = strings.TrimSpace(entityID)
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	message := fmt.Sprintf("✅ Workflow complete: %s in %s", entityID, duration)
	if urgency = strings.TrimSpace(urgency); urgency != "" {
		message = fmt.Sprintf("✅ Workflow complete: %s (%s) in %s", entityID, urgency, duration)
	}
	data := payload{
		title:   "Manifold - Workflow Complete",
		message: message,
		tags:    []string{"manifold", "workflow", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyWorkflowFailed(ctx context.Context, entityID, reason string) error {
	if !n.failures {
		return nil
	}
	entityID = strings.TrimSpace(entityID)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	data := payload{
		title:    "Manifold - Workflow Failed",
		message:  fmt.Sprintf("❌ Workflow failed: %s: %s", entityID, reason),
		tags:     []string{"manifold", "workflow", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyMaintenanceScheduled(ctx context.Context, entityID, slotID string) error {
	entityID = strings.TrimSpace(entityID)
	message := fmt.Sprintf("🔧 Maintenance scheduled: %s", entityID)
	if slotID = strings.TrimSpace(slotID); slotID != "" {
		message = fmt.Sprintf("%s\nSlot: %s", message, slotID)
	}
	data := payload{
		title:   "Manifold - Scheduled",
		message: message,
		tags:    []string{"manifold", "maintenance", "scheduled"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("❌ Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Manifold - Error",
		message:  builder.String(),
		tags:     []string{"manifold", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Manifold - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"manifold", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyDaemonStarted(context.Context, string) error { return nil }
func (noopService) NotifyDaemonStopped(context.Context) error         { return nil }
func (noopService) NotifyWorkflowCompleted(context.Context, string, string, time.Duration) error {
	return nil
}
func (noopService) NotifyWorkflowFailed(context.Context, string, string) error        { return nil }
func (noopService) NotifyMaintenanceScheduled(context.Context, string, string) error  { return nil }
func (noopService) NotifyError(context.Context, error, string) error                  { return nil }
func (noopService) TestNotification(context.Context) error                            { return nil }
