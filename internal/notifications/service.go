package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"webvideo/internal/config"
)

const userAgent = "WebVideo-Go/0.1.0"

// Event names a notification kind.
type Event string

const (
	EventRecordingStarted   Event = "recording_started"
	EventRecordingCompleted Event = "recording_completed"
	EventAutomationDegraded Event = "automation_degraded"
	EventScheduled          Event = "scheduled"
	EventError              Event = "error"
	EventTest               Event = "test"
)

// Payload carries event fields keyed by name.
type Payload map[string]any

// Service defines the notification surface exposed to daemon components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		sessions: cfg.Notifications.Sessions,
		errors:   cfg.Notifications.Errors,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	sessions bool
	errors   bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil {
		return nil
	}
	msg, ok := n.render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) render(event Event, payload Payload) (message, bool) {
	switch event {
	case EventRecordingStarted:
		if !n.sessions {
			return message{}, false
		}
		body := fmt.Sprintf("🔴 Recording: %s", text(payload, "url", "unknown page"))
		if ends := text(payload, "endsAt", ""); ends != "" {
			body += "\nUntil: " + ends
		}
		if degraded, _ := payload["degraded"].(bool); degraded {
			body += "\nBrowser automation unavailable; recording the screen as-is"
		}
		return message{
			title: "WebVideo - Recording Started",
			body:  body,
			tags:  []string{"webvideo", "recording", "started"},
		}, true
	case EventRecordingCompleted:
		if !n.sessions {
			return message{}, false
		}
		body := fmt.Sprintf("✅ Recording saved: %s", text(payload, "output", "unknown file"))
		if d, ok := payload["duration"].(time.Duration); ok && d > 0 {
			body += fmt.Sprintf("\nDuration: %s", d.Round(time.Second))
		}
		return message{
			title: "WebVideo - Recording Complete",
			body:  body,
			tags:  []string{"webvideo", "recording", "completed"},
		}, true
	case EventAutomationDegraded:
		if !n.errors {
			return message{}, false
		}
		return message{
			title: "WebVideo - Browser Automation Failed",
			body:  fmt.Sprintf("⚠️ Recording without browser control: %s", text(payload, "error", "unknown")),
			tags:  []string{"webvideo", "browser", "degraded"},
		}, true
	case EventError:
		if !n.errors {
			return message{}, false
		}
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if label := text(payload, "context", ""); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		builder.WriteString(text(payload, "error", "unknown"))
		return message{
			title:    "WebVideo - Error",
			body:     builder.String(),
			tags:     []string{"webvideo", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "WebVideo - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"webvideo", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func text(payload Payload, key, fallback string) string {
	raw, ok := payload[key]
	if !ok || raw == nil {
		return fallback
	}
	var value string
	switch v := raw.(type) {
	case string:
		value = v
	case error:
		value = v.Error()
	case time.Time:
		if v.IsZero() {
			return fallback
		}
		value = v.Format("2006-01-02 15:04")
	case fmt.Stringer:
		value = v.String()
	default:
		value = fmt.Sprint(v)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
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

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
