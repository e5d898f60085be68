package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reelsmith/internal/config"
)

const userAgent = "reelsmith/0.1"

// Event names a notification type.
type Event string

const (
	EventCampaignCompleted Event = "campaign_completed"
	EventCampaignFailed    Event = "campaign_failed"
	EventBatchCompleted    Event = "batch_completed"
	EventError             Event = "error"
	EventTest              Event = "test"
)

// Payload carries event fields. Keys are event specific.
type Payload map[string]any

// Service publishes events.
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
		enabled: map[Event]bool{
			EventCampaignCompleted: cfg.Notifications.CampaignCompleted,
			EventCampaignFailed:    cfg.Notifications.CampaignFailed,
			EventBatchCompleted:    cfg.Notifications.Batch,
			EventError:             cfg.Notifications.Errors,
			EventTest:              true,
		},
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
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventCampaignCompleted:
		name := payloadString(payload, "name")
		body := fmt.Sprintf("✅ Campaign complete: %s", name)
		if skipped := payloadInt(payload, "skipped"); skipped > 0 {
			body += fmt.Sprintf(" (%d steps skipped)", skipped)
		}
		return message{
			title: "reelsmith - Campaign Complete",
			body:  body,
			tags:  []string{"reelsmith", "campaign", "completed"},
		}, true
	case EventCampaignFailed:
		body := fmt.Sprintf("❌ Campaign failed: %s", payloadString(payload, "name"))
		if reason := payloadString(payload, "error"); reason != "" {
			body += "\n" + reason
		}
		return message{
			title:    "reelsmith - Campaign Failed",
			body:     body,
			tags:     []string{"reelsmith", "campaign", "failed"},
			priority: "high",
		}, true
	case EventBatchCompleted:
		total := payloadInt(payload, "total")
		failed := payloadInt(payload, "failed")
		title := "reelsmith - Batch Complete"
		body := fmt.Sprintf("📦 Batch %s: %d campaigns completed", payloadString(payload, "name"), total)
		if failed > 0 {
			title = "reelsmith - Batch Complete (with errors)"
			body = fmt.Sprintf("📦 Batch %s: %d succeeded, %d failed", payloadString(payload, "name"), total-failed, failed)
		}
		if d, ok := payload["duration"].(time.Duration); ok && d > 0 {
			body += " in " + d.Round(time.Second).String()
		}
		return message{title: title, body: body, tags: []string{"reelsmith", "batch", "completed"}}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if label := payloadString(payload, "context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if reason := payloadString(payload, "error"); reason != "" {
			builder.WriteString(reason)
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "reelsmith - Error",
			body:     builder.String(),
			tags:     []string{"reelsmith", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "reelsmith - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"reelsmith", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func payloadString(payload Payload, key string) string {
	switch v := payload[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func payloadInt(payload Payload, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
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
