package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"meddoc/internal/config"
)

const userAgent = "meddoc/0.1"

// Event identifies a notification kind.
type Event string

const (
	EventDraftCreated         Event = "draft_created"
	EventConfirmed            Event = "confirmed"
	EventClassificationFailed Event = "classification_failed"
	EventError                Event = "error"
	EventTest                 Event = "test"
)

// Payload carries event fields keyed by name.
type Payload map[string]any

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
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
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventDraftCreated:         cfg.Notifications.Drafts,
			EventConfirmed:            cfg.Notifications.Confirmations,
			EventClassificationFailed: cfg.Notifications.Errors,
			EventError:                cfg.Notifications.Errors,
			EventTest:                 true,
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
	case EventDraftCreated:
		var b strings.Builder
		fmt.Fprintf(&b, "📄 %s\n", payload.text("fileName"))
		fmt.Fprintf(&b, "Thiết bị: %s %s\n", payload.text("vendor"), payload.text("model"))
		fmt.Fprintf(&b, "Loại: %s\n", payload.textOr("docTypeLabel", payload.text("docType")))
		if summary := payload.text("summary"); summary != "" {
			fmt.Fprintf(&b, "Tóm tắt: %s\n", summary)
		}
		fmt.Fprintf(&b, "Vị trí đề xuất: %s\n", payload.text("proposedPath"))
		fmt.Fprintf(&b, "Độ tin cậy: %s\n", payload.percent("confidence"))
		fmt.Fprintf(&b, "Duyệt: meddoc records approve %s", payload.text("recordID"))
		return message{
			title: "meddoc - Tài liệu mới cần duyệt",
			body:  b.String(),
			tags:  []string{"meddoc", "draft", payload.text("docType")},
		}, true
	case EventConfirmed:
		return message{
			title: "meddoc - Đã lưu",
			body:  fmt.Sprintf("✅ %s\n→ %s", payload.text("fileName"), payload.text("path")),
			tags:  []string{"meddoc", "confirmed"},
		}, true
	case EventClassificationFailed:
		return message{
			title:    "meddoc - Phân loại thất bại",
			body:     fmt.Sprintf("❌ %s: %s", payload.text("fileName"), payload.text("error")),
			tags:     []string{"meddoc", "classifier", "error"},
			priority: "high",
		}, true
	case EventError:
		body := "❌ Error"
		if label := payload.text("context"); label != "" {
			body += " with " + label
		}
		body += ": " + payload.textOr("error", "unknown")
		return message{
			title:    "meddoc - Error",
			body:     body,
			tags:     []string{"meddoc", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "meddoc - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"meddoc", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (p Payload) text(key string) string {
	return p.textOr(key, "")
}

func (p Payload) textOr(key, fallback string) string {
	value, ok := p[key]
	if !ok || value == nil {
		return fallback
	}
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case fmt.Stringer:
		s = v.String()
	case error:
		s = v.Error()
	case int64:
		s = strconv.FormatInt(v, 10)
	default:
		s = fmt.Sprint(v)
	}
	if s = strings.TrimSpace(s); s == "" {
		return fallback
	}
	return s
}

func (p Payload) percent(key string) string {
	v, ok := p[key].(float64)
	if !ok {
		return "?"
	}
	return fmt.Sprintf("%.0f%%", v*100)
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
	if tags := nonEmpty(msg.tags); len(tags) > 0 {
		req.Header.Set("Tags", strings.Join(tags, ","))
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

func nonEmpty(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
