package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ferry/internal/config"
)

const userAgent = "ferry/0.1.0"

// Event names a pipeline milestone that may be pushed to the user.
type Event string

const (
	EventImportCompleted Event = "import_completed"
	EventImportFailed    Event = "import_failed"
	EventRootFallback    Event = "root_fallback"
	EventTest            Event = "test"
)

// Payload carries event fields. Keys are event specific.
type Payload map[string]string

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg config.Notifications) Service {
	topic := strings.TrimSpace(cfg.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventImportCompleted: cfg.ImportCompleted,
			EventImportFailed:    cfg.ImportFailed,
			EventRootFallback:    cfg.RootFallback,
			EventTest:            true,
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
	if !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return fmt.Errorf("unknown notification event %q", event)
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	get := func(key string) string { return strings.TrimSpace(payload[key]) }
	switch event {
	case EventImportCompleted:
		body := fmt.Sprintf("Imported: %s", get("title"))
		if q := get("quality"); q != "" {
			body = fmt.Sprintf("%s (%s)", body, q)
		}
		if dest := get("destination"); dest != "" {
			body = fmt.Sprintf("%s\nFile: %s", body, dest)
		}
		return message{
			title: "ferry - Imported",
			body:  body,
			tags:  []string{"ferry", "import", "completed"},
		}, true
	case EventImportFailed:
		reason := get("error")
		if reason == "" {
			reason = "unknown"
		}
		return message{
			title:    "ferry - Import Failed",
			body:     fmt.Sprintf("Import failed: %s\n%s", get("title"), reason),
			tags:     []string{"ferry", "import", "failed"},
			priority: "high",
		}, true
	case EventRootFallback:
		return message{
			title: "ferry - Library Space Low",
			body:  fmt.Sprintf("No library root has room for %s; using %s", get("title"), get("root")),
			tags:  []string{"ferry", "storage", "warning"},
		}, true
	case EventTest:
		return message{
			title:    "ferry - Test",
			body:     "Notification system test",
			tags:     []string{"ferry", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
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
