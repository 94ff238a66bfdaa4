package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voicenotes/internal/config"
)

const userAgent = "voicenotes/0.1.0"

// PassResult is the subset of a pass summary worth a push notification.
type PassResult struct {
	NotesSent    int
	Acknowledged int
	Failures     int
	Failed       []string
	Duration     time.Duration
}

// Service defines the notification surface used by the pass runner.
type Service interface {
	NotifyPassCompleted(ctx context.Context, result PassResult) error
	NotifyError(ctx context.Context, err error, context string) error
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
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		deliveries: cfg.Notifications.Deliveries,
		failures:   cfg.Notifications.Failures,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	deliveries bool
	failures   bool
}

// NotifyPassCompleted publishes a pass summary. Passes with failures notify
// when failure notifications are on; clean passes that delivered or
// acknowledged something notify only when delivery notifications are on.
func (n *ntfyService) NotifyPassCompleted(ctx context.Context, result PassResult) error {
	if result.Failures > 0 {
		if !n.failures {
			return nil
		}
		message := fmt.Sprintf("Pass finished with %d failure(s); %d note(s) sent", result.Failures, result.NotesSent)
		if len(result.Failed) > 0 {
			message = fmt.Sprintf("%s\nNot delivered: %s", message, strings.Join(result.Failed, ", "))
		}
		return n.send(ctx, payload{
			title:    "Voice notes - Pass had failures",
			message:  message,
			tags:     []string{"voicenotes", "pass", "warning"},
			priority: "high",
		})
	}
	if !n.deliveries || (result.NotesSent == 0 && result.Acknowledged == 0) {
		return nil
	}
	return n.send(ctx, payload{
		title: "Voice notes - Synced",
		message: fmt.Sprintf("🎙️ Notes sent: %d, acknowledged: %d (%s)",
			result.NotesSent, result.Acknowledged, formatDuration(result.Duration)),
		tags: []string{"voicenotes", "pass", "completed"},
	})
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.failures {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("❌ Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" during ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	return n.send(ctx, payload{
		title:    "Voice notes - Error",
		message:  builder.String(),
		tags:     []string{"voicenotes", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Voice notes - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"voicenotes", "test"},
		priority: "low",
	})
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

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

type noopService struct{}

func (noopService) NotifyPassCompleted(context.Context, PassResult) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error     { return nil }
func (noopService) TestNotification(context.Context) error               { return nil }
