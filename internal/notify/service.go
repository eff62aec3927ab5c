package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"darkroom/internal/config"
)

const userAgent = "Darkroom/0.1.0"

// Handle identifies one in-flight processing notification.
type Handle int

// NoHandle is the sentinel for a session that has not been started.
const NoHandle Handle = -1

// Notifier is the notification surface consumed by capture sessions.
// Implementations must be safe for concurrent use; notifier failures are
// advisory and never fail a session operation.
type Notifier interface {
	// NotifyStart announces a new in-flight capture and returns its handle.
	NotifyStart(ctx context.Context, message string) (Handle, error)
	// SetProgress updates the progress percentage for a handle.
	SetProgress(ctx context.Context, percent int, handle Handle) error
	// SetStatus updates the status text for a handle.
	SetStatus(ctx context.Context, message string, handle Handle) error
	// NotifyCompletion marks the handle's work finished (success or failure).
	NotifyCompletion(ctx context.Context, handle Handle) error
	// NotifyError pushes a standalone failure alert outside any handle.
	NotifyError(ctx context.Context, identifier, reason string) error
	// TestNotification sends a connectivity probe.
	TestNotification(ctx context.Context) error
}

// NewNotifier builds a Notifier backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewNotifier(cfg *config.Config) Notifier {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopNotifier{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	step := cfg.Notifications.ProgressStep
	if step <= 0 {
		step = 25
	}

	return &ntfyNotifier{
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		pushProgress: cfg.Notifications.Progress,
		progressStep: step,
		active:       make(map[Handle]*handleState),
	}
}

type handleState struct {
	message      string
	lastReported int
}

type ntfyNotifier struct {
	endpoint     string
	client       *http.Client
	pushProgress bool
	progressStep int

	mu     sync.Mutex
	next   Handle
	active map[Handle]*handleState
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

func (n *ntfyNotifier) NotifyStart(ctx context.Context, message string) (Handle, error) {
	n.mu.Lock()
	handle := n.next
	n.next++
	n.active[handle] = &handleState{message: message, lastReported: -1}
	n.mu.Unlock()

	data := payload{
		title:   "Darkroom - Processing",
		message: fmt.Sprintf("Capture queued: %s", strings.TrimSpace(message)),
		tags:    []string{"darkroom", "capture", "queued"},
	}
	return handle, n.send(ctx, data)
}

func (n *ntfyNotifier) SetProgress(ctx context.Context, percent int, handle Handle) error {
	if !n.pushProgress {
		return nil
	}

	n.mu.Lock()
	state, ok := n.active[handle]
	if !ok || (percent < 100 && percent < state.lastReported+n.progressStep) {
		n.mu.Unlock()
		return nil
	}
	state.lastReported = percent
	message := state.message
	n.mu.Unlock()

	data := payload{
		title:   "Darkroom - Progress",
		message: fmt.Sprintf("%s: %d%%", strings.TrimSpace(message), percent),
		tags:    []string{"darkroom", "capture", "progress"},
	}
	return n.send(ctx, data)
}

func (n *ntfyNotifier) SetStatus(ctx context.Context, message string, handle Handle) error {
	n.mu.Lock()
	state, ok := n.active[handle]
	if ok {
		state.message = message
	}
	n.mu.Unlock()
	if !ok {
		return nil
	}

	data := payload{
		title:   "Darkroom - Status",
		message: strings.TrimSpace(message),
		tags:    []string{"darkroom", "capture", "status"},
	}
	return n.send(ctx, data)
}

func (n *ntfyNotifier) NotifyCompletion(ctx context.Context, handle Handle) error {
	n.mu.Lock()
	state, ok := n.active[handle]
	delete(n.active, handle)
	n.mu.Unlock()
	if !ok {
		return nil
	}

	data := payload{
		title:    "Darkroom - Done",
		message:  fmt.Sprintf("Finished processing: %s", strings.TrimSpace(state.message)),
		tags:     []string{"darkroom", "capture", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyNotifier) NotifyError(ctx context.Context, identifier, reason string) error {
	data := payload{
		title:    "Darkroom - Error",
		message:  fmt.Sprintf("%s: %s", identifier, strings.TrimSpace(reason)),
		tags:     []string{"darkroom", "error"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyNotifier) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Darkroom - Test",
		message:  "Notification system test",
		tags:     []string{"darkroom", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyNotifier) send(ctx context.Context, data payload) error {
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

type noopNotifier struct{}

func (noopNotifier) NotifyStart(context.Context, string) (Handle, error) { return 0, nil }
func (noopNotifier) SetProgress(context.Context, int, Handle) error      { return nil }
func (noopNotifier) SetStatus(context.Context, string, Handle) error     { return nil }
func (noopNotifier) NotifyCompletion(context.Context, Handle) error      { return nil }
func (noopNotifier) NotifyError(context.Context, string, string) error   { return nil }
func (noopNotifier) TestNotification(context.Context) error              { return nil }
