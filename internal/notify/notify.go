package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rowjay/fastboot-deploy/internal/config"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Event describes one finished deploy hook.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"` // upload or activate
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	Bucket    string    `json:"bucket"`
	Revision  string    `json:"revision"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Duration  string    `json:"duration"`
	Key       string    `json:"key"`
	Error     string    `json:"error,omitempty"`
}

// NewEvent stamps an event for a hook that started at start and ended now.
func NewEvent(kind, bucket, revision, key string, start time.Time, err error) Event {
	end := time.Now()
	event := Event{
		ID:        uuid.NewString(),
		Type:      kind,
		Message:   fmt.Sprintf("%s revision %s", kind, revision),
		Status:    StatusSuccess,
		Bucket:    bucket,
		Revision:  revision,
		StartedAt: start,
		EndedAt:   end,
		Duration:  end.Sub(start).String(),
		Key:       key,
	}
	if err != nil {
		event.Status = StatusFailed
		event.Error = err.Error()
	}
	return event
}

type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Multi fans an event out to every target and joins their errors.
type Multi struct {
	Targets []Notifier
}

func (m Multi) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, target := range m.Targets {
		if target == nil {
			continue
		}
		if err := target.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Webhook posts the raw event as JSON.
type Webhook struct {
	Name    string
	URL     string
	Headers map[string]string
}

func (w Webhook) Notify(ctx context.Context, event Event) error {
	return sendJSON(ctx, http.MethodPost, "webhook "+w.Name, w.URL, w.Headers, event)
}

type Mattermost struct {
	Name string
	URL  string
}

func (m Mattermost) Notify(ctx context.Context, event Event) error {
	return sendJSON(ctx, http.MethodPost, "mattermost "+m.Name, m.URL, nil, map[string]string{"text": summary(event)})
}

type Matrix struct {
	Name        string
	ServerURL   string
	AccessToken string
	RoomID      string
}

// Notify sends an m.room.message event. The event ID doubles as the
// transaction ID, which the homeserver requires on a PUT.
func (m Matrix) Notify(ctx context.Context, event Event) error {
	endpoint := fmt.Sprintf("%s/_matrix/client/v3/rooms/%s/send/m.room.message/%s",
		strings.TrimRight(m.ServerURL, "/"), url.PathEscape(m.RoomID), event.ID)
	payload := map[string]any{
		"msgtype": "m.text",
		"body":    summary(event),
	}
	headers := map[string]string{"Authorization": "Bearer " + m.AccessToken}
	return sendJSON(ctx, http.MethodPut, "matrix "+m.Name, endpoint, headers, payload)
}

func FromConfig(cfg config.NotificationsConfig) Multi {
	var targets []Notifier
	for _, w := range cfg.Webhooks {
		targets = append(targets, Webhook{Name: w.Name, URL: w.URL, Headers: w.Headers})
	}
	for _, mm := range cfg.Mattermost {
		targets = append(targets, Mattermost{Name: mm.Name, URL: mm.URL})
	}
	for _, mx := range cfg.Matrix {
		targets = append(targets, Matrix{Name: mx.Name, ServerURL: mx.ServerURL, AccessToken: mx.AccessToken, RoomID: mx.RoomID})
	}
	return Multi{Targets: targets}
}

func summary(event Event) string {
	text := fmt.Sprintf("[%s] %s (%s)", event.Status, event.Message, event.Key)
	if event.Error != "" {
		text += ": " + event.Error
	}
	return text
}

func sendJSON(ctx context.Context, method, target, endpoint string, headers map[string]string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned %s", target, resp.Status)
	}
	return nil
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}
