package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookAlerter posts messages to a Discord-style webhook. An empty URL
// disables the channel; Alert then succeeds as a no-op so callers do not
// need to special-case deployments without one.
type WebhookAlerter struct {
	url    string
	client *http.Client
}

func NewWebhookAlerter(url string) *WebhookAlerter {
	return &WebhookAlerter{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookAlerter) Alert(ctx context.Context, message string) error {
	if w.url == "" {
		return nil
	}

	payload, err := json.Marshal(map[string]string{"content": message})
	if err != nil {
		return fmt.Errorf("encoding alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("alert webhook returned %s", resp.Status)
	}
	return nil
}
