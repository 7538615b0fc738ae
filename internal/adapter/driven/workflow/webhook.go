// Package workflow implements the DerivedWorkflow port as an outbound webhook.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ericfisherdev/fitpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.DerivedWorkflow = (*Webhook)(nil)

// triggerPayload is the JSON body posted to the webhook.
type triggerPayload struct {
	RunID       time.Time `json:"run_id"`
	TriggeredAt time.Time `json:"triggered_at"`
}

// Webhook notifies a downstream service that fresh activity and readiness
// data is available for recomputation.
type Webhook struct {
	url    string
	client *http.Client
	now    func() time.Time
}

// NewWebhook creates a Webhook posting to url. An empty url disables it.
func NewWebhook(url string, client *http.Client) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Webhook{url: url, client: client, now: time.Now}
}

// Trigger posts the run id to the webhook. It is a no-op when no URL is set.
func (w *Webhook) Trigger(ctx context.Context, runID time.Time) error {
	if w.url == "" {
		slog.Debug("derived workflow disabled, skipping trigger", "run_id", runID)
		return nil
	}

	body, err := json.Marshal(triggerPayload{RunID: runID.UTC(), TriggeredAt: w.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshaling derived workflow payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating derived workflow request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("derived workflow trigger: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("derived workflow trigger: HTTP %d", resp.StatusCode)
	}

	slog.Info("derived workflow triggered", "run_id", runID)
	return nil
}
