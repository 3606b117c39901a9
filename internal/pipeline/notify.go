package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// NotifyConfig configures where to send completion notifications.
type NotifyConfig struct {
	WebhookURL string // if empty, no notifications
	Client     *http.Client
}

// completionPayload is the JSON body posted to the webhook endpoint.
type completionPayload struct {
	Target         string            `json:"target"`
	RunID          string            `json:"run_id"`
	RunDir         string            `json:"run_dir"`
	Status         string            `json:"status"`
	StagesRun      []string          `json:"stages_run"`
	Skipped        []string          `json:"skipped,omitempty"`
	ElapsedSeconds float64           `json:"elapsed_seconds"`
	Subdomains     int               `json:"subdomains"`
	AliveHosts     int               `json:"alive_hosts"`
	Errors         map[string]string `json:"errors"`
}

// SendCompletion posts a JSON payload to the webhook URL with run results.
// Returns nil if WebhookURL is empty (no-op). Errors are returned
// but callers should treat them as warnings.
func (n *NotifyConfig) SendCompletion(ctx context.Context, result *PipelineResult) error {
	if n == nil || n.WebhookURL == "" {
		return nil
	}

	payload := completionPayload{
		Target:         result.Target,
		RunID:          result.RunID,
		RunDir:         result.RunDir,
		Status:         string(result.Status),
		StagesRun:      result.StagesRun,
		Skipped:        result.Skipped,
		ElapsedSeconds: result.Elapsed.Seconds(),
		Subdomains:     result.SubdomainCount,
		AliveHosts:     result.AliveCount,
		Errors:         result.StageErrors,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshaling payload: %w", err)
	}

	client := n.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: posting to %s: %w", n.WebhookURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook returned non-2xx status %d", resp.StatusCode)
	}

	return nil
}
