// Package slack sends ingestion run notifications to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/skywatch/internal/ingest"
)

const (
	maxDetailLen = 1000
	httpTimeout  = 10 * time.Second
)

// Notifier sends completed ingestion runs to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, Send is a no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// Send posts a finished run to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Send(ctx context.Context, run *ingest.Run) error {
	if n.webhookURL == "" {
		return nil
	}

	msg := buildMessage(run)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(r *ingest.Run) map[string]any {
	blocks := []map[string]any{
		headerBlock(r),
		{"type": "divider"},
		fieldsBlock(r),
	}
	if r.ErrorDetail != "" {
		blocks = append(blocks, map[string]any{"type": "divider"}, errorBlock(r))
	}
	return map[string]any{"blocks": blocks}
}

func headerBlock(r *ingest.Run) map[string]any {
	emoji := ":white_check_mark:"
	title := "Ingestion Run Complete"
	if r.Outcome == ingest.OutcomeFailed {
		emoji = ":x:"
		title = "Ingestion Run Failed"
	}

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": fmt.Sprintf("%s %s", emoji, title),
		},
	}
}

func fieldsBlock(r *ingest.Run) map[string]any {
	duration := 0.0
	if r.CompletedAt != nil {
		duration = r.CompletedAt.Sub(r.StartedAt).Seconds()
	}
	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Run:* %s", r.ID),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Outcome:* %s", r.Outcome),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Imported:* %d", r.AlertsImported),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Duration:* %.1fs", duration),
		},
	}
	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func errorBlock(r *ingest.Run) map[string]any {
	detail := r.ErrorDetail
	if len(detail) > maxDetailLen {
		detail = detail[:maxDetailLen] + "..."
	}
	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("```%s```", detail),
		},
	}
}
