// Package alerting posts webhook notifications about refresh outages and
// cache tamper signals.
package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

// Config holds alerting configuration.
type Config struct {
	// WebhookURL is a generic webhook endpoint (Slack, Discord, or custom)
	WebhookURL string
	// WebhookType determines the payload format: "slack", "discord", or "generic"
	WebhookType string
	// Enabled controls whether alerts are sent
	Enabled bool
	// MinFailuresBeforeAlert is the threshold before sending alerts
	MinFailuresBeforeAlert int
	// Timeout for HTTP requests
	Timeout time.Duration
}

// NewConfig builds an alerting config, auto-detecting the webhook type from
// the URL when the caller names none. An empty URL disables alerting.
func NewConfig(webhookURL, webhookType string, minFailures int) Config {
	cfg := Config{
		WebhookURL:             webhookURL,
		WebhookType:            webhookType,
		MinFailuresBeforeAlert: minFailures,
		Timeout:                10 * time.Second,
	}
	cfg.Enabled = cfg.WebhookURL != ""
	if cfg.MinFailuresBeforeAlert <= 0 {
		cfg.MinFailuresBeforeAlert = 1
	}

	if cfg.WebhookType == "" {
		if strings.Contains(cfg.WebhookURL, "slack.com") {
			cfg.WebhookType = "slack"
		} else if strings.Contains(cfg.WebhookURL, "discord.com") {
			cfg.WebhookType = "discord"
		} else {
			cfg.WebhookType = "generic"
		}
	}
	return cfg
}

// Alerter sends alerts to the configured webhook.
type Alerter struct {
	cfg    Config
	client *http.Client
}

// New creates a new alerter instance.
func New(cfg Config) *Alerter {
	return &Alerter{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// RefreshAlert describes the outcome of one refresh job run.
type RefreshAlert struct {
	JobName      string
	TotalPairs   int
	SuccessCount int
	FailedCount  int
	Duration     time.Duration
	Failures     []PairFailure
	Timestamp    time.Time
}

// PairFailure contains details about one pair that could not be refreshed.
type PairFailure struct {
	Pair  string `json:"pair"`
	Error string `json:"error"`
}

// SendRefreshAlert sends an alert about refresh job failures. Runs below
// the configured failure threshold are skipped.
func (a *Alerter) SendRefreshAlert(ctx context.Context, alert RefreshAlert) error {
	if !a.cfg.Enabled {
		return nil
	}

	if alert.FailedCount < a.cfg.MinFailuresBeforeAlert {
		log.Printf("alerting: %d failures below threshold (%d), skipping",
			alert.FailedCount, a.cfg.MinFailuresBeforeAlert)
		return nil
	}

	var payload []byte
	var err error

	switch a.cfg.WebhookType {
	case "slack":
		payload, err = a.buildSlackPayload(alert)
	case "discord":
		payload, err = a.buildDiscordPayload(alert)
	default:
		payload, err = a.buildGenericPayload(alert)
	}
	if err != nil {
		return fmt.Errorf("build payload: %w", err)
	}

	if err := a.post(ctx, payload); err != nil {
		return err
	}
	log.Printf("alerting: sent alert for %d failed pairs", alert.FailedCount)
	return nil
}

// SendTamperAlert reports that the encrypted cache container could not be
// authenticated. This bypasses the failure threshold: a tamper signal is
// never routine.
func (a *Alerter) SendTamperAlert(ctx context.Context, path string, cause error) error {
	if !a.cfg.Enabled {
		return nil
	}

	payload, err := json.Marshal(map[string]interface{}{
		"alert_type": "cache_tamper",
		"path":       path,
		"error":      cause.Error(),
		"timestamp":  time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("build payload: %w", err)
	}
	return a.post(ctx, payload)
}

func (a *Alerter) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, "POST", a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (a *Alerter) buildSlackPayload(alert RefreshAlert) ([]byte, error) {
	var failedList strings.Builder
	for _, f := range alert.Failures {
		failedList.WriteString(fmt.Sprintf("• *%s*: %s\n", f.Pair, f.Error))
	}

	emoji := ":warning:"
	if alert.FailedCount == alert.TotalPairs {
		emoji = ":x:"
	}

	payload := map[string]interface{}{
		"blocks": []map[string]interface{}{
			{
				"type": "header",
				"text": map[string]string{
					"type": "plain_text",
					"text": fmt.Sprintf("%s Rate Refresh Alert: %s", emoji, alert.JobName),
				},
			},
			{
				"type": "section",
				"fields": []map[string]string{
					{"type": "mrkdwn", "text": fmt.Sprintf("*Status:*\n%d/%d failed", alert.FailedCount, alert.TotalPairs)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Duration:*\n%s", alert.Duration.Round(time.Millisecond))},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Success:*\n%d", alert.SuccessCount)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Timestamp:*\n%s", alert.Timestamp.Format(time.RFC3339))},
				},
			},
			{
				"type": "section",
				"text": map[string]string{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Failed Pairs:*\n%s", failedList.String()),
				},
			},
		},
	}

	return json.Marshal(payload)
}

func (a *Alerter) buildDiscordPayload(alert RefreshAlert) ([]byte, error) {
	var failedList strings.Builder
	for _, f := range alert.Failures {
		failedList.WriteString(fmt.Sprintf("• **%s**: %s\n", f.Pair, f.Error))
	}

	color := 16776960 // Yellow
	if alert.FailedCount == alert.TotalPairs {
		color = 16711680 // Red
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       fmt.Sprintf("Rate Refresh Alert: %s", alert.JobName),
				"description": fmt.Sprintf("%d/%d pairs failed", alert.FailedCount, alert.TotalPairs),
				"color":       color,
				"fields": []map[string]interface{}{
					{"name": "Success", "value": fmt.Sprintf("%d", alert.SuccessCount), "inline": true},
					{"name": "Failed", "value": fmt.Sprintf("%d", alert.FailedCount), "inline": true},
					{"name": "Duration", "value": alert.Duration.Round(time.Millisecond).String(), "inline": true},
					{"name": "Failed Pairs", "value": failedList.String(), "inline": false},
				},
				"timestamp": alert.Timestamp.Format(time.RFC3339),
			},
		},
	}

	return json.Marshal(payload)
}

func (a *Alerter) buildGenericPayload(alert RefreshAlert) ([]byte, error) {
	payload := map[string]interface{}{
		"alert_type":    "rate_refresh_failure",
		"job_name":      alert.JobName,
		"total_pairs":   alert.TotalPairs,
		"success_count": alert.SuccessCount,
		"failed_count":  alert.FailedCount,
		"duration_ms":   alert.Duration.Milliseconds(),
		"timestamp":     alert.Timestamp.Format(time.RFC3339),
		"failures":      alert.Failures,
	}

	return json.Marshal(payload)
}
