package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealdock/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertCommitFailures AlertType = "commit_failures"
	AlertStaleIncoming  AlertType = "stale_incoming"
	AlertConflicts      AlertType = "reference_conflicts"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds and sends
// alerts via webhook.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := snap.CollectedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	threshold := a.cfg.FailureThreshold
	if threshold <= 0 {
		threshold = 1
	}
	if snap.ConsecutiveFailures >= threshold {
		alerts = append(alerts, Alert{
			Type:     AlertCommitFailures,
			Severity: "high",
			Message: fmt.Sprintf(
				"Board commits failed in %d consecutive passes (%d failure(s) in the last pass)",
				snap.ConsecutiveFailures, snap.FailedCommits,
			),
			Details: map[string]any{
				"consecutive_failures": snap.ConsecutiveFailures,
				"threshold":            threshold,
				"failed_commits":       snap.FailedCommits,
			},
			Timestamp: now,
		})
	}

	if n := len(snap.StaleIncoming); n > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertStaleIncoming,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d incoming deal(s) unreviewed for more than %dh",
				n, snap.StaleAfterHours,
			),
			Details: map[string]any{
				"deal_ids": snap.StaleIncoming,
			},
			Timestamp: now,
		})
	}

	if snap.NewConflicts > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertConflicts,
			Severity: "low",
			Message:  fmt.Sprintf("%d deal(s) share a reference code with another open deal", snap.NewConflicts),
			Details: map[string]any{
				"conflicting_deals": snap.NewConflicts,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
