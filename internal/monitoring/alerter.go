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

	"github.com/gurs-tools/kataster-cli/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertStoreDown AlertType = "store_down"
	AlertStoreSlow AlertType = "store_slow"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates health snapshots against configured thresholds and sends
// alerts via webhook when thresholds are breached. It tracks consecutive
// ping failures so a single network blip never pages anyone.
type Alerter struct {
	cfg    config.MonitorConfig
	client *http.Client

	consecutiveFailures int
}

// NewAlerter creates a new Alerter with the given monitor config.
func NewAlerter(cfg config.MonitorConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
// Not safe for concurrent use; the checker is the only caller.
func (a *Alerter) Evaluate(snap *HealthSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	threshold := a.cfg.FailureThreshold
	if threshold <= 0 {
		threshold = 3
	}

	if !snap.Healthy {
		a.consecutiveFailures++
		if a.consecutiveFailures >= threshold {
			alerts = append(alerts, Alert{
				Type:     AlertStoreDown,
				Severity: "high",
				Message: fmt.Sprintf(
					"store unreachable for %d consecutive checks: %s",
					a.consecutiveFailures, snap.Error,
				),
				Details: map[string]any{
					"consecutive_failures": a.consecutiveFailures,
					"threshold":            threshold,
					"error":                snap.Error,
				},
				Timestamp: now,
			})
		}
		return alerts
	}
	a.consecutiveFailures = 0

	if a.cfg.LatencyThresholdMs > 0 && snap.LatencyMs > a.cfg.LatencyThresholdMs {
		alerts = append(alerts, Alert{
			Type:     AlertStoreSlow,
			Severity: "medium",
			Message: fmt.Sprintf(
				"store ping took %.1fms, threshold %.1fms",
				snap.LatencyMs, a.cfg.LatencyThresholdMs,
			),
			Details: map[string]any{
				"latency_ms":   snap.LatencyMs,
				"threshold_ms": a.cfg.LatencyThresholdMs,
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
