package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dispatch-console/internal/config"
	"github.com/sells-group/dispatch-console/internal/metrics"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertDispatchFailureRate AlertType = "dispatch_failure_rate"
	AlertBroadcastFailure    AlertType = "broadcast_failure"
	AlertSourcesDown         AlertType = "sources_down"
)

// Alert is one operations notification.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds and posts
// alerts to a webhook. An alert type that was sent is held back until the
// lookback window has passed.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client

	mu   sync.Mutex
	sent map[AlertType]time.Time
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		sent:   make(map[AlertType]time.Time),
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()
	window := snap.Lookback.Round(time.Minute)

	minActions := a.cfg.MinActions
	if minActions <= 0 {
		minActions = 1
	}
	if snap.DispatchTotal >= minActions && snap.DispatchFailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertDispatchFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Team dispatch failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d in last %s)",
				snap.DispatchFailRate*100, a.cfg.FailureRateThreshold*100,
				snap.DispatchFailed, snap.DispatchTotal, window,
			),
			Details: map[string]any{
				"failure_rate": snap.DispatchFailRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.DispatchFailed,
				"total":        snap.DispatchTotal,
			},
			Timestamp: now,
		})
	}

	if snap.BroadcastFailed > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertBroadcastFailure,
			Severity: "critical",
			Message: fmt.Sprintf(
				"%d area alert broadcast(s) failed in last %s, %d recipient(s) not reached",
				snap.BroadcastFailed, window, snap.UnreachedRecipients,
			),
			Details: map[string]any{
				"failed":     snap.BroadcastFailed,
				"total":      snap.BroadcastTotal,
				"recipients": snap.UnreachedRecipients,
			},
			Timestamp: now,
		})
	}

	if len(snap.FailedSources) > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertSourcesDown,
			Severity: "medium",
			Message:  "Map data unavailable from: " + strings.Join(snap.FailedSources, ", "),
			Details: map[string]any{
				"sources": snap.FailedSources,
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
		if a.suppressed(alert) {
			zap.L().Debug("monitoring: alert suppressed", zap.String("type", string(alert.Type)))
			continue
		}
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		a.mu.Lock()
		a.sent[alert.Type] = alert.Timestamp
		a.mu.Unlock()
		metrics.MonitorAlertsTotal.WithLabelValues(string(alert.Type)).Inc()
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) suppressed(alert Alert) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	last, ok := a.sent[alert.Type]
	return ok && alert.Timestamp.Sub(last) < a.cfg.Lookback()
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
