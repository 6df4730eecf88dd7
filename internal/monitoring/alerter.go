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

	"github.com/sells-group/macro-cli/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertStageFailure AlertType = "stage_failure"
	AlertStaleStage   AlertType = "stale_stage"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Stage     string         `json:"stage"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a HealthSnapshot and posts alerts to a webhook.
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

// Evaluate returns one alert per stage that failed within the window and
// one per stage whose last success is older than StaleAfterHours.
func (a *Alerter) Evaluate(snap *HealthSnapshot) []Alert {
	var alerts []Alert
	for _, st := range snap.Stages {
		if st.Failed > 0 {
			alerts = append(alerts, Alert{
				Type:     AlertStageFailure,
				Stage:    st.Stage,
				Severity: "high",
				Message: fmt.Sprintf("%s failed %d of %d run(s) in last %dh",
					st.Stage, st.Failed, st.Runs, snap.LookbackHours),
				Details: map[string]any{
					"failed":     st.Failed,
					"runs":       st.Runs,
					"last_error": st.LastError,
				},
				Timestamp: snap.CollectedAt,
			})
		}

		if a.cfg.StaleAfterHours <= 0 {
			continue
		}
		limit := time.Duration(a.cfg.StaleAfterHours) * time.Hour
		switch {
		case st.LastSuccess == nil:
			alerts = append(alerts, Alert{
				Type:      AlertStaleStage,
				Stage:     st.Stage,
				Severity:  "medium",
				Message:   fmt.Sprintf("%s has never completed", st.Stage),
				Timestamp: snap.CollectedAt,
			})
		case snap.CollectedAt.Sub(*st.LastSuccess) > limit:
			age := snap.CollectedAt.Sub(*st.LastSuccess)
			alerts = append(alerts, Alert{
				Type:     AlertStaleStage,
				Stage:    st.Stage,
				Severity: "medium",
				Message: fmt.Sprintf("%s last completed %.0fh ago (limit %dh)",
					st.Stage, age.Hours(), a.cfg.StaleAfterHours),
				Details: map[string]any{
					"last_success": st.LastSuccess.Format(time.RFC3339),
				},
				Timestamp: snap.CollectedAt,
			})
		}
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
				zap.String("stage", alert.Stage),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	return sent
}

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
