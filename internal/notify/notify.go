// Package notify delivers alerts that passed dedup: to the service log and,
// when configured, to an HTTP webhook.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/edirooss/ingestwatch/internal/alerting"
	"github.com/edirooss/ingestwatch/internal/metrics"
)

const userAgent = "ingestwatch/1"

// New builds the notifier chain: the log notifier always, plus an HTTP
// webhook notifier when webhookURL is set.
func New(log *zap.Logger, webhookURL string, timeout time.Duration) alerting.Notifier {
	ln := NewLogNotifier(log)
	url := strings.TrimSpace(webhookURL)
	if url == "" {
		return ln
	}
	return Multi{ln, NewWebhookNotifier(url, timeout)}
}

// LogNotifier writes each alert as a structured log line, at Error for
// critical alerts, Warn for warnings and Info otherwise.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{log: log.Named("notify")}
}

func (n *LogNotifier) Notify(_ context.Context, a alerting.Alert) error {
	fields := []zap.Field{
		zap.String("severity", string(a.Severity)),
		zap.String("channel_id", a.Condition.ChannelID),
		zap.String("channel_name", a.Condition.ChannelName),
		zap.String("pipeline", a.PipelineLabel),
		zap.String("type", a.Condition.Type),
		zap.String("source", a.Source),
		zap.Time("set_time", a.Condition.SetAt),
	}
	if a.Condition.Message != "" {
		fields = append(fields, zap.String("message", a.Condition.Message))
	}
	if r := a.Resolution; r != nil {
		fields = append(fields,
			zap.Stringer("active_input", r.ActiveInput),
			zap.String("active_input_id", r.ActiveInputID),
			zap.Int("verification_level", r.VerificationLevel),
			zap.Bool("redundant_source_mode", r.RedundantSourceMode))
	}

	switch a.Severity {
	case alerting.SeverityCritical:
		n.log.Error("alert", fields...)
	case alerting.SeverityWarning:
		n.log.Warn("alert", fields...)
	default:
		n.log.Info("alert", fields...)
	}
	return nil
}

// WebhookNotifier POSTs each alert as JSON to a fixed URL.
type WebhookNotifier struct {
	endpoint string
	client   *http.Client
}

func NewWebhookNotifier(endpoint string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// webhookPayload is the JSON body posted to the webhook.
type webhookPayload struct {
	Text  string         `json:"text"`
	Alert alerting.Alert `json:"alert"`
}

func (n *WebhookNotifier) Notify(ctx context.Context, a alerting.Alert) error {
	body, err := json.Marshal(webhookPayload{Text: Summary(a), Alert: a})
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		metrics.NotifyFailures.WithLabelValues("webhook").Inc()
		return fmt.Errorf("send webhook notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		metrics.NotifyFailures.WithLabelValues("webhook").Inc()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Summary is the one-line text form of an alert.
func Summary(a alerting.Alert) string {
	name := a.Condition.ChannelName
	if name == "" {
		name = a.Condition.ChannelID
	}
	s := fmt.Sprintf("[%s] %s - %s (%s)", strings.ToUpper(string(a.Severity)), a.Condition.Type, name, a.PipelineLabel)
	if r := a.Resolution; r != nil && r.HasVerdict() {
		s += fmt.Sprintf(" active=%s level=%d", r.ActiveInput, r.VerificationLevel)
	}
	return s
}

// Multi delivers to every notifier and joins their errors.
type Multi []alerting.Notifier

func (m Multi) Notify(ctx context.Context, a alerting.Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
