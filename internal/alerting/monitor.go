package alerting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/edirooss/ingestwatch/internal/domain/resource"
	"github.com/edirooss/ingestwatch/internal/domain/telemetry"
	"github.com/edirooss/ingestwatch/internal/metrics"
	"github.com/edirooss/ingestwatch/internal/provider"
	"github.com/edirooss/ingestwatch/internal/resolver"
)

// Alert is what the monitor hands to a Notifier: one condition that passed
// dedup, its severity and, when available, the channel's active-source
// resolution.
type Alert struct {
	Condition     telemetry.Condition `json:"condition"`
	Severity      Severity            `json:"severity"`
	PipelineLabel string              `json:"pipeline_label"`
	Source        string              `json:"source"` // poll | webhook:<service>
	InputID       string              `json:"input_id,omitempty"`
	Resolution    *resolver.Record    `json:"resolution,omitempty"`
}

// Notifier delivers alerts. Implementations live in internal/notify.
type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// Resolver is the part of *resolver.Resolver the monitor needs.
type Resolver interface {
	Resolve(ctx context.Context, channelID string) *resolver.Record
}

type MonitorOptions struct {
	// PollConcurrency bounds channels checked in parallel; default 4.
	PollConcurrency int
	// CallTimeout bounds each telemetry read; default 20s.
	CallTimeout time.Duration
	// NotifyTimeout bounds enrichment plus delivery of one alert; default 30s.
	NotifyTimeout time.Duration
}

func (o *MonitorOptions) setDefaults() {
	if o.PollConcurrency <= 0 {
		o.PollConcurrency = 4
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 20 * time.Second
	}
	if o.NotifyTimeout <= 0 {
		o.NotifyTimeout = 30 * time.Second
	}
}

// Monitor runs the polled and pushed alert paths through one dedup cache.
type Monitor struct {
	log      *zap.Logger
	src      provider.Provider
	dedup    *DedupCache
	resolver Resolver // optional
	notifier Notifier
	verifier *Verifier
	opts     MonitorOptions
	now      func() time.Time

	lastPoll   atomic.Pointer[CheckResult]
	lastPushAt atomic.Int64 // unix seconds
}

func NewMonitor(log *zap.Logger, src provider.Provider, dedup *DedupCache, res Resolver, notifier Notifier, verifier *Verifier, opts MonitorOptions) *Monitor {
	if log == nil {
		log = zap.NewNop()
	}
	opts.setDefaults()
	return &Monitor{
		log:      log.Named("alert_monitor"),
		src:      src,
		dedup:    dedup,
		resolver: res,
		notifier: notifier,
		verifier: verifier,
		opts:     opts,
		now:      time.Now,
	}
}

// CheckResult summarizes one polled check.
type CheckResult struct {
	Channels   int       `json:"channels"`
	Conditions int       `json:"conditions"`
	Notified   int       `json:"notified"`
	Suppressed int       `json:"suppressed"`
	Failed     int       `json:"failed"` // channels whose conditions could not be read
	StartedAt  time.Time `json:"started_at"`
	Duration   string    `json:"duration"`
}

// CheckAll polls the conditions of every running channel once. Only a failed
// resource listing is returned as an error; per-channel failures are counted.
func (m *Monitor) CheckAll(ctx context.Context) (CheckResult, error) {
	res := CheckResult{StartedAt: m.now()}

	listCtx, cancel := context.WithTimeout(ctx, m.opts.CallTimeout)
	rs, err := m.src.ListResources(listCtx)
	cancel()
	if err != nil {
		metrics.AlertPolls.WithLabelValues("error").Inc()
		return res, fmt.Errorf("list resources: %w", err)
	}

	var channels []*resource.Resource
	for _, r := range rs {
		if r.IsChannel() && r.IsRunning() {
			channels = append(channels, r)
		}
	}
	res.Channels = len(channels)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(m.opts.PollConcurrency)
	for _, ch := range channels {
		g.Go(func() error {
			conds, notified, suppressed, err := m.checkChannel(ctx, ch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed++
				return nil
			}
			res.Conditions += conds
			res.Notified += notified
			res.Suppressed += suppressed
			return nil
		})
	}
	_ = g.Wait()

	res.Duration = m.now().Sub(res.StartedAt).String()
	m.lastPoll.Store(&res)
	metrics.AlertPolls.WithLabelValues("ok").Inc()

	m.log.Info("alert check done",
		zap.Int("channels", res.Channels),
		zap.Int("conditions", res.Conditions),
		zap.Int("notified", res.Notified),
		zap.Int("suppressed", res.Suppressed),
		zap.Int("failed", res.Failed))
	return res, nil
}

func (m *Monitor) checkChannel(ctx context.Context, ch *resource.Resource) (conds, notified, suppressed int, err error) {
	callCtx, cancel := context.WithTimeout(ctx, m.opts.CallTimeout)
	list, err := m.src.ActiveConditions(callCtx, ch.ID)
	cancel()
	if err != nil {
		m.log.Warn("list conditions failed", zap.String("channel_id", ch.ID), zap.Error(err))
		return 0, 0, 0, err
	}

	for _, c := range list {
		if c.ChannelID == "" {
			c.ChannelID = ch.ID
		}
		if c.ChannelName == "" {
			c.ChannelName = ch.Name
		}
		ok, reason := m.dedup.Check(c)
		if !ok {
			m.log.Debug("condition suppressed",
				zap.String("key", DedupKey(c)), zap.String("reason", reason))
			suppressed++
			continue
		}
		m.dispatch(ctx, Alert{Condition: c, Source: "poll"})
		notified++
	}
	return len(list), notified, suppressed, nil
}

// dispatch enriches and delivers one alert. Delivery failures are logged.
func (m *Monitor) dispatch(ctx context.Context, a Alert) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.NotifyTimeout)
	defer cancel()

	a.Severity = Classify(a.Condition.Type)
	a.PipelineLabel = telemetry.PipelineLabel(a.Condition.Pipeline)
	if m.resolver != nil {
		a.Resolution = m.resolver.Resolve(ctx, a.Condition.ChannelID)
	}
	metrics.AlertsNotified.WithLabelValues(string(a.Severity)).Inc()

	if m.notifier == nil {
		return
	}
	if err := m.notifier.Notify(ctx, a); err != nil {
		m.log.Error("notify failed",
			zap.String("channel_id", a.Condition.ChannelID),
			zap.String("type", a.Condition.Type),
			zap.Error(err))
	}
}

// Result is the soft-fail outcome of processing one pushed event.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	// Err is the underlying error for callers mapping to status codes.
	Err error `json:"-"`
}

func failed(err error) Result {
	return Result{Success: false, Error: err.Error(), Err: err}
}

// HandleWebhook processes one pushed event from service (e.g. "streamlive").
// It never returns an error: malformed payloads and failed verification
// yield Success=false with the reason.
func (m *Monitor) HandleWebhook(ctx context.Context, service string, body []byte) Result {
	source := "webhook:" + service

	ev, err := ParseWebhook(body)
	if err != nil {
		m.log.Warn("webhook payload rejected", zap.String("source", source), zap.Error(err))
		metrics.WebhookRequests.WithLabelValues(service, "malformed").Inc()
		return failed(err)
	}
	if err := m.verifier.Verify(ev); err != nil {
		m.log.Warn("webhook verification failed",
			zap.String("source", source), zap.String("channel_id", ev.ChannelID), zap.Error(err))
		metrics.WebhookRequests.WithLabelValues(service, "rejected").Inc()
		return failed(err)
	}
	m.lastPushAt.Store(m.now().Unix())

	cond, ok := ev.Condition(m.now())
	if !ok {
		m.log.Debug("webhook event type ignored", zap.Int64("event_type", int64(ev.EventType)))
		metrics.WebhookRequests.WithLabelValues(service, "ignored").Inc()
		return Result{Success: true, Message: "Unknown event type, ignored"}
	}
	cond.ChannelName = m.channelName(ctx, cond.ChannelID)

	if ok, reason := m.dedup.Check(cond); !ok {
		metrics.WebhookRequests.WithLabelValues(service, "suppressed").Inc()
		return Result{Success: true, Message: fmt.Sprintf("%s event suppressed (%s)", cond.Type, reason)}
	}

	m.dispatch(ctx, Alert{Condition: cond, Source: source, InputID: ev.InputID})
	metrics.WebhookRequests.WithLabelValues(service, "accepted").Inc()
	return Result{Success: true, Message: fmt.Sprintf("Processed %s event", cond.Type)}
}

// channelName falls back to the id when the listing is unavailable.
func (m *Monitor) channelName(ctx context.Context, channelID string) string {
	ctx, cancel := context.WithTimeout(ctx, m.opts.CallTimeout)
	defer cancel()
	rs, err := m.src.ListResources(ctx)
	if err != nil {
		m.log.Debug("channel name lookup failed", zap.String("channel_id", channelID), zap.Error(err))
		return channelID
	}
	for _, r := range rs {
		if r.ID == channelID && r.Name != "" {
			return r.Name
		}
	}
	return channelID
}

// Run polls every interval until ctx is done, starting immediately.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	m.log.Info("alert poller started", zap.Duration("interval", interval))

	run := func() {
		if _, err := m.CheckAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
			m.log.Warn("alert check failed", zap.Error(err))
		}
	}

	run()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("alert poller stopped")
			return
		case <-ticker.C:
			run()
		}
	}
}

// Status describes the monitor wiring for health checks.
type Status struct {
	NotifierConfigured  bool         `json:"notifier_configured"`
	ResolverConfigured  bool         `json:"resolver_configured"`
	SignatureVerified   bool         `json:"signature_verification"`
	DedupEntries        int          `json:"dedup_entries"`
	LastPoll            *CheckResult `json:"last_poll,omitempty"`
	LastWebhookAccepted *time.Time   `json:"last_webhook_at,omitempty"`
}

func (m *Monitor) Status() Status {
	st := Status{
		NotifierConfigured: m.notifier != nil,
		ResolverConfigured: m.resolver != nil,
		SignatureVerified:  m.verifier != nil && m.verifier.Key != "",
		DedupEntries:       m.dedup.Len(),
		LastPoll:           m.lastPoll.Load(),
	}
	if ts := m.lastPushAt.Load(); ts > 0 {
		t := time.Unix(ts, 0).UTC()
		st.LastWebhookAccepted = &t
	}
	return st
}
