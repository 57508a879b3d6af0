package alerting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/edirooss/ingestwatch/internal/domain/resource"
	"github.com/edirooss/ingestwatch/internal/domain/telemetry"
	"github.com/edirooss/ingestwatch/internal/linkage"
	"github.com/edirooss/ingestwatch/internal/provider"
	"github.com/edirooss/ingestwatch/internal/resolver"
)

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []Alert
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, a Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, a)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

func newMonitorFixture(t *testing.T, key string) (*Monitor, *recordingNotifier, *provider.Memory) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	m := provider.NewMemory(zaptest.NewLogger(t))
	put := func(r *resource.Resource) {
		if err := m.PutResource(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	put(&resource.Resource{ID: "c1", Name: "News", Kind: resource.KindChannel, Status: resource.StatusRunning,
		Inputs: []resource.Input{{ID: "in-1", Name: "News Main"}, {ID: "in-2", Name: "News Backup"}}})
	put(&resource.Resource{ID: "c2", Name: "Sport", Kind: resource.KindChannel, Status: resource.StatusStopped})
	put(&resource.Resource{ID: "f1", Name: "feed", Kind: resource.KindFlow, Status: resource.StatusRunning})

	active := telemetry.Condition{Pipeline: "0", Type: telemetry.EventNoInputData, SetAt: now.Add(-time.Minute)}
	cleared := telemetry.Condition{Pipeline: "1", Type: telemetry.EventNoInputData, SetAt: now.Add(-time.Hour), ClearedAt: now.Add(-30 * time.Minute)}
	stale := telemetry.Condition{Pipeline: "0", Type: telemetry.EventPipelineFailover, SetAt: now.Add(-48 * time.Hour)}
	if err := m.SetConditions(ctx, "c1", []telemetry.Condition{active, cleared, stale}); err != nil {
		t.Fatal(err)
	}
	if err := m.SetConditions(ctx, "c2", []telemetry.Condition{active}); err != nil {
		t.Fatal(err)
	}

	log := zaptest.NewLogger(t)
	res := resolver.New(log, m, linkage.Matcher{}, resolver.Options{})
	n := &recordingNotifier{}
	mon := NewMonitor(log, m, NewDedupCache(DedupOptions{}), res, n, NewVerifier(key, 10*time.Minute), MonitorOptions{})
	return mon, n, m
}

func TestCheckAll(t *testing.T) {
	mon, n, _ := newMonitorFixture(t, "")
	ctx := context.Background()

	res, err := mon.CheckAll(ctx)
	if err != nil {
		t.Fatalf("CheckAll: %v", err)
	}
	if res.Channels != 1 || res.Conditions != 3 || res.Notified != 1 || res.Suppressed != 2 || res.Failed != 0 {
		t.Fatalf("first check = %+v", res)
	}
	if n.count() != 1 {
		t.Fatalf("notifier got %d alerts, want 1", n.count())
	}
	a := n.alerts[0]
	if a.Severity != SeverityCritical || a.Condition.ChannelID != "c1" || a.Condition.ChannelName != "News" {
		t.Fatalf("unexpected alert %+v", a)
	}
	if a.PipelineLabel != "Pipeline A (Main)" || a.Source != "poll" {
		t.Fatalf("unexpected label/source %q %q", a.PipelineLabel, a.Source)
	}
	if a.Resolution == nil || a.Resolution.ChannelID != "c1" {
		t.Fatalf("alert should carry the channel resolution, got %+v", a.Resolution)
	}

	res, err = mon.CheckAll(ctx)
	if err != nil {
		t.Fatalf("second CheckAll: %v", err)
	}
	if res.Notified != 0 || res.Suppressed != 3 {
		t.Fatalf("second check = %+v, want everything suppressed", res)
	}
	if mon.Status().LastPoll == nil {
		t.Fatalf("Status should report the last poll")
	}
}

type brokenProvider struct {
	provider.Provider
}

func (brokenProvider) ListResources(context.Context) ([]*resource.Resource, error) {
	return nil, errors.New("down")
}

func TestCheckAllListingFailure(t *testing.T) {
	mon := NewMonitor(zaptest.NewLogger(t), brokenProvider{}, NewDedupCache(DedupOptions{}), nil, nil, nil, MonitorOptions{})
	if _, err := mon.CheckAll(context.Background()); err == nil {
		t.Fatalf("expected listing error")
	}
}

func TestHandleWebhook(t *testing.T) {
	mon, n, _ := newMonitorFixture(t, "secret")
	ctx := context.Background()
	now := time.Now().Unix()

	body := func(eventType int, t int64, sign string) []byte {
		return []byte(fmt.Sprintf(`{"data": {"appid": 1, "channel_id": "c1", "event_type": %d, "input_id": "in-1", "pipeline": 1, "sign": %q, "t": %d}}`, eventType, sign, t))
	}

	res := mon.HandleWebhook(ctx, "streamlive", body(EventCodeStreamStop, now, Sign("secret", now)))
	if !res.Success || res.Message != "Processed StreamStop event" {
		t.Fatalf("first push = %+v", res)
	}
	if n.count() != 1 {
		t.Fatalf("notifier got %d alerts, want 1", n.count())
	}
	a := n.alerts[0]
	if a.Severity != SeverityWarning || a.Condition.ChannelName != "News" || a.InputID != "in-1" || a.PipelineLabel != "Pipeline B (Backup)" {
		t.Fatalf("unexpected alert %+v", a)
	}

	res = mon.HandleWebhook(ctx, "streamlive", body(EventCodeStreamStop, now, Sign("secret", now)))
	if !res.Success || n.count() != 1 {
		t.Fatalf("duplicate push should succeed without notifying: %+v (alerts %d)", res, n.count())
	}

	res = mon.HandleWebhook(ctx, "streamlive", body(EventCodeStreamStop, now, "deadbeef"))
	if res.Success || !errors.Is(res.Err, ErrBadSignature) || res.Error == "" {
		t.Fatalf("bad signature = %+v", res)
	}

	old := now - 3600
	res = mon.HandleWebhook(ctx, "streamlive", body(EventCodeStreamStop, old, Sign("secret", old)))
	if res.Success || !errors.Is(res.Err, ErrTimestampExpired) {
		t.Fatalf("expired = %+v", res)
	}

	res = mon.HandleWebhook(ctx, "streamlive", body(1, now, Sign("secret", now)))
	if !res.Success || res.Message != "Unknown event type, ignored" {
		t.Fatalf("ignored = %+v", res)
	}

	res = mon.HandleWebhook(ctx, "streamlive", []byte(`{"data": "nope"}`))
	if res.Success || !errors.Is(res.Err, ErrMalformedPayload) {
		t.Fatalf("malformed = %+v", res)
	}

	if st := mon.Status(); !st.SignatureVerified || st.LastWebhookAccepted == nil || st.DedupEntries != 1 {
		t.Fatalf("status = %+v", st)
	}
}

func TestNotifierErrorDoesNotFailProcessing(t *testing.T) {
	mon, n, _ := newMonitorFixture(t, "")
	n.err = errors.New("webhook down")

	res := mon.HandleWebhook(context.Background(), "streamlink", []byte(`{"channel_id": "c1", "event_type": 329, "t": 0}`))
	if !res.Success {
		t.Fatalf("delivery failure should not fail processing: %+v", res)
	}
}
