package provider

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap/zaptest"

	"github.com/edirooss/ingestwatch/internal/domain/resource"
	"github.com/edirooss/ingestwatch/internal/domain/telemetry"
	"github.com/edirooss/ingestwatch/internal/metrics"
)

const snapshotJSON = `{
  "resources": [
    {"id": "c1", "name": "News", "kind": "channel", "service": "StreamLive", "status": "running",
     "inputs": [{"id": "in-1", "name": "news-main"}], "endpoints": ["rtmp://h/app/key1234567890"]},
    {"id": "f1", "name": "news-feed", "kind": "flow", "service": "StreamLink", "status": "running",
     "endpoints": ["rtmp://lb/app/key1234567890"]}
  ],
  "events": [
    {"channel_id": "c1", "type": "PipelineRecover", "time": "2026-10-17T10:00:00Z"},
    {"channel_id": "c1", "type": "PipelineFailover", "time": "2026-10-17T08:00:00Z"}
  ],
  "signals": {"in-1": [{"address": "rtmp://push-a.example.com/app/key", "active": true}]},
  "failover": {"c1": {"primary_input_id": "in-1", "secondary_input_id": "in-2"}},
  "conditions": {"c1": [{"pipeline": "0", "type": "No Input Data", "set_time": "2026-10-17T09:00:00Z"}]}
}`

func TestMemoryLoadSnapshot(t *testing.T) {
	ctx := context.Background()
	snap, err := DecodeSnapshot(strings.NewReader(snapshotJSON))
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}

	m := NewMemory(zaptest.NewLogger(t))
	st, err := Load(ctx, m, snap)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.Resources != 2 || st.Events != 2 || st.Signals != 1 || st.Failover != 1 || st.Conditions != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}

	rs, _ := m.ListResources(ctx)
	if len(rs) != 2 || rs[0].ID != "c1" || rs[1].Kind != resource.KindFlow {
		t.Fatalf("ListResources order/kind wrong: %+v", rs)
	}

	evs, _ := m.EventHistory(ctx, "c1", time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC))
	if len(evs) != 1 || evs[0].Type != telemetry.EventPipelineRecover {
		t.Fatalf("EventHistory since 09:00 = %+v", evs)
	}
	evs, _ = m.EventHistory(ctx, "c1", time.Time{})
	if len(evs) != 2 || !evs[0].Time.Before(evs[1].Time) {
		t.Fatalf("EventHistory should be oldest first: %+v", evs)
	}

	conds, _ := m.ActiveConditions(ctx, "c1")
	if len(conds) != 1 || conds[0].ChannelID != "c1" {
		t.Fatalf("conditions should inherit channel id: %+v", conds)
	}

	if _, err := m.FailoverConfig(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FailoverConfig(nope) err = %v, want ErrNotFound", err)
	}
	if _, err := m.SourceSignal(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SourceSignal(nope) err = %v, want ErrNotFound", err)
	}
}

func TestDecodeSnapshotRejectsUnknownFields(t *testing.T) {
	if _, err := DecodeSnapshot(strings.NewReader(`{"resourcez": []}`)); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

type failingProvider struct {
	Provider
	calls int
	err   error
}

func (f *failingProvider) ListResources(context.Context) ([]*resource.Resource, error) {
	f.calls++
	return nil, f.err
}

func (f *failingProvider) FailoverConfig(context.Context, string) (*telemetry.FailoverConfig, error) {
	f.calls++
	return nil, ErrNotFound
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	ctx := context.Background()
	inner := &failingProvider{err: errors.New("backend down")}
	b := NewBreaker(zaptest.NewLogger(t), inner, BreakerOptions{Name: "test-open", FailureThreshold: 2, Timeout: time.Hour})

	for i := 0; i < 2; i++ {
		if _, err := b.ListResources(ctx); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}
	if b.State() != "open" {
		t.Fatalf("state = %s, want open", b.State())
	}
	if _, err := b.ListResources(ctx); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("err = %v, want ErrOpenState", err)
	}
	if inner.calls != 2 {
		t.Fatalf("inner called %d times, want 2", inner.calls)
	}
}

func TestBreakerIgnoresNotFound(t *testing.T) {
	ctx := context.Background()
	inner := &failingProvider{}
	b := NewBreaker(zaptest.NewLogger(t), inner, BreakerOptions{Name: "test-notfound", FailureThreshold: 1, Timeout: time.Hour})

	for i := 0; i < 3; i++ {
		if _, err := b.FailoverConfig(ctx, "c1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("call %d: err = %v, want ErrNotFound", i, err)
		}
	}
	if b.State() != "closed" {
		t.Fatalf("state = %s, want closed", b.State())
	}
}

func TestBreakerRequestOutcomes(t *testing.T) {
	ctx := context.Background()
	inner := &failingProvider{err: errors.New("backend down")}
	b := NewBreaker(zaptest.NewLogger(t), inner, BreakerOptions{Name: "test-outcomes", FailureThreshold: 5, Timeout: time.Hour})
	count := func(outcome string) float64 {
		return testutil.ToFloat64(metrics.CircuitBreakerRequests.WithLabelValues("test-outcomes", outcome))
	}

	for i := 0; i < 2; i++ {
		_, _ = b.FailoverConfig(ctx, "c1")
	}
	_, _ = b.ListResources(ctx)

	if got := count("success"); got != 2 {
		t.Errorf("success = %v, want 2 (not-found counts as success)", got)
	}
	if got := count("failure"); got != 1 {
		t.Errorf("failure = %v, want 1", got)
	}
}
