package resolver

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/edirooss/ingestwatch/internal/domain/resource"
	"github.com/edirooss/ingestwatch/internal/domain/telemetry"
	"github.com/edirooss/ingestwatch/internal/linkage"
	"github.com/edirooss/ingestwatch/internal/provider"
)

func seededMemory(t *testing.T) *provider.Memory {
	t.Helper()
	ctx := context.Background()
	m := provider.NewMemory(zaptest.NewLogger(t))

	ch := twoInputChannel("News Main", "News Backup")
	ch.Endpoints = []string{"rtmp://h/app/newskey00001", "rtmp://h/app/newskey00002"}
	must(t, m.PutResource(ctx, ch))
	must(t, m.PutResource(ctx, &resource.Resource{
		ID: "f1", Name: "news-backup-feed", Kind: resource.KindFlow, Service: resource.ServiceStreamLink,
		Status: resource.StatusRunning, Endpoints: []string{"rtmp://lb/app/newskey00002"},
	}))
	must(t, m.AddEvent(ctx, telemetry.Event{ChannelID: "c1", Type: telemetry.EventPipelineFailover, Pipeline: "0", Time: time.Now().Add(-time.Hour)}))
	must(t, m.SetSourceSignal(ctx, "in-1", []telemetry.SourceSignal{{Address: "rtmp://push-a.example.com/app/newskey00001"}}))
	must(t, m.SetSourceSignal(ctx, "in-2", []telemetry.SourceSignal{{Address: "rtmp://push-b.example.com/app/newskey00002", Active: true}}))
	must(t, m.SetFailoverConfig(ctx, "c1", telemetry.FailoverConfig{PrimaryInputID: "in-1", SecondaryInputID: "in-2", RecoverBehavior: "CHECKING_BACK"}))
	return m
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func TestResolveAllSignalsAgree(t *testing.T) {
	r := New(zaptest.NewLogger(t), seededMemory(t), linkage.Matcher{}, Options{})

	rec := r.Resolve(context.Background(), "c1")
	if rec.ActiveInput != Backup {
		t.Fatalf("ActiveInput = %s, want backup", rec.ActiveInput)
	}
	want := []string{SignalLogEvent, SignalLiveSignal, SignalLinkedFlow, SignalFailoverConfig, SignalNamePattern, SignalPosition}
	if !slices.Equal(rec.VerificationSources, want) {
		t.Fatalf("VerificationSources = %v, want %v", rec.VerificationSources, want)
	}
	if rec.VerificationLevel != 6 || rec.ActiveInputID != "in-2" || rec.ActiveInputName != "News Backup" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.FailoverRecoverBehavior != "CHECKING_BACK" || rec.ChannelName != "News" {
		t.Fatalf("record detail missing: %+v", rec)
	}
	if len(rec.Unavailable) != 0 || rec.ResolvedAt.IsZero() {
		t.Fatalf("Unavailable = %v, ResolvedAt = %v", rec.Unavailable, rec.ResolvedAt)
	}
}

func TestResolveUnknownChannel(t *testing.T) {
	r := New(zaptest.NewLogger(t), seededMemory(t), linkage.Matcher{}, Options{})
	rec := r.Resolve(context.Background(), "nope")
	if rec.HasVerdict() || rec.VerificationLevel != 0 || rec.ChannelID != "nope" {
		t.Fatalf("unknown channel should resolve to no verdict, got %+v", rec)
	}
}

// stubProvider fails every call unless a function is set.
type stubProvider struct {
	list     func(ctx context.Context) ([]*resource.Resource, error)
	signal   func(ctx context.Context, inputID string) ([]telemetry.SourceSignal, error)
	failover func(ctx context.Context, channelID string) (*telemetry.FailoverConfig, error)
	err      error
}

func (s *stubProvider) ListResources(ctx context.Context) ([]*resource.Resource, error) {
	if s.list != nil {
		return s.list(ctx)
	}
	return nil, s.err
}

func (s *stubProvider) EventHistory(context.Context, string, time.Time) ([]telemetry.Event, error) {
	return nil, s.err
}

func (s *stubProvider) SourceSignal(ctx context.Context, inputID string) ([]telemetry.SourceSignal, error) {
	if s.signal != nil {
		return s.signal(ctx, inputID)
	}
	return nil, s.err
}

func (s *stubProvider) FailoverConfig(ctx context.Context, channelID string) (*telemetry.FailoverConfig, error) {
	if s.failover != nil {
		return s.failover(ctx, channelID)
	}
	return nil, s.err
}

func (s *stubProvider) ActiveConditions(context.Context, string) ([]telemetry.Condition, error) {
	return nil, s.err
}

func TestResolveAllTelemetryUnavailable(t *testing.T) {
	src := &stubProvider{err: errors.New("missing credentials")}
	r := New(zaptest.NewLogger(t), src, linkage.Matcher{}, Options{})

	rec := r.Resolve(context.Background(), "c1")
	if rec.ActiveInput != None || rec.VerificationLevel != 0 {
		t.Fatalf("expected no verdict, got %+v", rec)
	}
	for _, call := range []string{"resources", "events", "failover_config"} {
		if !slices.Contains(rec.Unavailable, call) {
			t.Errorf("Unavailable = %v, missing %q", rec.Unavailable, call)
		}
	}
}

func TestResolveSignalFailureDegradesOnlyThatSignal(t *testing.T) {
	ch := twoInputChannel("Input One", "Input Two")
	src := &stubProvider{
		err:  errors.New("api error"),
		list: func(context.Context) ([]*resource.Resource, error) { return []*resource.Resource{ch}, nil },
		signal: func(_ context.Context, inputID string) ([]telemetry.SourceSignal, error) {
			if inputID == "in-1" {
				return nil, errors.New("timeout")
			}
			return []telemetry.SourceSignal{{Address: "10.0.0.9:5000", Active: true}}, nil
		},
		failover: func(context.Context, string) (*telemetry.FailoverConfig, error) {
			return nil, provider.ErrNotFound
		},
	}
	r := New(zaptest.NewLogger(t), src, linkage.Matcher{}, Options{})

	rec := r.Resolve(context.Background(), "c1")
	if rec.ActiveInput != Backup || rec.ActiveInputID != "in-2" {
		t.Fatalf("got %s on %s, want backup on in-2", rec.ActiveInput, rec.ActiveInputID)
	}
	if !slices.Contains(rec.Unavailable, "signal:in-1") || slices.Contains(rec.Unavailable, "failover_config") {
		t.Fatalf("Unavailable = %v", rec.Unavailable)
	}
}

func TestResolvePerCallTimeout(t *testing.T) {
	src := &stubProvider{
		err: errors.New("unreachable"),
		list: func(ctx context.Context) ([]*resource.Resource, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	r := New(zaptest.NewLogger(t), src, linkage.Matcher{}, Options{CallTimeout: 20 * time.Millisecond})

	start := time.Now()
	rec := r.Resolve(context.Background(), "c1")
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Resolve took %s; per-call timeout not applied", elapsed)
	}
	if rec.HasVerdict() || !slices.Contains(rec.Unavailable, "resources") {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestResolveGroupSkipsListing(t *testing.T) {
	src := &stubProvider{err: errors.New("down")}
	r := New(zaptest.NewLogger(t), src, linkage.Matcher{}, Options{})

	g := resource.Group{Parent: twoInputChannel("Input One", "Input Two")}
	rec := r.ResolveGroup(context.Background(), g)
	if rec.ActiveInput != Main || !slices.Equal(rec.VerificationSources, []string{SignalPosition}) {
		t.Fatalf("got %s %v, want positional main", rec.ActiveInput, rec.VerificationSources)
	}
	if slices.Contains(rec.Unavailable, "resources") {
		t.Fatalf("ResolveGroup should not list resources: %v", rec.Unavailable)
	}
}
