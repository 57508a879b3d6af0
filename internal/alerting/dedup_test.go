package alerting

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edirooss/ingestwatch/internal/domain/telemetry"
)

var testNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func newTestCache(capacity int) *DedupCache {
	d := NewDedupCache(DedupOptions{Capacity: capacity, MaxAge: 24 * time.Hour})
	d.now = func() time.Time { return testNow }
	return d
}

func cond(channel, pipeline, typ string, setAt time.Time) telemetry.Condition {
	return telemetry.Condition{ChannelID: channel, Pipeline: pipeline, Type: typ, SetAt: setAt}
}

func TestClassify(t *testing.T) {
	tests := map[string]Severity{
		"No Input Data":    SeverityCritical,
		"PipelineFailover": SeverityCritical,
		"PipelineRecover":  SeverityWarning,
		"StreamStop":       SeverityWarning,
		"StreamStart":      SeverityInfo,
		"":                 SeverityInfo,
		"Something Else":   SeverityInfo,
		"streamstop":       SeverityInfo,
	}
	for in, want := range tests {
		if got := Classify(in); got != want {
			t.Errorf("Classify(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestShouldNotifyOnce(t *testing.T) {
	d := newTestCache(1000)
	c := cond("c1", "0", "No Input Data", testNow.Add(-time.Minute))

	if !d.ShouldNotify(c) {
		t.Fatalf("first ShouldNotify should be true")
	}
	if d.ShouldNotify(c) {
		t.Fatalf("second ShouldNotify should be false")
	}

	// A new onset of the same condition is a new occurrence.
	c.SetAt = testNow
	if !d.ShouldNotify(c) {
		t.Fatalf("new onset should notify")
	}
	// So is the other pipeline.
	c.Pipeline = "1"
	if !d.ShouldNotify(c) {
		t.Fatalf("other pipeline should notify")
	}
}

func TestShouldNotifyRejectsClearedAndStale(t *testing.T) {
	d := newTestCache(1000)

	cleared := cond("c1", "0", "No Input Data", testNow.Add(-time.Hour))
	cleared.ClearedAt = testNow.Add(-time.Minute)
	if ok, reason := d.Check(cleared); ok || reason != ReasonCleared {
		t.Fatalf("cleared: got %v %q", ok, reason)
	}

	stale := cond("c1", "0", "No Input Data", testNow.Add(-25*time.Hour))
	for i := 0; i < 3; i++ {
		if ok, reason := d.Check(stale); ok || reason != ReasonStale {
			t.Fatalf("stale attempt %d: got %v %q", i, ok, reason)
		}
	}
	if d.Len() != 0 {
		t.Fatalf("rejected conditions must not be recorded, Len = %d", d.Len())
	}

	noOnset := cond("c1", "0", "StreamStop", time.Time{})
	if !d.ShouldNotify(noOnset) || d.ShouldNotify(noOnset) {
		t.Fatalf("condition without onset should notify exactly once")
	}
}

func TestDedupTrimKeepsNewestHalf(t *testing.T) {
	d := newTestCache(4)
	var cs []telemetry.Condition
	for i := 0; i < 5; i++ {
		c := cond(fmt.Sprintf("c%d", i), "0", "StreamStop", testNow.Add(-time.Duration(i)*time.Minute))
		cs = append(cs, c)
		if !d.ShouldNotify(c) {
			t.Fatalf("condition %d should notify", i)
		}
	}
	if d.Len() != 2 {
		t.Fatalf("Len after trim = %d, want 2", d.Len())
	}
	if d.ShouldNotify(cs[4]) || d.ShouldNotify(cs[3]) {
		t.Fatalf("newest entries should survive the trim")
	}
	if !d.ShouldNotify(cs[0]) {
		t.Fatalf("oldest entry should have been discarded")
	}
}

func TestShouldNotifyConcurrent(t *testing.T) {
	d := newTestCache(1000)
	c := cond("c1", "0", "PipelineFailover", testNow)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d.ShouldNotify(c) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("%d goroutines won, want exactly 1", wins.Load())
	}
}

func TestDedupKey(t *testing.T) {
	c := cond("c1", "1", "StreamStop", time.Unix(1700000000, 0))
	if got, want := DedupKey(c), "c1:1:StreamStop:1700000000"; got != want {
		t.Fatalf("DedupKey = %q, want %q", got, want)
	}
}
