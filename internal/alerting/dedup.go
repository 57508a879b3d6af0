package alerting

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/edirooss/ingestwatch/internal/domain/telemetry"
	"github.com/edirooss/ingestwatch/internal/metrics"
)

// Suppression reasons.
const (
	ReasonCleared   = "cleared"
	ReasonStale     = "stale"
	ReasonDuplicate = "duplicate"
)

type DedupOptions struct {
	// Capacity is the entry count above which the cache is trimmed; default 1000.
	Capacity int
	// MaxAge rejects conditions whose onset is older; default 24h.
	MaxAge time.Duration
}

func (o *DedupOptions) setDefaults() {
	if o.Capacity <= 0 {
		o.Capacity = 1000
	}
	if o.MaxAge <= 0 {
		o.MaxAge = 24 * time.Hour
	}
}

// DedupCache remembers which conditions were already notified.
//
// Once the cache holds more than Capacity keys, the oldest inserted keys are
// discarded until Capacity/2 remain. This only bounds memory; it is not an
// LRU, and a discarded condition that is still raised will notify again.
// State is in-memory only and lost on restart.
type DedupCache struct {
	opts DedupOptions
	now  func() time.Time

	mu    sync.Mutex
	keys  map[string]struct{}
	order []string // insertion order, oldest first
}

func NewDedupCache(opts DedupOptions) *DedupCache {
	opts.setDefaults()
	return &DedupCache{
		opts: opts,
		now:  time.Now,
		keys: make(map[string]struct{}),
	}
}

// DedupKey identifies a condition occurrence: channel, pipeline, type and
// onset.
func DedupKey(c telemetry.Condition) string {
	onset := "0"
	if !c.SetAt.IsZero() {
		onset = strconv.FormatInt(c.SetAt.Unix(), 10)
	}
	return strings.Join([]string{c.ChannelID, c.Pipeline, c.Type, onset}, ":")
}

// ShouldNotify reports whether c must be notified, recording it when so.
func (d *DedupCache) ShouldNotify(c telemetry.Condition) bool {
	ok, _ := d.Check(c)
	return ok
}

// Check is ShouldNotify returning the suppression reason when false.
// A zero onset skips the age filter.
func (d *DedupCache) Check(c telemetry.Condition) (bool, string) {
	if c.Cleared() {
		metrics.AlertsSuppressed.WithLabelValues(ReasonCleared).Inc()
		return false, ReasonCleared
	}
	if !c.SetAt.IsZero() && d.now().Sub(c.SetAt) > d.opts.MaxAge {
		metrics.AlertsSuppressed.WithLabelValues(ReasonStale).Inc()
		return false, ReasonStale
	}

	key := DedupKey(c)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, seen := d.keys[key]; seen {
		metrics.AlertsSuppressed.WithLabelValues(ReasonDuplicate).Inc()
		return false, ReasonDuplicate
	}
	d.keys[key] = struct{}{}
	d.order = append(d.order, key)

	if len(d.order) > d.opts.Capacity {
		keep := max(d.opts.Capacity/2, 1)
		drop := len(d.order) - keep
		for _, k := range d.order[:drop] {
			delete(d.keys, k)
		}
		d.order = append(d.order[:0:0], d.order[drop:]...)
	}
	metrics.DedupCacheEntries.Set(float64(len(d.order)))
	return true, ""
}

// Len returns the number of remembered conditions.
func (d *DedupCache) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.order)
}

// Reset forgets every condition.
func (d *DedupCache) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys = make(map[string]struct{})
	d.order = nil
	metrics.DedupCacheEntries.Set(0)
}
