package provider

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"

	"github.com/edirooss/ingestwatch/internal/domain/resource"
	"github.com/edirooss/ingestwatch/internal/domain/telemetry"
)

// Sink is the write side of a telemetry backend. It is used to seed a
// backend from a Snapshot.
type Sink interface {
	PutResource(ctx context.Context, r *resource.Resource) error
	AddEvent(ctx context.Context, ev telemetry.Event) error
	SetSourceSignal(ctx context.Context, inputID string, sigs []telemetry.SourceSignal) error
	SetFailoverConfig(ctx context.Context, channelID string, cfg telemetry.FailoverConfig) error
	SetConditions(ctx context.Context, channelID string, conds []telemetry.Condition) error
}

// Snapshot is a point-in-time dump of provider state, stored as JSON.
//
//	{
//	  "resources":  [{"id": "...", "kind": "channel", ...}],
//	  "events":     [{"channel_id": "...", "type": "PipelineFailover", "time": "..."}],
//	  "signals":    {"<input id>": [{"address": "...", "active": true}]},
//	  "failover":   {"<channel id>": {"primary_input_id": "...", ...}},
//	  "conditions": {"<channel id>": [{"pipeline": "0", "type": "...", ...}]}
//	}
type Snapshot struct {
	Resources  []*resource.Resource                `json:"resources"`
	Events     []telemetry.Event                   `json:"events"`
	Signals    map[string][]telemetry.SourceSignal `json:"signals"`
	Failover   map[string]telemetry.FailoverConfig `json:"failover"`
	Conditions map[string][]telemetry.Condition    `json:"conditions"`
}

// Stats counts what Load wrote.
type Stats struct {
	Resources  int
	Events     int
	Signals    int
	Failover   int
	Conditions int
}

// DecodeSnapshot reads a JSON snapshot from r.
func DecodeSnapshot(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// ReadSnapshotFile decodes the snapshot stored at path.
func ReadSnapshotFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return DecodeSnapshot(f)
}

// Load writes snap into sink. It stops at the first write error.
func Load(ctx context.Context, sink Sink, snap *Snapshot) (Stats, error) {
	var st Stats
	for _, r := range snap.Resources {
		if err := sink.PutResource(ctx, r); err != nil {
			return st, fmt.Errorf("resource %q: %w", r.ID, err)
		}
		st.Resources++
	}
	for _, ev := range snap.Events {
		if err := sink.AddEvent(ctx, ev); err != nil {
			return st, fmt.Errorf("event on %q: %w", ev.ChannelID, err)
		}
		st.Events++
	}
	for id, sigs := range snap.Signals {
		if err := sink.SetSourceSignal(ctx, id, sigs); err != nil {
			return st, fmt.Errorf("signal %q: %w", id, err)
		}
		st.Signals++
	}
	for id, cfg := range snap.Failover {
		if err := sink.SetFailoverConfig(ctx, id, cfg); err != nil {
			return st, fmt.Errorf("failover %q: %w", id, err)
		}
		st.Failover++
	}
	for id, conds := range snap.Conditions {
		for i := range conds {
			if conds[i].ChannelID == "" {
				conds[i].ChannelID = id
			}
		}
		if err := sink.SetConditions(ctx, id, conds); err != nil {
			return st, fmt.Errorf("conditions %q: %w", id, err)
		}
		st.Conditions += len(conds)
	}
	return st, nil
}
