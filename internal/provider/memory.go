package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/edirooss/ingestwatch/internal/domain/resource"
	"github.com/edirooss/ingestwatch/internal/domain/telemetry"
	"github.com/edirooss/ingestwatch/internal/infrastructure/objectstore"
	"go.uber.org/zap"
)

// Memory is an in-process Provider and Sink. Resources keep the order they
// were first written in.
type Memory struct {
	log       *zap.Logger
	resources *objectstore.ObjectStore[*resource.Resource]

	mu         sync.RWMutex
	events     map[string][]telemetry.Event // channel id -> events, oldest first
	signals    map[string][]telemetry.SourceSignal
	failover   map[string]telemetry.FailoverConfig
	conditions map[string][]telemetry.Condition
}

var (
	_ Provider = (*Memory)(nil)
	_ Sink     = (*Memory)(nil)
)

func NewMemory(log *zap.Logger) *Memory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Memory{
		log:        log.Named("memory_provider"),
		resources:  objectstore.New[*resource.Resource](),
		events:     make(map[string][]telemetry.Event),
		signals:    make(map[string][]telemetry.SourceSignal),
		failover:   make(map[string]telemetry.FailoverConfig),
		conditions: make(map[string][]telemetry.Condition),
	}
}

func (m *Memory) ListResources(ctx context.Context) ([]*resource.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.resources.GetList(), nil
}

func (m *Memory) EventHistory(ctx context.Context, channelID string, since time.Time) ([]telemetry.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []telemetry.Event
	for _, ev := range m.events[channelID] {
		if !ev.Time.Before(since) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *Memory) SourceSignal(ctx context.Context, inputID string) ([]telemetry.SourceSignal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	sigs, ok := m.signals[inputID]
	if !ok {
		return nil, fmt.Errorf("source signal %q: %w", inputID, ErrNotFound)
	}
	return append([]telemetry.SourceSignal(nil), sigs...), nil
}

func (m *Memory) FailoverConfig(ctx context.Context, channelID string) (*telemetry.FailoverConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, ok := m.failover[channelID]
	if !ok {
		return nil, fmt.Errorf("failover config %q: %w", channelID, ErrNotFound)
	}
	return &cfg, nil
}

func (m *Memory) ActiveConditions(ctx context.Context, channelID string) ([]telemetry.Condition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]telemetry.Condition(nil), m.conditions[channelID]...), nil
}

func (m *Memory) PutResource(_ context.Context, r *resource.Resource) error {
	if r == nil || r.ID == "" {
		return fmt.Errorf("put resource: missing id")
	}
	cp := *r
	m.resources.Upsert(r.ID, &cp)
	return nil
}

// AddEvent inserts ev keeping the channel history sorted by time.
func (m *Memory) AddEvent(_ context.Context, ev telemetry.Event) error {
	if ev.ChannelID == "" {
		return fmt.Errorf("add event: missing channel id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	evs := append(m.events[ev.ChannelID], ev)
	sort.SliceStable(evs, func(i, j int) bool { return evs[i].Time.Before(evs[j].Time) })
	m.events[ev.ChannelID] = evs
	return nil
}

func (m *Memory) SetSourceSignal(_ context.Context, inputID string, sigs []telemetry.SourceSignal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals[inputID] = append([]telemetry.SourceSignal(nil), sigs...)
	return nil
}

func (m *Memory) SetFailoverConfig(_ context.Context, channelID string, cfg telemetry.FailoverConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failover[channelID] = cfg
	return nil
}

func (m *Memory) SetConditions(_ context.Context, channelID string, conds []telemetry.Condition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conditions[channelID] = append([]telemetry.Condition(nil), conds...)
	return nil
}

// Reset drops all stored telemetry.
func (m *Memory) Reset() {
	m.resources.Reset()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = make(map[string][]telemetry.Event)
	m.signals = make(map[string][]telemetry.SourceSignal)
	m.failover = make(map[string]telemetry.FailoverConfig)
	m.conditions = make(map[string][]telemetry.Condition)
	m.log.Debug("memory provider reset")
}
