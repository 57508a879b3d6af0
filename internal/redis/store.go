// Package redis is the Redis-backed telemetry provider.
//
// Layout, all keys under a configurable prefix (default "ingest:"):
//
//	resources               LIST of resource IDs in listing order
//	resource_ids            SET of the same IDs
//	resource:<id>           JSON resource
//	channel:<id>:events     ZSET of JSON events scored by unix millis
//	channel:<id>:failover   JSON failover policy
//	channel:<id>:alerts     JSON array of alert conditions
//	input:<id>:signal       JSON array of per-address signal presence
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/edirooss/ingestwatch/internal/domain/resource"
	"github.com/edirooss/ingestwatch/internal/domain/telemetry"
	"github.com/edirooss/ingestwatch/internal/provider"
)

const DefaultKeyPrefix = "ingest:"

// Store implements provider.Provider and provider.Sink on Redis.
type Store struct {
	client *Client
	log    *zap.Logger
	prefix string
}

var (
	_ provider.Provider = (*Store)(nil)
	_ provider.Sink     = (*Store)(nil)
)

func NewStore(log *zap.Logger, client *Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{
		client: client,
		log:    log.Named("store"),
		prefix: prefix,
	}
}

func (s *Store) resourcesKey() string           { return s.prefix + "resources" }
func (s *Store) resourceIDsKey() string         { return s.prefix + "resource_ids" }
func (s *Store) resourceKey(id string) string   { return s.prefix + "resource:" + id }
func (s *Store) eventsKey(id string) string     { return s.prefix + "channel:" + id + ":events" }
func (s *Store) failoverKey(id string) string   { return s.prefix + "channel:" + id + ":failover" }
func (s *Store) conditionsKey(id string) string { return s.prefix + "channel:" + id + ":alerts" }
func (s *Store) signalKey(id string) string     { return s.prefix + "input:" + id + ":signal" }

func (s *Store) resourceKeys(ids []string) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.resourceKey(id)
	}
	return keys
}

// ListResources loads the ID list and fetches every resource in one MGET.
// IDs whose payload is missing or unreadable are skipped with a warning.
func (s *Store) ListResources(ctx context.Context) ([]*resource.Resource, error) {
	ids, err := s.client.LRange(ctx, s.resourcesKey(), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("lrange: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := s.resourceKeys(ids)
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget: %w", err)
	}
	return s.parseResources(keys, vals), nil
}

func (s *Store) parseResources(keys []string, vals []any) []*resource.Resource {
	out := make([]*resource.Resource, 0, len(vals))
	for i, v := range vals {
		raw, ok := stringValue(v)
		if !ok {
			if v != nil {
				s.log.Warn("unexpected redis type for resource", zap.String("key", keys[i]), zap.Any("type", v))
			} else {
				s.log.Warn("resource listed but missing", zap.String("key", keys[i]))
			}
			continue
		}
		var r resource.Resource
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			s.log.Warn("bad resource json", zap.String("key", keys[i]), zap.Error(err))
			continue
		}
		out = append(out, &r)
	}
	return out
}

func (s *Store) EventHistory(ctx context.Context, channelID string, since time.Time) ([]telemetry.Event, error) {
	lo := "-inf"
	if !since.IsZero() {
		lo = strconv.FormatInt(since.UnixMilli(), 10)
	}
	members, err := s.client.ZRangeByScore(ctx, s.eventsKey(channelID), &redis.ZRangeBy{Min: lo, Max: "+inf"}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("zrangebyscore: %w", err)
	}

	var out []telemetry.Event
	for _, m := range members {
		var ev telemetry.Event
		if err := json.Unmarshal([]byte(m), &ev); err != nil {
			s.log.Warn("bad event json", zap.String("channel_id", channelID), zap.Error(err))
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *Store) SourceSignal(ctx context.Context, inputID string) ([]telemetry.SourceSignal, error) {
	var out []telemetry.SourceSignal
	if err := s.getJSON(ctx, s.signalKey(inputID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) FailoverConfig(ctx context.Context, channelID string) (*telemetry.FailoverConfig, error) {
	var cfg telemetry.FailoverConfig
	if err := s.getJSON(ctx, s.failoverKey(channelID), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *Store) ActiveConditions(ctx context.Context, channelID string) ([]telemetry.Condition, error) {
	var out []telemetry.Condition
	err := s.getJSON(ctx, s.conditionsKey(channelID), &out)
	if errors.Is(err, provider.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].ChannelID == "" {
			out[i].ChannelID = channelID
		}
	}
	return out, nil
}

// getJSON decodes the value at key into dst; a missing key is
// provider.ErrNotFound.
func (s *Store) getJSON(ctx context.Context, key string, dst any) error {
	value, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return provider.ErrNotFound
		}
		return fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(value, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// PutResource stores r and appends its ID to the listing the first time it
// is seen.
func (s *Store) PutResource(ctx context.Context, r *resource.Resource) error {
	if r == nil || r.ID == "" {
		return errors.New("resource without id")
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	added, err := s.client.SAdd(ctx, s.resourceIDsKey(), r.ID).Result()
	if err != nil {
		return fmt.Errorf("sadd: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.resourceKey(r.ID), payload, 0)
	if added == 1 {
		pipe.RPush(ctx, s.resourcesKey(), r.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

func (s *Store) AddEvent(ctx context.Context, ev telemetry.Event) error {
	if ev.ChannelID == "" {
		return errors.New("event without channel id")
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	z := redis.Z{Score: float64(ev.Time.UnixMilli()), Member: string(payload)}
	if err := s.client.ZAdd(ctx, s.eventsKey(ev.ChannelID), z).Err(); err != nil {
		return fmt.Errorf("zadd: %w", err)
	}
	return nil
}

func (s *Store) SetSourceSignal(ctx context.Context, inputID string, sigs []telemetry.SourceSignal) error {
	return s.setJSON(ctx, s.signalKey(inputID), sigs)
}

func (s *Store) SetFailoverConfig(ctx context.Context, channelID string, cfg telemetry.FailoverConfig) error {
	return s.setJSON(ctx, s.failoverKey(channelID), cfg)
}

func (s *Store) SetConditions(ctx context.Context, channelID string, conds []telemetry.Condition) error {
	return s.setJSON(ctx, s.conditionsKey(channelID), conds)
}

func (s *Store) setJSON(ctx context.Context, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := s.client.Set(ctx, key, payload, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Purge deletes every key under the store prefix and returns how many were
// removed.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	var deleted int64
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 500).Iterator()
	batch := make([]string, 0, 500)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.client.Del(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("del: %w", err)
		}
		deleted += n
		batch = batch[:0]
		return nil
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("scan: %w", err)
	}
	return deleted, flush()
}

func stringValue(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []byte:
		return string(t), true
	default:
		return "", false
	}
}
