// Package config loads ingestwatch settings from built-in defaults, an
// optional YAML file and INGESTWATCH_* environment variables, in that order
// of precedence (env wins).
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Redis     RedisConfig     `koanf:"redis"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Linkage   LinkageConfig   `koanf:"linkage"`
	Resolver  ResolverConfig  `koanf:"resolver"`
	Alerts    AlertsConfig    `koanf:"alerts"`
	Webhook   WebhookConfig   `koanf:"webhook"`
	Notify    NotifyConfig    `koanf:"notify"`
	Topology  TopologyConfig  `koanf:"topology"`
}

type ServerConfig struct {
	Addr          string `koanf:"addr"`
	Port          int    `koanf:"port"`
	MaxConcurrent int    `koanf:"max_concurrent"`
}

// ListenAddr is the host:port the HTTP server binds to.
func (s ServerConfig) ListenAddr() string {
	return net.JoinHostPort(s.Addr, strconv.Itoa(s.Port))
}

type RedisConfig struct {
	Addr      string `koanf:"addr"`
	DB        int    `koanf:"db"`
	Password  string `koanf:"password"`
	KeyPrefix string `koanf:"key_prefix"`
}

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type TelemetryConfig struct {
	Backend      string        `koanf:"backend"` // redis | memory
	SnapshotPath string        `koanf:"snapshot_path"`
	CallTimeout  time.Duration `koanf:"call_timeout"`
	Breaker      BreakerConfig `koanf:"breaker"`
}

type BreakerConfig struct {
	Enabled          bool          `koanf:"enabled"`
	MaxRequests      uint32        `koanf:"max_requests"`
	Interval         time.Duration `koanf:"interval"`
	Timeout          time.Duration `koanf:"timeout"`
	FailureThreshold uint32        `koanf:"failure_threshold"`
}

type LinkageConfig struct {
	MinStreamKeyLength int `koanf:"min_stream_key_length"`
}

type ResolverConfig struct {
	Lookback          time.Duration `koanf:"lookback"`
	SignalConcurrency int           `koanf:"signal_concurrency"`
}

type AlertsConfig struct {
	MaxAge          time.Duration `koanf:"max_age"`
	DedupCapacity   int           `koanf:"dedup_capacity"`
	PollInterval    time.Duration `koanf:"poll_interval"`
	PollConcurrency int           `koanf:"poll_concurrency"`
}

type WebhookConfig struct {
	Key        string        `koanf:"key"` // empty disables signature checks
	MaxSkew    time.Duration `koanf:"max_skew"`
	RatePerSec float64       `koanf:"rate_per_sec"`
	Burst      int           `koanf:"burst"`
}

type NotifyConfig struct {
	WebhookURL string        `koanf:"webhook_url"` // empty means log only
	Timeout    time.Duration `koanf:"timeout"`
}

type TopologyConfig struct {
	CacheTTL            time.Duration `koanf:"cache_ttl"`
	RefreshTimeout      time.Duration `koanf:"refresh_timeout"`
	FailoverConcurrency int           `koanf:"failover_concurrency"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:          "0.0.0.0",
			Port:          8080,
			MaxConcurrent: 64,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "ingest:",
		},
		Telemetry: TelemetryConfig{
			Backend:     BackendRedis,
			CallTimeout: 20 * time.Second,
			Breaker: BreakerConfig{
				Enabled:          true,
				MaxRequests:      3,
				Interval:         time.Minute,
				Timeout:          30 * time.Second,
				FailureThreshold: 5,
			},
		},
		Linkage: LinkageConfig{
			MinStreamKeyLength: 10,
		},
		Resolver: ResolverConfig{
			Lookback:          24 * time.Hour,
			SignalConcurrency: 4,
		},
		Alerts: AlertsConfig{
			MaxAge:          24 * time.Hour,
			DedupCapacity:   1000,
			PollInterval:    5 * time.Minute,
			PollConcurrency: 4,
		},
		Webhook: WebhookConfig{
			MaxSkew:    10 * time.Minute,
			RatePerSec: 20,
			Burst:      40,
		},
		Notify: NotifyConfig{
			Timeout: 10 * time.Second,
		},
		Topology: TopologyConfig{
			CacheTTL:            2 * time.Minute,
			RefreshTimeout:      30 * time.Second,
			FailoverConcurrency: 10,
		},
	}
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	var errs []error
	positive := func(name string, ok bool) {
		if !ok {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	positive("server.max_concurrent", c.Server.MaxConcurrent > 0)

	switch c.Telemetry.Backend {
	case BackendRedis:
		if _, _, err := net.SplitHostPort(c.Redis.Addr); err != nil {
			errs = append(errs, fmt.Errorf("redis.addr %q: %w", c.Redis.Addr, err))
		}
		if c.Redis.DB < 0 {
			errs = append(errs, errors.New("redis.db must not be negative"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("telemetry.backend %q: want %q or %q", c.Telemetry.Backend, BackendRedis, BackendMemory))
	}
	positive("telemetry.call_timeout", c.Telemetry.CallTimeout > 0)
	if c.Telemetry.Breaker.Enabled {
		positive("telemetry.breaker.max_requests", c.Telemetry.Breaker.MaxRequests > 0)
		positive("telemetry.breaker.timeout", c.Telemetry.Breaker.Timeout > 0)
		positive("telemetry.breaker.failure_threshold", c.Telemetry.Breaker.FailureThreshold > 0)
	}

	positive("linkage.min_stream_key_length", c.Linkage.MinStreamKeyLength > 0)
	positive("resolver.lookback", c.Resolver.Lookback > 0)
	positive("resolver.signal_concurrency", c.Resolver.SignalConcurrency > 0)

	positive("alerts.max_age", c.Alerts.MaxAge > 0)
	positive("alerts.dedup_capacity", c.Alerts.DedupCapacity > 0)
	positive("alerts.poll_interval", c.Alerts.PollInterval > 0)
	positive("alerts.poll_concurrency", c.Alerts.PollConcurrency > 0)

	positive("webhook.max_skew", c.Webhook.MaxSkew > 0)
	positive("webhook.rate_per_sec", c.Webhook.RatePerSec > 0)
	positive("webhook.burst", c.Webhook.Burst > 0)

	positive("notify.timeout", c.Notify.Timeout > 0)

	positive("topology.cache_ttl", c.Topology.CacheTTL > 0)
	positive("topology.refresh_timeout", c.Topology.RefreshTimeout > 0)
	positive("topology.failover_concurrency", c.Topology.FailoverConcurrency > 0)

	return errors.Join(errs...)
}
