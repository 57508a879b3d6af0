package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where the config file is searched, first hit wins.
var DefaultConfigPaths = []string{
	"ingestwatch.yaml",
	"ingestwatch.yml",
	"/etc/ingestwatch/ingestwatch.yaml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// EnvPrefix is stripped from environment variables before mapping them to
// config keys: INGESTWATCH_ALERTS_POLL_INTERVAL -> alerts.poll_interval.
const EnvPrefix = "INGESTWATCH_"

// envSections maps env name prefixes to key paths. Longer prefixes come
// first so nested sections win over their parents.
var envSections = []struct{ env, key string }{
	{"telemetry_breaker_", "telemetry.breaker."},
	{"server_", "server."},
	{"redis_", "redis."},
	{"telemetry_", "telemetry."},
	{"linkage_", "linkage."},
	{"resolver_", "resolver."},
	{"alerts_", "alerts."},
	{"webhook_", "webhook."},
	{"notify_", "notify."},
	{"topology_", "topology."},
}

// Load builds the configuration from defaults, the config file (if found)
// and the environment, then validates it.
func Load() (*Config, error) {
	return load(findConfigFile())
}

func load(path string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Layer 3: environment (highest priority)
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first existing config file, or "".
func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransformFunc maps INGESTWATCH_SECTION_FIELD to section.field. Unknown
// sections are dropped so stray variables never reach the config.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	for _, s := range envSections {
		if rest, ok := strings.CutPrefix(key, s.env); ok && rest != "" {
			return s.key + rest
		}
	}
	return ""
}
