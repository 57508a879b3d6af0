package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.ListenAddr() != "0.0.0.0:8080" {
		t.Errorf("ListenAddr = %s", cfg.Server.ListenAddr())
	}
	if cfg.Linkage.MinStreamKeyLength != 10 || cfg.Alerts.DedupCapacity != 1000 || cfg.Alerts.MaxAge != 24*time.Hour {
		t.Errorf("unexpected defaults %+v %+v", cfg.Linkage, cfg.Alerts)
	}
	if cfg.Telemetry.Backend != BackendRedis || !cfg.Telemetry.Breaker.Enabled || cfg.Webhook.Key != "" {
		t.Errorf("unexpected telemetry/webhook defaults %+v %+v", cfg.Telemetry, cfg.Webhook)
	}
}

func TestLoadFileAndEnvLayers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ingestwatch.yaml")
	yaml := `
server:
  port: 9090
telemetry:
  backend: memory
  breaker:
    timeout: 45s
alerts:
  poll_interval: 1m
webhook:
  key: from-file
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("INGESTWATCH_WEBHOOK_KEY", "from-env")
	t.Setenv("INGESTWATCH_LINKAGE_MIN_STREAM_KEY_LENGTH", "12")
	t.Setenv("INGESTWATCH_TELEMETRY_BREAKER_FAILURE_THRESHOLD", "9")
	t.Setenv("INGESTWATCH_BOGUS_THING", "ignored")

	cfg, err := load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.Telemetry.Backend != BackendMemory || cfg.Alerts.PollInterval != time.Minute {
		t.Errorf("file layer not applied: %+v %+v %+v", cfg.Server, cfg.Telemetry, cfg.Alerts)
	}
	if cfg.Telemetry.Breaker.Timeout != 45*time.Second || cfg.Telemetry.Breaker.FailureThreshold != 9 {
		t.Errorf("nested breaker section = %+v", cfg.Telemetry.Breaker)
	}
	if cfg.Webhook.Key != "from-env" || cfg.Linkage.MinStreamKeyLength != 12 {
		t.Errorf("env layer should win: key %q, min %d", cfg.Webhook.Key, cfg.Linkage.MinStreamKeyLength)
	}
}

func TestEnvTransform(t *testing.T) {
	tests := map[string]string{
		"INGESTWATCH_SERVER_PORT":               "server.port",
		"INGESTWATCH_TELEMETRY_CALL_TIMEOUT":    "telemetry.call_timeout",
		"INGESTWATCH_TELEMETRY_BREAKER_ENABLED": "telemetry.breaker.enabled",
		"INGESTWATCH_NOTIFY_WEBHOOK_URL":        "notify.webhook_url",
		"INGESTWATCH_TOPOLOGY_":                 "",
		"INGESTWATCH_UNKNOWN_KEY":               "",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	cfg.Server.Port = 0
	cfg.Redis.Addr = "no-port"
	cfg.Alerts.DedupCapacity = 0
	cfg.Webhook.MaxSkew = -time.Second

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	for _, want := range []string{"server.port", "redis.addr", "alerts.dedup_capacity", "webhook.max_skew"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}

	cfg = defaultConfig()
	cfg.Telemetry.Backend = BackendMemory
	cfg.Redis.Addr = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("memory backend ignores redis settings: %v", err)
	}
}
