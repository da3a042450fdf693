package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
ingest:
  endpoint: ws://localhost:9443/liquidations
  symbols: [BTC, ETH]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Ingest.Endpoint != "ws://localhost:9443/liquidations" {
		t.Errorf("endpoint = %q", cfg.Ingest.Endpoint)
	}
	if got := len(cfg.Ingest.Symbols); got != 2 {
		t.Errorf("symbols = %d, want 2", got)
	}
	if cfg.Engine.MaxEventsPerSymbol != 3000 {
		t.Errorf("default max_events_per_symbol = %d, want 3000", cfg.Engine.MaxEventsPerSymbol)
	}
	if cfg.Engine.RetentionSeconds != 300 {
		t.Errorf("default retention_seconds = %v, want 300", cfg.Engine.RetentionSeconds)
	}
	if cfg.Ingest.ReconnectDelay != time.Second {
		t.Errorf("default reconnect_delay = %v, want 1s", cfg.Ingest.ReconnectDelay)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("default logging = %+v", cfg.Logging)
	}
	if cfg.PubSub.NATS.BroadcastPrefix != "cascade.assessments" {
		t.Errorf("default broadcast_prefix = %q", cfg.PubSub.NATS.BroadcastPrefix)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
ingest:
  endpoint: wss://feed.example.com/v1
  symbols: [SOL]
  reconnect_delay: 250ms
engine:
  max_events_per_symbol: 10000
  retention_seconds: 600
stores:
  clickhouse:
    dsn: clickhouse://localhost:9000/cascades
    writer:
      batch_max_rows: 50
pubsub:
  nats:
    url: nats://localhost:4222
metrics:
  prometheus: ":9102"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Engine.MaxEventsPerSymbol != 10000 {
		t.Errorf("max_events_per_symbol = %d", cfg.Engine.MaxEventsPerSymbol)
	}
	if cfg.Ingest.ReconnectDelay != 250*time.Millisecond {
		t.Errorf("reconnect_delay = %v", cfg.Ingest.ReconnectDelay)
	}
	if cfg.Stores.ClickHouse.DSN != "clickhouse://localhost:9000/cascades" {
		t.Errorf("clickhouse dsn = %q", cfg.Stores.ClickHouse.DSN)
	}
	if cfg.Stores.ClickHouse.Writer.BatchMaxRows != 50 {
		t.Errorf("batch_max_rows = %d", cfg.Stores.ClickHouse.Writer.BatchMaxRows)
	}
	// Nested defaults survive a partial override.
	if cfg.Stores.ClickHouse.Writer.BatchMaxInterval != 2*time.Second {
		t.Errorf("batch_max_interval = %v, want 2s", cfg.Stores.ClickHouse.Writer.BatchMaxInterval)
	}
	if cfg.PubSub.NATS.URL != "nats://localhost:4222" {
		t.Errorf("nats url = %q", cfg.PubSub.NATS.URL)
	}
	if cfg.Metrics.Prometheus != ":9102" {
		t.Errorf("prometheus = %q", cfg.Metrics.Prometheus)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateRejectsIncomplete(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"no endpoint", "ingest:\n  symbols: [BTC]\n"},
		{"no symbols", "ingest:\n  endpoint: ws://x\n"},
		{"zero capacity", "ingest:\n  endpoint: ws://x\n  symbols: [BTC]\nengine:\n  max_events_per_symbol: 0\n"},
		{"negative retention", "ingest:\n  endpoint: ws://x\n  symbols: [BTC]\nengine:\n  retention_seconds: -1\n"},
	}
	for _, tc := range cases {
		path := writeConfig(t, tc.body)
		if _, err := Load(path); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}
