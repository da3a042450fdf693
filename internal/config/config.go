// Package config loads the detector service configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App     AppConfig     `yaml:"app"`
	Logging LoggingConfig `yaml:"logging"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Engine  EngineConfig  `yaml:"engine"`
	Stores  StoresConfig  `yaml:"stores"`
	PubSub  PubSubConfig  `yaml:"pubsub"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type AppConfig struct {
	InstanceID      string        `yaml:"instance_id"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // json|text
	Output string `yaml:"output"` // stdout|stderr|file path
	MaxAge int    `yaml:"max_age_days"`
}

type IngestConfig struct {
	Endpoint          string        `yaml:"endpoint"` // ws:// or wss:// liquidation feed
	Symbols           []string      `yaml:"symbols"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	MaxReconnectDelay time.Duration `yaml:"max_reconnect_delay"`
	PingInterval      time.Duration `yaml:"ping_interval"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
}

type EngineConfig struct {
	MaxEventsPerSymbol int           `yaml:"max_events_per_symbol"`
	RetentionSeconds   float64       `yaml:"retention_seconds"`
	CleanupInterval    time.Duration `yaml:"cleanup_interval"`
	// DegradedQueueDepth switches the manager to coarse snapshots when the
	// inbound event queue is deeper than this.
	DegradedQueueDepth int `yaml:"degraded_queue_depth"`
}

type ClickHouseWriterConfig struct {
	BatchMaxRows     int           `yaml:"batch_max_rows"`
	BatchMaxInterval time.Duration `yaml:"batch_max_interval"`
}

type ClickHouseConfig struct {
	DSN    string                 `yaml:"dsn"`
	Writer ClickHouseWriterConfig `yaml:"writer"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type StoresConfig struct {
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Postgres   PostgresConfig   `yaml:"postgres"`
}

type NATSConfig struct {
	URL             string `yaml:"url"`
	BroadcastPrefix string `yaml:"broadcast_prefix"`
}

type PubSubConfig struct {
	NATS NATSConfig `yaml:"nats"`
}

type MetricsConfig struct {
	Prometheus string `yaml:"prometheus"` // listen address, empty disables
}

// Default returns the configuration used when a field is absent from the
// YAML file.
func Default() *Config {
	return &Config{
		App: AppConfig{
			InstanceID:      "cascade-detector",
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Ingest: IngestConfig{
			ReconnectDelay:    1 * time.Second,
			MaxReconnectDelay: 30 * time.Second,
			PingInterval:      30 * time.Second,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      10 * time.Second,
		},
		Engine: EngineConfig{
			MaxEventsPerSymbol: 3000,
			RetentionSeconds:   300,
			CleanupInterval:    30 * time.Second,
			DegradedQueueDepth: 512,
		},
		Stores: StoresConfig{
			ClickHouse: ClickHouseConfig{
				Writer: ClickHouseWriterConfig{
					BatchMaxRows:     500,
					BatchMaxInterval: 2 * time.Second,
				},
			},
		},
		PubSub: PubSubConfig{
			NATS: NATSConfig{
				BroadcastPrefix: "cascade.assessments",
			},
		},
	}
}

// Load reads the YAML file at path on top of the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err = yaml.Unmarshal(b, cfg); err != nil {
		return nil, err
	}

	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the detector cannot run with.
func (c *Config) Validate() error {
	if c.Ingest.Endpoint == "" {
		return fmt.Errorf("ingest.endpoint is required")
	}
	if len(c.Ingest.Symbols) == 0 {
		return fmt.Errorf("ingest.symbols must list at least one symbol")
	}
	if c.Engine.MaxEventsPerSymbol <= 0 {
		return fmt.Errorf("engine.max_events_per_symbol must be positive")
	}
	if c.Engine.RetentionSeconds <= 0 {
		return fmt.Errorf("engine.retention_seconds must be positive")
	}
	return nil
}
