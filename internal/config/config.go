// Package config loads the service configuration: an optional YAML file,
// then environment variables, which win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`

	Database  Database  `yaml:"database"`
	Redis     Redis     `yaml:"redis"`
	Kafka     Kafka     `yaml:"kafka"`
	Telemetry Telemetry `yaml:"telemetry"`
	Overdue   Overdue   `yaml:"overdue"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type Database struct {
	// Path of the SQLite file. ":memory:" keeps everything in process
	// memory and loses it on exit.
	Path string `yaml:"path"`
}

// Redis is optional. When Addr is set, invoice counters and checkout
// idempotency keys live in Redis instead of SQLite and process memory.
type Redis struct {
	Addr      string `yaml:"addr"`
	Namespace string `yaml:"namespace"`
}

// Kafka is optional. Without brokers, lifecycle events are logged.
type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type Telemetry struct {
	ServiceName  string `yaml:"service_name"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	LogLevel     string `yaml:"log_level"`
}

// Overdue drives the sweeper that persists the issued -> overdue move of
// invoices nobody touches.
type Overdue struct {
	Interval time.Duration `yaml:"interval"`
	Batch    int           `yaml:"batch"`
	Workers  int           `yaml:"workers"`
}

const MemoryDatabase = ":memory:"

func Default() Config {
	return Config{
		HTTPAddr:        ":8080",
		GRPCAddr:        ":9090",
		Database:        Database{Path: "clickmarket.db"},
		Redis:           Redis{Namespace: "clickmarket"},
		Kafka:           Kafka{Topic: "clickmarket.lifecycle"},
		Telemetry:       Telemetry{ServiceName: "clickmarket", LogLevel: "info"},
		Overdue:         Overdue{Interval: time.Hour, Batch: 200, Workers: 4},
		ShutdownTimeout: 15 * time.Second,
	}
}

// Load reads path (skipped when empty) over the defaults, applies the
// environment and validates the result.
func Load(path string) (*Config, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	set := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set("HTTP_ADDR", &c.HTTPAddr)
	set("GRPC_ADDR", &c.GRPCAddr)
	set("DB_PATH", &c.Database.Path)
	set("REDIS_ADDR", &c.Redis.Addr)
	set("KAFKA_TOPIC", &c.Kafka.Topic)
	set("OTEL_SERVICE_NAME", &c.Telemetry.ServiceName)
	set("OTEL_EXPORTER_OTLP_ENDPOINT", &c.Telemetry.OTLPEndpoint)
	set("LOG_LEVEL", &c.Telemetry.LogLevel)

	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = nil
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				c.Kafka.Brokers = append(c.Kafka.Brokers, b)
			}
		}
	}
	if v := getenv("OVERDUE_SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: OVERDUE_SWEEP_INTERVAL: %w", err)
		}
		c.Overdue.Interval = d
	}
	if v := getenv("OVERDUE_SWEEP_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: OVERDUE_SWEEP_WORKERS: %w", err)
		}
		c.Overdue.Workers = n
	}
	return nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http_addr is required"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic is required when brokers are set"))
	}
	if c.Overdue.Interval <= 0 {
		errs = append(errs, fmt.Errorf("overdue.interval must be positive, got %s", c.Overdue.Interval))
	}
	if c.Overdue.Batch <= 0 {
		errs = append(errs, fmt.Errorf("overdue.batch must be positive, got %d", c.Overdue.Batch))
	}
	if c.Overdue.Workers <= 0 {
		errs = append(errs, fmt.Errorf("overdue.workers must be positive, got %d", c.Overdue.Workers))
	}
	switch strings.ToLower(c.Telemetry.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("telemetry.log_level %q is not one of debug, info, warn, error", c.Telemetry.LogLevel))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
