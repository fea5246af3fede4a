package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clickmarket.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg, err := load("", env(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestFileThenEnv(t *testing.T) {
	path := writeFile(t, `
http_addr: ":9000"
database:
  path: /var/lib/clickmarket/data.db
kafka:
  brokers: [kafka-1:9092]
  topic: from-file
overdue:
  interval: 10m
  batch: 50
`)
	cfg, err := load(path, env(map[string]string{
		"KAFKA_BROKERS":          "a:9092, b:9092",
		"LOG_LEVEL":              "debug",
		"OVERDUE_SWEEP_INTERVAL": "30s",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, "/var/lib/clickmarket/data.db", cfg.Database.Path)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "from-file", cfg.Kafka.Topic)
	assert.Equal(t, "debug", cfg.Telemetry.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.Overdue.Interval)
	assert.Equal(t, 50, cfg.Overdue.Batch)
	assert.Equal(t, 4, cfg.Overdue.Workers, "untouched keys keep their default")
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		env     map[string]string
		wantErr string
	}{
		{name: "bad yaml", file: "http_addr: [", wantErr: "parse"},
		{name: "bad interval", env: map[string]string{"OVERDUE_SWEEP_INTERVAL": "soon"}, wantErr: "OVERDUE_SWEEP_INTERVAL"},
		{name: "bad workers", env: map[string]string{"OVERDUE_SWEEP_WORKERS": "many"}, wantErr: "OVERDUE_SWEEP_WORKERS"},
		{name: "no topic", file: "kafka:\n  brokers: [k:9092]\n  topic: \"\"", wantErr: "kafka.topic"},
		{name: "bad level", env: map[string]string{"LOG_LEVEL": "chatty"}, wantErr: "log_level"},
		{name: "zero batch", file: "overdue:\n  batch: 0", wantErr: "overdue.batch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := ""
			if tt.file != "" {
				path = writeFile(t, tt.file)
			}
			_, err := load(path, env(tt.env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.HTTPAddr = ""
	cfg.Database.Path = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http_addr")
	assert.Contains(t, err.Error(), "database.path")
}

func TestMissingFile(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "nope.yaml"), env(nil))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
