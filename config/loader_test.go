package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/canvasflow/layout"
	"github.com/BaSui01/canvasflow/store"
)

func TestLoader_Defaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, "kv", cfg.Drafts.Backend)
	assert.Equal(t, time.Second, cfg.Delivery.PollInterval)
	assert.Equal(t, 10, cfg.Delivery.MaxPolls)
	assert.Equal(t, 10*time.Second, cfg.Delivery.RecordTTL)
	assert.Equal(t, 200.0, cfg.Layout.HorizontalSpacing)
	assert.Equal(t, 150.0, cfg.Layout.VerticalSpacing)
	assert.Equal(t, 250.0, cfg.Layout.DefaultX)
	assert.Equal(t, 3, cfg.Layout.ColumnsPerRow)
	assert.NoError(t, cfg.Validate())
}

func TestLoader_FromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  http_port: 9000
store:
  type: redis
drafts:
  backend: database
delivery:
  poll_interval: 250ms
  max_polls: 4
layout:
  horizontal_spacing: 120
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, "redis", cfg.Store.Type)
	assert.Equal(t, "database", cfg.Drafts.Backend)
	assert.Equal(t, 250*time.Millisecond, cfg.Delivery.PollInterval)
	assert.Equal(t, 4, cfg.Delivery.MaxPolls)
	assert.Equal(t, 120.0, cfg.Layout.HorizontalSpacing)
	// Untouched values keep their defaults
	assert.Equal(t, 150.0, cfg.Layout.VerticalSpacing)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoader_EnvOverrides(t *testing.T) {
	t.Setenv("CANVASFLOW_SERVER_HTTP_PORT", "7070")
	t.Setenv("CANVASFLOW_STORE_TYPE", "file")
	t.Setenv("CANVASFLOW_DELIVERY_RECORD_TTL", "30s")
	t.Setenv("CANVASFLOW_LAYOUT_DEFAULT_Y", "300")
	t.Setenv("CANVASFLOW_LOG_OUTPUT_PATHS", "stdout, /var/log/canvasflow.log")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.HTTPPort)
	assert.Equal(t, "file", cfg.Store.Type)
	assert.Equal(t, 30*time.Second, cfg.Delivery.RecordTTL)
	assert.Equal(t, 300.0, cfg.Layout.DefaultY)
	assert.Equal(t, []string{"stdout", "/var/log/canvasflow.log"}, cfg.Log.OutputPaths)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 9000\n"), 0o600))
	t.Setenv("CANVASFLOW_SERVER_HTTP_PORT", "9100")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.HTTPPort, "environment wins over file")
}

func TestLoader_Validator(t *testing.T) {
	_, err := NewLoader().
		WithValidator(func(c *Config) error { return assert.AnError }).
		Load()
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"defaults", func(*Config) {}, true},
		{"bad port", func(c *Config) { c.Server.HTTPPort = 0 }, false},
		{"bad store type", func(c *Config) { c.Store.Type = "etcd" }, false},
		{"bad draft backend", func(c *Config) { c.Drafts.Backend = "s3" }, false},
		{"negative polls", func(c *Config) { c.Delivery.MaxPolls = -1 }, false},
		{"zero ttl", func(c *Config) { c.Delivery.RecordTTL = 0 }, false},
		{"zero columns", func(c *Config) { c.Layout.ColumnsPerRow = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if tt.valid {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DefaultDatabaseConfig()
	assert.Contains(t, cfg.DSN(), "host=localhost")
	assert.Contains(t, cfg.DSN(), "dbname=canvasflow")

	cfg.Driver = "mysql"
	assert.Contains(t, cfg.DSN(), "@tcp(localhost:5432)")

	cfg.Driver = "sqlite"
	cfg.Name = "drafts.db"
	assert.Equal(t, "drafts.db", cfg.DSN())

	cfg.Driver = "oracle"
	assert.Empty(t, cfg.DSN())
}

func TestConfig_Conversions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Type = "redis"
	cfg.Redis.Addr = "redis:6379"
	cfg.Layout.ColumnsPerRow = 4
	cfg.Delivery.MaxPolls = 7

	sc := cfg.StoreConfigFor()
	assert.Equal(t, store.StoreTypeRedis, sc.Type)
	assert.Equal(t, "redis:6379", sc.Redis.Addr)

	dc := cfg.DeliveryConfigFor()
	assert.Equal(t, 7, dc.MaxPolls)
	assert.Equal(t, 4, dc.Layout.ColumnsPerRow)

	lo := cfg.LayoutOptions()
	assert.Equal(t, layout.DefaultOptions().HorizontalSpacing, lo.HorizontalSpacing)
	assert.Equal(t, 4, lo.ColumnsPerRow)
}
