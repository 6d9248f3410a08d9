package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
feed:
  url: http://127.0.0.1:5000/traffic
  timeout: 2s
  fallback-min: 5
  fallback-max: 40
timing:
  base-seconds: 15
  budget-seconds: 30
controller:
  refresh-interval: 3s
  mode: manual
  manual-approach: West
  seed: 42
rest:
  listen-addr: 127.0.0.1
  port: 9090
  enable-cors: true
`

func TestParseYAML(t *testing.T) {
	cfg, err := ParseYAML([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:5000/traffic", cfg.Feed.URL)
	assert.Equal(t, 5, cfg.Feed.FallbackMin)
	assert.Equal(t, 40, cfg.Feed.FallbackMax)
	assert.Equal(t, 15, cfg.Timing.BaseSeconds)
	assert.Equal(t, 30, cfg.Timing.BudgetSeconds)
	assert.Equal(t, "manual", cfg.Controller.Mode)
	assert.Equal(t, "West", cfg.Controller.ManualApproach)
	assert.Equal(t, uint64(42), cfg.Controller.Seed)
	assert.Equal(t, "127.0.0.1", cfg.RESTServer.ListenAddr)
	assert.Equal(t, 9090, cfg.RESTServer.Port)
	assert.True(t, cfg.RESTServer.EnableCORS)

	timeout, err := cfg.Feed.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, timeout)

	interval, err := cfg.Controller.Interval()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, interval)
}

func TestParseYAMLDefaults(t *testing.T) {
	cfg, err := ParseYAML([]byte("feed:\n  url: http://feed/traffic\n"))
	require.NoError(t, err)

	assert.Equal(t, DefaultFeedTimeout, cfg.Feed.Timeout)
	assert.Equal(t, DefaultFallbackMin, cfg.Feed.FallbackMin)
	assert.Equal(t, DefaultFallbackMax, cfg.Feed.FallbackMax)
	assert.Equal(t, DefaultBaseSeconds, cfg.Timing.BaseSeconds)
	assert.Equal(t, DefaultBudgetSeconds, cfg.Timing.BudgetSeconds)
	assert.Equal(t, DefaultRefreshInterval, cfg.Controller.RefreshInterval)
	assert.Equal(t, "ai", cfg.Controller.Mode)
	assert.Equal(t, "North", cfg.Controller.ManualApproach)
	assert.Equal(t, DefaultListenAddr, cfg.RESTServer.ListenAddr)
	assert.Equal(t, DefaultRESTPort, cfg.RESTServer.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ConfigData)
	}{
		{name: "bad timeout", mutate: func(c *ConfigData) { c.Feed.Timeout = "soon" }},
		{name: "zero timeout", mutate: func(c *ConfigData) { c.Feed.Timeout = "0s" }},
		{name: "fallback min zero", mutate: func(c *ConfigData) { c.Feed.FallbackMin = 0; c.Feed.FallbackMax = 10 }},
		{name: "fallback inverted", mutate: func(c *ConfigData) { c.Feed.FallbackMin = 20; c.Feed.FallbackMax = 10 }},
		{name: "negative budget", mutate: func(c *ConfigData) { c.Timing.BudgetSeconds = -1 }},
		{name: "zero base", mutate: func(c *ConfigData) { c.Timing.BaseSeconds = 0; c.Timing.BudgetSeconds = 30 }},
		{name: "bad interval", mutate: func(c *ConfigData) { c.Controller.RefreshInterval = "-3s" }},
		{name: "unknown mode", mutate: func(c *ConfigData) { c.Controller.Mode = "auto" }},
		{name: "unknown approach", mutate: func(c *ConfigData) { c.Controller.ManualApproach = "Northeast" }},
		{name: "port out of range", mutate: func(c *ConfigData) { c.RESTServer.Port = 70000 }},
		{name: "cert without key", mutate: func(c *ConfigData) { c.RESTServer.Cert = "/etc/cert.pem" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &ConfigData{}
			cfg.ApplyDefaults()
			require.NoError(t, cfg.Validate())

			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestParseYAMLRejectsUnknownKeys(t *testing.T) {
	_, err := ParseYAML([]byte("feed:\n  uri: http://typo\n"))
	assert.Error(t, err)
}

func TestYAMLProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	provider := NewYAMLProvider(path)
	defer provider.Close()
	assert.True(t, provider.IsReadOnly())

	cfg, err := provider.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.RESTServer.Port)

	_, err = NewYAMLProvider(filepath.Join(t.TempDir(), "missing.yaml")).LoadConfig()
	assert.Error(t, err)
}

func TestSQLiteProviderEmptyDatabase(t *testing.T) {
	provider, err := NewSQLiteProvider(filepath.Join(t.TempDir(), "config.db"))
	require.NoError(t, err)
	defer provider.Close()

	cfg, err := provider.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseSeconds, cfg.Timing.BaseSeconds)
	assert.Equal(t, DefaultRESTPort, cfg.RESTServer.Port)
	assert.Empty(t, cfg.Feed.URL)
}

func TestSQLiteProviderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.db")
	provider, err := NewSQLiteProvider(path)
	require.NoError(t, err)
	assert.False(t, provider.IsReadOnly())

	want, err := ParseYAML([]byte(sampleYAML))
	require.NoError(t, err)
	require.NoError(t, provider.SaveConfig(want))

	// saving twice replaces rather than duplicates
	want.Timing.BudgetSeconds = 40
	require.NoError(t, provider.SaveConfig(want))
	require.NoError(t, provider.Close())

	reopened, err := NewSQLiteProvider(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSQLiteSchemaIsMigrated(t *testing.T) {
	provider, err := NewSQLiteProvider(filepath.Join(t.TempDir(), "config.db"))
	require.NoError(t, err)
	defer provider.Close()

	m, err := NewMigrator(provider.db, nil)
	require.NoError(t, err)

	version, err := m.GetCurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	pending, err := m.GetPendingMigrations()
	require.NoError(t, err)
	assert.Empty(t, pending)
}
