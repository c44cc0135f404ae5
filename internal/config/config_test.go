package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err, "explicit path that does not exist should fail")

	cfg, err = Load("")
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.Monitor.Interval)
	assert.Equal(t, time.Minute, cfg.Monitor.MinCycleGap)
	assert.Equal(t, 10, cfg.Monitor.LowStockThreshold)
	assert.Equal(t, 30*time.Second, cfg.Monitor.FetchTimeout)
	assert.Equal(t, 4, cfg.Monitor.MaxConcurrentFetches)
	assert.Equal(t, 10, cfg.Monitor.MaxResultsPerKeyword)
	assert.Equal(t, "https://wakeabc.com/search-results", cfg.Inventory.SearchURL)
	assert.False(t, cfg.Telegram.Enabled)
	assert.Equal(t, "https://api.telegram.org", cfg.Telegram.APIBase)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
monitor:
  interval: 10m
  low_stock_threshold: 3
telegram:
  enabled: true
  bot_token: "123456789:secret-token-value-here"
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, cfg.Monitor.Interval)
	assert.Equal(t, 3, cfg.Monitor.LowStockThreshold)
	assert.True(t, cfg.Telegram.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Monitor.FetchTimeout, "unset keys keep defaults")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		errHas string
	}{
		{"zero interval", func(c *Config) { c.Monitor.Interval = 0 }, "monitor.interval"},
		{"gap exceeds interval", func(c *Config) { c.Monitor.MinCycleGap = time.Hour }, "min_cycle_gap"},
		{"zero threshold", func(c *Config) { c.Monitor.LowStockThreshold = 0 }, "low_stock_threshold"},
		{"zero fetch timeout", func(c *Config) { c.Monitor.FetchTimeout = 0 }, "fetch_timeout"},
		{"zero concurrency", func(c *Config) { c.Monitor.MaxConcurrentFetches = 0 }, "max_concurrent_fetches"},
		{"empty search url", func(c *Config) { c.Inventory.SearchURL = "" }, "search_url"},
		{"telegram enabled without token", func(c *Config) { c.Telegram.Enabled = true }, "bot_token"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errHas)
		})
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := &Config{Export: ExportConfig{MaxDataPoints: 500}}
	assert.Equal(t, 500, cfg.ResolveMaxPoints(0))
	assert.Equal(t, 25, cfg.ResolveMaxPoints(25))
}
