package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err, "a missing config file falls back to defaults")

	assert.Equal(t, 10, cfg.Providers.RequestTimeoutSec)
	assert.Equal(t, 60, cfg.Cache.QuoteTTLSec)
	assert.Equal(t, 3600, cfg.Cache.InfoTTLSec)
	assert.Equal(t, 300, cfg.Cache.HistoricalTTLSec)
	assert.Equal(t, 3600, cfg.Collector.IntervalSec)
	assert.Equal(t, 60, cfg.Collector.CooldownSec)
	assert.Equal(t, "0 30 5 * * 2-6", cfg.Schedule.BackfillCron)
	assert.Equal(t, "1mo", cfg.Schedule.BackfillPeriod)
	assert.Equal(t, "data/stockwatch.db", cfg.Database.SQLitePath)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
providers:
  finnhub_key: fh-key
  request_timeout_sec: 30
cache:
  quote_ttl_sec: 15
collector:
  interval_sec: 600
database:
  sqlite_path: /tmp/custom.db
proxy: http://localhost:8080
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "fh-key", cfg.Providers.FinnhubKey)
	assert.Equal(t, 30, cfg.Providers.RequestTimeoutSec)
	assert.Equal(t, 15, cfg.Cache.QuoteTTLSec)
	assert.Equal(t, 600, cfg.Collector.IntervalSec)
	assert.Equal(t, "/tmp/custom.db", cfg.Database.SQLitePath)
	assert.Equal(t, "http://localhost:8080", cfg.Proxy)
	// Untouched fields still default.
	assert.Equal(t, 3600, cfg.Cache.InfoTTLSec)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
providers:
  finnhub_key: from-file
collector:
  interval_sec: 600
`)
	t.Setenv("FINNHUB_API_KEY", "from-env")
	t.Setenv("COLLECT_INTERVAL_SEC", "120")
	t.Setenv("SQLITE_PATH", "/tmp/env.db")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Providers.FinnhubKey)
	assert.Equal(t, 120, cfg.Collector.IntervalSec)
	assert.Equal(t, "/tmp/env.db", cfg.Database.SQLitePath)
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeConfig(t, "providers: [not a map")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	cfg.Database.SQLitePath = ""
	assert.Error(t, cfg.Validate())

	cfg.Database.SQLitePath = "x.db"
	cfg.Collector.IntervalSec = -1
	assert.Error(t, cfg.Validate())
}
