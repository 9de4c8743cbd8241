package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// go test -v --run TestLoadDefaults
func TestLoadDefaults(t *testing.T) {
	t.Setenv("NEXT_PUBLIC_BACKEND_URL", "")
	t.Setenv("BACKEND_URL", "")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DefaultBackendURL, cfg.Backend.URL)
	assert.Equal(t, 3*time.Second, cfg.Backend.HealthTimeout)
	assert.Equal(t, 60*time.Second, cfg.Poller.InitialTimeout)
	assert.Equal(t, 30*time.Second, cfg.Poller.RetryTimeout)
	assert.Equal(t, 10, cfg.Poller.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Poller.Retry.BaseDelay)
	assert.Equal(t, 30*time.Second, cfg.Poller.Retry.MaxDelay)
	assert.Equal(t, DefaultMarketPulseSymbols, cfg.Resources.MarketPulse.Symbols)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.False(t, cfg.Postgres.Enabled)
}

// go test -v --run TestLoadFileAndEnv
func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
backend:
  url: http://backend.internal:9000/
poller:
  retry:
    max_attempts: 4
resources:
  watchlist:
    polling_interval: 15s
    symbols: [AAPL, TSLA]
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("NEXT_PUBLIC_BACKEND_URL", "")
	t.Setenv("BACKEND_URL", "")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "http://backend.internal:9000", cfg.Backend.URL, "trailing slash trimmed")
	assert.Equal(t, 4, cfg.Poller.Retry.MaxAttempts)
	assert.Equal(t, 15*time.Second, cfg.Resources.Watchlist.PollingInterval)
	assert.Equal(t, []string{"AAPL", "TSLA"}, cfg.Resources.Watchlist.Symbols)
	assert.Equal(t, "warn", cfg.Log.Level, "env overrides file")
}

// go test -v --run TestLoadBackendURLFromPublicEnv
func TestLoadBackendURLFromPublicEnv(t *testing.T) {
	t.Setenv("NEXT_PUBLIC_BACKEND_URL", "http://10.0.0.5:8000")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:8000", cfg.Backend.URL)
}

// go test -v --run TestValidate
func TestValidate(t *testing.T) {
	valid := func() *Config {
		t.Setenv("NEXT_PUBLIC_BACKEND_URL", "")
		t.Setenv("BACKEND_URL", "")
		cfg, err := Load(t.TempDir())
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing backend url", func(c *Config) { c.Backend.URL = "" }, "backend.url"},
		{"zero base delay", func(c *Config) { c.Poller.Retry.BaseDelay = 0 }, "base_delay"},
		{"cap below base", func(c *Config) { c.Poller.Retry.MaxDelay = time.Millisecond }, "max_delay"},
		{"zero polling interval", func(c *Config) { c.Resources.Watchlist.PollingInterval = 0 }, "watchlist"},
		{"no indicator workers", func(c *Config) { c.Resources.Indicators.Concurrency = 0 }, "concurrency"},
		{"bad indicator period", func(c *Config) { c.Resources.Indicators.Period = "3months" }, "resources.indicators.period"},
		{"bad indicator interval", func(c *Config) { c.Resources.Indicators.Interval = "2h" }, "resources.indicators.interval"},
		{"unknown store", func(c *Config) { c.Store.Backend = "redis" }, "store.backend"},
		{"postgres store without db", func(c *Config) { c.Store.Backend = "postgres" }, "postgres.enabled"},
		{"bad postgres port", func(c *Config) {
			c.Postgres.Enabled = true
			c.Postgres.Port = 0
		}, "postgres.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), "error %q should mention %q", err, tt.want)
		})
	}
}

// go test -v --run TestPostgresDSN
func TestPostgresDSN(t *testing.T) {
	cfg := PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "pw",
		DBName:   "tradedash",
		SSLMode:  "disable",
		TimeZone: "UTC",
		SSM:      SSMParams{HostParam: "H", UserParam: "U", PasswordParam: "P"},
	}

	assert.Equal(t,
		"host=localhost port=5432 user=postgres password=pw dbname=tradedash sslmode=disable TimeZone=UTC",
		cfg.dsn("dev", nil))

	secrets := map[string]string{"H": "db.prod", "U": "svc", "P": "secret"}
	lookup := func(_ context.Context, name string) string { return secrets[name] }
	assert.Equal(t,
		"host=db.prod port=5432 user=svc password=secret dbname=tradedash sslmode=disable TimeZone=UTC",
		cfg.dsn("prod", lookup))
}
