package config

import (
	"errors"
	"fmt"

	"tradedash/pkg/marketdata"
)

// Validate checks that required fields are set and values are usable.
func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return errors.New("backend.url is required")
	}
	if c.Backend.HealthTimeout <= 0 {
		return errors.New("backend.health_timeout must be > 0")
	}

	if c.Poller.InitialTimeout <= 0 || c.Poller.RetryTimeout <= 0 {
		return errors.New("poller timeouts must be > 0")
	}
	if c.Poller.Retry.MaxAttempts < 0 {
		return errors.New("poller.retry.max_attempts must be >= 0")
	}
	if c.Poller.Retry.BaseDelay <= 0 {
		return errors.New("poller.retry.base_delay must be > 0")
	}
	if c.Poller.Retry.MaxDelay < c.Poller.Retry.BaseDelay {
		return fmt.Errorf("poller.retry.max_delay (%s) cannot be below base_delay (%s)",
			c.Poller.Retry.MaxDelay, c.Poller.Retry.BaseDelay)
	}

	for name, interval := range map[string]int64{
		"resources.watchlist.polling_interval":    int64(c.Resources.Watchlist.PollingInterval),
		"resources.market_pulse.polling_interval": int64(c.Resources.MarketPulse.PollingInterval),
		"resources.indicators.polling_interval":   int64(c.Resources.Indicators.PollingInterval),
		"resources.live_screens.polling_interval": int64(c.Resources.LiveScreens.PollingInterval),
	} {
		if interval <= 0 {
			return fmt.Errorf("%s must be > 0", name)
		}
	}
	if c.Resources.Indicators.Concurrency < 1 {
		return errors.New("resources.indicators.concurrency must be >= 1")
	}
	if _, err := marketdata.ParsePeriod(c.Resources.Indicators.Period); err != nil {
		return fmt.Errorf("resources.indicators.period: %w", err)
	}
	if _, err := marketdata.ParseInterval(c.Resources.Indicators.Interval); err != nil {
		return fmt.Errorf("resources.indicators.interval: %w", err)
	}

	switch c.Store.Backend {
	case "file":
		if c.Store.Dir == "" {
			return errors.New("store.dir is required for the file backend")
		}
	case "memory":
	case "postgres":
		if !c.Postgres.Enabled {
			return errors.New("store.backend postgres requires postgres.enabled")
		}
	default:
		return fmt.Errorf("store.backend must be file, memory or postgres, got %q", c.Store.Backend)
	}

	if c.Postgres.Enabled {
		if err := c.Postgres.validate("postgres"); err != nil {
			return err
		}
	}
	return nil
}

func (cfg *PostgresConfig) validate(prefix string) error {
	if cfg.DBName == "" {
		return fmt.Errorf("%s.dbname is required", prefix)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("%s.port must be between 1 and 65535, got %d", prefix, cfg.Port)
	}
	if cfg.MaxIdleConns > cfg.MaxOpenConns {
		return fmt.Errorf("%s.max_idle_conns (%d) cannot exceed max_open_conns (%d)",
			prefix, cfg.MaxIdleConns, cfg.MaxOpenConns)
	}
	if cfg.Retention < 0 {
		return fmt.Errorf("%s.retention must be >= 0", prefix)
	}
	return nil
}
