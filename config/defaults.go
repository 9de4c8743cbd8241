package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default values for optional configuration fields.
const (
	DefaultBackendURL        = "http://127.0.0.1:8000"
	DefaultHealthTimeout     = 3 * time.Second
	DefaultInitialTimeout    = 60 * time.Second
	DefaultRetryTimeout      = 30 * time.Second
	DefaultRetryMaxAttempts  = 10
	DefaultRetryBaseDelay    = time.Second
	DefaultRetryMaxDelay     = 30 * time.Second
	DefaultWatchlistPoll     = 30 * time.Second
	DefaultMarketPulsePoll   = 60 * time.Second
	DefaultIndicatorsPoll    = 5 * time.Minute
	DefaultLiveScreensPoll   = 2 * time.Minute
	DefaultIndicatorPeriod   = "3mo"
	DefaultIndicatorInterval = "1d"
	DefaultIndicatorWorkers  = 4
	DefaultStoreBackend      = "file"
	DefaultStoreDir          = "data"
	DefaultDashboardAddr     = "127.0.0.1:3001"
	DefaultRetention         = 30 * 24 * time.Hour
)

var (
	DefaultMarketPulseSymbols = []string{"SPY", "QQQ", "DIA", "IWM", "^VIX"}
	DefaultLiveScreens        = []string{"day_gainers", "day_losers", "most_actives"}
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.url", DefaultBackendURL)
	v.SetDefault("backend.health_timeout", DefaultHealthTimeout)

	v.SetDefault("poller.initial_timeout", DefaultInitialTimeout)
	v.SetDefault("poller.retry_timeout", DefaultRetryTimeout)
	v.SetDefault("poller.retry.max_attempts", DefaultRetryMaxAttempts)
	v.SetDefault("poller.retry.base_delay", DefaultRetryBaseDelay)
	v.SetDefault("poller.retry.max_delay", DefaultRetryMaxDelay)

	v.SetDefault("resources.watchlist.polling_interval", DefaultWatchlistPoll)
	v.SetDefault("resources.watchlist.active", true)
	v.SetDefault("resources.market_pulse.polling_interval", DefaultMarketPulsePoll)
	v.SetDefault("resources.market_pulse.symbols", DefaultMarketPulseSymbols)
	v.SetDefault("resources.market_pulse.active", true)
	v.SetDefault("resources.indicators.polling_interval", DefaultIndicatorsPoll)
	v.SetDefault("resources.indicators.period", DefaultIndicatorPeriod)
	v.SetDefault("resources.indicators.interval", DefaultIndicatorInterval)
	v.SetDefault("resources.indicators.concurrency", DefaultIndicatorWorkers)
	v.SetDefault("resources.indicators.active", false)
	v.SetDefault("resources.live_screens.polling_interval", DefaultLiveScreensPoll)
	v.SetDefault("resources.live_screens.symbols", DefaultLiveScreens)
	v.SetDefault("resources.live_screens.active", false)

	v.SetDefault("store.backend", DefaultStoreBackend)
	v.SetDefault("store.dir", DefaultStoreDir)

	v.SetDefault("dashboard.addr", DefaultDashboardAddr)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_file", "")
	v.SetDefault("log.environment", "dev")

	v.SetDefault("postgres.enabled", false)
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.dbname", "tradedash")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.timezone", "UTC")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime", time.Hour)
	v.SetDefault("postgres.retention", DefaultRetention)
	v.SetDefault("postgres.ssm.host_param", "TRADEDASH_DB_HOST")
	v.SetDefault("postgres.ssm.user_param", "TRADEDASH_DB_USER")
	v.SetDefault("postgres.ssm.password_param", "TRADEDASH_DB_PASSWORD")
}
