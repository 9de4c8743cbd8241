package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Backend   BackendConfig   `mapstructure:"backend"`
	Poller    PollerConfig    `mapstructure:"poller"`
	Resources ResourcesConfig `mapstructure:"resources"`
	Store     StoreConfig     `mapstructure:"store"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Log       LogConfig       `mapstructure:"log"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
}

// BackendConfig points at the remote market-data service.
type BackendConfig struct {
	URL           string        `mapstructure:"url"`
	HealthTimeout time.Duration `mapstructure:"health_timeout"`
}

// PollerConfig is shared by every resource poller.
type PollerConfig struct {
	InitialTimeout time.Duration `mapstructure:"initial_timeout"` // first load, covers backend warm-up
	RetryTimeout   time.Duration `mapstructure:"retry_timeout"`
	Retry          RetryConfig   `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

type ResourcesConfig struct {
	Watchlist   ResourceConfig   `mapstructure:"watchlist"`
	MarketPulse ResourceConfig   `mapstructure:"market_pulse"`
	Indicators  IndicatorsConfig `mapstructure:"indicators"`
	LiveScreens ResourceConfig   `mapstructure:"live_screens"`
}

// ResourceConfig configures one polled resource. Symbols seeds the
// resource's parameters; for live screens they are screen ids.
type ResourceConfig struct {
	PollingInterval time.Duration `mapstructure:"polling_interval"`
	Symbols         []string      `mapstructure:"symbols"`
	Active          bool          `mapstructure:"active"`
}

type IndicatorsConfig struct {
	PollingInterval time.Duration `mapstructure:"polling_interval"`
	Period          string        `mapstructure:"period"`
	Interval        string        `mapstructure:"interval"`
	Concurrency     int           `mapstructure:"concurrency"`
	Active          bool          `mapstructure:"active"`
}

// StoreConfig selects where watchlist, favorites and paper trading state live.
type StoreConfig struct {
	Backend string `mapstructure:"backend"` // "file", "memory" or "postgres"
	Dir     string `mapstructure:"dir"`
}

type DashboardConfig struct {
	Addr string `mapstructure:"addr"`
}

// Options defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

// Load reads config.yaml from the given search paths (or the default
// locations), applies defaults, and overrides with environment variables.
// A .env file in the working directory is loaded first when present.
func Load(paths ...string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")

	if len(paths) == 0 {
		paths = defaultSearchPaths()
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// Support environment variables with dot notation (e.g., BACKEND_URL)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("backend.url", "NEXT_PUBLIC_BACKEND_URL", "BACKEND_URL"); err != nil {
		return nil, fmt.Errorf("bind backend url env: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Backend.URL = strings.TrimRight(cfg.Backend.URL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultSearchPaths() []string {
	paths := []string{"./config", "."}

	// go run places the binary in a temp go-build dir
	ex, err := os.Executable()
	if err == nil && !strings.Contains(ex, "go-build") {
		paths = append(paths, filepath.Join(filepath.Dir(ex), "../config"))
	} else if pwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(pwd, "../../config"))
	}
	return paths
}
