package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"abc-inventory-alerts/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Inventory InventoryConfig `mapstructure:"inventory"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// MonitorConfig governs the watch cycle.
type MonitorConfig struct {
	Interval             time.Duration `mapstructure:"interval"`
	MinCycleGap          time.Duration `mapstructure:"min_cycle_gap"`
	StartupDelay         time.Duration `mapstructure:"startup_delay"`
	LowStockThreshold    int           `mapstructure:"low_stock_threshold"`
	FetchTimeout         time.Duration `mapstructure:"fetch_timeout"`
	MaxConcurrentFetches int           `mapstructure:"max_concurrent_fetches"`
	MaxResultsPerKeyword int           `mapstructure:"max_results_per_keyword"`
}

// InventoryConfig covers access to the ABC catalog search endpoint.
type InventoryConfig struct {
	SearchURL      string        `mapstructure:"search_url"`
	UserAgent      string        `mapstructure:"user_agent"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// TelegramConfig describes the notification channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ABCWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "abcwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("monitor.interval", "30m")
	v.SetDefault("monitor.min_cycle_gap", "1m")
	v.SetDefault("monitor.startup_delay", "0s")
	v.SetDefault("monitor.low_stock_threshold", 10)
	v.SetDefault("monitor.fetch_timeout", "30s")
	v.SetDefault("monitor.max_concurrent_fetches", 4)
	v.SetDefault("monitor.max_results_per_keyword", 10)

	v.SetDefault("inventory.search_url", "https://wakeabc.com/search-results")
	v.SetDefault("inventory.user_agent", "abcwatcher/1.0")
	v.SetDefault("inventory.request_timeout", "30s")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values. A failure
// here is fatal at startup; a running cycle never sees invalid configuration.
func (c *Config) Validate() error {
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be greater than zero")
	}
	if c.Monitor.MinCycleGap < 0 {
		return fmt.Errorf("monitor.min_cycle_gap cannot be negative")
	}
	if c.Monitor.MinCycleGap >= c.Monitor.Interval {
		return fmt.Errorf("monitor.min_cycle_gap must be shorter than monitor.interval")
	}
	if c.Monitor.LowStockThreshold <= 0 {
		return fmt.Errorf("monitor.low_stock_threshold must be greater than zero")
	}
	if c.Monitor.FetchTimeout <= 0 {
		return fmt.Errorf("monitor.fetch_timeout must be greater than zero")
	}
	if c.Monitor.MaxConcurrentFetches <= 0 {
		return fmt.Errorf("monitor.max_concurrent_fetches must be greater than zero")
	}
	if c.Monitor.MaxResultsPerKeyword <= 0 {
		return fmt.Errorf("monitor.max_results_per_keyword must be greater than zero")
	}
	if c.Inventory.SearchURL == "" {
		return fmt.Errorf("inventory.search_url is required")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required when telegram.enabled is set")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
