package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"b3-alerts/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Market   MarketConfig   `mapstructure:"market"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Report   ReportConfig   `mapstructure:"report"`
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
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// MonitorConfig governs the evaluation loop cadence and limits.
type MonitorConfig struct {
	Interval          time.Duration `mapstructure:"interval"`
	FetchTimeout      time.Duration `mapstructure:"fetch_timeout"`
	OracleWorkers     int           `mapstructure:"oracle_workers"`
	CoverageThreshold float64       `mapstructure:"coverage_threshold"`
	DispatchTimeout   time.Duration `mapstructure:"dispatch_timeout"`
}

// MarketConfig captures the quote provider connectivity.
type MarketConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	HistoryWindow  int           `mapstructure:"history_window"`
}

// TelegramConfig 描述 Telegram Bot 接入参数。
type TelegramConfig struct {
	BotToken    string        `mapstructure:"bot_token"`
	AdminChatID int64         `mapstructure:"admin_chat_id"`
	APIBase     string        `mapstructure:"api_base"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
	SendTimeout time.Duration `mapstructure:"send_timeout"`
}

// ReportConfig schedules the daily closing-quote digest.
type ReportConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	FireTime string `mapstructure:"fire_time"`
	Timezone string `mapstructure:"timezone"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("B3ALERTS")
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
	v.SetDefault("app.name", "b3alerts")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 7)
	v.SetDefault("logging.max_age_days", 30)

	v.SetDefault("monitor.interval", "20m")
	v.SetDefault("monitor.fetch_timeout", "10s")
	v.SetDefault("monitor.oracle_workers", 4)
	v.SetDefault("monitor.coverage_threshold", 0.5)
	v.SetDefault("monitor.dispatch_timeout", "5s")

	v.SetDefault("market.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("market.request_timeout", "10s")
	v.SetDefault("market.user_agent", "b3alerts/1.0")
	v.SetDefault("market.history_window", 2)

	v.SetDefault("telegram.api_base", "https://api.telegram.org")
	v.SetDefault("telegram.poll_timeout", "30s")
	v.SetDefault("telegram.send_timeout", "10s")

	v.SetDefault("report.enabled", true)
	v.SetDefault("report.fire_time", "17:30")
	v.SetDefault("report.timezone", "America/Sao_Paulo")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
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

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be greater than zero")
	}
	if c.Monitor.CoverageThreshold < 0 || c.Monitor.CoverageThreshold > 1 {
		return fmt.Errorf("monitor.coverage_threshold must be within [0, 1]")
	}
	if c.Monitor.OracleWorkers <= 0 {
		return fmt.Errorf("monitor.oracle_workers must be greater than zero")
	}
	if c.Monitor.DispatchTimeout <= 0 {
		return fmt.Errorf("monitor.dispatch_timeout must be greater than zero")
	}
	if c.Report.Enabled {
		if _, err := ParseFireTime(c.Report.FireTime); err != nil {
			return fmt.Errorf("report.fire_time: %w", err)
		}
		if _, err := time.LoadLocation(c.Report.Timezone); err != nil {
			return fmt.Errorf("report.timezone: %w", err)
		}
	}
	return nil
}

// ParseFireTime parses an "HH:MM" clock value.
func ParseFireTime(value string) (time.Duration, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", value)
	}
	return time.Duration(parsed.Hour())*time.Hour + time.Duration(parsed.Minute())*time.Minute, nil
}
