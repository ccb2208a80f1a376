// Package config provides configuration management for the alert engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Scheduler     SchedulerConfig    `mapstructure:"scheduler"`
	Store         StoreConfig        `mapstructure:"store"`
	Feed          FeedConfig         `mapstructure:"feed"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Metrics       MetricsConfig      `mapstructure:"metrics"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// SchedulerConfig holds recurrence scheduler configuration.
// The tick interval only bounds evaluation latency; due times are computed
// from absolute timestamps and are unaffected by it.
type SchedulerConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	FeedTimeout time.Duration `mapstructure:"feed_timeout"`
	Workers     int           `mapstructure:"workers"`
}

// StoreConfig holds persistence configuration.
type StoreConfig struct {
	Backend string `mapstructure:"backend"` // "sqlite", "postgres"
	Path    string `mapstructure:"path"`    // sqlite database file
	DSN     string `mapstructure:"dsn"`     // postgres connection string
}

// FeedConfig holds metric feed configuration.
type FeedConfig struct {
	CryptoBaseURL string        `mapstructure:"crypto_base_url"`
	StockBaseURL  string        `mapstructure:"stock_base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetries    int           `mapstructure:"max_retries"`
}

// MetricsConfig holds Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

// NotificationConfig holds notification configuration.
type NotificationConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
}

// WebhookConfig holds webhook notification configuration.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// KafkaConfig holds Kafka trigger-event publishing configuration.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/alertd"
	}
	return filepath.Join(home, ".config", "alertd")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	setDefaults(v, configDir)

	v.SetEnvPrefix("ALERTD")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("scheduler.interval", "60s")
	v.SetDefault("scheduler.feed_timeout", "10s")
	v.SetDefault("scheduler.workers", 8)

	v.SetDefault("store.backend", "sqlite")
	v.SetDefault("store.path", filepath.Join(configDir, "alerts.db"))

	v.SetDefault("feed.crypto_base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("feed.stock_base_url", "https://query1.finance.yahoo.com/v8/finance")
	v.SetDefault("feed.timeout", "8s")
	v.SetDefault("feed.max_retries", 2)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_addr", ":9180")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.file_path", filepath.Join(configDir, "logs", "alertd.log"))
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 7)
	v.SetDefault("logging.max_age", 30)

	v.SetDefault("notifications.enabled", true)
	v.SetDefault("notifications.kafka.topic", "alert-triggers")
}

func (c *Config) validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive")
	}
	if c.Scheduler.FeedTimeout <= 0 {
		return fmt.Errorf("scheduler.feed_timeout must be positive")
	}
	if c.Scheduler.Workers <= 0 {
		return fmt.Errorf("scheduler.workers must be positive")
	}
	switch c.Store.Backend {
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite backend")
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	return nil
}
