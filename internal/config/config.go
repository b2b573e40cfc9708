// Package config loads the service configuration.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. ALERTLEDGER_LEDGER_CAPACITY
const EnvPrefix = "ALERTLEDGER"

// Config is the root configuration
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Server  ServerConfig  `mapstructure:"server"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
	History HistoryConfig `mapstructure:"history"`
	NATS    NATSConfig    `mapstructure:"nats"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Alerts  AlertsConfig  `mapstructure:"alerts"`
	Log     LogConfig     `mapstructure:"log"`
}

type AppConfig struct {
	Name    string `mapstructure:"name" validate:"required"`
	Version string `mapstructure:"version"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

type LedgerConfig struct {
	Capacity         int `mapstructure:"capacity" validate:"gte=1,lte=1000000"`
	DefaultListLimit int `mapstructure:"default_list_limit" validate:"gte=1"`
}

// HistoryConfig configures the SQLite alert archive
type HistoryConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Path            string        `mapstructure:"path" validate:"required_if=Enabled true"`
	Retention       time.Duration `mapstructure:"retention" validate:"gte=0"`
	CleanupSchedule string        `mapstructure:"cleanup_schedule" validate:"required_if=Enabled true"`
}

type NATSConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	URL            string        `mapstructure:"url" validate:"required_if=Enabled true"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait" validate:"gte=0"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" validate:"gte=0"`
	ConnectRetries int           `mapstructure:"connect_retries" validate:"gte=1"`
}

// MetricsConfig configures host sampling and the simulated gauges
type MetricsConfig struct {
	CollectInterval time.Duration `mapstructure:"collect_interval" validate:"gt=0"`
	Simulate        bool          `mapstructure:"simulate"`
}

type AlertsConfig struct {
	StatsInterval time.Duration `mapstructure:"stats_interval" validate:"gt=0"`
}

type LogConfig struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Development bool   `mapstructure:"development"`
}

// Load reads configuration from path, or from ./config/config.yaml when path
// is empty, and applies environment overrides. A missing default file is not
// an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "demo-app")
	v.SetDefault("app.version", "1.0.0")

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 90*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("ledger.capacity", 1000)
	v.SetDefault("ledger.default_list_limit", 50)

	v.SetDefault("history.enabled", false)
	v.SetDefault("history.path", "alert_history.db")
	v.SetDefault("history.retention", 30*24*time.Hour)
	v.SetDefault("history.cleanup_schedule", "0 0 3 * * *")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", 2*time.Second)
	v.SetDefault("nats.connect_timeout", 5*time.Second)
	v.SetDefault("nats.connect_retries", 5)

	v.SetDefault("metrics.collect_interval", 15*time.Second)
	v.SetDefault("metrics.simulate", true)

	v.SetDefault("alerts.stats_interval", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}
