// Package config loads service configuration from the environment and an
// optional config file. Note the split of responsibilities: this package
// carries the process-level knobs (addresses, drivers, buffer sizes), while
// the platform's operator-editable settings live behind the settings
// resolver with its own override layering.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const envPrefix = "STREAM"

type Config struct {
	ListenAddr string `mapstructure:"listen_addr"`
	LogLevel   string `mapstructure:"log_level"`

	// BusDriver selects the Bus implementation: memory, redis or amqp.
	BusDriver string `mapstructure:"bus_driver"`
	RedisAddr string `mapstructure:"redis_addr"`
	AMQPURL   string `mapstructure:"amqp_url"`

	// DatabaseURL backs the settings override store; empty means the
	// in-memory store (single node, non-persistent).
	DatabaseURL string `mapstructure:"database_url"`

	// AppSecretKey signs and verifies the platform's JWTs.
	AppSecretKey string `mapstructure:"app_secret_key"`

	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	SessionBuffer     int           `mapstructure:"session_buffer"`

	SettingsCacheTTL time.Duration `mapstructure:"settings_cache_ttl"`

	v *viper.Viper
}

// LoadConfig reads the environment (STREAM_* variables) layered over an
// optional config file passed via configFile (empty means no file).
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("listen_addr", ":8090")
	v.SetDefault("log_level", "info")
	v.SetDefault("bus_driver", "memory")
	v.SetDefault("redis_addr", "")
	v.SetDefault("amqp_url", "")
	v.SetDefault("database_url", "")
	v.SetDefault("app_secret_key", "")
	v.SetDefault("heartbeat_interval", 30*time.Second)
	v.SetDefault("session_buffer", 256)
	v.SetDefault("settings_cache_ttl", time.Minute)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}

	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.BusDriver {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("config: bus_driver=redis requires redis_addr")
		}
	case "amqp":
		if c.AMQPURL == "" {
			return fmt.Errorf("config: bus_driver=amqp requires amqp_url")
		}
	default:
		return fmt.Errorf("config: unknown bus_driver %q", c.BusDriver)
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("config: heartbeat_interval must be positive")
	}
	return nil
}

// Watch logs config file changes while the process runs. Keys that require a
// restart keep their boot-time values; the log line is the operator's cue.
func (c *Config) Watch(logger *slog.Logger) {
	if c.v.ConfigFileUsed() == "" {
		return
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		logger.Info("config file changed, restart to apply", "file", e.Name, "op", e.Op.String())
	})
	c.v.WatchConfig()
}

func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
