// Package config loads runtime settings from defaults, an optional config
// file and ENTITLE_-prefixed environment variables, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, so amqp.url is read from
// ENTITLE_AMQP_URL.
const EnvPrefix = "ENTITLE"

// Config holds all runtime settings.
type Config struct {
	// Database is the SQLite journal path. Empty disables journaling.
	Database string `mapstructure:"database"`

	// Catalog is the CUE product catalog path.
	Catalog string `mapstructure:"catalog"`

	HTTPAddr         string `mapstructure:"http_addr"`
	SubscriberBuffer int    `mapstructure:"subscriber_buffer"`
	LogLevel         string `mapstructure:"log_level"`

	AMQP AMQP `mapstructure:"amqp"`
}

// AMQP configures the broker-backed update stream. An empty URL means the
// listener reads from a fixture file instead.
type AMQP struct {
	URL        string `mapstructure:"url"`
	Exchange   string `mapstructure:"exchange"`
	Queue      string `mapstructure:"queue"`
	RoutingKey string `mapstructure:"routing_key"`
	Prefetch   int    `mapstructure:"prefetch"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database", "")
	v.SetDefault("catalog", "")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("subscriber_buffer", 64)
	v.SetDefault("log_level", "info")
	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "storefront")
	v.SetDefault("amqp.queue", "entitle.transactions")
	v.SetDefault("amqp.routing_key", "transaction.#")
	v.SetDefault("amqp.prefetch", 16)
}

// Load reads configuration. path may be empty, in which case only defaults
// and the environment apply. The file format follows the extension.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail far from their source.
func (c Config) Validate() error {
	var errs []error
	if c.SubscriberBuffer < 1 {
		errs = append(errs, fmt.Errorf("subscriber_buffer must be positive, got %d", c.SubscriberBuffer))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if c.AMQP.URL != "" {
		if c.AMQP.Queue == "" {
			errs = append(errs, errors.New("amqp.queue is required when amqp.url is set"))
		}
		if c.AMQP.Prefetch < 0 {
			errs = append(errs, fmt.Errorf("amqp.prefetch must not be negative, got %d", c.AMQP.Prefetch))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}
