package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/amiyamandal-dev/feedsync/internal/domain"
	"github.com/amiyamandal-dev/feedsync/internal/validator"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig            `mapstructure:"server"`
	Database  DatabaseConfig          `mapstructure:"database"`
	Content   ContentConfig           `mapstructure:"content"`
	Search    SearchConfig            `mapstructure:"search"`
	Sync      SyncConfig              `mapstructure:"sync"`
	Logging   LoggingConfig           `mapstructure:"logging"`
	RateLimit RateLimitConfig         `mapstructure:"rate_limit"`
	Feeds     []domain.FeedDescriptor `mapstructure:"feeds"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns host:port
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig selects and configures the item store
type DatabaseConfig struct {
	Mode         string `mapstructure:"mode"` // memory, sqlite, badger
	Path         string `mapstructure:"path"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// ContentConfig configures item body loading
type ContentConfig struct {
	CacheCapacity     int           `mapstructure:"cache_capacity"`
	BodyCachePath     string        `mapstructure:"body_cache_path"` // empty disables the persistent tier
	BodyTTL           time.Duration `mapstructure:"body_ttl"`
	FetchTimeout      time.Duration `mapstructure:"fetch_timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// SearchConfig contains search index configuration
type SearchConfig struct {
	IndexPath string `mapstructure:"index_path"` // empty keeps the index in memory
}

// SyncConfig controls periodic synchronization
type SyncConfig struct {
	Interval time.Duration `mapstructure:"interval"` // 0 disables the loop
	Workers  int           `mapstructure:"workers"`
	OnStart  bool          `mapstructure:"on_start"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// RateLimitConfig limits API requests per client
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

// Load reads configuration. Priority: ENV vars > .env > config file > defaults.
// configFile may be empty, in which case config.yaml is looked up in
// ./configs and the working directory.
func Load(configFile string) (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.SetEnvPrefix("FEEDSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.path", "./data/feedsync.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("content.cache_capacity", 256)
	v.SetDefault("content.body_cache_path", "./data/bodies")
	v.SetDefault("content.body_ttl", "24h")
	v.SetDefault("content.fetch_timeout", "30s")
	v.SetDefault("content.requests_per_second", 5)
	v.SetDefault("content.burst", 10)

	v.SetDefault("search.index_path", "./data/search.bleve")

	v.SetDefault("sync.interval", "15m")
	v.SetDefault("sync.workers", 0)
	v.SetDefault("sync.on_start", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("rate_limit.requests_per_minute", 600)
	v.SetDefault("rate_limit.burst", 50)
}

func validate(cfg *Config) error {
	if cfg.Server.Mode != "debug" && cfg.Server.Mode != "release" {
		return fmt.Errorf("server.mode must be 'debug' or 'release', got: %s", cfg.Server.Mode)
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got: %d", cfg.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error, got: %s", cfg.Logging.Level)
	}

	if cfg.Logging.Format != "json" && cfg.Logging.Format != "text" {
		return fmt.Errorf("logging.format must be 'json' or 'text', got: %s", cfg.Logging.Format)
	}

	switch cfg.Database.Mode {
	case "memory":
	case "sqlite", "badger":
		if cfg.Database.Path == "" {
			return fmt.Errorf("database.path is required for %s mode", cfg.Database.Mode)
		}
	default:
		return fmt.Errorf("database.mode must be 'memory', 'sqlite' or 'badger', got: %s", cfg.Database.Mode)
	}

	if cfg.Content.CacheCapacity < 1 {
		return fmt.Errorf("content.cache_capacity must be positive, got: %d", cfg.Content.CacheCapacity)
	}

	if cfg.Content.RequestsPerSecond <= 0 {
		return fmt.Errorf("content.requests_per_second must be positive, got: %v", cfg.Content.RequestsPerSecond)
	}

	if cfg.Sync.Interval < 0 {
		return fmt.Errorf("sync.interval must not be negative, got: %s", cfg.Sync.Interval)
	}

	return validateFeeds(cfg.Feeds)
}

func validateFeeds(feeds []domain.FeedDescriptor) error {
	v := validator.New()
	seen := make(map[string]bool, len(feeds))

	for i := range feeds {
		feed := &feeds[i]
		if err := v.Validate(feed); err != nil {
			return fmt.Errorf("feeds[%d]: %w", i, err)
		}
		if err := feed.Validate(); err != nil {
			return fmt.Errorf("feeds[%d]: %w", i, err)
		}
		if seen[feed.Name] {
			return fmt.Errorf("feeds[%d]: duplicate feed name %q", i, feed.Name)
		}
		seen[feed.Name] = true
	}

	for i, feed := range feeds {
		refs := feed.Children
		if feed.Source != "" {
			refs = append(refs[:len(refs):len(refs)], feed.Source)
		}
		for _, ref := range refs {
			if !seen[ref] {
				return fmt.Errorf("feeds[%d]: %q refers to unknown feed %q", i, feed.Name, ref)
			}
		}
	}
	return nil
}
