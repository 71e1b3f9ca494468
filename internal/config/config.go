package config

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Remote     RemoteConfig     `yaml:"remote" mapstructure:"remote"`
	Dock       DockConfig       `yaml:"dock" mapstructure:"dock"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	People     PeopleConfig     `yaml:"people" mapstructure:"people"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the deal document backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// RemoteConfig configures the HTTP document store client used when
// store.driver is "remote".
type RemoteConfig struct {
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	Token          string  `yaml:"token" mapstructure:"token"`
	RateLimit      float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	RetryAttempts  int     `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoffMs int     `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// DockConfig tunes the review board loop.
type DockConfig struct {
	DebounceMs       int `yaml:"debounce_ms" mapstructure:"debounce_ms"`
	IntervalSecs     int `yaml:"interval_secs" mapstructure:"interval_secs"`
	ProcessedTTLSecs int `yaml:"processed_ttl_secs" mapstructure:"processed_ttl_secs"`
	AdvanceLimit     int `yaml:"advance_limit" mapstructure:"advance_limit"`
	DowngradeLimit   int `yaml:"downgrade_limit" mapstructure:"downgrade_limit"`
	ConflictLimit    int `yaml:"conflict_limit" mapstructure:"conflict_limit"`
}

// RedisConfig configures the shared processed cache. When disabled each
// process keeps its own in-memory cache.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
	Prefix   string `yaml:"prefix" mapstructure:"prefix"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// PeopleConfig points at the staff directory file.
type PeopleConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// MonitoringConfig configures board health alerts.
type MonitoringConfig struct {
	WebhookURL         string `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureThreshold   int    `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	StaleIncomingHours int    `yaml:"stale_incoming_hours" mapstructure:"stale_incoming_hours"`
	CooldownSecs       int    `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Format     string `yaml:"format" mapstructure:"format"`
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
}

// Load reads configuration from .env, the config file and the environment.
func Load() (*Config, error) {
	// .env values land in the process environment without overriding
	// variables that are already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DEALDOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "dealdock.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("remote.rate_limit", 10.0)
	v.SetDefault("remote.retry_attempts", 3)
	v.SetDefault("remote.retry_backoff_ms", 200)
	v.SetDefault("remote.timeout_secs", 15)
	v.SetDefault("dock.debounce_ms", 250)
	v.SetDefault("dock.interval_secs", 30)
	v.SetDefault("dock.processed_ttl_secs", 10)
	v.SetDefault("dock.advance_limit", 1)
	v.SetDefault("dock.downgrade_limit", 1)
	v.SetDefault("dock.conflict_limit", 8)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.prefix", "dealdock:processed")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("monitoring.failure_threshold", 3)
	v.SetDefault("monitoring.stale_incoming_hours", 72)
	v.SetDefault("monitoring.cooldown_secs", 900)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 28)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings every command depends on. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite":
		if strings.TrimSpace(c.Store.SQLitePath) == "" {
			errs = append(errs, "store.sqlite_path is required for the sqlite driver")
		}
	case "postgres":
		if strings.TrimSpace(c.Store.DatabaseURL) == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	case "remote":
		if strings.TrimSpace(c.Remote.BaseURL) == "" {
			errs = append(errs, "remote.base_url is required for the remote driver")
		}
		if c.Remote.RetryAttempts < 1 || c.Remote.RetryAttempts > 10 {
			errs = append(errs, "remote.retry_attempts must be between 1 and 10")
		}
	default:
		errs = append(errs, "store.driver must be one of sqlite, postgres, remote")
	}

	if c.Dock.AdvanceLimit < 1 || c.Dock.DowngradeLimit < 1 || c.Dock.ConflictLimit < 1 {
		errs = append(errs, "dock limits must be >= 1")
	}
	if c.Dock.DebounceMs < 0 || c.Dock.IntervalSecs < 0 || c.Dock.ProcessedTTLSecs < 0 {
		errs = append(errs, "dock durations must be >= 0")
	}
	if c.Redis.Enabled && strings.TrimSpace(c.Redis.Addr) == "" {
		errs = append(errs, "redis.addr is required when redis is enabled")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be > 0 and <= 65535")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger. When cfg.File is set, log
// lines go to that file and it is rotated by size.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	if cfg.File == "" {
		logger, err := zapCfg.Build()
		if err != nil {
			return eris.Wrap(err, "config: build logger")
		}
		zap.ReplaceGlobals(logger)
		return nil
	}

	var enc zapcore.Encoder
	if cfg.Format == "console" {
		enc = zapcore.NewConsoleEncoder(zapCfg.EncoderConfig)
	} else {
		enc = zapcore.NewJSONEncoder(zapCfg.EncoderConfig)
	}
	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	})
	core := zapcore.NewCore(enc, sink, zapCfg.Level)
	zap.ReplaceGlobals(zap.New(core, zap.AddCaller()))
	return nil
}
