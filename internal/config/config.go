package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	TV         TVConfig         `mapstructure:"tv"`
	YouTube    YouTubeConfig    `mapstructure:"youtube"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	ThemeCache ThemeCacheConfig `mapstructure:"theme_cache"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Alert      AlertConfig      `mapstructure:"alert"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Analytics  AnalyticsConfig  `mapstructure:"analytics"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// TVConfig defines how the television is polled
type TVConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	StatusPath    string `mapstructure:"status_path"`
	Timeout       string `mapstructure:"timeout"`
	PollInterval  string `mapstructure:"poll_interval"`
	AbsenceTicks  int    `mapstructure:"absence_ticks"`  // consecutive "nothing playing" polls before a session ends
	OutageTimeout string `mapstructure:"outage_timeout"` // sustained poll failures before a session ends
}

// YouTubeConfig defines the video metadata API
type YouTubeConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Timeout string `mapstructure:"timeout"`
}

// ClassifierConfig selects and configures the theme classifier
type ClassifierConfig struct {
	Backend       string              `mapstructure:"backend"` // "llm", "keyword" or "noop"
	APIKey        string              `mapstructure:"api_key"`
	BaseURL       string              `mapstructure:"base_url"`
	Model         string              `mapstructure:"model"`
	Timeout       string              `mapstructure:"timeout"`
	RetryAttempts int                 `mapstructure:"retry_attempts"`
	Keywords      map[string][]string `mapstructure:"keywords"`
}

// ThemeCacheConfig defines classification cache behaviour
type ThemeCacheConfig struct {
	TTL  string `mapstructure:"ttl"` // "0" disables expiry
	Size int    `mapstructure:"size"`
}

// LedgerConfig defines watch-time accounting
type LedgerConfig struct {
	Limits             map[string]string `mapstructure:"limits"`      // theme -> "30m" or seconds
	TotalLimit         string            `mapstructure:"total_limit"` // across all themes, empty for none
	ResetCadence       string            `mapstructure:"reset_cadence"`
	ResetTime          string            `mapstructure:"reset_time"`
	WeekStart          string            `mapstructure:"week_start"`
	Timezone           string            `mapstructure:"timezone"`
	MaxSessionDuration string            `mapstructure:"max_session_duration"`
	PersistRetries     int               `mapstructure:"persist_retries"`
}

// AlertConfig defines alert dispatch and speech output
type AlertConfig struct {
	Cooldown string       `mapstructure:"cooldown"`
	Speech   SpeechConfig `mapstructure:"speech"`
}

// SpeechConfig defines the speech output collaborator
type SpeechConfig struct {
	Backend string   `mapstructure:"backend"` // "command" or "console"
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
	Timeout string   `mapstructure:"timeout"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type             string       `mapstructure:"type"` // "sqlite" or "redis"
	LockPath         string       `mapstructure:"lock_path"`
	SessionRetention string       `mapstructure:"session_retention"`
	SQLite           SQLiteConfig `mapstructure:"sqlite"`
	Redis            RedisConfig  `mapstructure:"redis"`
}

// SQLiteConfig defines the embedded database
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// AnalyticsConfig defines optional session export
type AnalyticsConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
}

// KafkaConfig defines the Kafka session publisher
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	Acks    int      `mapstructure:"acks"`
}

// MetricsConfig defines the Prometheus endpoint
type MetricsConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	BindAddress string `mapstructure:"bind_address"`
	Port        int    `mapstructure:"port"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json", "text" or "auto"
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	SetDefaults(v)

	// Configure viper
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("TVBUDGET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Defaults returns a configuration populated only with default values
func Defaults() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// SetDefaults sets default configuration values
func SetDefaults(v *viper.Viper) {
	// TV defaults
	v.SetDefault("tv.host", "")
	v.SetDefault("tv.port", 8001)
	v.SetDefault("tv.status_path", "/api/v2/applications/status")
	v.SetDefault("tv.timeout", "3s")
	v.SetDefault("tv.poll_interval", "5s")
	v.SetDefault("tv.absence_ticks", 3)
	v.SetDefault("tv.outage_timeout", "2m")

	// YouTube defaults
	v.SetDefault("youtube.api_key", "")
	v.SetDefault("youtube.base_url", "https://www.googleapis.com/youtube/v3")
	v.SetDefault("youtube.timeout", "5s")

	// Classifier defaults
	v.SetDefault("classifier.backend", "llm")
	v.SetDefault("classifier.api_key", "")
	v.SetDefault("classifier.base_url", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("classifier.model", "gpt-4o-mini")
	v.SetDefault("classifier.timeout", "10s")
	v.SetDefault("classifier.retry_attempts", 3)

	// Theme cache defaults
	v.SetDefault("theme_cache.ttl", "720h")
	v.SetDefault("theme_cache.size", 1024)

	// Ledger defaults
	v.SetDefault("ledger.total_limit", "")
	v.SetDefault("ledger.reset_cadence", "daily")
	v.SetDefault("ledger.reset_time", "00:00")
	v.SetDefault("ledger.week_start", "monday")
	v.SetDefault("ledger.timezone", "Local")
	v.SetDefault("ledger.max_session_duration", "12h")
	v.SetDefault("ledger.persist_retries", 3)

	// Alert defaults
	v.SetDefault("alert.cooldown", "10m")
	v.SetDefault("alert.speech.backend", "command")
	v.SetDefault("alert.speech.command", "espeak")
	v.SetDefault("alert.speech.args", []string{"-s", "150"})
	v.SetDefault("alert.speech.timeout", "30s")

	// Storage defaults
	v.SetDefault("storage.type", "sqlite")
	v.SetDefault("storage.lock_path", "/var/lib/tvbudget/tvbudget.lock")
	v.SetDefault("storage.session_retention", "2160h")
	v.SetDefault("storage.sqlite.path", "/var/lib/tvbudget/tvbudget.db")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Analytics defaults
	v.SetDefault("analytics.kafka.enabled", false)
	v.SetDefault("analytics.kafka.brokers", []string{})
	v.SetDefault("analytics.kafka.topic", "tvbudget.sessions")
	v.SetDefault("analytics.kafka.acks", 1)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.bind_address", "127.0.0.1")
	v.SetDefault("metrics.port", 9090)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.TV.Port <= 0 || cfg.TV.Port > 65535 {
		return fmt.Errorf("invalid TV port: %d", cfg.TV.Port)
	}
	if cfg.TV.AbsenceTicks < 1 {
		return fmt.Errorf("tv.absence_ticks must be at least 1, got %d", cfg.TV.AbsenceTicks)
	}

	for key, value := range map[string]string{
		"tv.timeout":                  cfg.TV.Timeout,
		"tv.poll_interval":            cfg.TV.PollInterval,
		"tv.outage_timeout":           cfg.TV.OutageTimeout,
		"youtube.timeout":             cfg.YouTube.Timeout,
		"classifier.timeout":          cfg.Classifier.Timeout,
		"theme_cache.ttl":             cfg.ThemeCache.TTL,
		"ledger.max_session_duration": cfg.Ledger.MaxSessionDuration,
		"alert.cooldown":              cfg.Alert.Cooldown,
		"alert.speech.timeout":        cfg.Alert.Speech.Timeout,
		"storage.session_retention":   cfg.Storage.SessionRetention,
		"storage.redis.dial_timeout":  cfg.Storage.Redis.DialTimeout,
		"storage.redis.read_timeout":  cfg.Storage.Redis.ReadTimeout,
		"storage.redis.write_timeout": cfg.Storage.Redis.WriteTimeout,
	} {
		if _, err := ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	if d, _ := ParseDuration(cfg.TV.PollInterval); d <= 0 {
		return fmt.Errorf("tv.poll_interval must be positive")
	}

	switch strings.ToLower(cfg.Classifier.Backend) {
	case "llm", "keyword", "noop":
	default:
		return fmt.Errorf("unsupported classifier backend: %s (must be llm, keyword or noop)", cfg.Classifier.Backend)
	}

	switch strings.ToLower(cfg.Ledger.ResetCadence) {
	case "daily", "weekly", "none":
	default:
		return fmt.Errorf("unsupported reset cadence: %s (must be daily, weekly or none)", cfg.Ledger.ResetCadence)
	}

	if _, err := ParseLimits(cfg.Ledger.Limits); err != nil {
		return err
	}
	if _, err := ParseTotalLimit(cfg.Ledger.TotalLimit); err != nil {
		return err
	}

	switch strings.ToLower(cfg.Alert.Speech.Backend) {
	case "command", "console":
	default:
		return fmt.Errorf("unsupported speech backend: %s (must be command or console)", cfg.Alert.Speech.Backend)
	}

	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "sqlite"
	}
	switch cfg.Storage.Type {
	case "sqlite":
		if cfg.Storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path is required")
		}
	case "redis":
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("storage.redis.host is required")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s (must be sqlite or redis)", cfg.Storage.Type)
	}

	if cfg.Analytics.Kafka.Enabled && len(cfg.Analytics.Kafka.Brokers) == 0 {
		return fmt.Errorf("analytics.kafka.brokers is required when kafka is enabled")
	}

	if cfg.Metrics.Enabled && (cfg.Metrics.Port <= 0 || cfg.Metrics.Port > 65535) {
		return fmt.Errorf("invalid metrics port: %d", cfg.Metrics.Port)
	}

	return nil
}

// EnsureStateDirs creates the directories holding the database and lock file
func EnsureStateDirs(cfg *Config) error {
	dirs := []string{filepath.Dir(cfg.Storage.LockPath)}
	if cfg.Storage.Type == "sqlite" {
		dirs = append(dirs, filepath.Dir(cfg.Storage.SQLite.Path))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create state directory %s: %w", dir, err)
		}
	}
	return nil
}
