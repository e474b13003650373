package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Auth       AuthConfig
	Storage    StorageConfig
	Tracing    TracingConfig `mapstructure:"tracing"`
	Redis      RedisConfig
	Cache      CacheConfig
	AI         AIConfig
	Generation GenerationConfig
	Progress   ProgressConfig
	Webhook    WebhookConfig
	TestBank   TestBankConfig  `mapstructure:"testbank"`
	CORS       CORSConfig      `mapstructure:"cors"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
	Log        LogConfig       `mapstructure:"log"`

	// runtime flags, set from the command line
	ForceMigrate bool `mapstructure:"-"`
	MigrateOnly  bool `mapstructure:"-"`
}

// LogConfig tunes the zap logger. An empty Level follows the server mode and an
// empty File disables the rotating file output.
type LogConfig struct {
	Service    string `mapstructure:"service"`
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Driver    string
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	SSLMode   string `mapstructure:"sslmode"`
	Charset   string
	ParseTime bool
	LogLevel  string `mapstructure:"log_level"`
}

// AuthConfig describes the identity provider tokens we accept.
type AuthConfig struct {
	JWTSecret   string   `mapstructure:"jwt_secret"`
	Audience    string   `mapstructure:"audience"`
	AdminEmails []string `mapstructure:"admin_emails"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	OSSEndpoint   string `mapstructure:"oss_endpoint"`
	OSSAccessKey  string `mapstructure:"oss_access_key"`
	OSSSecretKey  string `mapstructure:"oss_secret_key"`
	OSSBucket     string `mapstructure:"oss_bucket"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// CacheConfig controls the question cache. Type is "memory" or "redis".
type CacheConfig struct {
	Type       string        `mapstructure:"type"`
	TTLMinutes int           `mapstructure:"ttl_minutes"`
	TTL        time.Duration `mapstructure:"-"`
}

type AIConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	APIKey            string `mapstructure:"api_key"`
	Model             string `mapstructure:"model"`
	SearchModel       string `mapstructure:"search_model"`
	DraftTimeoutSec   int    `mapstructure:"draft_timeout_seconds"`
	SearchTimeoutSec  int    `mapstructure:"search_timeout_seconds"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
}

// GenerationConfig bounds the article generation pipeline.
type GenerationConfig struct {
	MinNotesChars int `mapstructure:"min_notes_chars"`
	MinWords      int `mapstructure:"min_words"`
	MaxWords      int `mapstructure:"max_words"`
	MaxExpansions int `mapstructure:"max_expansions"`
}

type ProgressConfig struct {
	FlushDelayMs int `mapstructure:"flush_delay_ms"`
}

func (p ProgressConfig) FlushDelay() time.Duration {
	return time.Duration(p.FlushDelayMs) * time.Millisecond
}

// WebhookConfig points at the spreadsheet-backed webhook used to schedule social posts.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Sheet   string `mapstructure:"sheet"`
	Queued  bool   `mapstructure:"queued"`
	SiteURL string `mapstructure:"site_url"`
}

type TestBankConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	TimeoutSec int    `mapstructure:"timeout_seconds"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.sslmode", "require")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parsetime", true)
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "uploads")
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl_minutes", 5)
	v.SetDefault("ai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.search_model", "gpt-4o-mini-search-preview")
	v.SetDefault("ai.draft_timeout_seconds", 30)
	v.SetDefault("ai.search_timeout_seconds", 45)
	v.SetDefault("ai.requests_per_minute", 30)
	v.SetDefault("generation.min_notes_chars", 200)
	v.SetDefault("generation.min_words", 600)
	v.SetDefault("generation.max_words", 1200)
	v.SetDefault("generation.max_expansions", 3)
	v.SetDefault("progress.flush_delay_ms", 2000)
	v.SetDefault("testbank.timeout_seconds", 15)
	v.SetDefault("rate_limit.max_requests", 600)
	v.SetDefault("rate_limit.window_minutes", 1)
	v.SetDefault("log.service", "exam-tracker")
	v.SetDefault("log.file", "logs/app.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("EXAM_TRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// Database
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// Identity provider
	v.BindEnv("auth.jwt_secret", "SUPABASE_JWT_SECRET")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	v.BindEnv("server.mode", "SERVER_MODE")
	v.BindEnv("log.level", "LOG_LEVEL")

	// AI
	v.BindEnv("ai.base_url", "OPENAI_BASE_URL")
	v.BindEnv("ai.api_key", "OPENAI_API_KEY")
	v.BindEnv("ai.model", "OPENAI_MODEL")

	// Storage
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.oss_endpoint", "OSS_ENDPOINT")
	v.BindEnv("storage.oss_access_key", "OSS_ACCESS_KEY")
	v.BindEnv("storage.oss_secret_key", "OSS_SECRET_KEY")
	v.BindEnv("storage.oss_bucket", "OSS_BUCKET")
	v.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	v.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Webhook / test bank
	v.BindEnv("webhook.url", "STEIN_WEBHOOK_URL")
	v.BindEnv("testbank.base_url", "TESTBANK_BASE_URL")
	v.BindEnv("testbank.api_key", "TESTBANK_API_KEY")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

func (c *Config) normalize() error {
	if c.Cache.TTLMinutes <= 0 {
		c.Cache.TTLMinutes = 5
	}
	c.Cache.TTL = time.Duration(c.Cache.TTLMinutes) * time.Minute

	if c.Generation.MinWords <= 0 || c.Generation.MaxWords < c.Generation.MinWords {
		return fmt.Errorf("generation word range is invalid: min=%d max=%d", c.Generation.MinWords, c.Generation.MaxWords)
	}
	if c.Generation.MaxExpansions < 0 {
		c.Generation.MaxExpansions = 0
	}

	if c.Database.Driver != "postgres" && c.Database.Driver != "mysql" {
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Server.Mode == "release" && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(c.Auth.JWTSecret))
	}
	return nil
}

// IsAdminEmail reports whether email is in the configured admin list.
func (a AuthConfig) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, e := range a.AdminEmails {
		if strings.ToLower(strings.TrimSpace(e)) == email {
			return true
		}
	}
	return false
}
