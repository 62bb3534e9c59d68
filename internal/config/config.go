package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/jwalitptl/care-portal/pkg/messaging/redis"
)

// EnvPrefix is the prefix of environment overrides, e.g. PORTAL_BACKEND_URL.
const EnvPrefix = "PORTAL"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Backend   BackendConfig   `mapstructure:"backend"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Confirm   ConfirmConfig   `mapstructure:"confirm"`
	Scan      ScanConfig      `mapstructure:"scan"`
	Chatbot   ChatbotConfig   `mapstructure:"chatbot"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Log       LogConfig       `mapstructure:"log"`
	Timezone  string          `mapstructure:"timezone" envconfig:"TIMEZONE"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port" envconfig:"PORT"`
	Mode           string        `mapstructure:"mode" envconfig:"MODE"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	AnalyzeTimeout time.Duration `mapstructure:"analyze_timeout" envconfig:"ANALYZE_TIMEOUT"`
	MaxUploadMB    int64         `mapstructure:"max_upload_mb" envconfig:"MAX_UPLOAD_MB"`
}

type BackendConfig struct {
	URL             string        `mapstructure:"url" envconfig:"URL"`
	Timeout         time.Duration `mapstructure:"timeout" envconfig:"TIMEOUT"`
	BreakerFailures int           `mapstructure:"breaker_failures" envconfig:"BREAKER_FAILURES"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout" envconfig:"BREAKER_TIMEOUT"`
}

type JWTConfig struct {
	// Secret verifies the HMAC signature of bearer tokens. The API refuses
	// to start without it.
	Secret string `mapstructure:"secret" envconfig:"SECRET"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host" envconfig:"HOST"`
	Port     int    `mapstructure:"port" envconfig:"PORT"`
	User     string `mapstructure:"user" envconfig:"USER"`
	Password string `mapstructure:"password" envconfig:"PASSWORD"`
	Name     string `mapstructure:"name" envconfig:"NAME"`
	SSLMode  string `mapstructure:"sslmode" envconfig:"SSLMODE"`
}

// Enabled reports whether an audit database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type RedisConfig struct {
	URL           string        `mapstructure:"url" envconfig:"URL"`
	MaxRetries    int           `mapstructure:"max_retries" envconfig:"MAX_RETRIES"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff" envconfig:"RETRY_BACKOFF"`
	PoolSize      int           `mapstructure:"pool_size" envconfig:"POOL_SIZE"`
	MinIdleConns  int           `mapstructure:"min_idle_conns" envconfig:"MIN_IDLE_CONNS"`
	ChannelPrefix string        `mapstructure:"channel_prefix" envconfig:"CHANNEL_PREFIX"`
}

func (c RedisConfig) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.URL,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled" envconfig:"ENABLED"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" envconfig:"REQUESTS_PER_SECOND"`
	Burst             int     `mapstructure:"burst" envconfig:"BURST"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	AllowedMethods []string `mapstructure:"allowed_methods" envconfig:"ALLOWED_METHODS"`
	AllowedHeaders []string `mapstructure:"allowed_headers" envconfig:"ALLOWED_HEADERS"`
}

type ConfirmConfig struct {
	TTL time.Duration `mapstructure:"ttl" envconfig:"TTL"`
}

type ScanConfig struct {
	IdleTTL time.Duration `mapstructure:"idle_ttl" envconfig:"IDLE_TTL"`
	// ViewTTL is how long an idle pharmacy view keeps its pending list.
	ViewTTL time.Duration `mapstructure:"view_ttl" envconfig:"VIEW_TTL"`
}

type ChatbotConfig struct {
	TranscriptTTL time.Duration `mapstructure:"transcript_ttl" envconfig:"TRANSCRIPT_TTL"`
	// TranscriptKey seals transcripts at rest in Redis.
	TranscriptKey string `mapstructure:"transcript_key" envconfig:"TRANSCRIPT_KEY"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host" envconfig:"HOST"`
	Port     int    `mapstructure:"port" envconfig:"PORT"`
	Username string `mapstructure:"username" envconfig:"USERNAME"`
	Password string `mapstructure:"password" envconfig:"PASSWORD"`
	From     string `mapstructure:"from" envconfig:"FROM"`
	AlertTo  string `mapstructure:"alert_to" envconfig:"ALERT_TO"`
}

type WorkerConfig struct {
	LowStockInterval     time.Duration `mapstructure:"low_stock_interval" envconfig:"LOW_STOCK_INTERVAL"`
	AuditRetentionDays   int           `mapstructure:"audit_retention_days" envconfig:"AUDIT_RETENTION_DAYS"`
	AuditCleanupInterval time.Duration `mapstructure:"audit_cleanup_interval" envconfig:"AUDIT_CLEANUP_INTERVAL"`
	// ServiceToken is the backend bearer token the workers call with.
	ServiceToken string `mapstructure:"service_token" envconfig:"SERVICE_TOKEN"`
	ServiceEmail string `mapstructure:"service_email" envconfig:"SERVICE_EMAIL"`
	HealthPort   int    `mapstructure:"health_port" envconfig:"HEALTH_PORT"`
}

type LogConfig struct {
	Level   string `mapstructure:"level" envconfig:"LEVEL"`
	Console bool   `mapstructure:"console" envconfig:"CONSOLE"`
}

// Location resolves Timezone, defaulting to the host's local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.request_timeout", 45*time.Second)
	v.SetDefault("server.analyze_timeout", 2*time.Minute)
	v.SetDefault("server.max_upload_mb", 25)

	v.SetDefault("backend.url", "http://localhost:5000")
	v.SetDefault("backend.timeout", 30*time.Second)
	v.SetDefault("backend.breaker_failures", 5)
	v.SetDefault("backend.breaker_timeout", 10*time.Second)

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.channel_prefix", "portal.")

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.requests_per_second", 20.0)
	v.SetDefault("ratelimit.burst", 40)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"})

	v.SetDefault("confirm.ttl", 2*time.Minute)
	v.SetDefault("scan.idle_ttl", 5*time.Minute)
	v.SetDefault("scan.view_ttl", 30*time.Minute)
	v.SetDefault("chatbot.transcript_ttl", 24*time.Hour)

	v.SetDefault("smtp.port", 587)

	v.SetDefault("worker.low_stock_interval", 15*time.Minute)
	v.SetDefault("worker.audit_retention_days", 90)
	v.SetDefault("worker.audit_cleanup_interval", 24*time.Hour)
	v.SetDefault("worker.health_port", 8081)

	v.SetDefault("log.level", "info")
	v.SetDefault("timezone", "Local")
}

// LoadConfig reads .env, then config.yml (from path, or ., ./config and
// /app/config), then PORTAL_* environment overrides. A missing file is not
// an error; defaults apply.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app/config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return errors.New("backend.url is required")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	if c.Redis.URL != "" && c.Chatbot.TranscriptKey == "" {
		return errors.New("chatbot.transcript_key is required when redis is configured")
	}
	return nil
}

// ValidateAPI adds the checks only the HTTP server needs.
func (c *Config) ValidateAPI() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required")
	}
	return nil
}
