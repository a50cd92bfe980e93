package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Triggers  TriggersConfig  `mapstructure:"triggers"`
	Cache     CacheConfig     `mapstructure:"cache"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Workers   WorkersConfig   `mapstructure:"workers"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	// URL is a sqlite path (optionally prefixed with file:) or a postgres:// URL.
	URL            string `mapstructure:"url"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type JWTConfig struct {
	Secret         string        `mapstructure:"secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
	CookieSecure   bool          `mapstructure:"cookie_secure"`
}

// WebhookConfig covers inbound n8n deliveries.
type WebhookConfig struct {
	Secret string `mapstructure:"secret"`
}

// TriggersConfig covers outbound run/stop calls to n8n.
type TriggersConfig struct {
	SigningSecret string        `mapstructure:"signing_secret"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryCount    int           `mapstructure:"retry_count"`
}

type CacheConfig struct {
	AutomationsTTL time.Duration `mapstructure:"automations_ttl"`
	MaxEntries     int           `mapstructure:"max_entries"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	WebhookPerMinute int `mapstructure:"webhook_per_minute"`
	LoginPerMinute   int `mapstructure:"login_per_minute"`
}

type WorkersConfig struct {
	StalledSchedule   string        `mapstructure:"stalled_schedule"`
	StalledAfter      time.Duration `mapstructure:"stalled_after"`
	RetentionSchedule string        `mapstructure:"retention_schedule"`
	RunRetention      time.Duration `mapstructure:"run_retention"`
	MetricsAddr       string        `mapstructure:"metrics_addr"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("database.url", "file:data/controlhub.db")
	v.SetDefault("database.max_connections", 10)

	// Secrets have empty defaults so AutomaticEnv can still bind them.
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.access_token_ttl", 12*time.Hour)
	v.SetDefault("jwt.cookie_secure", false)
	v.SetDefault("webhook.secret", "")
	v.SetDefault("triggers.signing_secret", "")
	v.SetDefault("cors.allowed_origins", []string{})

	v.SetDefault("triggers.timeout", 10*time.Second)
	v.SetDefault("triggers.retry_count", 2)

	v.SetDefault("cache.automations_ttl", 60*time.Second)
	v.SetDefault("cache.max_entries", 1024)

	v.SetDefault("rate_limit.webhook_per_minute", 600)
	v.SetDefault("rate_limit.login_per_minute", 20)

	v.SetDefault("workers.stalled_schedule", "@every 5m")
	v.SetDefault("workers.stalled_after", 2*time.Hour)
	v.SetDefault("workers.retention_schedule", "@daily")
	v.SetDefault("workers.run_retention", 90*24*time.Hour)
	v.SetDefault("workers.metrics_addr", ":9091")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// Load reads the YAML file at path (if it exists), a local .env file and
// environment overrides such as WEBHOOK_SECRET or DATABASE_URL.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the settings the HTTP server cannot run without. Load does
// not call it so that hubctl can run migrations without secrets configured.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required")
	}
	if c.Webhook.Secret == "" {
		return errors.New("webhook.secret is required")
	}
	return nil
}
