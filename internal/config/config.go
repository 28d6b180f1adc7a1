package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for a cachewatch process.
type Config struct {
	Log      LogConfig
	Run      RunConfig
	Database DatabaseConfig
	Email    EmailConfig
	Notifier NotifierConfig
	State    StateConfig
}

type LogConfig struct {
	Level string
}

type RunConfig struct {
	Timeout  time.Duration
	Interval time.Duration
	Addr     string
}

// DatabaseConfig describes the database holding the monitored failure table.
// URL wins over the discrete fields when both are set.
type DatabaseConfig struct {
	URL          string
	User         string
	Password     string
	Server       string
	Port         string
	Name         string
	SSLMode      string
	Table        string
	QueryTimeout time.Duration
}

type EmailConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	From      string
	Recipient string
	Timeout   time.Duration
}

type NotifierConfig struct {
	Kind           string
	WebhookURL     string
	WebhookTimeout time.Duration
}

type StateConfig struct {
	Backend     string
	File        string
	Key         string
	DatabaseURL string
	RedisURL    string
}

const (
	NotifierSMTP    = "smtp"
	NotifierWebhook = "webhook"

	StateFile     = "file"
	StateRedis    = "redis"
	StatePostgres = "postgres"
)

var validNotifiers = map[string]bool{
	NotifierSMTP:    true,
	NotifierWebhook: true,
}

var validStateBackends = map[string]bool{
	StateFile:     true,
	StateRedis:    true,
	StatePostgres: true,
}

var reTableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Load reads configuration from environment variables and returns a validated Config.
// A .env file (path from CACHEWATCH_ENV_FILE, default ".env") is read first when it
// exists; variables already present in the environment take precedence.
func Load() (*Config, error) {
	envFile := envString("CACHEWATCH_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := &Config{
		Log: LogConfig{
			Level: envString("LOG_LEVEL", "info"),
		},
		Run: RunConfig{
			Timeout:  envDuration("RUN_TIMEOUT", 2*time.Minute),
			Interval: envDuration("CACHEWATCH_INTERVAL", 15*time.Minute),
			Addr:     envString("CACHEWATCH_ADDR", ":8080"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			User:         os.Getenv("DB_USER"),
			Password:     os.Getenv("DB_PASS"),
			Server:       os.Getenv("DB_SERVER"),
			Port:         envString("DB_PORT", "5432"),
			Name:         os.Getenv("DB_NAME"),
			SSLMode:      envString("DB_SSLMODE", "disable"),
			Table:        envString("DB_TABLE", "study_cache_failure"),
			QueryTimeout: envDuration("DB_QUERY_TIMEOUT", 30*time.Second),
		},
		Email: EmailConfig{
			Host:      envString("EMAIL_HOST", "smtp.gmail.com"),
			Port:      envInt("EMAIL_PORT", 587),
			User:      os.Getenv("EMAIL_USER"),
			Password:  os.Getenv("EMAIL_PASS"),
			From:      envString("EMAIL_FROM", "EncaptureMD <no-reply@encapturemd.com>"),
			Recipient: os.Getenv("RECIPIENT_EMAIL"),
			Timeout:   envDuration("EMAIL_TIMEOUT", 30*time.Second),
		},
		Notifier: NotifierConfig{
			Kind:           envString("NOTIFIER", NotifierSMTP),
			WebhookURL:     os.Getenv("WEBHOOK_URL"),
			WebhookTimeout: envDuration("WEBHOOK_TIMEOUT", 10*time.Second),
		},
		State: StateConfig{
			Backend:     envString("STATE_BACKEND", StateFile),
			File:        envString("STATE_FILE", "cross_reference.json"),
			Key:         os.Getenv("STATE_KEY"),
			DatabaseURL: os.Getenv("STATE_DATABASE_URL"),
			RedisURL:    os.Getenv("REDIS_URL"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.State.Backend == StatePostgres && cfg.State.DatabaseURL == "" {
		cfg.State.DatabaseURL = cfg.Database.DSN()
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		if c.Database.User == "" || c.Database.Server == "" || c.Database.Name == "" {
			return fmt.Errorf("DATABASE_URL or DB_USER, DB_SERVER and DB_NAME are required")
		}
	} else if !strings.HasPrefix(c.Database.URL, "postgres://") && !strings.HasPrefix(c.Database.URL, "postgresql://") {
		return fmt.Errorf("DATABASE_URL must start with postgres:// or postgresql://")
	}

	if !reTableName.MatchString(c.Database.Table) {
		return fmt.Errorf("DB_TABLE must be a plain or schema-qualified identifier, got %q", c.Database.Table)
	}

	if !validNotifiers[c.Notifier.Kind] {
		return fmt.Errorf("NOTIFIER must be one of smtp, webhook; got %q", c.Notifier.Kind)
	}

	switch c.Notifier.Kind {
	case NotifierSMTP:
		if c.Email.Recipient == "" {
			return fmt.Errorf("RECIPIENT_EMAIL is required when NOTIFIER is smtp")
		}
		if c.Email.User == "" || c.Email.Password == "" {
			return fmt.Errorf("EMAIL_USER and EMAIL_PASS are required when NOTIFIER is smtp")
		}
		if c.Email.Port <= 0 {
			return fmt.Errorf("EMAIL_PORT must be a positive integer")
		}
		if c.Email.Timeout <= 0 {
			return fmt.Errorf("EMAIL_TIMEOUT must be positive")
		}
	case NotifierWebhook:
		if c.Notifier.WebhookURL == "" {
			return fmt.Errorf("WEBHOOK_URL is required when NOTIFIER is webhook")
		}
		if !strings.HasPrefix(c.Notifier.WebhookURL, "http://") && !strings.HasPrefix(c.Notifier.WebhookURL, "https://") {
			return fmt.Errorf("WEBHOOK_URL must start with http:// or https://, got %q", c.Notifier.WebhookURL)
		}
	}

	if !validStateBackends[c.State.Backend] {
		return fmt.Errorf("STATE_BACKEND must be one of file, redis, postgres; got %q", c.State.Backend)
	}

	switch c.State.Backend {
	case StateFile:
		if c.State.File == "" {
			return fmt.Errorf("STATE_FILE must not be empty when STATE_BACKEND is file")
		}
	case StateRedis:
		if c.State.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when STATE_BACKEND is redis")
		}
	}

	if c.Run.Timeout <= 0 {
		return fmt.Errorf("RUN_TIMEOUT must be positive")
	}
	if c.Run.Interval <= 0 {
		return fmt.Errorf("CACHEWATCH_INTERVAL must be positive")
	}

	return nil
}

// DSN returns the connection string for the failure database.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(d.Server, d.Port),
		Path:   d.Name,
	}
	if d.Password == "" {
		u.User = url.User(d.User)
	} else {
		u.User = url.UserPassword(d.User, d.Password)
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()

	return u.String()
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
