// Package config loads the xero-contacts application configuration from a
// YAML file, .env files and the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Sternrassler/xero-client/pkg/cache"
	"github.com/Sternrassler/xero-client/pkg/client"
	"github.com/Sternrassler/xero-client/pkg/logging"
	"github.com/redis/go-redis/v9"
)

// Config is the complete application configuration.
type Config struct {
	Xero    XeroConfig    `yaml:"xero"`
	Redis   RedisConfig   `yaml:"redis"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// XeroConfig configures the Accounting API connection.
type XeroConfig struct {
	BaseURL           string        `yaml:"base_url"`
	TenantID          string        `yaml:"tenant_id"`
	AccessToken       string        `yaml:"access_token"`
	UserAgent         string        `yaml:"user_agent"`
	PageSize          int           `yaml:"page_size"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	MaxRetries        int           `yaml:"max_retries"`
	MaxRateLimitWait  time.Duration `yaml:"max_rate_limit_wait"`
	Timeout           time.Duration `yaml:"timeout"`
}

// RedisConfig configures the optional Redis backend. An empty Addr disables
// Redis; responses are then not cached and rate limit state stays in process.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Xero: XeroConfig{
			BaseURL:           client.DefaultBaseURL,
			UserAgent:         "xero-contacts/0.1.0",
			PageSize:          100,
			RequestsPerSecond: 1,
			Burst:             5,
			MaxRateLimitWait:  60 * time.Second,
			Timeout:           30 * time.Second,
		},
		Redis: RedisConfig{
			CacheTTL: cache.DefaultTTL,
		},
		Logging: LoggingConfig{
			Level: string(logging.LevelInfo),
		},
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if c.Xero.TenantID == "" {
		errs = append(errs, errors.New("xero.tenant_id is required (XERO_TENANT_ID)"))
	}
	if c.Xero.AccessToken == "" {
		errs = append(errs, errors.New("xero.access_token is required (XERO_ACCESS_TOKEN)"))
	}
	if c.Xero.UserAgent == "" {
		errs = append(errs, errors.New("xero.user_agent is required"))
	}
	if c.Xero.PageSize < 1 || c.Xero.PageSize > client.MaxPageSize {
		errs = append(errs, fmt.Errorf("xero.page_size must be between 1 and %d (got %d)", client.MaxPageSize, c.Xero.PageSize))
	}
	if c.Xero.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("xero.requests_per_second must be >= 0 (got %v)", c.Xero.RequestsPerSecond))
	}
	if c.Xero.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("xero.max_retries must be >= 0 (got %d)", c.Xero.MaxRetries))
	}
	if c.Redis.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("redis.cache_ttl must be >= 0 (got %s)", c.Redis.CacheTTL))
	}
	if !logging.LogLevel(c.Logging.Level).Valid() {
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// RedisClient returns a client for the configured Redis, or nil when Redis is
// disabled.
func (c Config) RedisClient() *redis.Client {
	if c.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	})
}

// ClientConfig maps the configuration onto a transport configuration.
func (c Config) ClientConfig(rdb *redis.Client) client.Config {
	cfg := client.DefaultConfig(c.Xero.TenantID, c.Xero.AccessToken, c.Xero.UserAgent)
	cfg.Redis = rdb
	cfg.BaseURL = c.Xero.BaseURL
	cfg.PageSize = c.Xero.PageSize
	cfg.RequestsPerSecond = c.Xero.RequestsPerSecond
	cfg.Burst = c.Xero.Burst
	cfg.MaxRateLimitWait = c.Xero.MaxRateLimitWait
	cfg.CacheTTL = c.Redis.CacheTTL
	cfg.Timeout = c.Xero.Timeout

	if c.Xero.MaxRetries > 0 {
		cfg.Retry = client.DefaultRetryConfig()
		cfg.Retry.MaxAttempts = c.Xero.MaxRetries + 1
	}

	return cfg
}

// LoggingSetup maps the logging section onto a logger configuration.
func (c Config) LoggingSetup(out io.Writer) logging.Config {
	return logging.Config{
		Level:  logging.LogLevel(c.Logging.Level),
		Pretty: c.Logging.Pretty,
		Output: out,
	}
}
