package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultEnvFiles are loaded by Load, in order. Variables already present in
// the environment are never overridden.
var DefaultEnvFiles = []string{".env", ".env.local"}

// Top-level YAML config key names.
const (
	keyXero    = "xero"
	keyRedis   = "redis"
	keyLogging = "logging"
	keyMetrics = "metrics"
)

// Load builds the configuration: defaults, then the YAML file at path (if
// path is not empty), then the environment after loading DefaultEnvFiles.
func Load(path string) (Config, error) {
	return LoadWithEnvFiles(path, DefaultEnvFiles...)
}

// LoadWithEnvFiles is Load with an explicit list of .env files. Missing
// files are skipped.
func LoadWithEnvFiles(path string, envFiles ...string) (Config, error) {
	loadEnvFiles(envFiles)

	cfg := Default()
	if path != "" {
		if err := MergeYAML(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadEnvFiles(files []string) {
	for _, f := range files {
		// Do not override environment provided by the runtime (e.g. Docker).
		_ = godotenv.Load(f)
	}
}

// MergeYAML loads a YAML file and merges its top-level sections onto target.
// A section present in the file is decoded onto the current value of that
// section, so keys it omits keep their previous value. Unknown top-level keys
// are ignored.
func MergeYAML(target *Config, path string) error {
	if target == nil {
		return errors.New("nil target *Config in MergeYAML")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	var overlay map[string]yaml.Node
	if err = yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parsing config YAML from %s: %w", path, err)
	}

	for key, node := range overlay {
		if err = decodeSection(target, key, &node); err != nil {
			return fmt.Errorf("applying config section %q from %s: %w", key, path, err)
		}
	}

	return nil
}

func decodeSection(target *Config, key string, node *yaml.Node) error {
	switch key {
	case keyXero:
		return node.Decode(&target.Xero)
	case keyRedis:
		return node.Decode(&target.Redis)
	case keyLogging:
		return node.Decode(&target.Logging)
	case keyMetrics:
		return node.Decode(&target.Metrics)
	default:
		return nil
	}
}

// applyEnv overrides cfg with the environment variables that are set.
func applyEnv(cfg *Config) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: invalid integer %q", key, v))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: invalid number %q", key, v))
				return
			}
			*dst = f
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: invalid duration %q", key, v))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: invalid boolean %q", key, v))
				return
			}
			*dst = b
		}
	}

	str("XERO_BASE_URL", &cfg.Xero.BaseURL)
	str("XERO_TENANT_ID", &cfg.Xero.TenantID)
	str("XERO_ACCESS_TOKEN", &cfg.Xero.AccessToken)
	str("XERO_USER_AGENT", &cfg.Xero.UserAgent)
	integer("XERO_PAGE_SIZE", &cfg.Xero.PageSize)
	float("XERO_REQUESTS_PER_SECOND", &cfg.Xero.RequestsPerSecond)
	integer("XERO_BURST", &cfg.Xero.Burst)
	integer("XERO_MAX_RETRIES", &cfg.Xero.MaxRetries)
	duration("XERO_MAX_RATE_LIMIT_WAIT", &cfg.Xero.MaxRateLimitWait)
	duration("XERO_TIMEOUT", &cfg.Xero.Timeout)

	str("REDIS_URL", &cfg.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	integer("REDIS_DB", &cfg.Redis.DB)
	duration("XERO_CACHE_TTL", &cfg.Redis.CacheTTL)

	str("LOG_LEVEL", &cfg.Logging.Level)
	boolean("LOG_PRETTY", &cfg.Logging.Pretty)

	str("METRICS_ADDR", &cfg.Metrics.Addr)

	return errors.Join(errs...)
}
