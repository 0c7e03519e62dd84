// Package logging configures zerolog for the Xero client packages.
//
// Setup installs the global logger once, usually from the CLI. Library code
// derives component loggers from it with NewLogger or ForTenant, so fields
// such as component and tenant_id are present on every line.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel is a level name as it appears in config files and flags.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Component names used by the Xero client packages.
const (
	ComponentClient    = "xero-client"
	ComponentContacts  = "contacts"
	ComponentPager     = "pager"
	ComponentRateLimit = "ratelimit"
	ComponentCache     = "cache"
	ComponentCLI       = "xero-contacts"
)

// Config holds logger configuration.
type Config struct {
	Level LogLevel

	// Pretty switches from JSON lines to zerolog's console format
	Pretty bool

	// Output defaults to os.Stderr
	Output io.Writer
}

// DefaultConfig logs JSON at info level to stderr.
func DefaultConfig() Config {
	return Config{Level: LevelInfo, Output: os.Stderr}
}

// ParseLevel maps a level name to a zerolog level. Names are case
// insensitive and "warning" is accepted for warn.
func ParseLevel(level LogLevel) (zerolog.Level, error) {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	}
	return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", level)
}

// Valid reports whether level names a known log level.
func (l LogLevel) Valid() bool {
	_, err := ParseLevel(l)
	return err == nil
}

// Setup configures the global zerolog logger and returns it. An unknown
// level falls back to info.
func Setup(cfg Config) zerolog.Logger {
	level, _ := ParseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	log.Logger = zerolog.New(output).With().Timestamp().Logger()
	return log.Logger
}

// NewLogger derives a logger for component from the global logger.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// ForTenant is NewLogger with the Xero-Tenant-Id attached as tenant_id.
func ForTenant(component, tenantID string) zerolog.Logger {
	return log.With().Str("component", component).Str("tenant_id", tenantID).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache operations (hit/miss, key, TTL)
//   - Page fetches (page index, item count, finished flag)
//   - Shared in-flight contact lookups
//
// Info: Normal operation events
//   - Contacts saved (requested, created, rejected)
//   - Paginated fetch complete
//   - Rate limit state updates (healthy)
//   - CLI startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Rate limit warnings (throttling active)
//   - Retry attempts
//   - Pager callback errors and cancelled paged reads
//   - Cache errors (fallback to direct request)
//
// Error: Error conditions requiring attention
//   - Failed requests (after retries)
//   - Daily limit exhausted
//   - Configuration errors
//
// Context Fields:
//   - endpoint: Accounting API path with identifiers replaced by {id}
//   - tenant_id: Xero-Tenant-Id of the request
//   - status_code: HTTP status code
//   - duration: Request duration
//   - error_class: Error classification (client, server, rate_limit, network)
//   - page: 1-based page index
//   - contact_id: ContactID of the record involved
//   - ttl: Cache entry TTL
