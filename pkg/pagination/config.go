package pagination

import "time"

const (
	// DefaultPageSize is the number of records Xero returns on a full page.
	DefaultPageSize = 100

	// DefaultStart is the first page index when none is given.
	DefaultStart = 1
)

// Config holds the page fetch configuration.
type Config struct {
	// PageSize is the size of a full page. A shorter page ends the fetch.
	PageSize int

	// Timeout per page fetch (0 disables the per-page deadline)
	Timeout time.Duration

	// Resource labels metrics and logs (e.g. "contacts")
	Resource string
}

// DefaultConfig returns the configuration matching Xero's default paging.
func DefaultConfig() Config {
	return Config{
		PageSize: DefaultPageSize,
		Timeout:  30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.Resource == "" {
		c.Resource = "unknown"
	}
	return c
}
