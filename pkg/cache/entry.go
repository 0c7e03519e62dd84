package cache

import (
	"net/http"
	"time"
)

// CacheEntry is a stored GET response of the Accounting API. Xero sends no
// freshness headers, so Expires is always CachedAt plus the client's TTL.
type CacheEntry struct {
	// Endpoint is the request path, e.g. "/api.xro/2.0/Contacts/{id}"
	Endpoint string `json:"endpoint,omitempty"`

	StatusCode int         `json:"status_code"`
	Headers    http.Header `json:"headers"`
	Data       []byte      `json:"data"`

	CachedAt time.Time `json:"cached_at"`
	Expires  time.Time `json:"expires"`
}

// IsExpired reports whether the entry is past its expiry.
func (e *CacheEntry) IsExpired() bool {
	return !time.Now().Before(e.Expires)
}

// TTL is the time left until expiry, never negative. Redis uses it as the
// key's expiration.
func (e *CacheEntry) TTL() time.Duration {
	return max(time.Until(e.Expires), 0)
}

// Age is how long ago the response was stored.
func (e *CacheEntry) Age() time.Duration {
	if e.CachedAt.IsZero() {
		return 0
	}
	return time.Since(e.CachedAt)
}
