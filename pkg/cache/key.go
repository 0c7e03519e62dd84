package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// CacheKey represents a unique identifier for a cached Xero response.
type CacheKey struct {
	// TenantID is the Xero organisation the response belongs to
	TenantID string

	// Endpoint is the API path relative to the base URL (e.g., "/Contacts/{id}")
	Endpoint string

	// QueryParams are the query parameters (e.g., {"summaryOnly": "true"})
	QueryParams url.Values
}

// Prefix returns the key prefix shared by every query variant of the
// endpoint. Format: xero:tenant:endpoint
func (k CacheKey) Prefix() string {
	parts := []string{"xero"}
	if k.TenantID != "" {
		parts = append(parts, k.TenantID)
	}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	return strings.Join(parts, ":")
}

// String generates a deterministic cache key string.
// Format: xero:tenant:endpoint:query1=val1:query2=val2
//
// Example:
//
//	xero:b2c1:Contacts/8f3c:summaryOnly=true
func (k CacheKey) String() string {
	parts := []string{k.Prefix()}

	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			values := append([]string(nil), k.QueryParams[key]...)
			sort.Strings(values)
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(values, ",")))
		}
	}

	return strings.Join(parts, ":")
}
