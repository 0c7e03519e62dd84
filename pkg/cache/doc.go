// Package cache provides a Redis-backed response cache for Xero GET requests.
//
// Xero does not send Expires or ETag headers on Accounting API responses, so
// entries live for a fixed TTL chosen by the client configuration. Contact
// updates invalidate the affected endpoint keys.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.CacheKey{
//		TenantID: "b2c1...",
//		Endpoint: "/Contacts/8f3c...",
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// fetch from Xero, then:
//		entry, _ = cache.ResponseToEntry(resp, 5*time.Minute)
//		_ = manager.Set(ctx, key, entry)
//	}
//
// # Invalidation
//
//	// drops /Contacts/8f3c... and every key below it (query variants, attachments)
//	removed, err := manager.DeleteEndpoint(ctx, tenantID, "/Contacts/8f3c...")
//
// # Metrics
//
//   - xero_cache_hits_total{layer="redis"} - Cache hits
//   - xero_cache_misses_total - Cache misses
//   - xero_cache_size_bytes{layer="redis"} - Bytes written
//   - xero_cache_invalidations_total - Keys removed by invalidation
//   - xero_cache_errors_total{operation} - Cache operation errors
package cache
