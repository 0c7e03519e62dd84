package cache

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis (DB 15) and skips the test when
// none is reachable. The integration build runs the same checks against a
// testcontainers Redis.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNewManager(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	manager := NewManager(client)
	if manager == nil {
		t.Fatal("NewManager returned nil")
	}
	if manager.redis != client {
		t.Error("Manager redis client not set correctly")
	}
}

func TestNewManager_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil redis client")
		}
	}()
	NewManager(nil)
}

func TestManager_SetAndGet(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	key := CacheKey{TenantID: "tenant", Endpoint: "/Contacts/abc"}
	entry := &CacheEntry{
		Data:       []byte(`{"Contacts":[{"ContactID":"abc"}]}`),
		StatusCode: http.StatusOK,
		Headers:    http.Header{"Content-Type": []string{"application/json"}},
		CachedAt:   time.Now(),
		Expires:    time.Now().Add(time.Minute),
	}

	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got.Data) != string(entry.Data) {
		t.Errorf("Data = %s, want %s", got.Data, entry.Data)
	}
	if got.StatusCode != entry.StatusCode {
		t.Errorf("StatusCode = %d, want %d", got.StatusCode, entry.StatusCode)
	}
}

func TestManager_Get_CacheMiss(t *testing.T) {
	manager := NewManager(setupTestRedis(t))

	_, err := manager.Get(context.Background(), CacheKey{TenantID: "tenant", Endpoint: "/missing"})
	if err != ErrCacheMiss {
		t.Errorf("Get() error = %v, want ErrCacheMiss", err)
	}
}

func TestManager_Set_ExpiredEntryIsSkipped(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()
	key := CacheKey{TenantID: "tenant", Endpoint: "/Contacts/old"}

	err := manager.Set(ctx, key, &CacheEntry{Data: []byte("x"), Expires: time.Now().Add(-time.Second)})
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if _, err := manager.Get(ctx, key); err != ErrCacheMiss {
		t.Errorf("Get() error = %v, want ErrCacheMiss", err)
	}
}

func TestManager_Delete(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()
	key := CacheKey{TenantID: "tenant", Endpoint: "/Contacts/abc"}

	if err := manager.Set(ctx, key, &CacheEntry{Data: []byte("x"), Expires: time.Now().Add(time.Minute)}); err != nil {
		t.Fatal(err)
	}
	if err := manager.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := manager.Get(ctx, key); err != ErrCacheMiss {
		t.Errorf("Get() after Delete error = %v, want ErrCacheMiss", err)
	}
}

func TestManager_DeleteEndpoint(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()
	entry := &CacheEntry{Data: []byte("x"), Expires: time.Now().Add(time.Minute)}

	keys := []CacheKey{
		{TenantID: "tenant", Endpoint: "/Contacts/abc"},
		{TenantID: "tenant", Endpoint: "/Contacts/abc", QueryParams: url.Values{"summaryOnly": {"true"}}},
		{TenantID: "tenant", Endpoint: "/Contacts/abc/Attachments"},
	}
	other := CacheKey{TenantID: "other-tenant", Endpoint: "/Contacts/abc"}

	for _, k := range append(keys, other) {
		if err := manager.Set(ctx, k, entry); err != nil {
			t.Fatal(err)
		}
	}

	n, err := manager.DeleteEndpoint(ctx, "tenant", "/Contacts/abc")
	if err != nil {
		t.Fatalf("DeleteEndpoint() error = %v", err)
	}
	if n != len(keys) {
		t.Errorf("DeleteEndpoint() removed %d keys, want %d", n, len(keys))
	}

	for _, k := range keys {
		if _, err := manager.Get(ctx, k); err != ErrCacheMiss {
			t.Errorf("Get(%s) error = %v, want ErrCacheMiss", k, err)
		}
	}
	if _, err := manager.Get(ctx, other); err != nil {
		t.Errorf("other tenant entry should survive, got %v", err)
	}
}

func TestManager_Set_NilEntry(t *testing.T) {
	manager := NewManager(setupTestRedis(t))

	if err := manager.Set(context.Background(), CacheKey{Endpoint: "/x"}, nil); err == nil {
		t.Error("Set() with nil entry should return error")
	}
}
