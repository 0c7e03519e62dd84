//go:build integration

package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/Sternrassler/xero-client/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer creates a Redis container for integration testing.
func setupRedisContainer(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestIntegration_FullRequestFlow(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	var requestsMade atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestsMade.Add(1)

		w.Header().Set(ratelimit.HeaderMinuteRemaining, "55")
		w.Header().Set(ratelimit.HeaderDayRemaining, "4990")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Contacts":[{"ContactID":"c1","Name":"Bob"}]}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Redis = redisClient
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	ctx := context.Background()

	// Request 1: cache miss, goes to the server
	var out struct{ Contacts []struct{ ContactID, Name string } }
	if err := c.Request(ctx, http.MethodGet, "/Contacts/c1", nil, nil, &out); err != nil {
		t.Fatalf("Request 1 failed: %v", err)
	}
	if len(out.Contacts) != 1 || out.Contacts[0].Name != "Bob" {
		t.Fatalf("Unexpected body: %+v", out)
	}

	// Request 2: served from Redis
	if err := c.Request(ctx, http.MethodGet, "/Contacts/c1", nil, nil, &out); err != nil {
		t.Fatalf("Request 2 failed: %v", err)
	}
	if got := requestsMade.Load(); got != 1 {
		t.Errorf("Expected 1 server request, got %d", got)
	}

	// Rate limit state is shared through Redis
	other, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create second client: %v", err)
	}
	state, err := other.RateLimiter().GetState(ctx, cfg.TenantID)
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if state.MinuteRemaining != 55 || state.DayRemaining != 4990 {
		t.Errorf("Shared state = %d/%d, want 55/4990", state.MinuteRemaining, state.DayRemaining)
	}

	// Invalidation drops the entry for every client
	if err := other.Invalidate(ctx, "/Contacts/c1"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if err := c.Request(ctx, http.MethodGet, "/Contacts/c1", nil, nil, &out); err != nil {
		t.Fatalf("Request 3 failed: %v", err)
	}
	if got := requestsMade.Load(); got != 2 {
		t.Errorf("Expected 2 server requests after invalidation, got %d", got)
	}
}

func TestIntegration_DailyLimitBlocksAllClients(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	var requestsMade atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestsMade.Add(1)
		w.Header().Set(ratelimit.HeaderProblem, ratelimit.ProblemDay)
		w.Header().Set(ratelimit.HeaderRetryAfter, "600")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Redis = redisClient

	first, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	second, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	ctx := context.Background()

	_ = first.Request(ctx, http.MethodGet, "/Contacts", &Params{NoCache: true}, nil, nil)

	err = second.Request(ctx, http.MethodGet, "/Contacts", &Params{NoCache: true}, nil, nil)
	if err == nil {
		t.Fatal("Expected second client to be blocked")
	}
	if got := requestsMade.Load(); got != 1 {
		t.Errorf("Expected 1 server request, got %d", got)
	}
}
