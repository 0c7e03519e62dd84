//go:build integration

package accounting

import (
	"context"
	"testing"

	"github.com/Sternrassler/xero-client/internal/testutil"
	"github.com/Sternrassler/xero-client/pkg/client"
	"github.com/Sternrassler/xero-client/pkg/pagination"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "start redis container")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	redisClient := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() {
		redisClient.Close()
		container.Terminate(ctx)
	})

	return redisClient
}

func newRedisContacts(t *testing.T, mock *testutil.MockXero, rdb *redis.Client) (*Contacts, *client.Client) {
	t.Helper()

	cfg := client.DefaultConfig("tenant-1", "token", "xero-client-test/1.0")
	cfg.BaseURL = mock.URL()
	cfg.RequestsPerSecond = 0
	cfg.Redis = rdb

	c, err := client.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	return NewContacts(c), c
}

func TestIntegration_ContactReadsAreCachedUntilUpdate(t *testing.T) {
	rdb := setupRedis(t)
	mock := testutil.NewMockXero()
	defer mock.Close()
	contacts, _ := newRedisContacts(t, mock, rdb)
	ctx := context.Background()

	id := mock.AddContact(map[string]any{"Name": "Johnnies Coffee"})

	first, err := contacts.GetContact(ctx, id)
	require.NoError(t, err)
	second, err := contacts.GetContact(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, first.Name, second.Name)
	assert.Equal(t, 1, mock.GetRequestCount(), "second read is served from Redis")

	second.Name = "Johnnies Tea"
	_, err = second.Save(ctx)
	require.NoError(t, err)

	third, err := contacts.GetContact(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Johnnies Tea", third.Name)
	assert.Equal(t, 3, mock.GetRequestCount(), "update invalidated the cached contact")
}

func TestIntegration_CollectionReadsBypassCache(t *testing.T) {
	rdb := setupRedis(t)
	mock := testutil.NewMockXero()
	defer mock.Close()
	contacts, _ := newRedisContacts(t, mock, rdb)
	ctx := context.Background()

	mock.AddContact(map[string]any{"Name": "Alice"})
	_, err := contacts.GetContacts(ctx, nil)
	require.NoError(t, err)

	_, err = contacts.NewContact(Contact{Name: "Bob"}).Save(ctx)
	require.NoError(t, err)

	all, err := contacts.GetContacts(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2, "a create is visible to the next collection read")
	assert.Equal(t, 3, mock.GetRequestCount())
}

func TestIntegration_PagedReadSharesRateLimitState(t *testing.T) {
	rdb := setupRedis(t)
	mock := testutil.NewMockXero()
	defer mock.Close()
	for i := 0; i < 150; i++ {
		mock.AddContact(map[string]any{"Name": "Contact"})
	}

	reader, _ := newRedisContacts(t, mock, rdb)
	_, observer := newRedisContacts(t, mock, rdb)

	all, err := pagination.CollectAll(context.Background(), reader.IterateContacts(nil))
	require.NoError(t, err)
	assert.Len(t, all, 150)

	state, err := observer.RateLimiter().GetState(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, 5000-2, state.DayRemaining, "both page requests are visible to the other client")
	assert.Equal(t, 60-2, state.MinuteRemaining)
}
