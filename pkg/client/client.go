// Package client provides the core Xero HTTP client with rate limiting,
// caching, and error handling.
package client

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/xero-client/pkg/cache"
	"github.com/Sternrassler/xero-client/pkg/logging"
	"github.com/Sternrassler/xero-client/pkg/ratelimit"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the Xero Accounting API root.
	DefaultBaseURL = "https://api.xero.com/api.xro/2.0"

	// MaxPageSize is the largest page Xero serves.
	MaxPageSize = 1000

	headerTenantID       = "Xero-Tenant-Id"
	headerIdempotencyKey = "Idempotency-Key"
)

// Client is the main Xero client.
type Client struct {
	httpClient  *http.Client
	redis       *redis.Client
	rateLimiter *ratelimit.Tracker
	limiter     *rate.Limiter
	cache       *cache.Manager
	baseURL     *url.URL
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Redis client for caching and shared rate limit state.
	// Optional: without it responses are not cached and rate limit state is
	// kept in process.
	Redis *redis.Client

	// BaseURL of the Accounting API
	BaseURL string

	// TenantID selects the Xero organisation (Xero-Tenant-Id header)
	TenantID string

	// AccessToken is a valid OAuth2 bearer token. Refreshing it is up to the caller.
	AccessToken string

	// User-Agent header
	UserAgent string

	// PageSize is the number of records Xero returns per page
	PageSize int

	// Local pacing, in addition to the server's published limits.
	// RequestsPerSecond = 0 disables pacing.
	RequestsPerSecond float64
	Burst             int

	// MaxRateLimitWait bounds how long a request waits out Retry-After
	MaxRateLimitWait time.Duration

	// CacheTTL for GET responses; 0 disables caching
	CacheTTL time.Duration

	// Retry policy for the transport
	Retry RetryConfig

	// Timeout per HTTP request
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(tenantID, accessToken, userAgent string) Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		TenantID:          tenantID,
		AccessToken:       accessToken,
		UserAgent:         userAgent,
		PageSize:          100,
		RequestsPerSecond: 1,
		Burst:             5,
		MaxRateLimitWait:  60 * time.Second,
		CacheTTL:          cache.DefaultTTL,
		Retry:             NoRetry(),
		Timeout:           30 * time.Second,
	}
}

// New creates a new Xero client.
func New(cfg Config) (*Client, error) {
	if cfg.TenantID == "" {
		return nil, fmt.Errorf("tenant id is required")
	}

	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	baseURL, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	if cfg.PageSize < 1 || cfg.PageSize > MaxPageSize {
		return nil, fmt.Errorf("page_size must be between 1 and %d (got %d)", MaxPageSize, cfg.PageSize)
	}

	if cfg.RequestsPerSecond < 0 {
		return nil, fmt.Errorf("requests_per_second must be >= 0 (got %v)", cfg.RequestsPerSecond)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	// Initialize logger
	logger := logging.ForTenant(logging.ComponentClient, cfg.TenantID)

	// Create rate limit tracker
	rateLimiter := ratelimit.NewTracker(cfg.Redis, log.Logger)
	if cfg.MaxRateLimitWait > 0 {
		rateLimiter.SetWaits(cfg.MaxRateLimitWait, time.Second)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	// Create cache manager
	var cacheManager *cache.Manager
	if cfg.Redis != nil && cfg.CacheTTL > 0 {
		cacheManager = cache.NewManager(cfg.Redis)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		redis:       cfg.Redis,
		rateLimiter: rateLimiter,
		limiter:     limiter,
		cache:       cacheManager,
		baseURL:     baseURL,
		config:      cfg,
		logger:      logger,
	}, nil
}

// Do performs an HTTP request with rate limiting, caching, and error handling.
// GET requests without If-Modified-Since are served from and stored in the
// cache. Any non-2xx answer is returned as a *RemoteError.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	cacheable := req.Method == http.MethodGet && req.Header.Get("If-Modified-Since") == ""
	return c.do(req, cacheable)
}

func (c *Client) do(req *http.Request, cacheable bool) (*http.Response, error) {
	ctx := req.Context()
	endpoint := c.relativePath(req.URL.Path)
	label := endpointLabel(endpoint)

	// Start request timing
	startTime := time.Now()
	defer func() {
		xeroRequestDuration.WithLabelValues(label).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Server-published limits
	if err := c.rateLimiter.Allow(ctx, c.config.TenantID); err != nil {
		c.logger.Warn().
			Err(err).
			Str("endpoint", endpoint).
			Msg("Request blocked by rate limiter")
		xeroRequestsTotal.WithLabelValues(label, "rate_limited").Inc()
		return nil, blockedError(err)
	}

	// Step 2: Local pacing
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, blockedError(err)
	}

	// Step 3: Check Cache
	cacheKey := cache.CacheKey{
		TenantID:    c.config.TenantID,
		Endpoint:    endpoint,
		QueryParams: req.URL.Query(),
	}
	cacheable = cacheable && c.cache != nil
	if cacheable {
		entry, err := c.cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			c.logger.Debug().Str("endpoint", endpoint).Dur("age", entry.Age()).Msg("Cache hit")
			xeroRequestsTotal.WithLabelValues(label, "cached").Inc()
			return cache.EntryToResponse(entry, req), nil
		case err != cache.ErrCacheMiss:
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
	}

	// Step 4: Set headers
	req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)
	req.Header.Set(headerTenantID, c.config.TenantID)
	req.Header.Set("User-Agent", c.config.UserAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if (req.Method == http.MethodPut || req.Method == http.MethodPost) && req.Header.Get(headerIdempotencyKey) == "" {
		// One key per logical request, shared by its retries
		req.Header.Set(headerIdempotencyKey, ulid.Make().String())
	}

	// Step 5: Execute HTTP Request with Retry Logic
	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Msg("Executing Xero request")

	var resp *http.Response
	var errClass ErrorClass
	attempt := 0

	retryErr := retryWithBackoff(ctx, c.config.Retry, func() error {
		attempt++
		r := req
		if attempt > 1 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return fmt.Errorf("rewind request body: %w", err)
			}
			r = req.Clone(ctx)
			r.Body = body
		}

		var reqErr error
		resp, reqErr = c.httpClient.Do(r)

		// Handle network errors
		if reqErr != nil {
			c.logger.Error().Err(reqErr).Str("endpoint", endpoint).Msg("HTTP request failed")
			errClass = c.classifyError(nil, reqErr)
			xeroErrorsTotal.WithLabelValues(string(errClass)).Inc()
			xeroRequestsTotal.WithLabelValues(label, "network_error").Inc()
			return &RemoteError{
				ErrorClass: errClass,
				Message:    "transport failure",
				Err:        reqErr,
			}
		}

		// Update Rate Limit from headers
		if err := c.rateLimiter.UpdateFromHeaders(ctx, c.config.TenantID, resp.StatusCode, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
		}

		status := strconv.Itoa(resp.StatusCode)
		xeroRequestsTotal.WithLabelValues(label, status).Inc()

		// 304 answers an If-Modified-Since read with "nothing changed"
		if resp.StatusCode < 300 || resp.StatusCode == http.StatusNotModified {
			return nil
		}

		errClass = c.classifyError(resp, nil)
		xeroErrorsTotal.WithLabelValues(string(errClass)).Inc()

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()

		remoteErr := newRemoteError(resp.StatusCode, errClass, body, resp.Header)

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Str("message", remoteErr.Message).
			Msg("Xero request error")

		resp = nil
		return remoteErr
	}, func(err error) ErrorClass {
		return errClass
	})

	if retryErr != nil {
		c.logger.Error().
			Err(retryErr).
			Str("endpoint", endpoint).
			Str("method", req.Method).
			Dur("duration", time.Since(startTime)).
			Msg("Xero request failed")
		return nil, retryErr
	}

	// Step 6: Update Cache on success
	if cacheable && resp.StatusCode == http.StatusOK {
		entry, err := cache.ResponseToEntry(resp, c.config.CacheTTL)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to create cache entry")
		} else if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		} else {
			c.logger.Debug().
				Str("endpoint", endpoint).
				Dur("ttl", entry.TTL()).
				Msg("Cached response")
		}
	}

	return resp, nil
}

// classifyError categorizes an error for observability and handling.
func (c *Client) classifyError(resp *http.Response, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case resp.StatusCode >= 300 && resp.StatusCode < 500:
		return ErrorClassClient
	case resp.StatusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// relativePath strips the base URL path so cache keys and metric labels
// read like "/Contacts/{id}".
func (c *Client) relativePath(path string) string {
	rel := strings.TrimPrefix(path, c.baseURL.Path)
	if rel == "" {
		return "/"
	}
	return rel
}

// endpointLabel replaces identifier segments to keep metric cardinality low.
func endpointLabel(endpoint string) string {
	segments := strings.Split(endpoint, "/")
	for i, s := range segments {
		if looksLikeID(s) {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}

func looksLikeID(s string) bool {
	if len(s) != 36 {
		return false
	}
	for i, r := range s {
		switch i {
		case 8, 13, 18, 23:
			if r != '-' {
				return false
			}
		default:
			if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
				return false
			}
		}
	}
	return true
}

// TenantID returns the Xero organisation this client talks to.
func (c *Client) TenantID() string {
	return c.config.TenantID
}

// PageSize returns the configured page size.
func (c *Client) PageSize() int {
	return c.config.PageSize
}

// Close releases idle connections. The Redis client is owned by the caller.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// GetCache returns the cache manager, nil when caching is disabled.
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}

// RateLimiter returns the rate limit tracker.
func (c *Client) RateLimiter() *ratelimit.Tracker {
	return c.rateLimiter
}
