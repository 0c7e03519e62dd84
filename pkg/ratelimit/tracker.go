package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/xero-client/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	xeroMinuteRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "xero_minute_limit_remaining",
		Help: "Calls remaining in the current Xero minute window",
	})

	xeroDayRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "xero_day_limit_remaining",
		Help: "Calls remaining in the current Xero day window",
	})

	xeroRateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xero_rate_limit_blocks_total",
		Help: "Total number of requests blocked because a Xero limit was exhausted",
	})

	xeroRateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xero_rate_limit_throttles_total",
		Help: "Total number of requests throttled or delayed by the rate limiter",
	})
)

var (
	// ErrDailyLimitExhausted is returned when the tenant's day budget is gone.
	ErrDailyLimitExhausted = errors.New("xero daily rate limit exhausted")

	// ErrRateLimited is returned when Retry-After exceeds the allowed wait.
	ErrRateLimited = errors.New("xero rate limit exceeded")
)

// stateTTL bounds how long a state survives in Redis without updates.
const stateTTL = 24 * time.Hour

// Tracker monitors Xero rate limits and gates requests.
// A nil Redis client keeps the state in process memory.
type Tracker struct {
	redis    *redis.Client
	logger   zerolog.Logger
	maxWait  time.Duration
	throttle time.Duration

	mu    sync.Mutex
	local map[string]*RateLimitState
}

// NewTracker creates a new rate limit tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:    redisClient,
		logger:   logger.With().Str("component", logging.ComponentRateLimit).Logger(),
		maxWait:  60 * time.Second,
		throttle: 1 * time.Second,
		local:    make(map[string]*RateLimitState),
	}
}

// SetWaits overrides the maximum Retry-After wait and the throttle delay.
func (t *Tracker) SetWaits(maxWait, throttle time.Duration) {
	t.maxWait = maxWait
	t.throttle = throttle
}

// GetState retrieves the current rate limit state of a tenant.
// Returns a default healthy state if nothing has been recorded.
func (t *Tracker) GetState(ctx context.Context, tenantID string) (*RateLimitState, error) {
	if t.redis == nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		if s, ok := t.local[tenantID]; ok {
			cp := *s
			return &cp, nil
		}
		return NewHealthyState(), nil
	}

	data, err := t.redis.Get(ctx, RedisKey(tenantID)).Bytes()
	if err == redis.Nil {
		t.logger.Debug().Str("tenant", tenantID).Msg("No rate limit state in Redis, returning default healthy state")
		return NewHealthyState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rate limit state: %w", err)
	}

	var state RateLimitState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse rate limit state: %w", err)
	}
	state.UpdateHealth()

	return &state, nil
}

// UpdateFromHeaders parses Xero rate limit headers and stores the new state.
// Responses without rate limit headers leave the state untouched.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, tenantID string, statusCode int, headers http.Header) error {
	minute, hasMinute, err := intHeader(headers, HeaderMinuteRemaining)
	if err != nil {
		return err
	}
	day, hasDay, err := intHeader(headers, HeaderDayRemaining)
	if err != nil {
		return err
	}
	app, hasApp, err := intHeader(headers, HeaderAppMinuteRemaining)
	if err != nil {
		return err
	}
	retryAfter, hasRetry, err := intHeader(headers, HeaderRetryAfter)
	if err != nil {
		return err
	}

	if !hasMinute && !hasDay && !hasApp && !(statusCode == http.StatusTooManyRequests && hasRetry) {
		return nil
	}

	state, err := t.GetState(ctx, tenantID)
	if err != nil {
		return err
	}

	now := time.Now()
	if hasMinute {
		state.MinuteRemaining = minute
	}
	if hasDay {
		state.DayRemaining = day
	}
	if hasApp {
		state.AppMinuteRemaining = app
	}
	if statusCode == http.StatusTooManyRequests {
		state.Problem = headers.Get(HeaderProblem)
		if state.Problem == "" {
			state.Problem = ProblemMinute
		}
		state.RetryAt = now.Add(time.Duration(retryAfter) * time.Second)
	} else if state.TimeUntilRetry() == 0 {
		state.Problem = ""
		state.RetryAt = time.Time{}
	}
	state.LastUpdate = now
	state.UpdateHealth()

	if err := t.store(ctx, tenantID, state); err != nil {
		return err
	}

	xeroMinuteRemaining.Set(float64(state.MinuteRemaining))
	xeroDayRemaining.Set(float64(state.DayRemaining))

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().
			Str("tenant", tenantID).
			Time("retry_at", state.RetryAt).
			Msg("Xero daily limit exhausted - requests will be blocked")
	case state.NeedsWait():
		t.logger.Warn().
			Str("tenant", tenantID).
			Str("problem", state.Problem).
			Time("retry_at", state.RetryAt).
			Msg("Xero rate limit hit - requests will wait for Retry-After")
	default:
		t.logger.Debug().
			Str("tenant", tenantID).
			Int("minute_remaining", state.MinuteRemaining).
			Int("day_remaining", state.DayRemaining).
			Bool("is_healthy", state.IsHealthy).
			Msg("Xero rate limit state updated")
	}

	return nil
}

// Allow blocks until a request may be sent for the tenant, or returns an
// error if it must not be sent. It waits out Retry-After up to the maximum
// wait and briefly throttles when the minute budget runs low.
func (t *Tracker) Allow(ctx context.Context, tenantID string) error {
	state, err := t.GetState(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("get rate limit state: %w", err)
	}

	if state.NeedsCriticalBlock() {
		xeroRateLimitBlocksTotal.Inc()
		return fmt.Errorf("%w: retry in %s", ErrDailyLimitExhausted, state.TimeUntilRetry().Round(time.Second))
	}

	var wait time.Duration
	switch {
	case state.NeedsWait():
		wait = state.TimeUntilRetry()
		if wait > t.maxWait {
			xeroRateLimitBlocksTotal.Inc()
			return fmt.Errorf("%w: retry in %s", ErrRateLimited, wait.Round(time.Second))
		}
	case state.NeedsThrottling():
		wait = t.throttle
	default:
		return nil
	}

	xeroRateLimitThrottlesTotal.Inc()
	t.logger.Warn().
		Str("tenant", tenantID).
		Int("minute_remaining", state.MinuteRemaining).
		Dur("wait", wait).
		Msg("Xero rate limit - delaying request")

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

func (t *Tracker) store(ctx context.Context, tenantID string, state *RateLimitState) error {
	if t.redis == nil {
		t.mu.Lock()
		cp := *state
		t.local[tenantID] = &cp
		t.mu.Unlock()
		return nil
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal rate limit state: %w", err)
	}
	if err := t.redis.Set(ctx, RedisKey(tenantID), data, stateTTL).Err(); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}
	return nil
}

// intHeader parses an integer header. The bool reports presence.
func intHeader(headers http.Header, name string) (int, bool, error) {
	raw := headers.Get(name)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s header: %w", name, err)
	}
	return v, true, nil
}
