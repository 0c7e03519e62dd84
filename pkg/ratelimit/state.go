// Package ratelimit tracks Xero API rate limits per tenant and gates requests.
// It reads the X-MinLimit-Remaining, X-DayLimit-Remaining and
// X-AppMinLimit-Remaining headers plus Retry-After on 429 responses, so that a
// client stops before the API starts rejecting calls.
package ratelimit

import (
	"fmt"
	"time"
)

// Xero rate limit response headers.
const (
	HeaderMinuteRemaining    = "X-MinLimit-Remaining"
	HeaderDayRemaining       = "X-DayLimit-Remaining"
	HeaderAppMinuteRemaining = "X-AppMinLimit-Remaining"
	HeaderRetryAfter         = "Retry-After"
	HeaderProblem            = "X-Rate-Limit-Problem"
)

// RedisKeyPrefix prefixes the per-tenant state key in Redis.
const RedisKeyPrefix = "xero:rate_limit:"

// Published Xero limits.
const (
	// MinuteLimit is the number of calls per tenant per minute.
	MinuteLimit = 60

	// DayLimit is the number of calls per tenant per day.
	DayLimit = 5000
)

// Thresholds for rate limit decisions.
const (
	// MinuteThresholdWarning applies throttling when fewer calls remain in the
	// current minute.
	MinuteThresholdWarning = 5

	// MinuteThresholdHealthy indicates normal operation for the minute window.
	MinuteThresholdHealthy = 30

	// DayThresholdHealthy indicates normal operation for the day window.
	DayThresholdHealthy = 500
)

// Problem values reported in X-Rate-Limit-Problem.
const (
	ProblemMinute    = "minute"
	ProblemDay       = "day"
	ProblemAppMinute = "appminute"
)

// RateLimitState represents the last known Xero rate limit state of a tenant.
// With Redis configured the state is shared across client instances.
type RateLimitState struct {
	// MinuteRemaining is the number of calls left in the current minute.
	MinuteRemaining int `json:"minute_remaining"`

	// DayRemaining is the number of calls left today.
	DayRemaining int `json:"day_remaining"`

	// AppMinuteRemaining is the number of calls left for the whole app.
	AppMinuteRemaining int `json:"app_minute_remaining"`

	// RetryAt is set after a 429 response from Retry-After.
	RetryAt time.Time `json:"retry_at"`

	// Problem is the limit that was hit (minute, day, appminute).
	Problem string `json:"problem,omitempty"`

	// LastUpdate is when this state was last updated.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when both minute and day budgets are comfortable.
	IsHealthy bool `json:"is_healthy"`
}

// NewHealthyState returns the state assumed before any headers were seen.
func NewHealthyState() *RateLimitState {
	s := &RateLimitState{
		MinuteRemaining:    MinuteLimit,
		DayRemaining:       DayLimit,
		AppMinuteRemaining: -1,
		LastUpdate:         time.Now(),
	}
	s.UpdateHealth()
	return s
}

// IsStale returns true if the state data is older than the given duration.
func (s *RateLimitState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if the daily budget is exhausted and the
// server asked us to back off.
func (s *RateLimitState) NeedsCriticalBlock() bool {
	return s.Problem == ProblemDay && s.TimeUntilRetry() > 0
}

// NeedsWait returns true if a minute window was exceeded and Retry-After has
// not passed yet.
func (s *RateLimitState) NeedsWait() bool {
	return s.Problem != ProblemDay && s.TimeUntilRetry() > 0
}

// NeedsThrottling returns true if the minute budget is running low.
func (s *RateLimitState) NeedsThrottling() bool {
	return s.MinuteRemaining < MinuteThresholdWarning && !s.NeedsWait() && !s.NeedsCriticalBlock()
}

// TimeUntilRetry returns the duration until Retry-After expires.
// Returns 0 if no retry is pending.
func (s *RateLimitState) TimeUntilRetry() time.Duration {
	if s.RetryAt.IsZero() {
		return 0
	}
	d := time.Until(s.RetryAt)
	if d < 0 {
		return 0
	}
	return d
}

// UpdateHealth updates the IsHealthy field from the remaining budgets.
func (s *RateLimitState) UpdateHealth() {
	s.IsHealthy = s.MinuteRemaining >= MinuteThresholdHealthy &&
		s.DayRemaining >= DayThresholdHealthy &&
		s.TimeUntilRetry() == 0
}

// RedisKey returns the state key for a tenant.
func RedisKey(tenantID string) string {
	return fmt.Sprintf("%s%s", RedisKeyPrefix, tenantID)
}
