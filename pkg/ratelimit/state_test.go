package ratelimit

import (
	"testing"
	"time"
)

func TestRateLimitState_IsStale(t *testing.T) {
	tests := []struct {
		name     string
		state    *RateLimitState
		maxAge   time.Duration
		expected bool
	}{
		{
			name:     "fresh state",
			state:    &RateLimitState{LastUpdate: time.Now()},
			maxAge:   5 * time.Minute,
			expected: false,
		},
		{
			name:     "stale state",
			state:    &RateLimitState{LastUpdate: time.Now().Add(-10 * time.Minute)},
			maxAge:   5 * time.Minute,
			expected: true,
		},
		{
			name:     "just under max age",
			state:    &RateLimitState{LastUpdate: time.Now().Add(-4 * time.Minute)},
			maxAge:   5 * time.Minute,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsStale(tt.maxAge); got != tt.expected {
				t.Errorf("IsStale() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRateLimitState_Decisions(t *testing.T) {
	future := time.Now().Add(30 * time.Second)
	past := time.Now().Add(-30 * time.Second)

	tests := []struct {
		name         string
		state        RateLimitState
		wantBlock    bool
		wantWait     bool
		wantThrottle bool
		wantHealthy  bool
	}{
		{
			name:        "healthy",
			state:       RateLimitState{MinuteRemaining: 55, DayRemaining: 4000},
			wantHealthy: true,
		},
		{
			name:         "minute budget low",
			state:        RateLimitState{MinuteRemaining: 2, DayRemaining: 4000},
			wantThrottle: true,
		},
		{
			name:     "minute limit hit",
			state:    RateLimitState{MinuteRemaining: 0, DayRemaining: 4000, Problem: ProblemMinute, RetryAt: future},
			wantWait: true,
		},
		{
			name:      "day limit hit",
			state:     RateLimitState{MinuteRemaining: 50, DayRemaining: 0, Problem: ProblemDay, RetryAt: future},
			wantBlock: true,
		},
		{
			name:        "retry already passed",
			state:       RateLimitState{MinuteRemaining: 40, DayRemaining: 4000, Problem: ProblemMinute, RetryAt: past},
			wantHealthy: true,
		},
		{
			name:  "day budget low",
			state: RateLimitState{MinuteRemaining: 50, DayRemaining: 100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.state
			s.UpdateHealth()

			if got := s.NeedsCriticalBlock(); got != tt.wantBlock {
				t.Errorf("NeedsCriticalBlock() = %v, want %v", got, tt.wantBlock)
			}
			if got := s.NeedsWait(); got != tt.wantWait {
				t.Errorf("NeedsWait() = %v, want %v", got, tt.wantWait)
			}
			if got := s.NeedsThrottling(); got != tt.wantThrottle {
				t.Errorf("NeedsThrottling() = %v, want %v", got, tt.wantThrottle)
			}
			if s.IsHealthy != tt.wantHealthy {
				t.Errorf("IsHealthy = %v, want %v", s.IsHealthy, tt.wantHealthy)
			}
		})
	}
}

func TestRateLimitState_TimeUntilRetry(t *testing.T) {
	s := &RateLimitState{}
	if got := s.TimeUntilRetry(); got != 0 {
		t.Errorf("TimeUntilRetry() with zero RetryAt = %v, want 0", got)
	}

	s.RetryAt = time.Now().Add(-time.Minute)
	if got := s.TimeUntilRetry(); got != 0 {
		t.Errorf("TimeUntilRetry() in the past = %v, want 0", got)
	}

	s.RetryAt = time.Now().Add(time.Minute)
	if got := s.TimeUntilRetry(); got < 59*time.Second || got > time.Minute {
		t.Errorf("TimeUntilRetry() = %v, want about 1m", got)
	}
}

func TestNewHealthyState(t *testing.T) {
	s := NewHealthyState()
	if !s.IsHealthy {
		t.Error("default state should be healthy")
	}
	if s.MinuteRemaining != MinuteLimit || s.DayRemaining != DayLimit {
		t.Errorf("default budgets = %d/%d, want %d/%d", s.MinuteRemaining, s.DayRemaining, MinuteLimit, DayLimit)
	}
}

func TestRedisKey(t *testing.T) {
	if got := RedisKey("tenant-1"); got != "xero:rate_limit:tenant-1" {
		t.Errorf("RedisKey() = %q", got)
	}
}
