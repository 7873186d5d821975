package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter counts requests per client in fixed minute, hour and day
// windows and enforces a daily upload quota.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	requestsPerHour   int
	maxRequestsPerDay int
	maxDataPerDay     int64 // bytes

	clients map[string]*ClientUsage
	now     func() time.Time
}

// ClientUsage is the usage recorded for one client address.
type ClientUsage struct {
	MinuteRequests int
	HourRequests   int
	DayRequests    int
	DayBytes       int64

	minuteStart time.Time
	hourStart   time.Time
	dayStart    time.Time
	lastSeen    time.Time
}

// NewRateLimiter creates a rate limiter. Zero limits are not enforced.
func NewRateLimiter(requestsPerMinute, requestsPerHour, maxRequestsPerDay int, maxDataPerDay int64) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		requestsPerHour:   requestsPerHour,
		maxRequestsPerDay: maxRequestsPerDay,
		maxDataPerDay:     maxDataPerDay,
		clients:           make(map[string]*ClientUsage),
		now:               time.Now,
	}
}

// CheckRateLimit records a request of dataSize bytes from client, or
// returns a *RateLimitError or *QuotaExceededError when it is not allowed.
// Rejected requests are not counted.
func (rl *RateLimiter) CheckRateLimit(client string, dataSize int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	usage := rl.usage(client, now)
	usage.roll(now)

	if rl.requestsPerMinute > 0 && usage.MinuteRequests >= rl.requestsPerMinute {
		return &RateLimitError{
			Type:       "minute",
			Limit:      rl.requestsPerMinute,
			RetryAfter: usage.minuteStart.Add(time.Minute).Sub(now),
		}
	}
	if rl.requestsPerHour > 0 && usage.HourRequests >= rl.requestsPerHour {
		return &RateLimitError{
			Type:       "hour",
			Limit:      rl.requestsPerHour,
			RetryAfter: usage.hourStart.Add(time.Hour).Sub(now),
		}
	}

	resets := nextDay(now)
	if rl.maxRequestsPerDay > 0 && usage.DayRequests >= rl.maxRequestsPerDay {
		return &QuotaExceededError{
			Type:   "requests",
			Limit:  int64(rl.maxRequestsPerDay),
			Used:   int64(usage.DayRequests),
			Resets: resets,
		}
	}
	if rl.maxDataPerDay > 0 && usage.DayBytes+dataSize > rl.maxDataPerDay {
		return &QuotaExceededError{
			Type:   "data",
			Limit:  rl.maxDataPerDay,
			Used:   usage.DayBytes,
			Resets: resets,
		}
	}

	usage.MinuteRequests++
	usage.HourRequests++
	usage.DayRequests++
	usage.DayBytes += dataSize
	usage.lastSeen = now

	rl.prune(now)
	return nil
}

func (rl *RateLimiter) usage(client string, now time.Time) *ClientUsage {
	u, ok := rl.clients[client]
	if !ok {
		u = &ClientUsage{minuteStart: now, hourStart: now, dayStart: startOfDay(now), lastSeen: now}
		rl.clients[client] = u
	}
	return u
}

// prune drops clients idle for more than a day.
func (rl *RateLimiter) prune(now time.Time) {
	for k, u := range rl.clients {
		if now.Sub(u.lastSeen) > 24*time.Hour {
			delete(rl.clients, k)
		}
	}
}

func (u *ClientUsage) roll(now time.Time) {
	if now.Sub(u.minuteStart) >= time.Minute {
		u.MinuteRequests = 0
		u.minuteStart = now
	}
	if now.Sub(u.hourStart) >= time.Hour {
		u.HourRequests = 0
		u.hourStart = now
	}
	if day := startOfDay(now); !day.Equal(u.dayStart) {
		u.DayRequests = 0
		u.DayBytes = 0
		u.dayStart = day
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func nextDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1)
}

// GetUsage returns a copy of the usage recorded for client.
func (rl *RateLimiter) GetUsage(client string) ClientUsage {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if u, ok := rl.clients[client]; ok {
		return *u
	}
	return ClientUsage{}
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Type       string // "minute" or "hour"
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError represents a daily quota violation.
type QuotaExceededError struct {
	Type   string // "requests" or "data"
	Limit  int64
	Used   int64
	Resets time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
