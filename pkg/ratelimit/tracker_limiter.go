// Package ratelimit counts requests per key, in process or across replicas
// through Redis.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the wait before the key has room again, rounded up to a
// whole second.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait <= 0 {
		return time.Second
	}
	return wait.Truncate(time.Second) + time.Second
}

// Limiter records one request for key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// =============================================================================
// LocalLimiter - in-process fixed window
// =============================================================================

type LocalLimiter struct {
	mu       sync.Mutex
	requests map[string]*window
	limit    int
	window   time.Duration
	now      func() time.Time
}

type window struct {
	count     int
	expiresAt time.Time
}

var _ Limiter = (*LocalLimiter)(nil)

func NewLocalLimiter(limit int, windowSize time.Duration) *LocalLimiter {
	return &LocalLimiter{
		requests: make(map[string]*window),
		limit:    limit,
		window:   windowSize,
		now:      time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (l *LocalLimiter) WithClock(now func() time.Time) *LocalLimiter {
	l.now = now
	return l
}

func (l *LocalLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.requests[key]
	if !ok || !now.Before(w.expiresAt) {
		l.sweep(now)
		w = &window{expiresAt: now.Add(l.window)}
		l.requests[key] = w
	}

	d := Decision{Limit: l.limit, ResetAt: w.expiresAt}
	if w.count >= l.limit {
		return d, nil
	}
	w.count++
	d.Allowed = true
	d.Remaining = l.limit - w.count
	return d, nil
}

// sweep drops expired windows. Caller holds mu.
func (l *LocalLimiter) sweep(now time.Time) {
	for key, w := range l.requests {
		if !now.Before(w.expiresAt) {
			delete(l.requests, key)
		}
	}
}

// =============================================================================
// SlidingWindowLimiter - Redis sorted set per key
// =============================================================================

// slidingWindowScript trims entries older than the window, then admits the
// request if there is room. Returns {allowed, count, oldest score}.
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local max_requests = tonumber(ARGV[3])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', ARGV[2])
	local count = redis.call('ZCARD', key)
	local allowed = 0
	if count < max_requests then
		redis.call('ZADD', key, ARGV[1], ARGV[5])
		redis.call('PEXPIRE', key, ARGV[4])
		count = count + 1
		allowed = 1
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local oldest_score = tonumber(ARGV[1])
	if #oldest > 0 then
		oldest_score = tonumber(oldest[2])
	end
	return {allowed, count, oldest_score}
`)

type SlidingWindowLimiter struct {
	client    redis.UniversalClient
	limit     int
	window    time.Duration
	keyPrefix string
	now       func() time.Time
}

var _ Limiter = (*SlidingWindowLimiter)(nil)

// NewSlidingWindowLimiter shares counts across every process using client.
func NewSlidingWindowLimiter(client redis.UniversalClient, limit int, windowSize time.Duration, keyPrefix string) *SlidingWindowLimiter {
	if keyPrefix == "" {
		keyPrefix = "tracker:ratelimit:"
	}
	return &SlidingWindowLimiter{
		client:    client,
		limit:     limit,
		window:    windowSize,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (l *SlidingWindowLimiter) WithClock(now func() time.Time) *SlidingWindowLimiter {
	l.now = now
	return l
}

func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	res, err := slidingWindowScript.Run(ctx, l.client, []string{l.keyPrefix + key},
		now.UnixMilli(),
		now.Add(-l.window).UnixMilli(),
		l.limit,
		l.window.Milliseconds(),
		uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("rate limit script: unexpected reply %v", res)
	}

	count := int(res[1])
	d := Decision{
		Allowed: res[0] == 1,
		Limit:   l.limit,
		ResetAt: time.UnixMilli(res[2]).UTC().Add(l.window),
	}
	if remaining := l.limit - count; remaining > 0 {
		d.Remaining = remaining
	}
	return d, nil
}
