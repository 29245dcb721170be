package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)

func TestLocalLimiter(t *testing.T) {
	ctx := context.Background()
	now := t0
	l := NewLocalLimiter(2, time.Minute).WithClock(func() time.Time { return now })

	d, err := l.Allow(ctx, "user:a")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)

	d, _ = l.Allow(ctx, "user:a")
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	d, _ = l.Allow(ctx, "user:a")
	assert.False(t, d.Allowed)
	assert.Equal(t, t0.Add(time.Minute), d.ResetAt)
	assert.Equal(t, 61*time.Second, d.RetryAfter(now))

	other, _ := l.Allow(ctx, "user:b")
	assert.True(t, other.Allowed)

	now = now.Add(time.Minute)
	d, _ = l.Allow(ctx, "user:a")
	assert.True(t, d.Allowed)
}

func TestLocalLimiter_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLocalLimiter(1, time.Second).Allow(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func newRedisLimiter(t *testing.T, limit int, window time.Duration, now *time.Time) (*SlidingWindowLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewSlidingWindowLimiter(client, limit, window, "").WithClock(func() time.Time { return *now }), mr
}

func TestSlidingWindowLimiter(t *testing.T) {
	ctx := context.Background()
	now := t0
	l, mr := newRedisLimiter(t, 2, time.Minute, &now)

	d, err := l.Allow(ctx, "user:a")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
	assert.True(t, mr.Exists("tracker:ratelimit:user:a"))

	now = now.Add(20 * time.Second)
	d, err = l.Allow(ctx, "user:a")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	now = now.Add(20 * time.Second)
	d, err = l.Allow(ctx, "user:a")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	// The oldest entry leaves the window one minute after it was recorded.
	assert.WithinDuration(t, t0.Add(time.Minute), d.ResetAt, 0)

	// Sliding: after the first entry ages out, one slot frees up.
	now = t0.Add(time.Minute + time.Second)
	d, err = l.Allow(ctx, "user:a")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = l.Allow(ctx, "user:a")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestSlidingWindowLimiter_RedisDown(t *testing.T) {
	now := t0
	l, mr := newRedisLimiter(t, 1, time.Minute, &now)
	mr.Close()

	_, err := l.Allow(context.Background(), "user:a")
	assert.Error(t, err)
}

func TestDecision_RetryAfter(t *testing.T) {
	tests := []struct {
		name  string
		reset time.Duration
		want  time.Duration
	}{
		{"already reset", -time.Second, time.Second},
		{"exact seconds", 30 * time.Second, 31 * time.Second},
		{"fractional", 1500 * time.Millisecond, 2 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decision{ResetAt: t0.Add(tt.reset)}
			assert.Equal(t, tt.want, d.RetryAfter(t0))
		})
	}
}
