package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisMinPool     = 8
	redisPingTimeout = 5 * time.Second
)

// RedisPoolSize sizes the pool for the sync workers plus API traffic. Each
// running sync holds a lock connection briefly; rate limiting and the
// judgment cache share the rest.
func RedisPoolSize(syncConcurrency int) int {
	size := syncConcurrency*2 + 4
	if size < redisMinPool {
		return redisMinPool
	}
	return size
}

// NewRedis connects and pings. Timeouts are short because every Redis use
// here has a local fallback or fails open.
func NewRedis(ctx context.Context, redisURL string, syncConcurrency int) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.PoolSize = RedisPoolSize(syncConcurrency)
	opt.MinIdleConns = 2
	opt.MaxRetries = 2
	opt.DialTimeout = 3 * time.Second
	opt.ReadTimeout = time.Second
	opt.WriteTimeout = time.Second

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisPoolStats is the readiness view of the client pool.
type RedisPoolStats struct {
	TotalConns uint32  `json:"total_conns"`
	IdleConns  uint32  `json:"idle_conns"`
	Timeouts   uint32  `json:"timeouts"`
	HitRatio   float64 `json:"hit_ratio"`
}

func ReadRedisPool(client *redis.Client) RedisPoolStats {
	s := client.PoolStats()
	stats := RedisPoolStats{
		TotalConns: s.TotalConns,
		IdleConns:  s.IdleConns,
		Timeouts:   s.Timeouts,
	}
	if lookups := s.Hits + s.Misses; lookups > 0 {
		stats.HitRatio = float64(s.Hits) / float64(lookups)
	}
	return stats
}
