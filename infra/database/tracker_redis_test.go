package database

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisPoolSize(t *testing.T) {
	assert.Equal(t, redisMinPool, RedisPoolSize(0))
	assert.Equal(t, redisMinPool, RedisPoolSize(2))
	assert.Equal(t, 12, RedisPoolSize(4))
	assert.Equal(t, 36, RedisPoolSize(16))
}

func TestNewRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedis(context.Background(), "redis://"+mr.Addr()+"/0", 4)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	stats := ReadRedisPool(client)
	assert.GreaterOrEqual(t, stats.TotalConns, uint32(1))
	assert.GreaterOrEqual(t, stats.HitRatio, 0.0)
	assert.LessOrEqual(t, stats.HitRatio, 1.0)
}

func TestNewRedis_Errors(t *testing.T) {
	_, err := NewRedis(context.Background(), "not-a-url", 4)
	assert.ErrorContains(t, err, "parse redis url")

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = NewRedis(context.Background(), "redis://"+addr, 4)
	assert.ErrorContains(t, err, "ping redis")
}
