// Package lock implements the per-integration sync lock.
package lock

import (
	"context"
	"sync"
	"time"

	"tracker_server/core/port/out"
	"tracker_server/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	_ out.SyncLocker = (*RedisLocker)(nil)
	_ out.SyncLocker = (*LocalLocker)(nil)
)

const defaultKeyPrefix = "tracker:sync-lock:"

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another run is left alone.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// =============================================================================
// RedisLocker
// =============================================================================

// RedisLocker holds one SET NX PX key per integration, shared across processes.
type RedisLocker struct {
	client    redis.UniversalClient
	keyPrefix string
}

func NewRedisLocker(client redis.UniversalClient, keyPrefix string) *RedisLocker {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisLocker{client: client, keyPrefix: keyPrefix}
}

func (l *RedisLocker) Acquire(ctx context.Context, integrationID uuid.UUID, ttl time.Duration) (func(), error) {
	key := l.keyPrefix + integrationID.String()
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, out.ErrLockHeld
	}
	logger.Debug("[RedisLocker.Acquire] acquired %s", key)

	var once sync.Once
	release := func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			n, err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Int64()
			if err != nil {
				logger.WithError(err).Warn("[RedisLocker.Release] release %s", key)
				return
			}
			if n == 0 {
				logger.Warn("[RedisLocker.Release] %s expired before release", key)
			}
		})
	}
	return release, nil
}

// =============================================================================
// LocalLocker
// =============================================================================

// LocalLocker is the single-process fallback used when Redis is not configured.
type LocalLocker struct {
	mu   sync.Mutex
	held map[uuid.UUID]localLease
	seq  uint64
	now  func() time.Time
}

type localLease struct {
	token   uint64
	expires time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[uuid.UUID]localLease), now: time.Now}
}

func (l *LocalLocker) Acquire(ctx context.Context, integrationID uuid.UUID, ttl time.Duration) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if lease, ok := l.held[integrationID]; ok && now.Before(lease.expires) {
		return nil, out.ErrLockHeld
	}
	l.seq++
	lease := localLease{token: l.seq, expires: now.Add(ttl)}
	l.held[integrationID] = lease

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if cur, ok := l.held[integrationID]; ok && cur.token == lease.token {
				delete(l.held, integrationID)
			}
		})
	}, nil
}
