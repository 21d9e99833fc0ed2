package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter hands out exclusive leases on concurrency keys. Acquire returns
// ErrConcurrencyLimited when the key is held by someone else.
type Limiter interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// MemoryLimiter only serializes runs inside one process
type MemoryLimiter struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{held: make(map[string]struct{})}
}

func (l *MemoryLimiter) Acquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return nil, ErrConcurrencyLimited
	}

	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}

// Deletes the key only if it still holds our token, so a lease that expired
// and was taken over is never released by the old holder
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLimiter serializes runs across every worker sharing the redis
// instance. Leases expire after ttl in case a worker dies holding one,
// so ttl has to be longer than the slowest run.
type RedisLimiter struct {
	rdb    redis.UniversalClient
	ttl    time.Duration
	prefix string
}

func NewRedisLimiter(rdb redis.UniversalClient, ttl time.Duration) *RedisLimiter {
	return &RedisLimiter{
		rdb:    rdb,
		ttl:    ttl,
		prefix: "workflow:lock:",
	}
}

func (l *RedisLimiter) Acquire(ctx context.Context, key string) (func(), error) {
	k := l.prefix + key
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, k, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire concurrency lease, %w", err)
	}

	if !ok {
		return nil, ErrConcurrencyLimited
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := releaseScript.Run(ctx, l.rdb, []string{k}, token).Err(); err != nil {
				zap.L().Error("Failed to release concurrency lease", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}
