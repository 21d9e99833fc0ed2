package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "user-1")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "user-1")
	assert.ErrorIs(t, err, ErrConcurrencyLimited)

	other, err := l.Acquire(ctx, "user-2")
	require.NoError(t, err)
	other()

	release()
	// Releasing twice must not free a lease taken by someone else
	again, err := l.Acquire(ctx, "user-1")
	require.NoError(t, err)
	release()

	_, err = l.Acquire(ctx, "user-1")
	assert.ErrorIs(t, err, ErrConcurrencyLimited)
	again()
}

func TestKeyFromData(t *testing.T) {
	key := KeyFromData("userId")

	e, err := NewEvent("x", map[string]any{"userId": "abc", "n": 1})
	require.NoError(t, err)

	k, err := key(e)
	require.NoError(t, err)
	assert.Equal(t, "abc", k)

	e, err = NewEvent("x", map[string]any{"n": 1})
	require.NoError(t, err)
	_, err = key(e)
	assert.Error(t, err)

	_, err = key(Event{Name: "x"})
	assert.Error(t, err)
}

func TestNewEvent(t *testing.T) {
	_, err := NewEvent("", nil)
	assert.Error(t, err)

	a, err := NewEvent("x", map[string]string{"k": "v"})
	require.NoError(t, err)
	b, err := NewEvent("x", map[string]string{"k": "v"})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.Timestamp.IsZero())

	var data map[string]string
	require.NoError(t, a.Decode(&data))
	assert.Equal(t, "v", data["k"])
}

func newTestRedisLimiter(t *testing.T, ttl time.Duration) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), Protocol: 2})
	t.Cleanup(func() { rdb.Close() })

	return NewRedisLimiter(rdb, ttl), mr
}

func TestRedisLimiter(t *testing.T) {
	l, mr := newTestRedisLimiter(t, time.Minute)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("workflow:lock:user-1"))
	assert.Equal(t, time.Minute, mr.TTL("workflow:lock:user-1"))

	_, err = l.Acquire(ctx, "user-1")
	assert.ErrorIs(t, err, ErrConcurrencyLimited)

	other, err := l.Acquire(ctx, "user-2")
	require.NoError(t, err)
	other()

	release()
	assert.False(t, mr.Exists("workflow:lock:user-1"))

	again, err := l.Acquire(ctx, "user-1")
	require.NoError(t, err)
	again()
}

func TestRedisLimiter_ExpiredLeaseIsNotReleasedByOldHolder(t *testing.T) {
	l, mr := newTestRedisLimiter(t, time.Minute)
	ctx := context.Background()

	stale, err := l.Acquire(ctx, "user-1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	current, err := l.Acquire(ctx, "user-1")
	require.NoError(t, err)

	stale()
	assert.True(t, mr.Exists("workflow:lock:user-1"))

	_, err = l.Acquire(ctx, "user-1")
	assert.ErrorIs(t, err, ErrConcurrencyLimited)

	current()
	assert.False(t, mr.Exists("workflow:lock:user-1"))
}

func TestRedisLimiter_RedisError(t *testing.T) {
	l, mr := newTestRedisLimiter(t, time.Minute)
	mr.SetError("ERR server unavailable")

	_, err := l.Acquire(context.Background(), "user-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConcurrencyLimited)
}

func TestNewEventWithID(t *testing.T) {
	e, err := NewEventWithID("fixed", "x", map[string]string{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", e.ID)
	assert.Equal(t, "x", e.Name)

	_, err = NewEventWithID("", "x", nil)
	assert.Error(t, err)
}
