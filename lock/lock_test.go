package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedis(client, "lock:", 5*time.Second)
}

func exerciseMutualExclusion(t *testing.T, l Locker) {
	t.Helper()

	var inside, maxInside, total int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			unlock, err := l.Lock(ctx, "issue:1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&total, 1)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, int32(16), total)
}

func TestLocal_MutualExclusion(t *testing.T) {
	exerciseMutualExclusion(t, NewLocal())
}

func TestLocal_KeysAreIndependent(t *testing.T) {
	l := NewLocal()
	unlockA, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := l.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestLocal_TimesOut(t *testing.T) {
	l := NewLocal()
	unlock, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "a")
	assert.ErrorIs(t, err, ErrTimeout)

	unlock()
	unlock()

	again, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)
	again()
	assert.Empty(t, l.locks)
}

func TestRedis_MutualExclusion(t *testing.T) {
	_, l := setupTestRedis(t)
	exerciseMutualExclusion(t, l)
}

func TestRedis_ReleaseOnlyOwnToken(t *testing.T) {
	mr, l := setupTestRedis(t)

	unlock, err := l.Lock(context.Background(), "issue:2")
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:issue:2"))

	// simulate expiry and takeover by another holder
	mr.Set("lock:issue:2", "someone-else")
	unlock()
	got, _ := mr.Get("lock:issue:2")
	assert.Equal(t, "someone-else", got)
}

func TestRedis_TimesOutWhileHeld(t *testing.T) {
	mr, l := setupTestRedis(t)
	mr.Set("lock:issue:3", "held")

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	_, err := l.Lock(ctx, "issue:3")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestRedis_ExpiresAfterTTL(t *testing.T) {
	mr, l := setupTestRedis(t)
	_, err := l.Lock(context.Background(), "issue:4")
	require.NoError(t, err)

	mr.FastForward(6 * time.Second)
	unlock, err := l.Lock(context.Background(), "issue:4")
	require.NoError(t, err)
	unlock()
	assert.False(t, mr.Exists("lock:issue:4"))
}
