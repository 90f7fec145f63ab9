package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseLocker(t *testing.T, l Locker, key string) {
	t.Helper()

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), key)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&active, 1)
			for {
				cur := atomic.LoadInt32(&maxActive)
				if n <= cur || atomic.CompareAndSwapInt32(&maxActive, cur, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxActive))
}

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	exerciseLocker(t, NewKeyedMutex(), "ticket-1")
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	k := NewKeyedMutex()
	unlockA, err := k.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	unlockB, err := k.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestKeyedMutexHonoursContext(t *testing.T) {
	k := NewKeyedMutex()
	unlock, err := k.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = k.Lock(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()

	again, err := k.Lock(context.Background(), "a")
	require.NoError(t, err)
	again()

	k.mu.Lock()
	assert.Empty(t, k.slots)
	k.mu.Unlock()
}

func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisLockerSerializes(t *testing.T) {
	client := redisClient(t)
	l := NewRedisLocker(client, 5*time.Second, nil)
	key := "test-" + t.Name()
	client.Del(context.Background(), keyPrefix+key)

	exerciseLocker(t, l, key)
}

func TestRedisLockerReleaseOnlyOwnLease(t *testing.T) {
	client := redisClient(t)
	l := NewRedisLocker(client, 5*time.Second, nil)
	key := "test-" + t.Name()
	ctx := context.Background()
	client.Del(ctx, keyPrefix+key)

	unlock, err := l.Lock(ctx, key)
	require.NoError(t, err)

	// simulate lease expiry and takeover by another holder
	require.NoError(t, client.Set(ctx, keyPrefix+key, "other", time.Minute).Err())
	unlock()

	val, err := client.Get(ctx, keyPrefix+key).Result()
	require.NoError(t, err)
	assert.Equal(t, "other", val)
	client.Del(ctx, keyPrefix+key)
}

func TestRedisLockerRenewsLeaseWhileHeld(t *testing.T) {
	client := redisClient(t)
	l := NewRedisLocker(client, 300*time.Millisecond, nil)
	key := "test-" + t.Name()
	ctx := context.Background()
	client.Del(ctx, keyPrefix+key)

	unlock, err := l.Lock(ctx, key)
	require.NoError(t, err)

	// several TTLs pass while the holder is still working
	time.Sleep(time.Second)

	waitCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_, err = l.Lock(waitCtx, key)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	next, err := l.Lock(ctx, key)
	require.NoError(t, err)
	next()

	exists, err := client.Exists(ctx, keyPrefix+key).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}
