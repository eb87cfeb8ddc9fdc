package lock

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLockerSerializesSameKey(t *testing.T) {
	l := NewMemoryLocker()

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), "conv-1")
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive)
	assert.Empty(t, l.slots)
}

func TestMemoryLockerIndependentKeys(t *testing.T) {
	l := NewMemoryLocker()

	r1, err := l.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer r1()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	r2, err := l.Acquire(ctx, "b")
	require.NoError(t, err)
	r2()
}

func TestMemoryLockerHonorsContext(t *testing.T) {
	l := NewMemoryLocker()

	release, err := l.Acquire(context.Background(), "busy")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "busy")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release()
	assert.Empty(t, l.slots)
}

func TestRedisLocker(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opt)
	defer client.Close()

	l := NewRedisLocker(client, "test:turn:", 5*time.Second)

	release, err := l.Acquire(context.Background(), "conv-redis")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "conv-redis")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()

	again, err := l.Acquire(context.Background(), "conv-redis")
	require.NoError(t, err)
	again()
}

func TestKeepAliveRenewsUntilStopped(t *testing.T) {
	stop := make(chan struct{})
	done := make(chan struct{})
	var calls int32

	go func() {
		keepAlive(stop, 5*time.Millisecond, func() (bool, error) {
			atomic.AddInt32(&calls, 1)
			return true, nil
		})
		close(done)
	}()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 3 }, time.Second, time.Millisecond)
	close(stop)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("keepAlive did not stop")
	}
}

func TestKeepAliveStopsWhenLeaseIsLost(t *testing.T) {
	done := make(chan struct{})
	var calls int32

	go func() {
		keepAlive(make(chan struct{}), 5*time.Millisecond, func() (bool, error) {
			if atomic.AddInt32(&calls, 1) == 1 {
				return false, errors.New("connection reset")
			}
			return false, nil
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("keepAlive kept running after the lease was gone")
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRedisLockerRenewsLeasePastTTL(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opt)
	defer client.Close()

	l := NewRedisLocker(client, "test:turn:", 300*time.Millisecond)

	release, err := l.Acquire(context.Background(), "conv-long")
	require.NoError(t, err)

	time.Sleep(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "conv-long")
	assert.ErrorIs(t, err, context.DeadlineExceeded, "a turn longer than the ttl must keep its lease")

	release()

	exists, err := client.Exists(context.Background(), "test:turn:conv-long").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), exists)
}
