package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupRedisLimiter(t *testing.T) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisLimiter(client), mr
}

func TestRedisLimiter_Allow(t *testing.T) {
	limiter, _ := setupRedisLimiter(t)

	for i := 0; i < 3; i++ {
		if !allow(t, limiter, "vote:abc", 3, time.Hour) {
			t.Errorf("request %d should be allowed", i+1)
		}
	}
	if allow(t, limiter, "vote:abc", 3, time.Hour) {
		t.Error("fourth request should be denied")
	}
	if !allow(t, limiter, "vote:def", 3, time.Hour) {
		t.Error("different key should be allowed")
	}
}

func TestRedisLimiter_RemainingAndRetryAfter(t *testing.T) {
	limiter, _ := setupRedisLimiter(t)

	if r := remaining(t, limiter, "flag:abc", 5); r != 5 {
		t.Errorf("Remaining = %d, want 5", r)
	}
	if r := retryAfter(t, limiter, "flag:abc"); r != 0 {
		t.Errorf("RetryAfter = %v, want 0", r)
	}

	allow(t, limiter, "flag:abc", 5, time.Hour)
	allow(t, limiter, "flag:abc", 5, time.Hour)

	if r := remaining(t, limiter, "flag:abc", 5); r != 3 {
		t.Errorf("Remaining = %d, want 3", r)
	}
	if r := retryAfter(t, limiter, "flag:abc"); r <= 0 || r > time.Hour {
		t.Errorf("RetryAfter = %v, want > 0 and <= 1h", r)
	}
}

func TestRedisLimiter_WindowReset(t *testing.T) {
	limiter, mr := setupRedisLimiter(t)

	allow(t, limiter, "metoo:abc", 1, time.Minute)
	if allow(t, limiter, "metoo:abc", 1, time.Minute) {
		t.Error("should be rate limited")
	}

	mr.FastForward(2 * time.Minute)

	if !allow(t, limiter, "metoo:abc", 1, time.Minute) {
		t.Error("should be allowed after window reset")
	}
}

func TestRedisLimiter_Concurrent(t *testing.T) {
	limiter, _ := setupRedisLimiter(t)
	limit := 20

	var wg sync.WaitGroup
	var allowed atomic.Int32
	for i := 0; i < limit*2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := limiter.Allow(context.Background(), "burst", limit, time.Hour)
			if err != nil {
				t.Errorf("Allow error: %v", err)
				return
			}
			if ok {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got != int32(limit) {
		t.Errorf("allowed = %d, want %d", got, limit)
	}
}

func TestRedisLimiter_CounterWithoutExpiry(t *testing.T) {
	limiter, mr := setupRedisLimiter(t)

	// A counter left over the limit by a lost EXPIRE.
	if err := mr.Set("ratelimit:vote:stuck", "5"); err != nil {
		t.Fatalf("seed counter: %v", err)
	}
	mr.FastForward(48 * time.Hour)

	if allow(t, limiter, "vote:stuck", 3, time.Minute) {
		t.Error("over-limit counter should still deny within its window")
	}
	if ttl := mr.TTL("ratelimit:vote:stuck"); ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %v, want window applied", ttl)
	}
	if r := retryAfter(t, limiter, "vote:stuck"); r <= 0 {
		t.Errorf("RetryAfter = %v, want > 0", r)
	}

	mr.FastForward(2 * time.Minute)

	if !allow(t, limiter, "vote:stuck", 3, time.Minute) {
		t.Error("should be allowed once the repaired window ends")
	}
}
