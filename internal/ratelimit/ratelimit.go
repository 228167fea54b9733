package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter defines the rate limiting interface
type Limiter interface {
	// Allow checks if the action is allowed for the given key
	// Returns true if allowed, false if rate limited
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// Remaining returns the number of remaining requests for the key
	Remaining(ctx context.Context, key string, limit int) (int, error)

	// RetryAfter returns the duration until the rate limit resets
	RetryAfter(ctx context.Context, key string) (time.Duration, error)
}

// MemoryLimiter is an in-memory fixed-window limiter for single-instance
// deployments.
type MemoryLimiter struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
}

type bucket struct {
	count     int
	resetTime time.Time
}

// NewMemoryLimiter creates a new in-memory rate limiter
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		buckets: make(map[string]*bucket),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[key]

	if !ok || now.After(b.resetTime) {
		l.buckets[key] = &bucket{
			count:     1,
			resetTime: now.Add(window),
		}
		return true, nil
	}

	if b.count >= limit {
		return false, nil
	}

	b.count++
	return true, nil
}

func (l *MemoryLimiter) Remaining(_ context.Context, key string, limit int) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	b, ok := l.buckets[key]
	if !ok || time.Now().After(b.resetTime) {
		return limit, nil
	}

	return max(limit-b.count, 0), nil
}

func (l *MemoryLimiter) RetryAfter(_ context.Context, key string) (time.Duration, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	now := time.Now()
	b, ok := l.buckets[key]

	if !ok || now.After(b.resetTime) {
		return 0, nil
	}

	return b.resetTime.Sub(now), nil
}

// Cleanup removes expired buckets to prevent memory leaks
func (l *MemoryLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for key, b := range l.buckets {
		if now.After(b.resetTime) {
			delete(l.buckets, key)
		}
	}
}

// StartCleanup periodically removes expired buckets until ctx is done.
func (l *MemoryLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Cleanup()
			}
		}
	}()
}

// Ensure MemoryLimiter implements Limiter
var _ Limiter = (*MemoryLimiter)(nil)
