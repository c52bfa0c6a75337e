// Package ratelimit enforces a minimum spacing between accepted samples per
// vehicle. Samples arriving sooner are dropped, not queued.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter reports whether a sample for key received at now may be accepted.
// Accepting records now as the key's last accepted time.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (bool, error)
}

// MemoryLimiter keeps the last accepted time per key in process.
type MemoryLimiter struct {
	mu       sync.Mutex
	last     map[string]time.Time
	interval time.Duration
}

func NewMemoryLimiter(interval time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		last:     make(map[string]time.Time),
		interval: interval,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, now time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if prev, ok := l.last[key]; ok && now.Sub(prev) < l.interval {
		return false, nil
	}
	l.last[key] = now
	return true, nil
}

// Run evicts keys idle for longer than the interval until ctx is done.
func (l *MemoryLimiter) Run(ctx context.Context) {
	period := l.interval
	if period < time.Second {
		period = time.Second
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.evict(now)
		}
	}
}

func (l *MemoryLimiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, t := range l.last {
		if now.Sub(t) >= l.interval {
			delete(l.last, k)
		}
	}
}

func (l *MemoryLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.last)
}
