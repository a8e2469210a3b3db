package security

import (
	"context"
	"sync"
	"time"
)

// AttemptLimiter caps how many guarded actions a key may perform per window.
// The HTTP layer keys it by user ID to slow down brute-forcing step codes.
type AttemptLimiter struct {
	buckets map[string]*bucket
	mu      sync.Mutex
	rate    int           // attempts per window
	window  time.Duration // refill window
	now     func() time.Time
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

// NewAttemptLimiter creates a limiter allowing rate attempts per window.
// A non-positive rate or window disables limiting.
func NewAttemptLimiter(rate int, window time.Duration) *AttemptLimiter {
	return &AttemptLimiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		window:  window,
		now:     time.Now,
	}
}

// Allow consumes one attempt for key and reports whether it was available
func (l *AttemptLimiter) Allow(key string) bool {
	if !l.enabled() {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok || now.Sub(b.lastRefill) >= l.window {
		b = &bucket{tokens: l.rate, lastRefill: now}
		l.buckets[key] = b
	}

	if b.tokens == 0 {
		return false
	}
	b.tokens--
	return true
}

// RunCleanup drops idle buckets every window until ctx is done
func (l *AttemptLimiter) RunCleanup(ctx context.Context) {
	if !l.enabled() {
		return
	}
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

func (l *AttemptLimiter) enabled() bool {
	return l.rate > 0 && l.window > 0
}

func (l *AttemptLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, b := range l.buckets {
		if now.Sub(b.lastRefill) > l.window*2 {
			delete(l.buckets, key)
		}
	}
}
