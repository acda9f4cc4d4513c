package middleware

import (
	"sync"
	"time"
)

const (
	BurstLimit = 5
	RefillRate = 500 * time.Millisecond
)

// RateLimiter is a token bucket: it holds up to burst tokens and gains one
// every rate.
type RateLimiter struct {
	mu     sync.Mutex
	tokens int
	burst  int
	rate   time.Duration
	last   time.Time
	now    func() time.Time
}

func NewRateLimiter(burst int, rate time.Duration) *RateLimiter {
	if burst <= 0 {
		burst = BurstLimit
	}
	if rate <= 0 {
		rate = RefillRate
	}
	return &RateLimiter{
		tokens: burst,
		burst:  burst,
		rate:   rate,
		last:   time.Now(),
		now:    time.Now,
	}
}

func (l *RateLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if generated := int(now.Sub(l.last) / l.rate); generated > 0 {
		l.tokens += generated
		if l.tokens > l.burst {
			l.tokens = l.burst
		}
		// Keep the fractional remainder so refill does not drift.
		l.last = l.last.Add(time.Duration(generated) * l.rate)
	}

	if l.tokens <= 0 {
		return false
	}
	l.tokens--
	return true
}
