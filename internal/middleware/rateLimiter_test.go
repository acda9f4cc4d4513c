package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	l := NewRateLimiter(5, 500*time.Millisecond)
	l.last = start
	l.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow(), "burst token %d", i)
	}
	assert.False(t, l.Allow(), "bucket should be empty")

	now = start.Add(499 * time.Millisecond)
	assert.False(t, l.Allow())

	now = start.Add(500 * time.Millisecond)
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())

	// A long idle period refills only up to the burst.
	now = start.Add(time.Minute)
	allowed := 0
	for i := 0; i < 10; i++ {
		if l.Allow() {
			allowed++
		}
	}
	assert.Equal(t, 5, allowed)
}

func TestNewRateLimiter_Defaults(t *testing.T) {
	l := NewRateLimiter(0, 0)
	assert.Equal(t, BurstLimit, l.burst)
	assert.Equal(t, RefillRate, l.rate)
}
