package worldbank

import (
	"context"
	"sync"
	"time"
)

// RateLimiter implements token bucket rate limiting
type RateLimiter struct {
	rate     int // requests per interval
	tokens   chan struct{}
	interval time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter allows requestsPerMinute requests per minute.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	return newRateLimiter(requestsPerMinute, time.Minute)
}

func newRateLimiter(rate int, interval time.Duration) *RateLimiter {
	if rate <= 0 {
		rate = 1
	}
	rl := &RateLimiter{
		rate:     rate,
		tokens:   make(chan struct{}, rate),
		interval: interval,
		stop:     make(chan struct{}),
	}
	rl.refill()
	go rl.run()
	return rl
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	select {
	case <-rl.tokens:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop ends the refill loop.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) run() {
	ticker := time.NewTicker(rl.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.refill()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) refill() {
	for i := 0; i < rl.rate; i++ {
		select {
		case rl.tokens <- struct{}{}:
		default:
			return
		}
	}
}
