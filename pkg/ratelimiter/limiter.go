package ratelimiter

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter wraps golang.org/x/time/rate.Limiter to bound outbound RPC load.
type RateLimiter struct {
	limiter *rate.Limiter
	rps     int
	burst   int
}

// NewRateLimiter creates a rate limiter from requests-per-second and burst size.
func NewRateLimiter(rps int, burst int) *RateLimiter {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		rps:     rps,
		burst:   burst,
	}
}

// Wait blocks until a token is available or the context is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Allow reports whether a request may proceed without waiting.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Reserve returns how long the caller would have to wait for the next token.
func (r *RateLimiter) Reserve() time.Duration {
	res := r.limiter.Reserve()
	if !res.OK() {
		return time.Duration(-1)
	}
	return res.Delay()
}

func (r *RateLimiter) RPS() int   { return r.rps }
func (r *RateLimiter) Burst() int { return r.burst }
