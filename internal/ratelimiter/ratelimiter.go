package ratelimiter

import (
	"context"
	"math"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter throttles mutating requests at the HTTP boundary using a
// token bucket.
//
// Every write (PUT, DELETE, purge) allocates a ContentID and commits a
// transaction, so a flood of writes grows the id counter and the store
// faster than pruning can reclaim it. Reads are never limited.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter allowing requestsPerSecond sustained and burst
// immediate requests.
//
// Special cases:
//   - requestsPerSecond = 0: No rate limiting
//   - burst = 0: defaults to requestsPerSecond
func New(requestsPerSecond, burst uint) *RateLimiter {
	if requestsPerSecond == 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst == 0 {
		burst = requestsPerSecond
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst)),
	}
}

// Allow reports whether a request may proceed now, consuming a token if so.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// RetryAfter estimates how long a rejected client should wait, rounded up
// to whole seconds for the Retry-After header. It does not consume a token.
func (r *RateLimiter) RetryAfter() time.Duration {
	res := r.limiter.Reserve()
	defer res.Cancel()

	if !res.OK() {
		return time.Second
	}
	secs := math.Ceil(res.Delay().Seconds())
	return time.Duration(max(secs, 1)) * time.Second
}

// Tokens returns the current number of available tokens.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}
