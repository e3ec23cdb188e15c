package security

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter paces outbound scans with a token bucket.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows maxRequests per perDuration, with bursts of up to
// maxRequests.
func NewRateLimiter(maxRequests int, perDuration time.Duration) *RateLimiter {
	if maxRequests <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	every := perDuration / time.Duration(maxRequests)
	return &RateLimiter{limiter: rate.NewLimiter(rate.Every(every), maxRequests)}
}

// Unlimited never blocks.
func Unlimited() *RateLimiter {
	return NewRateLimiter(0, 0)
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// SweepLimiter paces a target sweep at perSecond targets per second; zero or
// less disables pacing.
func SweepLimiter(perSecond int) *RateLimiter {
	return NewRateLimiter(perSecond, time.Second)
}
