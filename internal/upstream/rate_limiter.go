package upstream

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter spaces requests to the ERP evenly across all fetchers of a client.
type RateLimiter struct {
	lim *rate.Limiter
}

func NewRateLimiter(requestsPerSecond int) *RateLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &RateLimiter{lim: rate.NewLimiter(rate.Limit(requestsPerSecond), 1)}
}

func (r *RateLimiter) WaitTurn(ctx context.Context) error {
	return r.lim.Wait(ctx)
}
