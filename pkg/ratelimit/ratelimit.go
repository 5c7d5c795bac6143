// Package ratelimit paces outbound exchange requests.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter 速率限制器接口
type Limiter interface {
	Wait(ctx context.Context) error
	Allow() bool
}

// NewLimiter returns a token bucket refilled at requestsPerSecond that holds up to burst tokens.
// requestsPerSecond <= 0 disables pacing.
func NewLimiter(requestsPerSecond float64, burst int) *rate.Limiter {
	if requestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

var _ Limiter = (*rate.Limiter)(nil)
