package mail

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limiter blocks until the caller may proceed. *rate.Limiter satisfies it.
type Limiter interface {
	Wait(ctx context.Context) error
}

// NewTokenBucket allows perSecond messages with the given burst.
func NewTokenBucket(perSecond float64, burst int) *rate.Limiter {
	if burst < 1 {
		burst = 1
	}
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

type rateLimited struct {
	Transport
	limiter Limiter
}

// RateLimited makes every Send of t wait for a token from limiter.
func RateLimited(t Transport, limiter Limiter) Transport {
	if limiter == nil {
		return t
	}
	return &rateLimited{Transport: t, limiter: limiter}
}

func (r *rateLimited) Send(ctx context.Context, msg Message) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s rate limit: %w", r.Name(), err)
	}
	return r.Transport.Send(ctx, msg)
}
