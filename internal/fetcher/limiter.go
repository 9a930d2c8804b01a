package fetcher

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter paces requests to a single site. A nil *Limiter never blocks.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter allows perSecond requests per second with the given burst.
// It returns nil when perSecond is not positive.
func NewLimiter(perSecond float64, burst int) *Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until the next request may be sent or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}
