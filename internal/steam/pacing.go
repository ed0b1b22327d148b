package steam

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// pacer spaces requests to one store endpoint. Every finished request is
// followed by an idle gap of delay, and request starts go through a limiter
// whose interval follows delay plus the latest response time, so parallel
// callers never outpace a sequential loop that sleeps delay after each response.
type pacer struct {
	delay   time.Duration
	limiter *rate.Limiter
}

func newPacer(delay time.Duration) *pacer {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &pacer{delay: delay, limiter: rate.NewLimiter(limit, 1)}
}

// Wait blocks until the next request may start
func (p *pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// Done records a request that took latency and then idles for delay
func (p *pacer) Done(ctx context.Context, latency time.Duration) error {
	if p.delay <= 0 {
		return ctx.Err()
	}
	p.limiter.SetLimit(rate.Every(p.delay + latency))
	return sleepCtx(ctx, p.delay)
}
