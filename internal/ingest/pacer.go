package ingest

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer gates calls to the news provider.
type Pacer interface {
	Wait(ctx context.Context) error
}

// RatePacer lets one provider call through per interval.
type RatePacer struct {
	limiter *rate.Limiter
}

// NewRatePacer returns a pacer with the given interval between calls. A
// non-positive interval disables pacing.
func NewRatePacer(interval time.Duration) *RatePacer {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &RatePacer{limiter: rate.NewLimiter(limit, 1)}
}

func (p *RatePacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// NoopPacer never waits.
type NoopPacer struct{}

func (NoopPacer) Wait(ctx context.Context) error {
	return ctx.Err()
}
