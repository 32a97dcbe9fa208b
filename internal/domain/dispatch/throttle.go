package dispatch

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttle spaces consecutive provider sends by a fixed interval. A zero
// interval disables waiting.
type Throttle struct {
	limiter  *rate.Limiter
	interval time.Duration
}

func NewThrottle(interval time.Duration) *Throttle {
	if interval <= 0 {
		return &Throttle{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Every(interval), 1), interval: interval}
}

func (t *Throttle) Interval() time.Duration {
	return t.interval
}

func (t *Throttle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

// Drain calls fn for each item in order, waiting on the throttle before each
// one. The first item of an idle throttle goes out immediately. It stops and
// returns the context error if ctx ends between items.
func Drain[T any](ctx context.Context, t *Throttle, items []T, fn func(context.Context, T)) error {
	for _, item := range items {
		if err := t.Wait(ctx); err != nil {
			return err
		}
		fn(ctx, item)
	}
	return nil
}
