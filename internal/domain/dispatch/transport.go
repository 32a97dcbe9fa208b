package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"wipetrace/internal/platform/metrics"
)

type Transport interface {
	Name() string
	Send(ctx context.Context, msg Message) (Receipt, error)
}

// Sender is what the dispatcher and notifications send through.
type Sender interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}

// Chain sends through Primary and falls back to Fallback on any error,
// including a timeout. Either may be nil.
type Chain struct {
	Primary  Transport
	Fallback Transport
	Timeout  time.Duration
	Log      *zap.Logger
}

func NewChain(primary, fallback Transport, timeout time.Duration, log *zap.Logger) *Chain {
	if log == nil {
		log = zap.NewNop()
	}
	return &Chain{Primary: primary, Fallback: fallback, Timeout: timeout, Log: log}
}

func (c *Chain) Send(ctx context.Context, msg Message) (Receipt, error) {
	if !c.Configured() {
		return Receipt{}, ErrNoTransportConfigured
	}

	var errs []error
	for _, t := range []Transport{c.Primary, c.Fallback} {
		if t == nil {
			continue
		}
		receipt, err := c.try(ctx, t, msg)
		if err == nil {
			metrics.ObserveEmail(t.Name(), "sent")
			return receipt, nil
		}
		metrics.ObserveEmail(t.Name(), "failed")
		c.Log.Warn("email transport failed", zap.String("provider", t.Name()), zap.String("to", msg.To), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", t.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	return Receipt{}, fmt.Errorf("all email transports failed: %w", errors.Join(errs...))
}

func (c *Chain) try(ctx context.Context, t Transport, msg Message) (Receipt, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	receipt, err := t.Send(ctx, msg)
	if err != nil {
		return Receipt{}, err
	}
	if receipt.Provider == "" {
		receipt.Provider = t.Name()
	}
	return receipt, nil
}

// Configured reports whether at least one transport is present.
func (c *Chain) Configured() bool {
	return c.Primary != nil || c.Fallback != nil
}
