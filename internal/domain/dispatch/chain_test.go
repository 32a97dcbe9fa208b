package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTransport struct {
	name  string
	err   error
	delay time.Duration
	calls int
}

func (s *stubTransport) Name() string { return s.name }

func (s *stubTransport) Send(ctx context.Context, _ Message) (Receipt, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return Receipt{}, ctx.Err()
		}
	}
	if s.err != nil {
		return Receipt{}, s.err
	}
	return Receipt{MessageID: s.name + "-id"}, nil
}

func TestChainUsesPrimary(t *testing.T) {
	primary := &stubTransport{name: "sendgrid"}
	fallback := &stubTransport{name: "smtp"}

	receipt, err := NewChain(primary, fallback, time.Second, nil).Send(context.Background(), Message{To: "a@b.test"})
	require.NoError(t, err)
	assert.Equal(t, "sendgrid", receipt.Provider)
	assert.Equal(t, "sendgrid-id", receipt.MessageID)
	assert.Zero(t, fallback.calls)
}

func TestChainFallsBackOnError(t *testing.T) {
	primary := &stubTransport{name: "sendgrid", err: errors.New("503")}
	fallback := &stubTransport{name: "smtp"}

	receipt, err := NewChain(primary, fallback, time.Second, nil).Send(context.Background(), Message{})
	require.NoError(t, err)
	assert.Equal(t, "smtp", receipt.Provider)
	assert.Equal(t, 1, primary.calls)
}

func TestChainFallsBackOnTimeout(t *testing.T) {
	primary := &stubTransport{name: "sendgrid", delay: time.Second}
	fallback := &stubTransport{name: "smtp"}

	receipt, err := NewChain(primary, fallback, 20*time.Millisecond, nil).Send(context.Background(), Message{})
	require.NoError(t, err)
	assert.Equal(t, "smtp", receipt.Provider)
}

func TestChainBothFail(t *testing.T) {
	primary := &stubTransport{name: "sendgrid", err: errors.New("unauthorized")}
	fallback := &stubTransport{name: "smtp", err: errors.New("connection refused")}

	_, err := NewChain(primary, fallback, time.Second, nil).Send(context.Background(), Message{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestChainOnlyFallback(t *testing.T) {
	fallback := &stubTransport{name: "smtp"}
	receipt, err := NewChain(nil, fallback, 0, nil).Send(context.Background(), Message{})
	require.NoError(t, err)
	assert.Equal(t, "smtp", receipt.Provider)
}

func TestChainNotConfigured(t *testing.T) {
	_, err := (&Chain{}).Send(context.Background(), Message{})
	assert.ErrorIs(t, err, ErrNoTransportConfigured)
}
