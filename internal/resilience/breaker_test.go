package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int, cooldown time.Duration) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(BreakerConfig{FailureThreshold: threshold, Cooldown: cooldown})
	cb.now = clock.Now
	return cb, clock
}

func fail(context.Context) (int, error) { return 0, errors.New("boom") }
func ok(context.Context) (int, error)   { return 1, nil }

func TestBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{})
	assert.Equal(t, 5, cb.cfg.FailureThreshold)
	assert.Equal(t, 60*time.Second, cb.cfg.Cooldown)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	ctx := context.Background()
	cb, _ := newTestBreaker(2, time.Minute)

	_, _ = ExecuteVal(ctx, cb, fail)
	assert.Equal(t, CircuitClosed, cb.State())
	_, _ = ExecuteVal(ctx, cb, fail)
	assert.Equal(t, CircuitOpen, cb.State())

	_, err := ExecuteVal(ctx, cb, ok)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, time.Minute, cb.Remaining())
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	ctx := context.Background()
	cb, _ := newTestBreaker(2, time.Minute)

	_, _ = ExecuteVal(ctx, cb, fail)
	_, _ = ExecuteVal(ctx, cb, ok)
	_, _ = ExecuteVal(ctx, cb, fail)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	ctx := context.Background()
	cb, clock := newTestBreaker(1, time.Minute)

	_, _ = ExecuteVal(ctx, cb, fail)
	require.Equal(t, CircuitOpen, cb.State())

	clock.Advance(time.Minute)
	assert.Equal(t, CircuitHalfOpen, cb.State())
	assert.Zero(t, cb.Remaining())

	v, err := ExecuteVal(ctx, cb, ok)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	ctx := context.Background()
	cb, clock := newTestBreaker(1, time.Minute)

	_, _ = ExecuteVal(ctx, cb, fail)
	clock.Advance(time.Minute)
	_, _ = ExecuteVal(ctx, cb, fail)
	assert.Equal(t, CircuitOpen, cb.State())
	assert.Equal(t, time.Minute, cb.Remaining())
}

func TestBreaker_CancellationNotCounted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cb, _ := newTestBreaker(1, time.Minute)

	_, err := ExecuteVal(ctx, cb, func(ctx context.Context) (int, error) { return 0, ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestBreaker_StateChangeCallback(t *testing.T) {
	var seen []string
	cb := NewCircuitBreaker(BreakerConfig{
		FailureThreshold: 1,
		Cooldown:         time.Minute,
		OnStateChange: func(from, to CircuitState) {
			seen = append(seen, from.String()+"->"+to.String())
		},
	})
	_, _ = ExecuteVal(context.Background(), cb, fail)
	assert.Equal(t, []string{"closed->open"}, seen)
}

func TestBreaker_WaitReturnsWhenClosed(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Minute)
	assert.NoError(t, cb.Wait(context.Background()))
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(9).String())
}
