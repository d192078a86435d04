package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacer_EnforcesInterval(t *testing.T) {
	p := NewPacer(40 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, p.Wait(ctx))
	assert.Less(t, time.Since(start), 20*time.Millisecond, "first request is not delayed")

	require.NoError(t, p.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestPacer_Disabled(t *testing.T) {
	p := NewPacer(0)
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, p.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestPacer_Cancelled(t *testing.T) {
	p := NewPacer(time.Hour)
	require.NoError(t, p.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, p.Wait(ctx))
}

func TestPacer_Nil(t *testing.T) {
	var p *Pacer
	assert.NoError(t, p.Wait(context.Background()))
	assert.Equal(t, 3*time.Second, Interval(3000))
}
