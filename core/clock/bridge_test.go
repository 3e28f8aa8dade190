package clock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/cadence/core/clock"
)

func TestBridgeClock_PushProducesTicks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	clk := clock.NewBridgeClock()
	rec := &tickRecorder{}
	require.NoError(t, clk.Start(ctx, rec.handle))

	clk.Push()
	clk.Push()
	clk.Push()
	clk.Push()

	require.Len(t, rec.ticks, 4)
	for i, tick := range rec.ticks {
		assert.Equal(t, uint64(i), tick.Seq)
		assert.Equal(t, clock.ReasonBridge, tick.Reason)
		assert.Positive(t, tick.TS)
	}

	clk.Stop()
	clk.Push()
	assert.Len(t, rec.ticks, 4, "push after stop is a silent no-op")
}

func TestBridgeClock_PushBeforeStart(t *testing.T) {
	t.Parallel()

	clk := clock.NewBridgeClock()
	clk.Push() // no handler registered: silently dropped
	assert.Equal(t, int64(0), clk.Stats().TickCount)
}

func TestBridgeClock_Lifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	clk := clock.NewBridgeClock()
	rec := &tickRecorder{}

	require.NoError(t, clk.Start(ctx, rec.handle))
	require.ErrorIs(t, clk.Start(ctx, rec.handle), clock.ErrClockRunning)
	require.ErrorIs(t, clock.NewBridgeClock().Start(ctx, nil), clock.ErrNilHandler)

	clk.Stop()
	clk.Stop()
	assert.False(t, clk.Running())
}

func TestBridgeClock_RestartResetsEpoch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	clk := clock.NewBridgeClock()
	rec := &tickRecorder{}
	require.NoError(t, clk.Start(ctx, rec.handle))
	clk.Push()
	clk.Push()
	clk.Stop()

	rec2 := &tickRecorder{}
	require.NoError(t, clk.Start(ctx, rec2.handle))
	clk.Push()

	require.Len(t, rec2.ticks, 1)
	assert.Equal(t, uint64(0), rec2.ticks[0].Seq, "seq restarts at zero")
	assert.Equal(t, int64(1), clk.Stats().TickCount, "stats zeroed at start")
}

func TestBridgeClock_HandlerErrorsSwallowed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	clk := clock.NewBridgeClock()
	require.NoError(t, clk.Start(ctx, func(ctx context.Context, tick clock.Tick) error {
		return errors.New("boom")
	}))

	clk.Push() // must not panic or propagate
	clk.Push()

	stats := clk.Stats()
	assert.Equal(t, int64(2), stats.TickCount)
	assert.Equal(t, int64(2), stats.Errors)
}

func TestBridgeClock_PanickingHandlerRecovered(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	clk := clock.NewBridgeClock()
	require.NoError(t, clk.Start(ctx, func(ctx context.Context, tick clock.Tick) error {
		panic("kaboom")
	}))

	require.NotPanics(t, func() { clk.Push() })
	assert.Equal(t, int64(1), clk.Stats().Errors)
}

func TestBridgeClock_Now(t *testing.T) {
	t.Parallel()

	clk := clock.NewBridgeClock()
	now := clk.Now()
	assert.InDelta(t, time.Now().UnixMilli(), now, 1000, "bridge clock reports wall time")
}
