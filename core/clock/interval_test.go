package clock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/cadence/core/clock"
)

// safeRecorder collects ticks from clock goroutines.
type safeRecorder struct {
	mu    sync.Mutex
	ticks []clock.Tick
}

func (r *safeRecorder) handle(ctx context.Context, tick clock.Tick) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, tick)
	return nil
}

func (r *safeRecorder) snapshot() []clock.Tick {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]clock.Tick, len(r.ticks))
	copy(out, r.ticks)
	return out
}

// =============================================================================
// Construction Tests
// =============================================================================

func TestNewIntervalClock_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		interval time.Duration
		opts     []clock.IntervalOption
		wantErr  error
	}{
		{
			name:     "valid default",
			interval: time.Second,
		},
		{
			name:     "zero interval",
			interval: 0,
			wantErr:  clock.ErrInvalidInterval,
		},
		{
			name:     "negative interval",
			interval: -time.Second,
			wantErr:  clock.ErrInvalidInterval,
		},
		{
			name:     "unknown policy",
			interval: time.Second,
			opts:     []clock.IntervalOption{clock.WithBackpressure("bogus")},
			wantErr:  clock.ErrInvalidBackpressure,
		},
		{
			name:     "drop policy",
			interval: time.Second,
			opts:     []clock.IntervalOption{clock.WithBackpressure(clock.BackpressureDrop)},
		},
		{
			name:     "adaptive policy",
			interval: time.Second,
			opts:     []clock.IntervalOption{clock.WithBackpressure(clock.BackpressureAdaptive)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			clk, err := clock.NewIntervalClock(tt.interval, tt.opts...)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, clk)
			} else {
				require.NoError(t, err)
				require.NotNil(t, clk)
			}
		})
	}
}

func TestNewIntervalClockFromConfig(t *testing.T) {
	t.Parallel()

	clk, err := clock.NewIntervalClockFromConfig(clock.Config{
		Interval:        250 * time.Millisecond,
		Backpressure:    "adaptive",
		MaxCatchUpTicks: 5,
	})
	require.NoError(t, err)
	require.NotNil(t, clk)

	_, err = clock.NewIntervalClockFromConfig(clock.Config{Interval: 0})
	require.ErrorIs(t, err, clock.ErrInvalidInterval)
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestIntervalClock_Lifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("double start fails", func(t *testing.T) {
		t.Parallel()

		clk, err := clock.NewIntervalClock(time.Second)
		require.NoError(t, err)

		rec := &safeRecorder{}
		require.NoError(t, clk.Start(ctx, rec.handle))
		defer clk.Stop()

		require.ErrorIs(t, clk.Start(ctx, rec.handle), clock.ErrClockRunning)
	})

	t.Run("nil handler fails", func(t *testing.T) {
		t.Parallel()

		clk, err := clock.NewIntervalClock(time.Second)
		require.NoError(t, err)
		require.ErrorIs(t, clk.Start(ctx, nil), clock.ErrNilHandler)
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		t.Parallel()

		clk, err := clock.NewIntervalClock(time.Second)
		require.NoError(t, err)

		clk.Stop()

		rec := &safeRecorder{}
		require.NoError(t, clk.Start(ctx, rec.handle))
		clk.Stop()
		clk.Stop()
		assert.False(t, clk.Running())
	})

	t.Run("stop prevents further ticks", func(t *testing.T) {
		t.Parallel()

		clk, err := clock.NewIntervalClock(20 * time.Millisecond)
		require.NoError(t, err)

		rec := &safeRecorder{}
		require.NoError(t, clk.Start(ctx, rec.handle))

		time.Sleep(110 * time.Millisecond)
		clk.Stop()
		time.Sleep(30 * time.Millisecond)

		count := len(rec.snapshot())
		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, count, len(rec.snapshot()))
	})

	t.Run("restart begins a fresh epoch", func(t *testing.T) {
		t.Parallel()

		clk, err := clock.NewIntervalClock(20 * time.Millisecond)
		require.NoError(t, err)

		rec := &safeRecorder{}
		require.NoError(t, clk.Start(ctx, rec.handle))
		time.Sleep(70 * time.Millisecond)
		clk.Stop()

		rec2 := &safeRecorder{}
		require.NoError(t, clk.Start(ctx, rec2.handle))
		time.Sleep(70 * time.Millisecond)
		clk.Stop()

		ticks := rec2.snapshot()
		require.NotEmpty(t, ticks)
		assert.Equal(t, uint64(0), ticks[0].Seq, "seq restarts at zero")
		assert.GreaterOrEqual(t, clk.Stats().TickCount, int64(1))
	})
}

// =============================================================================
// Block Policy Tests
// =============================================================================

func TestIntervalClock_BlockPolicy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	clk, err := clock.NewIntervalClock(50 * time.Millisecond)
	require.NoError(t, err)

	var (
		mu        sync.Mutex
		completed []clock.Tick
	)
	require.NoError(t, clk.Start(ctx, func(ctx context.Context, tick clock.Tick) error {
		time.Sleep(120 * time.Millisecond)
		mu.Lock()
		completed = append(completed, tick)
		mu.Unlock()
		return nil
	}))

	time.Sleep(500 * time.Millisecond)
	clk.Stop()
	time.Sleep(150 * time.Millisecond) // let an in-flight handler finish

	mu.Lock()
	ticks := make([]clock.Tick, len(completed))
	copy(ticks, completed)
	mu.Unlock()

	// A 120ms handler against a 50ms fixed delay completes roughly every
	// 170ms: between 2 and 4 completions in a 500ms window.
	require.GreaterOrEqual(t, len(ticks), 2)
	require.LessOrEqual(t, len(ticks), 4)

	for i, tick := range ticks {
		assert.Equal(t, uint64(i), tick.Seq)
		assert.Equal(t, clock.ReasonInterval, tick.Reason)
		assert.Equal(t, time.Duration(0), tick.Drift)
	}

	stats := clk.Stats()
	assert.Equal(t, int64(0), stats.DroppedTicks, "block never drops")
	assert.GreaterOrEqual(t, stats.MaxHandler, 100*time.Millisecond)
}

// =============================================================================
// Drop Policy Tests
// =============================================================================

func TestIntervalClock_DropPolicy_SkipsWhileBusy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	clk, err := clock.NewIntervalClock(30*time.Millisecond,
		clock.WithBackpressure(clock.BackpressureDrop),
		clock.WithMaxCatchUpTicks(3),
	)
	require.NoError(t, err)

	rec := &safeRecorder{}
	first := true
	require.NoError(t, clk.Start(ctx, func(ctx context.Context, tick clock.Tick) error {
		if first {
			first = false
			time.Sleep(150 * time.Millisecond)
		}
		return rec.handle(ctx, tick)
	}))

	time.Sleep(300 * time.Millisecond)
	clk.Stop()
	time.Sleep(50 * time.Millisecond)

	ticks := rec.snapshot()
	require.NotEmpty(t, ticks)
	for i := 1; i < len(ticks); i++ {
		assert.Greater(t, ticks[i].Seq, ticks[i-1].Seq, "seq strictly monotonic")
	}

	stats := clk.Stats()
	assert.GreaterOrEqual(t, stats.DroppedTicks, int64(1),
		"ticks arriving during the 150ms handler are dropped")
}

func TestIntervalClock_DropPolicy_KeepsRate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	clk, err := clock.NewIntervalClock(30*time.Millisecond,
		clock.WithBackpressure(clock.BackpressureDrop),
	)
	require.NoError(t, err)

	rec := &safeRecorder{}
	require.NoError(t, clk.Start(ctx, rec.handle))

	time.Sleep(310 * time.Millisecond)
	clk.Stop()
	time.Sleep(20 * time.Millisecond)

	// With instant handlers over ~10 intervals, fired + dropped stays
	// close to the schedule; the bounds leave room for timer jitter.
	stats := clk.Stats()
	total := stats.TickCount + stats.DroppedTicks
	assert.GreaterOrEqual(t, total, int64(7))
	assert.LessOrEqual(t, total, int64(12))
}

// =============================================================================
// Adaptive Policy Tests
// =============================================================================

func TestIntervalClock_AdaptivePolicy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	clk, err := clock.NewIntervalClock(20*time.Millisecond,
		clock.WithBackpressure(clock.BackpressureAdaptive),
		clock.WithMaxCatchUpTicks(3),
	)
	require.NoError(t, err)

	rec := &safeRecorder{}
	require.NoError(t, clk.Start(ctx, rec.handle))

	time.Sleep(310 * time.Millisecond)
	clk.Stop()
	time.Sleep(20 * time.Millisecond)

	ticks := rec.snapshot()
	require.NotEmpty(t, ticks)

	for i, tick := range ticks {
		assert.Equal(t, uint64(i), tick.Seq)
		if tick.Reason != clock.ReasonInterval && tick.Reason != clock.ReasonCatchup {
			t.Fatalf("unexpected reason %q", tick.Reason)
		}
	}

	// Roughly one tick per interval over ~15 intervals; catch-up and clamp
	// bound the count on both sides.
	assert.GreaterOrEqual(t, len(ticks), 8)
	assert.LessOrEqual(t, len(ticks), 20)
}

func TestIntervalClock_AdaptivePolicy_SlowHandler(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	clk, err := clock.NewIntervalClock(20*time.Millisecond,
		clock.WithBackpressure(clock.BackpressureAdaptive),
	)
	require.NoError(t, err)

	rec := &safeRecorder{}
	require.NoError(t, clk.Start(ctx, func(ctx context.Context, tick clock.Tick) error {
		time.Sleep(50 * time.Millisecond)
		return rec.handle(ctx, tick)
	}))

	time.Sleep(300 * time.Millisecond)
	clk.Stop()
	time.Sleep(80 * time.Millisecond)

	// Handler time is absorbed into the next schedule instead of
	// spiraling: ticks keep flowing and never overlap.
	ticks := rec.snapshot()
	require.GreaterOrEqual(t, len(ticks), 2)
	for i := 1; i < len(ticks); i++ {
		assert.Equal(t, ticks[i-1].Seq+1, ticks[i].Seq)
	}
}

// =============================================================================
// Error Handling Tests
// =============================================================================

func TestIntervalClock_HandlerErrorsSwallowed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	boom := errors.New("boom")

	var (
		mu       sync.Mutex
		reported []error
	)
	clk, err := clock.NewIntervalClock(20*time.Millisecond,
		clock.WithTickErrorHandler(func(err error) {
			mu.Lock()
			reported = append(reported, err)
			mu.Unlock()
		}),
	)
	require.NoError(t, err)

	require.NoError(t, clk.Start(ctx, func(ctx context.Context, tick clock.Tick) error {
		return boom
	}))

	time.Sleep(110 * time.Millisecond)
	clk.Stop()
	time.Sleep(20 * time.Millisecond)

	stats := clk.Stats()
	assert.GreaterOrEqual(t, stats.Errors, int64(1))
	assert.Equal(t, stats.TickCount, stats.Errors, "every tick failed")

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, reported)
	assert.ErrorIs(t, reported[0], boom)
}

func TestIntervalClock_PanickingHandlerRecovered(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	clk, err := clock.NewIntervalClock(20 * time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, clk.Start(ctx, func(ctx context.Context, tick clock.Tick) error {
		panic("kaboom")
	}))

	time.Sleep(90 * time.Millisecond)
	clk.Stop()
	time.Sleep(20 * time.Millisecond)

	stats := clk.Stats()
	assert.GreaterOrEqual(t, stats.TickCount, int64(1), "clock survives panicking handler")
	assert.Equal(t, stats.TickCount, stats.Errors)
}
