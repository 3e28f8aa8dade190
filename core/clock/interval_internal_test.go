package clock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The catch-up and clamp mechanics depend on the schedule having fallen
// behind real time, which black-box tests cannot force deterministically.
// These tests plant nextIdeal in the past and drive the state machine
// directly.

func newRunningDropClock(t *testing.T, handler TickHandler) *IntervalClock {
	t.Helper()

	c, err := NewIntervalClock(30*time.Millisecond, WithBackpressure(BackpressureDrop))
	require.NoError(t, err)

	c.mu.Lock()
	c.running = true
	c.handler = handler
	c.mu.Unlock()

	return c
}

func TestCatchUp_FiresBoundedCompensationTicks(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		ticks []Tick
	)
	c := newRunningDropClock(t, func(ctx context.Context, tick Tick) error {
		mu.Lock()
		ticks = append(ticks, tick)
		mu.Unlock()
		return nil
	})

	// A little over two intervals behind: recoverable within the budget.
	c.schedMu.Lock()
	c.nextIdeal = time.Now().Add(-65 * time.Millisecond)
	c.schedMu.Unlock()

	c.catchUp(context.Background(), 65*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, ticks, 3)
	for _, tick := range ticks {
		assert.Equal(t, ReasonCatchup, tick.Reason)
		assert.Equal(t, 65*time.Millisecond, tick.Drift)
	}
	assert.Equal(t, int64(0), c.Stats().DroppedTicks)
}

func TestCatchUp_ClampSkipsIrrecoverableIntervals(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		fired int
	)
	c := newRunningDropClock(t, func(ctx context.Context, tick Tick) error {
		mu.Lock()
		fired++
		mu.Unlock()
		return nil
	})

	// ~200ms behind with a 30ms interval: 3 catch-up ticks fire (the
	// budget), then the clamp skips the remaining whole intervals instead
	// of spiraling.
	c.schedMu.Lock()
	c.nextIdeal = time.Now().Add(-200 * time.Millisecond)
	c.schedMu.Unlock()

	c.catchUp(context.Background(), 200*time.Millisecond)

	mu.Lock()
	assert.Equal(t, 3, fired)
	mu.Unlock()

	stats := c.Stats()
	assert.GreaterOrEqual(t, stats.DroppedTicks, int64(3))

	// After the clamp the schedule is within one interval of now.
	c.schedMu.Lock()
	behind := time.Since(c.nextIdeal)
	c.schedMu.Unlock()
	assert.Less(t, behind, 30*time.Millisecond+10*time.Millisecond)
}

func TestCheckDriftWarning_Streak(t *testing.T) {
	t.Parallel()

	c, err := NewIntervalClock(100 * time.Millisecond)
	require.NoError(t, err)

	warnings := 0
	c.onDriftWarning = func(drift time.Duration) { warnings++ }

	high := 90 * time.Millisecond // above the 80% ratio
	low := 10 * time.Millisecond

	for range 4 {
		c.checkDriftWarning(high)
	}
	assert.Equal(t, 0, warnings, "streak below threshold stays silent")

	c.checkDriftWarning(high)
	assert.Equal(t, 1, warnings, "fifth consecutive high-drift tick warns")

	c.checkDriftWarning(high)
	assert.Equal(t, 2, warnings, "warning keeps firing while the streak holds")

	c.checkDriftWarning(low)
	c.checkDriftWarning(high)
	assert.Equal(t, 2, warnings, "a good tick resets the streak")
}

func TestCheckDriftWarning_NegativeDrift(t *testing.T) {
	t.Parallel()

	c, err := NewIntervalClock(100 * time.Millisecond)
	require.NoError(t, err)

	warnings := 0
	c.onDriftWarning = func(drift time.Duration) { warnings++ }

	// Absolute drift counts: firing early is as bad as firing late.
	for range 5 {
		c.checkDriftWarning(-95 * time.Millisecond)
	}
	assert.Equal(t, 1, warnings)
}

func TestCheckDriftWarning_BoundaryIsInclusiveReset(t *testing.T) {
	t.Parallel()

	c, err := NewIntervalClock(100 * time.Millisecond)
	require.NoError(t, err)

	warnings := 0
	c.onDriftWarning = func(drift time.Duration) { warnings++ }

	// Exactly at the ratio does not count as high drift.
	for range 10 {
		c.checkDriftWarning(80 * time.Millisecond)
	}
	assert.Equal(t, 0, warnings)
}
