package clock

import (
	"context"
	"sync"
	"time"
)

// TestClock is a virtual-time clock for deterministic tests. It uses no
// real timers: time only moves when Tick, AdvanceBy, or Flush is called,
// and handler invocations run synchronously in the caller's goroutine.
//
// Unlike real clocks, handler errors are returned to the caller (in
// addition to being counted) so tests can assert on them directly.
type TestClock struct {
	interval time.Duration

	mu          sync.Mutex
	running     bool
	handler     TickHandler
	virtual     time.Duration
	accumulator time.Duration
	seq         uint64
	stats       tickStats
}

// NewTestClock creates a virtual-time clock. A non-positive interval
// defaults to one second.
func NewTestClock(interval time.Duration) *TestClock {
	if interval <= 0 {
		interval = time.Second
	}
	return &TestClock{interval: interval}
}

// Start registers the handler. No ticks are produced until time is
// advanced explicitly. The sequence counter and stats are zeroed;
// virtual time is preserved across epochs (use Reset to zero it).
func (c *TestClock) Start(ctx context.Context, handler TickHandler) error {
	if handler == nil {
		return ErrNilHandler
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrClockRunning
	}

	c.running = true
	c.handler = handler
	c.seq = 0
	c.stats.reset()
	return nil
}

// Stop clears the handler and zeroes the accumulator. Virtual time, the
// sequence counter, and stats are preserved. Idempotent.
func (c *TestClock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.running = false
	c.handler = nil
	c.accumulator = 0
}

// Tick fires count manual ticks, each advancing virtual time by one
// interval. A count below one fires a single tick. The first handler
// error aborts the remaining iterations and is returned.
func (c *TestClock) Tick(ctx context.Context, count int) error {
	if count < 1 {
		count = 1
	}

	for range count {
		c.mu.Lock()
		if !c.running {
			c.mu.Unlock()
			return ErrClockNotRunning
		}
		c.virtual += c.interval
		c.mu.Unlock()

		if err := c.fire(ctx); err != nil {
			return err
		}
	}
	return nil
}

// AdvanceBy adds d to the pending-time accumulator and fires one manual
// tick per whole interval contained in it. The residual carries over to
// subsequent calls. The first handler error aborts and is returned.
func (c *TestClock) AdvanceBy(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return ErrClockNotRunning
	}
	c.accumulator += d
	c.mu.Unlock()

	for {
		c.mu.Lock()
		if !c.running {
			c.mu.Unlock()
			return ErrClockNotRunning
		}
		if c.accumulator < c.interval {
			c.mu.Unlock()
			return nil
		}
		c.accumulator -= c.interval
		c.virtual += c.interval
		c.mu.Unlock()

		if err := c.fire(ctx); err != nil {
			// The residual accumulator keeps the unfired intervals, so
			// PendingTicks reflects what a retry would deliver.
			return err
		}
	}
}

// Flush drains a non-zero accumulator: virtual time jumps by the residual
// and a single manual tick fires. A zero accumulator is a no-op.
func (c *TestClock) Flush(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return ErrClockNotRunning
	}
	if c.accumulator == 0 {
		c.mu.Unlock()
		return nil
	}
	c.virtual += c.accumulator
	c.accumulator = 0
	c.mu.Unlock()

	return c.fire(ctx)
}

// Reset zeroes virtual time, the sequence counter, the accumulator, and
// all stats. Valid in any state.
func (c *TestClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.virtual = 0
	c.accumulator = 0
	c.seq = 0
	c.stats.reset()
}

// PendingTicks reports how many whole intervals are buffered in the
// accumulator, i.e. how many ticks the next AdvanceBy(0) would fire.
func (c *TestClock) PendingTicks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int(c.accumulator / c.interval)
}

// Now returns virtual time in milliseconds, starting at zero.
func (c *TestClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.virtual.Milliseconds()
}

// Stats returns a snapshot of the clock's counters. DroppedTicks and
// AvgDrift are always zero for the test clock.
func (c *TestClock) Stats() TickStats {
	return c.stats.snapshot()
}

// Running reports whether a handler is registered.
func (c *TestClock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Seq returns the number of ticks fired in the current epoch.
func (c *TestClock) Seq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// fire delivers one manual tick at the current virtual time. Handler
// errors are counted and returned.
func (c *TestClock) fire(ctx context.Context) error {
	c.mu.Lock()
	handler := c.handler
	if handler == nil {
		c.mu.Unlock()
		return ErrClockNotRunning
	}
	tick := Tick{
		TS:     c.virtual.Milliseconds(),
		Seq:    c.seq,
		Reason: ReasonManual,
	}
	c.seq++
	c.mu.Unlock()

	c.stats.recordTick(time.Now())

	start := time.Now()
	err := handler(ctx, tick)
	c.stats.recordHandler(time.Since(start), err)

	return err
}
