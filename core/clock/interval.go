package clock

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// BackpressurePolicy decides what a periodic clock does when its handler
// is slower than its rate.
type BackpressurePolicy string

const (
	// BackpressureBlock stretches the effective period: the next tick is
	// scheduled only after the handler completes (fixed-delay).
	BackpressureBlock BackpressurePolicy = "block"

	// BackpressureDrop keeps a fixed rate and skips ticks that arrive
	// while the handler is still running.
	BackpressureDrop BackpressurePolicy = "drop"

	// BackpressureAdaptive keeps a fixed rate using an accumulator of
	// elapsed time, firing bounded catch-up ticks to compensate.
	BackpressureAdaptive BackpressurePolicy = "adaptive"
)

// Drift-warning detector parameters: a tick whose absolute drift exceeds
// driftWarningRatio of the interval counts toward the consecutive streak;
// once the streak reaches driftWarningStreak the warning callback fires on
// that tick and every subsequent high-drift tick until the streak breaks.
const (
	driftWarningRatio  = 0.8
	driftWarningStreak = 5
)

// DefaultMaxCatchUpTicks bounds how many compensation ticks the drop and
// adaptive policies fire after a delayed tick.
const DefaultMaxCatchUpTicks = 3

// IntervalClock is a periodic tick generator. Scheduling always uses
// chained single-shot timers, never a repeating ticker, so the scheduler
// state machine is exactly one tick ahead of itself and Stop can always
// cancel the pending cycle.
type IntervalClock struct {
	interval       time.Duration
	policy         BackpressurePolicy
	maxCatchUp     int
	onDriftWarning func(drift time.Duration)
	onError        func(err error)
	logger         *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	handler TickHandler
	seq     uint64

	highDriftStreak int

	// nextIdeal is shared between the scheduler goroutine and the drop
	// policy's async handler goroutine (catch-up advances it).
	schedMu   sync.Mutex
	nextIdeal time.Time
	busy      bool

	wg    sync.WaitGroup
	stats tickStats
}

// NewIntervalClock creates a periodic clock. The interval must be positive.
//
// Example:
//
//	clk, err := clock.NewIntervalClock(time.Second,
//	    clock.WithBackpressure(clock.BackpressureDrop),
//	    clock.WithMaxCatchUpTicks(5),
//	)
func NewIntervalClock(interval time.Duration, opts ...IntervalOption) (*IntervalClock, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}

	c := &IntervalClock{
		interval:   interval,
		policy:     BackpressureBlock,
		maxCatchUp: DefaultMaxCatchUpTicks,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(c)
	}

	switch c.policy {
	case BackpressureBlock, BackpressureDrop, BackpressureAdaptive:
	default:
		return nil, ErrInvalidBackpressure
	}

	return c, nil
}

// Start registers the handler and launches the scheduler goroutine for the
// configured back-pressure policy. The sequence counter and all stats are
// zeroed. Returns ErrClockRunning on double start.
func (c *IntervalClock) Start(ctx context.Context, handler TickHandler) error {
	if handler == nil {
		return ErrNilHandler
	}

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrClockRunning
	}

	c.running = true
	c.handler = handler
	c.seq = 0
	c.highDriftStreak = 0
	c.stats.reset()

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "interval clock started",
		slog.Duration("interval", c.interval),
		slog.String("backpressure", string(c.policy)))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		switch c.policy {
		case BackpressureDrop:
			c.runDrop(runCtx)
		case BackpressureAdaptive:
			c.runAdaptive(runCtx)
		default:
			c.runBlock(runCtx)
		}
	}()

	return nil
}

// Stop cancels the pending scheduled tick. An in-flight handler invocation
// is allowed to complete, but no new cycle is scheduled afterwards.
// Idempotent: calling Stop on a stopped clock is a no-op.
func (c *IntervalClock) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	cancel()
	c.logger.Info("interval clock stopped")
}

// Now returns wall-clock time in Unix milliseconds.
func (c *IntervalClock) Now() int64 {
	return nowMillis()
}

// Stats returns a snapshot of the clock's counters for the current epoch.
func (c *IntervalClock) Stats() TickStats {
	return c.stats.snapshot()
}

// Running reports whether the clock is started.
func (c *IntervalClock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Seq returns the number of ticks fired in the current epoch.
func (c *IntervalClock) Seq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// runBlock implements the fixed-delay policy: the next cycle is scheduled
// only after the handler returns, so a slow handler simply stretches the
// effective period. Drift is reported as zero and nothing is ever dropped.
func (c *IntervalClock) runBlock(ctx context.Context) {
	timer := time.NewTimer(c.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			c.fireTick(ctx, ReasonInterval, 0)
			if ctx.Err() != nil {
				return
			}
			timer.Reset(c.interval)
		}
	}
}

// runDrop implements the fixed-rate policy with skip: the next cycle is
// scheduled before the handler runs, and a tick that fires while the
// previous handler is still busy is counted as dropped.
func (c *IntervalClock) runDrop(ctx context.Context) {
	c.schedMu.Lock()
	c.nextIdeal = time.Now().Add(c.interval)
	c.busy = false
	c.schedMu.Unlock()

	timer := time.NewTimer(c.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			now := time.Now()

			c.schedMu.Lock()
			drift := now.Sub(c.nextIdeal)
			c.nextIdeal = c.nextIdeal.Add(c.interval)
			delay := time.Until(c.nextIdeal)
			wasBusy := c.busy
			if !wasBusy {
				c.busy = true
			}
			c.schedMu.Unlock()

			if delay < 0 {
				delay = 0
			}
			timer.Reset(delay)

			if wasBusy {
				c.stats.addDropped(1)
				continue
			}

			c.wg.Add(1)
			go func(drift time.Duration) {
				defer c.wg.Done()
				c.fireTick(ctx, ReasonInterval, drift)
				c.catchUp(ctx, drift)

				c.schedMu.Lock()
				c.busy = false
				c.schedMu.Unlock()
			}(drift)
		}
	}
}

// catchUp fires up to maxCatchUp compensation ticks while the schedule is
// behind, then clamps the remaining backlog by skipping whole intervals.
// The clamp is what prevents a spiral of death: irrecoverable intervals are
// counted as dropped instead of being fired ever later.
func (c *IntervalClock) catchUp(ctx context.Context, drift time.Duration) {
	for fired := 0; fired < c.maxCatchUp; fired++ {
		c.schedMu.Lock()
		if c.nextIdeal.After(time.Now()) {
			c.schedMu.Unlock()
			break
		}
		c.nextIdeal = c.nextIdeal.Add(c.interval)
		c.schedMu.Unlock()

		if ctx.Err() != nil {
			return
		}
		c.fireTick(ctx, ReasonCatchup, drift)
	}

	c.schedMu.Lock()
	defer c.schedMu.Unlock()
	if now := time.Now(); c.nextIdeal.Before(now) {
		skipped := int64(now.Sub(c.nextIdeal) / c.interval)
		if skipped > 0 {
			c.stats.addDropped(skipped)
			c.nextIdeal = c.nextIdeal.Add(time.Duration(skipped) * c.interval)
		}
	}
}

// runAdaptive implements the fixed-rate policy with an accumulator of
// pending elapsed time. Each cycle fires the regular tick plus bounded
// catch-up ticks strictly sequentially, clamps whatever backlog remains,
// and schedules the next cycle from the leftover accumulator.
func (c *IntervalClock) runAdaptive(ctx context.Context) {
	nextIdeal := time.Now().Add(c.interval)
	var accumulator time.Duration

	timer := time.NewTimer(c.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			now := time.Now()
			drift := now.Sub(nextIdeal)
			accumulator += c.interval + drift

			for fired := 0; accumulator >= c.interval && fired <= c.maxCatchUp; fired++ {
				if ctx.Err() != nil {
					return
				}
				accumulator -= c.interval
				if fired == 0 {
					c.fireTick(ctx, ReasonInterval, drift)
				} else {
					c.fireTick(ctx, ReasonCatchup, 0)
				}
			}

			if accumulator >= c.interval {
				skipped := int64(accumulator / c.interval)
				c.stats.addDropped(skipped)
				accumulator -= time.Duration(skipped) * c.interval
			}

			if ctx.Err() != nil {
				return
			}

			wait := c.interval - accumulator
			if wait < 0 {
				wait = 0
			}
			nextIdeal = time.Now().Add(wait)
			timer.Reset(wait)
		}
	}
}

// fireTick builds the next tick, updates counters and the drift-warning
// detector, and runs the handler to completion. Handler failures are
// counted and reported via the error callback, never propagated.
func (c *IntervalClock) fireTick(ctx context.Context, reason TickReason, drift time.Duration) {
	if ctx.Err() != nil {
		return
	}

	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	seq := c.seq
	c.seq++
	handler := c.handler
	c.mu.Unlock()

	tick := Tick{
		TS:     nowMillis(),
		Seq:    seq,
		Reason: reason,
		Drift:  drift,
	}

	c.stats.recordTick(time.Now())
	c.stats.recordDrift(drift)
	c.checkDriftWarning(drift)

	start := time.Now()
	err := safeInvoke(handler, ctx, tick)
	c.stats.recordHandler(time.Since(start), err)

	if err != nil {
		c.logger.ErrorContext(ctx, "tick handler failed",
			slog.Uint64("seq", seq),
			slog.String("reason", string(reason)),
			slog.String("error", err.Error()))
		if c.onError != nil {
			c.onError(err)
		}
	}
}

// checkDriftWarning tracks consecutive high-drift ticks. The streak is not
// reset when the callback fires; only a tick at or below the ratio resets
// it, so the callback may fire on every tick of a sustained overload.
func (c *IntervalClock) checkDriftWarning(drift time.Duration) {
	abs := drift
	if abs < 0 {
		abs = -abs
	}
	limit := time.Duration(float64(c.interval) * driftWarningRatio)

	c.mu.Lock()
	if abs > limit {
		c.highDriftStreak++
	} else {
		c.highDriftStreak = 0
	}
	streak := c.highDriftStreak
	onWarning := c.onDriftWarning
	c.mu.Unlock()

	if streak >= driftWarningStreak {
		c.logger.Warn("sustained clock drift detected",
			slog.Duration("drift", drift),
			slog.Duration("interval", c.interval),
			slog.Int("consecutive", streak))
		if onWarning != nil {
			onWarning(drift)
		}
	}
}
