package clock

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// BridgeClock converts external pushes into ticks: each Push while running
// produces exactly one tick with reason "bridge". Pushes while stopped are
// silently dropped. Handler errors are counted and never escape Push.
type BridgeClock struct {
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	handler TickHandler
	ctx     context.Context
	cancel  context.CancelFunc
	seq     uint64
	stats   tickStats
}

// BridgeOption configures a BridgeClock.
type BridgeOption func(*BridgeClock)

// WithBridgeLogger configures structured logging for the bridge clock.
func WithBridgeLogger(logger *slog.Logger) BridgeOption {
	return func(c *BridgeClock) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewBridgeClock creates an externally-driven clock.
func NewBridgeClock(opts ...BridgeOption) *BridgeClock {
	c := &BridgeClock{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Start registers the handler and arms the clock. The sequence counter and
// stats are zeroed. Returns ErrClockRunning on double start.
func (c *BridgeClock) Start(ctx context.Context, handler TickHandler) error {
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
	c.ctx, c.cancel = context.WithCancel(ctx)
	return nil
}

// Stop disarms the clock. Subsequent pushes are dropped. Idempotent.
func (c *BridgeClock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}

	c.running = false
	c.handler = nil
	c.cancel()
	c.cancel = nil
	c.ctx = nil
}

// Push fires one tick with reason "bridge" at the current wall-clock time.
// A push while the clock is stopped is a silent no-op. The handler runs in
// the caller's goroutine; its errors are counted and swallowed.
func (c *BridgeClock) Push() {
	c.mu.Lock()
	if !c.running || c.handler == nil {
		c.mu.Unlock()
		return
	}
	handler := c.handler
	ctx := c.ctx
	tick := Tick{
		TS:     nowMillis(),
		Seq:    c.seq,
		Reason: ReasonBridge,
	}
	c.seq++
	c.mu.Unlock()

	c.stats.recordTick(time.Now())

	start := time.Now()
	err := safeInvoke(handler, ctx, tick)
	c.stats.recordHandler(time.Since(start), err)

	if err != nil {
		c.logger.ErrorContext(ctx, "bridge tick handler failed",
			slog.Uint64("seq", tick.Seq),
			slog.String("error", err.Error()))
	}
}

// Now returns wall-clock time in Unix milliseconds.
func (c *BridgeClock) Now() int64 {
	return nowMillis()
}

// Stats returns a snapshot of the clock's counters.
func (c *BridgeClock) Stats() TickStats {
	return c.stats.snapshot()
}

// Running reports whether the clock is armed.
func (c *BridgeClock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Seq returns the number of ticks fired in the current epoch.
func (c *BridgeClock) Seq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}
