package clock

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"
)

// Clock produces ticks and delivers them to a single handler registered
// at Start. Implementations own their sequence counter and stats; both are
// zeroed at every Start and the sequence of emitted Tick.Seq values is
// strictly 0, 1, 2, … per start epoch.
type Clock interface {
	// Start registers the handler and begins producing ticks. Returns
	// ErrClockRunning if the clock is already running.
	Start(ctx context.Context, handler TickHandler) error

	// Stop cancels any pending tick and prevents further handler
	// invocations for the current epoch. Idempotent.
	Stop()

	// Now returns the clock's current time in Unix milliseconds.
	// The test clock returns virtual time instead.
	Now() int64

	// Stats returns a snapshot of the clock's counters.
	Stats() TickStats

	// Running reports whether the clock is currently started.
	Running() bool

	// Seq returns the number of ticks fired in the current epoch.
	Seq() uint64
}

// Interface compliance checks.
var (
	_ Clock = (*IntervalClock)(nil)
	_ Clock = (*TestClock)(nil)
	_ Clock = (*BridgeClock)(nil)
)

// nowMillis returns wall-clock time in Unix milliseconds.
func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// safeInvoke executes a tick handler with panic recovery so a panicking
// handler cannot take down the clock's goroutine.
func safeInvoke(handler TickHandler, ctx context.Context, tick Tick) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick handler panicked: %v\nstack trace:\n%s", r, debug.Stack())
		}
	}()

	return handler(ctx, tick)
}
