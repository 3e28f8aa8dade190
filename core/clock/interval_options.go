package clock

import (
	"log/slog"
	"time"
)

// IntervalOption configures an IntervalClock.
type IntervalOption func(*IntervalClock)

// WithBackpressure selects the scheduling policy used when the handler is
// slower than the interval. Default is BackpressureBlock.
func WithBackpressure(policy BackpressurePolicy) IntervalOption {
	return func(c *IntervalClock) {
		if policy != "" {
			c.policy = policy
		}
	}
}

// WithMaxCatchUpTicks bounds the number of compensation ticks fired after a
// delayed tick under the drop and adaptive policies. Default is 3.
func WithMaxCatchUpTicks(n int) IntervalOption {
	return func(c *IntervalClock) {
		if n >= 0 {
			c.maxCatchUp = n
		}
	}
}

// WithDriftWarning registers a callback invoked when the clock observes
// sustained drift above 80% of the interval for 5 consecutive ticks.
func WithDriftWarning(fn func(drift time.Duration)) IntervalOption {
	return func(c *IntervalClock) {
		if fn != nil {
			c.onDriftWarning = fn
		}
	}
}

// WithTickErrorHandler registers a callback invoked when a tick handler
// returns an error. Errors are counted in stats regardless.
func WithTickErrorHandler(fn func(err error)) IntervalOption {
	return func(c *IntervalClock) {
		if fn != nil {
			c.onError = fn
		}
	}
}

// WithIntervalLogger configures structured logging for the clock.
// Use slog.New(slog.NewTextHandler(io.Discard, nil)) to disable logging.
func WithIntervalLogger(logger *slog.Logger) IntervalOption {
	return func(c *IntervalClock) {
		if logger != nil {
			c.logger = logger
		}
	}
}
