package source

import (
	"context"
	"sync"

	"github.com/dmitrymomot/cadence/core/clock"
	"github.com/dmitrymomot/cadence/core/signal"
)

// DefaultClockSourceName is the source name when none is configured.
const DefaultClockSourceName = "clock"

// ClockSource adapts a Clock into a Source: every tick is mapped to a
// signal through a pure function and emitted. Stopping the source stops
// the underlying clock.
type ClockSource struct {
	name     string
	clk      clock.Clock
	toSignal func(tick clock.Tick) signal.Signal

	mu      sync.Mutex
	running bool
}

// ClockSourceOption configures a ClockSource.
type ClockSourceOption func(*ClockSource)

// WithClockSourceName overrides the default source name.
func WithClockSourceName(name string) ClockSourceOption {
	return func(s *ClockSource) {
		if name != "" {
			s.name = name
		}
	}
}

// NewClockSource wraps a clock and a tick→signal mapping function.
//
// Example:
//
//	src, err := source.NewClockSource(clk, func(tick clock.Tick) signal.Signal {
//	    return signal.New("heartbeat", tick, signal.WithSource("clock"))
//	})
func NewClockSource(clk clock.Clock, toSignal func(tick clock.Tick) signal.Signal, opts ...ClockSourceOption) (*ClockSource, error) {
	if clk == nil {
		return nil, ErrNilClock
	}
	if toSignal == nil {
		return nil, ErrNilMapper
	}

	s := &ClockSource{
		name:     DefaultClockSourceName,
		clk:      clk,
		toSignal: toSignal,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Name returns the source name.
func (s *ClockSource) Name() string {
	return s.name
}

// Start starts the underlying clock with a handler that maps each tick to
// a signal and emits it. Emit failures propagate back to the clock, which
// counts them in its stats.
func (s *ClockSource) Start(ctx context.Context, emit EmitFunc) error {
	if emit == nil {
		return ErrNilEmit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSourceRunning
	}

	if err := s.clk.Start(ctx, func(ctx context.Context, tick clock.Tick) error {
		return emit(ctx, s.toSignal(tick))
	}); err != nil {
		return err
	}

	s.running = true
	return nil
}

// Stop stops the underlying clock. Idempotent.
func (s *ClockSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.clk.Stop()
	s.running = false
	return nil
}
