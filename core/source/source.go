package source

import (
	"context"
	"errors"

	"github.com/dmitrymomot/cadence/core/signal"
)

// EmitFunc is the sink a source delivers signals into — typically the
// bound Emit of a signal.Bus.
type EmitFunc func(ctx context.Context, sig signal.Signal) error

// Source is an external producer of signals with a start/stop lifecycle.
// Start binds the source to its consumer's emit function; Stop is
// idempotent.
type Source interface {
	// Name identifies the source in logs and errors. It is not written
	// into emitted signals; their Source field comes from the mapping
	// function.
	Name() string

	// Start begins producing signals into emit. Returns
	// ErrSourceRunning on double start.
	Start(ctx context.Context, emit EmitFunc) error

	// Stop halts production. Idempotent.
	Stop() error
}

// Interface compliance checks.
var (
	_ Source = (*ClockSource)(nil)
	_ Source = (*WatchSource)(nil)
	_ Source = (*CronSource)(nil)
)

var (
	// ErrSourceRunning is returned when starting a source that is already started.
	ErrSourceRunning = errors.New("source already started")

	// ErrNilEmit is returned when Start is called without an emit function.
	ErrNilEmit = errors.New("emit function must not be nil")

	// ErrNilClock is returned when a clock source is constructed without a clock.
	ErrNilClock = errors.New("clock must not be nil")

	// ErrNilMapper is returned when a source is constructed without a signal mapping function.
	ErrNilMapper = errors.New("signal mapping function must not be nil")

	// ErrNoPaths is returned when a watch source is constructed without paths.
	ErrNoPaths = errors.New("at least one path is required")
)
