package clock

import "errors"

var (
	// ErrClockRunning is returned when attempting to start a clock that is already running.
	ErrClockRunning = errors.New("clock already running")

	// ErrClockNotRunning is returned by test clock operations that require a running clock.
	ErrClockNotRunning = errors.New("clock not running")

	// ErrInvalidInterval is returned when a clock is constructed with a non-positive interval.
	ErrInvalidInterval = errors.New("interval must be positive")

	// ErrNilHandler is returned when Start is called without a tick handler.
	ErrNilHandler = errors.New("tick handler must not be nil")

	// ErrInvalidBackpressure is returned when an unknown back-pressure policy is configured.
	ErrInvalidBackpressure = errors.New("unknown backpressure policy")
)
