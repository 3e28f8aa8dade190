package signal

import "errors"

var (
	// ErrEmptySignalType is returned when a signal with an empty type
	// discriminator is emitted.
	ErrEmptySignalType = errors.New("signal type must not be empty")

	// ErrBusClosed is returned when emitting on a closed bus.
	ErrBusClosed = errors.New("signal bus is closed")
)
