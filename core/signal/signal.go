package signal

import (
	"time"

	"github.com/google/uuid"
)

// Signal is a typed event record flowing through the bus. The Type
// discriminator is drawn from a closed, application-defined set and
// determines the shape of Payload.
type Signal struct {
	// Type is the signal discriminator. Never empty.
	Type string `json:"type"`

	// TS is the production time in Unix milliseconds.
	TS int64 `json:"ts"`

	// ID uniquely identifies the signal across the lifetime of a store.
	ID string `json:"id"`

	// Source is an optional origin tag.
	Source string `json:"source,omitempty"`

	// Payload carries structured data whose shape is a function of Type.
	Payload any `json:"payload,omitempty"`
}

// SignalOption customizes a signal created with New.
type SignalOption func(*Signal)

// WithSource tags the signal with its origin.
func WithSource(source string) SignalOption {
	return func(s *Signal) {
		s.Source = source
	}
}

// WithID overrides the auto-generated signal ID.
func WithID(id string) SignalOption {
	return func(s *Signal) {
		if id != "" {
			s.ID = id
		}
	}
}

// WithTimestamp overrides the auto-generated production time.
func WithTimestamp(ts int64) SignalOption {
	return func(s *Signal) {
		if ts > 0 {
			s.TS = ts
		}
	}
}

// New creates a Signal with a random UUID and the current wall-clock time.
//
// Example:
//
//	sig := signal.New("order.placed", OrderPlaced{OrderID: "42"},
//	    signal.WithSource("checkout"))
func New(signalType string, payload any, opts ...SignalOption) Signal {
	s := Signal{
		Type:    signalType,
		TS:      time.Now().UnixMilli(),
		ID:      uuid.New().String(),
		Payload: payload,
	}

	for _, opt := range opts {
		opt(&s)
	}

	return s
}
