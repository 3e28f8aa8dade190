package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
)

// HandlerFunc processes one signal. Handlers registered via Bus.On receive
// only signals of their type; handlers registered via Bus.OnAny receive
// every signal after the typed handlers.
type HandlerFunc func(ctx context.Context, sig Signal) error

// Typed adapts a payload-typed function into a HandlerFunc. The payload is
// asserted to T, or unmarshaled when the signal crossed a byte-oriented
// store or transport and arrives as raw JSON.
//
// Example:
//
//	unsub := bus.On("order.placed", signal.Typed(
//	    func(ctx context.Context, sig signal.Signal, payload OrderPlaced) error {
//	        return fulfill(ctx, payload.OrderID)
//	    }))
func Typed[T any](fn func(ctx context.Context, sig Signal, payload T) error) HandlerFunc {
	return func(ctx context.Context, sig Signal) error {
		payload, err := convertPayload[T](sig.Payload)
		if err != nil {
			return err
		}
		return fn(ctx, sig, payload)
	}
}

// convertPayload converts a signal payload to type T. Handles pre-typed
// payloads, raw JSON bytes, and the generic map shape produced by
// unmarshaling into any.
func convertPayload[T any](payload any) (T, error) {
	var zero T

	if v, ok := payload.(T); ok {
		return v, nil
	}

	switch data := payload.(type) {
	case []byte:
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return zero, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
		return v, nil
	case json.RawMessage:
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return zero, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
		return v, nil
	case map[string]any:
		// Round trip through JSON to re-type a generically decoded payload.
		raw, err := json.Marshal(data)
		if err != nil {
			return zero, fmt.Errorf("failed to re-encode payload: %w", err)
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return zero, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
		return v, nil
	}

	return zero, fmt.Errorf("unexpected payload type: %T", payload)
}

// safeHandle executes a handler with panic recovery. A panicking handler
// is converted to an error so one subscriber cannot take down the bus.
func safeHandle(fn HandlerFunc, ctx context.Context, sig Signal) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v\nstack trace:\n%s", r, debug.Stack())
		}
	}()

	return fn(ctx, sig)
}
