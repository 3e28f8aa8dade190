package signal

import (
	"context"
	"slices"
	"sync"
)

// Transport is the fan-out delivery surface between Emit and dispatch.
// The bus installs exactly one subscription at construction; alternative
// implementations can add buffering or cross-component wiring as long as
// Emit does not resolve before the subscribers it delivered to have.
type Transport interface {
	// Emit delivers the signal to all current subscribers.
	Emit(ctx context.Context, sig Signal) error

	// Subscribe registers a delivery target and returns an idempotent
	// unsubscribe.
	Subscribe(fn HandlerFunc) func()
}

// inProcessTransport delivers signals to subscribers sequentially in the
// caller's goroutine. This is the default transport: it keeps Emit's
// "resolved after dispatch" guarantee trivially.
type inProcessTransport struct {
	mu   sync.RWMutex
	subs []*transportSub
}

type transportSub struct {
	fn HandlerFunc
}

// NewInProcessTransport creates the default synchronous fan-out transport.
func NewInProcessTransport() Transport {
	return &inProcessTransport{}
}

// Emit invokes each subscriber in registration order, awaiting each one.
// The first subscriber error aborts delivery and propagates to the caller.
func (t *inProcessTransport) Emit(ctx context.Context, sig Signal) error {
	t.mu.RLock()
	subs := slices.Clone(t.subs)
	t.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.fn(ctx, sig); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe registers a delivery target. The returned unsubscribe removes
// it and is safe to call more than once.
func (t *inProcessTransport) Subscribe(fn HandlerFunc) func() {
	sub := &transportSub{fn: fn}

	t.mu.Lock()
	t.subs = append(t.subs, sub)
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			for i, s := range t.subs {
				if s == sub {
					t.subs = append(t.subs[:i:i], t.subs[i+1:]...)
					return
				}
			}
		})
	}
}
