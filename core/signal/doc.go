// Package signal provides a typed in-process event bus with pluggable
// transport, persistence, and execution layers.
//
// A host program declares a closed set of signal types, produces them from
// sources (clocks, watchers, schedules, external pushes), and the bus
// dispatches each one deterministically through a middleware chain to
// type-indexed and type-agnostic subscribers, with durability hooks for
// at-least-once replay after a restart.
//
// # Pipeline
//
// Emit runs save → transport → middleware → typed handlers → any-handlers
// → ack, and returns only after the whole pipeline has resolved:
//
//	bus := signal.NewBus()
//
//	unsub := bus.On("user.created", signal.Typed(
//	    func(ctx context.Context, sig signal.Signal, payload UserCreated) error {
//	        return cache.Invalidate(ctx, payload.UserID)
//	    }))
//	defer unsub()
//
//	bus.OnAny(func(ctx context.Context, sig signal.Signal) error {
//	    audit.Record(sig)
//	    return nil
//	})
//
//	err := bus.Emit(ctx, signal.New("user.created", UserCreated{UserID: "123"}))
//
// Within one emit, typed handlers run before any-handlers and each list
// runs in registration order. With the default sequential executor, a
// second Emit from the same caller never begins dispatch before the first
// one's handlers have all returned. Ordering across independent sources is
// undefined.
//
// # Error policy
//
// Handler failures are counted, reported through the error callback, and
// never fail Emit — one bad subscriber cannot starve the rest. Middleware,
// store, and transport failures do fail Emit; a middleware that declines
// to call next short-circuits dispatch without error.
//
// # Middleware
//
// Middleware wraps dispatch in an onion: registration order is outer to
// inner, and post-processing happens in reverse. The chain is folded from
// the live list at dispatch time, so Use can be called at any point.
//
//	bus.Use(func(next signal.HandlerFunc) signal.HandlerFunc {
//	    return func(ctx context.Context, sig signal.Signal) error {
//	        if sig.Type == "debug" && !debugEnabled {
//	            return nil // short-circuit: no handler runs
//	        }
//	        return next(ctx, sig)
//	    }
//	})
//
// # Durability and replay
//
// With a durable store, every signal is saved before delivery and acked
// after dispatch. Signals that were saved but never acked — typically
// because the process died mid-dispatch — are republished by Replay:
//
//	bus := signal.NewBus(signal.WithStore(store))
//	n, err := bus.Replay(ctx) // at-least-once: handlers must be idempotent
//
// Replay bypasses Save, so it never duplicates store records.
package signal
