// Package redis provides a Redis-backed signal store for at-least-once
// replay across restarts.
//
// Signals are stored as JSON in a hash keyed by signal ID, with save order
// tracked in a list, so GetUnacked returns unacked signals in the order
// they were saved.
//
// # Basic Usage
//
//	store, err := redis.NewFromConfig(ctx, redis.Config{
//		ConnectionURL: "redis://localhost:6379/0",
//	})
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	bus := signal.NewBus(signal.WithStore(store))
//	n, err := bus.Replay(ctx) // republish whatever a previous run left unacked
package redis
