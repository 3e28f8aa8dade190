// Package mongo provides a MongoDB-backed signal store for at-least-once
// replay across restarts.
//
// Each signal is one document holding its JSON encoding; a monotonic
// position field preserves save order for GetUnacked. Acked documents are
// retained for audit.
//
// # Basic Usage
//
//	store, err := mongo.NewFromConfig(ctx, mongo.Config{
//		ConnectionURL: "mongodb://localhost:27017",
//	})
//	if err != nil {
//		return err
//	}
//	defer store.Close(ctx)
//
//	bus := signal.NewBus(signal.WithStore(store))
package mongo
