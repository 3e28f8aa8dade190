// Package postgres provides a Postgres-backed signal store for
// at-least-once replay across restarts.
//
// Each signal is one row holding its JSON encoding; a bigserial position
// column preserves save order and a partial index keeps the unacked scan
// cheap. Acked rows are retained for audit.
//
// # Basic Usage
//
//	store, err := postgres.NewFromConfig(ctx, postgres.Config{
//		ConnectionURL: "postgres://localhost:5432/app",
//	})
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	bus := signal.NewBus(signal.WithStore(store))
package postgres
