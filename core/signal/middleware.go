package signal

import (
	"context"
	"log/slog"
	"time"
)

// Middleware wraps the dispatch of one signal. The chain is folded at
// dispatch time from the current registration list, so registration order
// is outer to inner. Not calling next short-circuits everything downstream,
// including the handlers. Middleware must not change a signal's Type or ID
// in ways visible to later stages; the bus does not defend against it.
type Middleware func(next HandlerFunc) HandlerFunc

// chainMiddleware folds the middleware list around the terminal dispatch
// step. The first registered middleware becomes the outermost wrapper.
func chainMiddleware(terminal HandlerFunc, middleware []Middleware) HandlerFunc {
	chain := terminal
	for i := len(middleware) - 1; i >= 0; i-- {
		chain = middleware[i](chain)
	}
	return chain
}

// LoggingMiddleware logs signal dispatch with timing.
//
// Example:
//
//	bus.Use(signal.LoggingMiddleware(logger))
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, sig Signal) error {
			start := time.Now()
			err := next(ctx, sig)
			duration := time.Since(start)

			if err != nil {
				logger.ErrorContext(ctx, "signal dispatch failed",
					slog.String("signal_id", sig.ID),
					slog.String("signal_type", sig.Type),
					slog.Duration("duration", duration),
					slog.String("error", err.Error()))
				return err
			}

			logger.DebugContext(ctx, "signal dispatched",
				slog.String("signal_id", sig.ID),
				slog.String("signal_type", sig.Type),
				slog.Duration("duration", duration))
			return nil
		}
	}
}
