package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Group manages a set of sources as one unit: all are started against the
// same emit function and stopped together. A failed start rolls back the
// sources that already started.
type Group struct {
	logger *slog.Logger

	mu      sync.Mutex
	sources []Source
	running bool
	cancel  context.CancelFunc
}

// GroupOption configures a Group.
type GroupOption func(*Group)

// WithGroupLogger configures structured logging for group operations.
func WithGroupLogger(logger *slog.Logger) GroupOption {
	return func(g *Group) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGroup creates an empty source group.
//
// Example:
//
//	group := source.NewGroup()
//	group.Add(heartbeat, watcher)
//	if err := group.Start(ctx, bus.Emit); err != nil {
//	    log.Fatal(err)
//	}
//	defer group.Stop()
func NewGroup(opts ...GroupOption) *Group {
	g := &Group{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Add registers sources with the group. Returns ErrSourceRunning if the
// group is already started.
func (g *Group) Add(sources ...Source) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running {
		return ErrSourceRunning
	}

	for _, src := range sources {
		if src != nil {
			g.sources = append(g.sources, src)
		}
	}
	return nil
}

// Start starts all sources concurrently against emit. If any source fails
// to start, every source is stopped (Stop is idempotent, so sources that
// never started tolerate the rollback) and the failure is returned.
func (g *Group) Start(ctx context.Context, emit EmitFunc) error {
	if emit == nil {
		return ErrNilEmit
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running {
		return ErrSourceRunning
	}

	runCtx, cancel := context.WithCancel(ctx)

	var eg errgroup.Group
	for _, src := range g.sources {
		eg.Go(func() error {
			if err := src.Start(runCtx, emit); err != nil {
				return fmt.Errorf("failed to start source %s: %w", src.Name(), err)
			}
			g.logger.InfoContext(ctx, "source started", slog.String("source", src.Name()))
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		for _, src := range g.sources {
			if stopErr := src.Stop(); stopErr != nil {
				g.logger.ErrorContext(ctx, "failed to stop source during rollback",
					slog.String("source", src.Name()),
					slog.String("error", stopErr.Error()))
			}
		}
		cancel()
		return err
	}

	g.cancel = cancel
	g.running = true
	return nil
}

// Stop stops every source in reverse registration order and aggregates
// their errors. Idempotent.
func (g *Group) Stop() error {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return nil
	}
	g.running = false
	cancel := g.cancel
	g.cancel = nil
	sources := g.sources
	g.mu.Unlock()

	var errs []error
	for i := len(sources) - 1; i >= 0; i-- {
		if err := sources[i].Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop source %s: %w", sources[i].Name(), err))
		}
	}
	cancel()

	return errors.Join(errs...)
}

// Run provides errgroup compatibility: it starts the group, blocks until
// the context is cancelled, then stops everything.
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(group.Run(ctx, bus.Emit))
func (g *Group) Run(ctx context.Context, emit EmitFunc) func() error {
	return func() error {
		if err := g.Start(ctx, emit); err != nil {
			return err
		}
		<-ctx.Done()
		return g.Stop()
	}
}

// Healthcheck validates that the group is running.
func (g *Group) Healthcheck(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.running {
		return errors.New("source group is not running")
	}
	return nil
}
