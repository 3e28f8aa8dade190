package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/dmitrymomot/cadence/core/signal"
)

// DefaultWatchSourceName is the source name when none is configured.
const DefaultWatchSourceName = "watch"

// WatchSource produces signals from file-system changes under the
// configured paths. Each fsnotify event is mapped to a signal through a
// pure function; emit failures are logged and do not stop the watcher.
type WatchSource struct {
	name     string
	paths    []string
	toSignal func(event fsnotify.Event) signal.Signal
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// WatchSourceOption configures a WatchSource.
type WatchSourceOption func(*WatchSource)

// WithWatchSourceName overrides the default source name.
func WithWatchSourceName(name string) WatchSourceOption {
	return func(s *WatchSource) {
		if name != "" {
			s.name = name
		}
	}
}

// WithWatchLogger configures structured logging for watcher operations.
func WithWatchLogger(logger *slog.Logger) WatchSourceOption {
	return func(s *WatchSource) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewWatchSource creates a file-watcher source over the given paths.
//
// Example:
//
//	src, err := source.NewWatchSource([]string{"/etc/app"},
//	    func(ev fsnotify.Event) signal.Signal {
//	        return signal.New("file.changed", map[string]any{
//	            "path": ev.Name,
//	            "op":   ev.Op.String(),
//	        }, signal.WithSource("watch"))
//	    })
func NewWatchSource(paths []string, toSignal func(event fsnotify.Event) signal.Signal, opts ...WatchSourceOption) (*WatchSource, error) {
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}
	if toSignal == nil {
		return nil, ErrNilMapper
	}

	s := &WatchSource{
		name:     DefaultWatchSourceName,
		paths:    paths,
		toSignal: toSignal,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Name returns the source name.
func (s *WatchSource) Name() string {
	return s.name
}

// Start opens the watcher, registers all paths, and begins emitting a
// signal per file-system event from a background goroutine.
func (s *WatchSource) Start(ctx context.Context, emit EmitFunc) error {
	if emit == nil {
		return ErrNilEmit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSourceRunning
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	for _, path := range s.paths {
		if err := watcher.Add(path); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.watcher = watcher
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go s.run(runCtx, watcher, emit)

	s.logger.InfoContext(ctx, "watch source started",
		slog.String("source", s.name),
		slog.Int("paths", len(s.paths)))

	return nil
}

func (s *WatchSource) run(ctx context.Context, watcher *fsnotify.Watcher, emit EmitFunc) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if err := emit(ctx, s.toSignal(ev)); err != nil {
				s.logger.ErrorContext(ctx, "failed to emit file event",
					slog.String("source", s.name),
					slog.String("path", ev.Name),
					slog.String("error", err.Error()))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.ErrorContext(ctx, "watcher error",
				slog.String("source", s.name),
				slog.String("error", err.Error()))
		}
	}
}

// Stop closes the watcher and waits for the emit loop to drain. Idempotent.
func (s *WatchSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	watcher := s.watcher
	cancel := s.cancel
	s.watcher = nil
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	err := watcher.Close()
	s.wg.Wait()

	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}
