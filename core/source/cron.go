package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dmitrymomot/cadence/core/signal"
)

// DefaultCronSourceName is the source name when none is configured.
const DefaultCronSourceName = "cron"

// CronSource produces one signal per schedule fire. The schedule uses the
// standard five-field cron syntax plus the @every/@hourly descriptors.
type CronSource struct {
	name     string
	spec     string
	schedule cron.Schedule
	toSignal func(at time.Time) signal.Signal
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	runner  *cron.Cron
}

// CronSourceOption configures a CronSource.
type CronSourceOption func(*CronSource)

// WithCronSourceName overrides the default source name.
func WithCronSourceName(name string) CronSourceOption {
	return func(s *CronSource) {
		if name != "" {
			s.name = name
		}
	}
}

// WithCronLogger configures structured logging for schedule operations.
func WithCronLogger(logger *slog.Logger) CronSourceOption {
	return func(s *CronSource) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewCronSource creates a schedule-driven source. The spec is validated at
// construction so a malformed schedule fails fast rather than at Start.
//
// Example:
//
//	src, err := source.NewCronSource("@every 1h", func(at time.Time) signal.Signal {
//	    return signal.New("report.due", at.UnixMilli(), signal.WithSource("cron"))
//	})
func NewCronSource(spec string, toSignal func(at time.Time) signal.Signal, opts ...CronSourceOption) (*CronSource, error) {
	if toSignal == nil {
		return nil, ErrNilMapper
	}

	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}

	s := &CronSource{
		name:     DefaultCronSourceName,
		spec:     spec,
		schedule: schedule,
		toSignal: toSignal,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Name returns the source name.
func (s *CronSource) Name() string {
	return s.name
}

// Start launches the cron runner. Each fire maps the fire time to a signal
// and emits it; emit failures are logged and do not cancel the schedule.
func (s *CronSource) Start(ctx context.Context, emit EmitFunc) error {
	if emit == nil {
		return ErrNilEmit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSourceRunning
	}

	runner := cron.New()
	runner.Schedule(s.schedule, cron.FuncJob(func() {
		at := time.Now()
		if err := emit(ctx, s.toSignal(at)); err != nil {
			s.logger.ErrorContext(ctx, "failed to emit scheduled signal",
				slog.String("source", s.name),
				slog.String("spec", s.spec),
				slog.String("error", err.Error()))
		}
	}))
	runner.Start()

	s.runner = runner
	s.running = true

	s.logger.InfoContext(ctx, "cron source started",
		slog.String("source", s.name),
		slog.String("spec", s.spec))

	return nil
}

// Stop halts the schedule and waits for an in-flight fire to complete.
// Idempotent.
func (s *CronSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	runner := s.runner
	s.runner = nil
	s.mu.Unlock()

	<-runner.Stop().Done()
	return nil
}
